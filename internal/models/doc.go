// Package models defines the data carried between the credential store, the catalog client, and the playback orchestrator.
//
// The package contains two categories of types:
//
// 1. Persistent Entities: shared mutable state owned by the credential store
//   - [Credential] : a user's delegated access grant
//
// 2. Transient values: immutable snapshots produced by a single request
//   - [SearchResult] and [ScoredResult] : catalog search hits and their ranking
//   - [AlbumTrack] and [MovementSet] : album listings and grouped multi-movement works
//   - [PlaybackIntent] : what to play and where
//   - [DeviceState], [Playlist], [NowPlaying] : provider snapshots, never cached
package models
