// package models defines the data model for the playback orchestrator
package models

import (
	"fmt"
	"time"
)

// Credential is a user's delegated access grant.
//
// Created on the first successful code exchange, replaced on refresh, removed on unlink.
type Credential struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks that the credential can be stored.
func (c Credential) Validate() error {
	switch {
	case c.UserID == "":
		return fmt.Errorf("credential user id is required")
	case c.AccessToken == "":
		return fmt.Errorf("credential access token is required")
	case c.RefreshToken == "":
		return fmt.Errorf("credential refresh token is required")
	case c.ExpiresAt.IsZero():
		return fmt.Errorf("credential expiry is required")
	}
	return nil
}

// FreshAt reports whether the access token is still usable at now given the refresh skew.
func (c Credential) FreshAt(now time.Time, skew time.Duration) bool {
	return now.Add(skew).Before(c.ExpiresAt)
}

// SearchResult is a single track hit from a catalog search.
type SearchResult struct {
	URI             string
	Title           string
	ArtistName      string
	AlbumID         string
	AlbumName       string
	AlbumTrackIndex int
}

// ScoredResult is a [SearchResult] with its relevance score. Higher is better.
type ScoredResult struct {
	SearchResult
	Score int
}

// AlbumTrack is one entry of an album listing. TrackIndex is the 0-based position in the album.
type AlbumTrack struct {
	URI        string
	Title      string
	TrackIndex int
}

// MovementSet is an ordered, non-empty run of tracks forming one work.
type MovementSet []AlbumTrack

// URIs returns the track URIs in play order.
func (m MovementSet) URIs() []string {
	uris := make([]string, len(m))
	for i, t := range m {
		uris[i] = t.URI
	}
	return uris
}

// PlaybackIntent describes a play command. TargetURIs and ContextURI are mutually exclusive.
type PlaybackIntent struct {
	TargetURIs []string
	ContextURI string
	DeviceID   string
}

// Validate enforces that exactly one of TargetURIs or ContextURI is set.
func (p PlaybackIntent) Validate() error {
	if len(p.TargetURIs) > 0 && p.ContextURI != "" {
		return fmt.Errorf("playback intent cannot carry both track uris and a context uri")
	}
	if len(p.TargetURIs) == 0 && p.ContextURI == "" {
		return fmt.Errorf("playback intent requires track uris or a context uri")
	}
	return nil
}

// DeviceState is a snapshot of one of the user's playback devices.
type DeviceState struct {
	DeviceID string
	Name     string
	Type     string
	IsActive bool
}

// Playlist is a user's playlist as listed by the provider.
type Playlist struct {
	ID   string
	Name string
	URI  string
}

// NowPlaying is the provider's view of the current track.
type NowPlaying struct {
	Title     string
	Artist    string
	URI       string
	IsPlaying bool
}
