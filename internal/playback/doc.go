// Package playback turns free-text requests into playback on a user's device.
//
// The [Orchestrator] runs one session per user through the states
//
//	Idle → Searching → Resolved → Commanding → Active | Paused
//
// and falls back to Idle whenever an operation fails.
//
// A query is searched with over-fetch, ranked by the [matching.Scorer], widened to the whole work with
// [movements.Resolve], then played as an ordered list on the user's active device (or the first open one).
//
// Every operation returns a message for the user. Errors never escape the orchestrator:
//   - credential problems ask the user to relink; a refresh failure still under the retry budget asks them to try again
//   - a missing device asks the user to open the app
//   - empty searches and unknown playlists are plain messages
//   - other provider failures carry the provider's own message
//
// A token the provider rejects is refreshed once and the call retried; nothing else is retried.
//
// [Orchestrator.Dispatch] routes a single line of text ("pause", "playlist Evening", "brahms violin sonata")
// to the matching operation.
package playback
