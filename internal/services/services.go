// package services defines interface Catalog for the provider's search, library, and player endpoints
package services

import (
	"context"

	"github.com/desertthunder/maestro/internal/models"
)

// Catalog is the narrow slice of the provider API the orchestrator needs.
type Catalog interface {
	// Search returns up to limit track hits for query in provider order.
	Search(ctx context.Context, token, query string, limit int) ([]models.SearchResult, error)

	// AlbumTracks lists every track of an album in album order.
	AlbumTracks(ctx context.Context, token, albumID string) ([]models.AlbumTrack, error)

	// Playlists lists the user's playlists in provider order.
	Playlists(ctx context.Context, token string) ([]models.Playlist, error)

	// Play starts playback of intent.
	Play(ctx context.Context, token string, intent models.PlaybackIntent) error

	Pause(ctx context.Context, token, deviceID string) error
	Resume(ctx context.Context, token, deviceID string) error
	Next(ctx context.Context, token, deviceID string) error

	// NowPlaying reports the current track. A nil result with no error means nothing is playing.
	NowPlaying(ctx context.Context, token string) (*models.NowPlaying, error)

	// Devices lists the user's devices. An empty list is not an error.
	Devices(ctx context.Context, token string) ([]models.DeviceState, error)
}
