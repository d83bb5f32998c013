// Spotify Web API implementation of [Catalog]
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/maestro/internal/metrics"
	"github.com/desertthunder/maestro/internal/models"
	"github.com/desertthunder/maestro/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultRateLimit = 10.0
	pageSize         = 50
	// stop paging after this many pages even if the provider keeps answering
	maxPages = 20
)

// an empty error body leaves only the status in the message
var emptyBodyStatus = regexp.MustCompile(`HTTP (\d{3})`)

// SpotifyOptions configures a [SpotifyCatalog].
type SpotifyOptions struct {
	// BaseURL overrides the API root, e.g. for a local test server.
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64
	HTTPClient *http.Client
	Logger     *log.Logger
	Metrics    *metrics.Recorder
}

// SpotifyCatalog implements [Catalog] against the Spotify Web API.
type SpotifyCatalog struct {
	baseURL    string
	timeout    time.Duration
	limiter    *rate.Limiter
	httpClient *http.Client
	logger     *log.Logger
	metrics    *metrics.Recorder
}

// NewSpotifyCatalog creates a [SpotifyCatalog].
func NewSpotifyCatalog(opts SpotifyOptions) *SpotifyCatalog {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.BaseURL != "" && !strings.HasSuffix(opts.BaseURL, "/") {
		opts.BaseURL += "/"
	}

	return &SpotifyCatalog{
		baseURL:    opts.BaseURL,
		timeout:    opts.Timeout,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		httpClient: opts.HTTPClient,
		logger:     shared.WithLogger(opts.Logger, "component", "catalog"),
		metrics:    opts.Metrics,
	}
}

// client builds an API client authorized with token.
func (s *SpotifyCatalog) client(ctx context.Context, token string) *spotify.Client {
	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))

	var opts []spotify.ClientOption
	if s.baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(s.baseURL))
	}
	return spotify.New(hc, opts...)
}

// call waits for the limiter, runs fn under the request timeout and classifies its error.
func (s *SpotifyCatalog) call(ctx context.Context, op string, player bool, fn func(context.Context) error) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrAPIRequest, op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := classify(fn(ctx), player)
	s.metrics.Catalog(op, start, err)

	if err != nil {
		s.logger.Debug("catalog call failed", "op", op, "duration", time.Since(start), "error", err)
	}
	return err
}

// classify maps a client error onto the shared error types.
func classify(err error, player bool) error {
	if err == nil {
		return nil
	}

	var (
		status  int
		message string
	)

	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		status, message = apiErr.Status, apiErr.Message
	} else if m := emptyBodyStatus.FindStringSubmatch(err.Error()); m != nil {
		status, _ = strconv.Atoi(m[1])
		message = http.StatusText(status)
	} else {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if player && (status == http.StatusNotFound || strings.Contains(strings.ToLower(message), "no active device")) {
		return &shared.NoActiveDeviceError{Message: message}
	}
	return &shared.ProviderError{Status: status, Message: message}
}

// Search implements [Catalog].
func (s *SpotifyCatalog) Search(ctx context.Context, token, query string, limit int) ([]models.SearchResult, error) {
	var res *spotify.SearchResult
	err := s.call(ctx, "search", false, func(ctx context.Context) error {
		var err error
		res, err = s.client(ctx, token).Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
		return err
	})
	if err != nil {
		return nil, err
	}

	if res == nil || res.Tracks == nil {
		return nil, nil
	}

	results := make([]models.SearchResult, 0, len(res.Tracks.Tracks))
	for _, t := range res.Tracks.Tracks {
		results = append(results, models.SearchResult{
			URI:             string(t.URI),
			Title:           t.Name,
			ArtistName:      artistNames(t.Artists),
			AlbumID:         string(t.Album.ID),
			AlbumName:       t.Album.Name,
			AlbumTrackIndex: int(t.TrackNumber) - 1,
		})
	}
	return results, nil
}

// AlbumTracks implements [Catalog], following pages until the album is exhausted.
func (s *SpotifyCatalog) AlbumTracks(ctx context.Context, token, albumID string) ([]models.AlbumTrack, error) {
	var tracks []models.AlbumTrack

	for page := 0; page < maxPages; page++ {
		offset := page * pageSize

		var res *spotify.SimpleTrackPage
		err := s.call(ctx, "album_tracks", false, func(ctx context.Context) error {
			var err error
			res, err = s.client(ctx, token).GetAlbumTracks(ctx, spotify.ID(albumID), spotify.Limit(pageSize), spotify.Offset(offset))
			return err
		})
		if err != nil {
			return nil, err
		}

		for i, t := range res.Tracks {
			tracks = append(tracks, models.AlbumTrack{
				URI:        string(t.URI),
				Title:      t.Name,
				TrackIndex: offset + i,
			})
		}

		if len(res.Tracks) < pageSize {
			break
		}
	}

	return tracks, nil
}

// Playlists implements [Catalog].
func (s *SpotifyCatalog) Playlists(ctx context.Context, token string) ([]models.Playlist, error) {
	var playlists []models.Playlist

	for page := 0; page < maxPages; page++ {
		offset := page * pageSize

		var res *spotify.SimplePlaylistPage
		err := s.call(ctx, "playlists", false, func(ctx context.Context) error {
			var err error
			res, err = s.client(ctx, token).CurrentUsersPlaylists(ctx, spotify.Limit(pageSize), spotify.Offset(offset))
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, p := range res.Playlists {
			playlists = append(playlists, models.Playlist{
				ID:   string(p.ID),
				Name: p.Name,
				URI:  string(p.URI),
			})
		}

		if len(res.Playlists) < pageSize {
			break
		}
	}

	return playlists, nil
}

// Play implements [Catalog].
func (s *SpotifyCatalog) Play(ctx context.Context, token string, intent models.PlaybackIntent) error {
	if err := intent.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	opt := &spotify.PlayOptions{DeviceID: deviceID(intent.DeviceID)}
	if intent.ContextURI != "" {
		uri := spotify.URI(intent.ContextURI)
		opt.PlaybackContext = &uri
	}
	for _, u := range intent.TargetURIs {
		opt.URIs = append(opt.URIs, spotify.URI(u))
	}

	return s.call(ctx, "play", true, func(ctx context.Context) error {
		return s.client(ctx, token).PlayOpt(ctx, opt)
	})
}

// Pause implements [Catalog].
func (s *SpotifyCatalog) Pause(ctx context.Context, token, device string) error {
	return s.call(ctx, "pause", true, func(ctx context.Context) error {
		return s.client(ctx, token).PauseOpt(ctx, &spotify.PlayOptions{DeviceID: deviceID(device)})
	})
}

// Resume implements [Catalog].
func (s *SpotifyCatalog) Resume(ctx context.Context, token, device string) error {
	return s.call(ctx, "resume", true, func(ctx context.Context) error {
		return s.client(ctx, token).PlayOpt(ctx, &spotify.PlayOptions{DeviceID: deviceID(device)})
	})
}

// Next implements [Catalog].
func (s *SpotifyCatalog) Next(ctx context.Context, token, device string) error {
	return s.call(ctx, "next", true, func(ctx context.Context) error {
		return s.client(ctx, token).NextOpt(ctx, &spotify.PlayOptions{DeviceID: deviceID(device)})
	})
}

// NowPlaying implements [Catalog].
func (s *SpotifyCatalog) NowPlaying(ctx context.Context, token string) (*models.NowPlaying, error) {
	var cp *spotify.CurrentlyPlaying
	err := s.call(ctx, "now_playing", false, func(ctx context.Context) error {
		var err error
		cp, err = s.client(ctx, token).PlayerCurrentlyPlaying(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if cp == nil || cp.Item == nil {
		return nil, nil
	}

	return &models.NowPlaying{
		Title:     cp.Item.Name,
		Artist:    artistNames(cp.Item.Artists),
		URI:       string(cp.Item.URI),
		IsPlaying: cp.Playing,
	}, nil
}

// Devices implements [Catalog].
func (s *SpotifyCatalog) Devices(ctx context.Context, token string) ([]models.DeviceState, error) {
	var devices []spotify.PlayerDevice
	err := s.call(ctx, "devices", false, func(ctx context.Context) error {
		var err error
		devices, err = s.client(ctx, token).PlayerDevices(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	states := make([]models.DeviceState, 0, len(devices))
	for _, d := range devices {
		states = append(states, models.DeviceState{
			DeviceID: string(d.ID),
			Name:     d.Name,
			Type:     d.Type,
			IsActive: d.Active,
		})
	}
	return states, nil
}

func deviceID(id string) *spotify.ID {
	if id == "" {
		return nil
	}
	sid := spotify.ID(id)
	return &sid
}

func artistNames(artists []spotify.SimpleArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}
