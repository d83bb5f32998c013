// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/desertthunder/maestro/internal/models"
)

// MockCatalog is an in-memory test double for [services.Catalog].
//
// Responses come from the exported fields; Err* fields, when set, are returned instead.
// Every call is recorded as "Method" in Calls and the token it carried in Tokens.
type MockCatalog struct {
	mu sync.Mutex

	Results     []models.SearchResult
	Albums      map[string][]models.AlbumTrack
	UserLists   []models.Playlist
	DeviceList  []models.DeviceState
	Current     *models.NowPlaying
	PlayIntents []models.PlaybackIntent

	ErrSearch  error
	ErrAlbum   error
	ErrLists   error
	ErrPlay    error
	ErrPlayer  error
	ErrDevices error

	// RejectToken makes every call carrying this token fail with Unauthorized.
	RejectToken  string
	Unauthorized error

	Calls  []string
	Tokens []string
}

// NewMockCatalog returns an empty [MockCatalog].
func NewMockCatalog() *MockCatalog {
	return &MockCatalog{Albums: make(map[string][]models.AlbumTrack)}
}

func (m *MockCatalog) record(method, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, method)
	m.Tokens = append(m.Tokens, token)
	if m.RejectToken != "" && token == m.RejectToken {
		return m.Unauthorized
	}
	return nil
}

// Count returns how many times method was called.
func (m *MockCatalog) Count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == method {
			n++
		}
	}
	return n
}

func (m *MockCatalog) Search(ctx context.Context, token, query string, limit int) ([]models.SearchResult, error) {
	if err := m.record("Search", token); err != nil {
		return nil, err
	}
	if m.ErrSearch != nil {
		return nil, m.ErrSearch
	}
	if limit > 0 && len(m.Results) > limit {
		return m.Results[:limit], nil
	}
	return m.Results, nil
}

func (m *MockCatalog) AlbumTracks(ctx context.Context, token, albumID string) ([]models.AlbumTrack, error) {
	if err := m.record("AlbumTracks", token); err != nil {
		return nil, err
	}
	if m.ErrAlbum != nil {
		return nil, m.ErrAlbum
	}
	return m.Albums[albumID], nil
}

func (m *MockCatalog) Playlists(ctx context.Context, token string) ([]models.Playlist, error) {
	if err := m.record("Playlists", token); err != nil {
		return nil, err
	}
	return m.UserLists, m.ErrLists
}

func (m *MockCatalog) Play(ctx context.Context, token string, intent models.PlaybackIntent) error {
	if err := m.record("Play", token); err != nil {
		return err
	}
	if m.ErrPlay != nil {
		return m.ErrPlay
	}
	m.mu.Lock()
	m.PlayIntents = append(m.PlayIntents, intent)
	m.mu.Unlock()
	return nil
}

func (m *MockCatalog) Pause(ctx context.Context, token, deviceID string) error {
	if err := m.record("Pause", token); err != nil {
		return err
	}
	return m.ErrPlayer
}

func (m *MockCatalog) Resume(ctx context.Context, token, deviceID string) error {
	if err := m.record("Resume", token); err != nil {
		return err
	}
	return m.ErrPlayer
}

func (m *MockCatalog) Next(ctx context.Context, token, deviceID string) error {
	if err := m.record("Next", token); err != nil {
		return err
	}
	return m.ErrPlayer
}

func (m *MockCatalog) NowPlaying(ctx context.Context, token string) (*models.NowPlaying, error) {
	if err := m.record("NowPlaying", token); err != nil {
		return nil, err
	}
	return m.Current, nil
}

func (m *MockCatalog) Devices(ctx context.Context, token string) ([]models.DeviceState, error) {
	if err := m.record("Devices", token); err != nil {
		return nil, err
	}
	return m.DeviceList, m.ErrDevices
}

// LastIntent returns the most recent play intent, or the zero value.
func (m *MockCatalog) LastIntent() models.PlaybackIntent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.PlayIntents) == 0 {
		return models.PlaybackIntent{}
	}
	return m.PlayIntents[len(m.PlayIntents)-1]
}

// MockTokens is a test double for the token lifecycle.
//
// ValidToken hands out Token per user; ForceRefresh swaps in Refreshed.
type MockTokens struct {
	mu sync.Mutex

	Token        string
	Refreshed    string
	Err          error
	RefreshErr   error
	Unconfigured bool

	ForceRefreshes int
}

func (m *MockTokens) ValidToken(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Token, m.Err
}

func (m *MockTokens) ForceRefresh(ctx context.Context, userID, rejected string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ForceRefreshes++
	if m.RefreshErr != nil {
		return "", m.RefreshErr
	}
	m.Token = m.Refreshed
	return m.Token, nil
}

func (m *MockTokens) Configured() bool {
	return !m.Unconfigured
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}
