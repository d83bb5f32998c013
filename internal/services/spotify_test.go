package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/maestro/internal/models"
	"github.com/desertthunder/maestro/internal/shared"
	tu "github.com/desertthunder/maestro/internal/testing"
)

// fakeAPI is a minimal stand-in for the Spotify Web API rooted at /v1/.
type fakeAPI struct {
	*httptest.Server
	mu       sync.Mutex
	requests []*http.Request
	bodies   []map[string]any
	handlers map[string]http.HandlerFunc
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{handlers: make(map[string]http.HandlerFunc)}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.Body != nil {
			data, _ := io.ReadAll(r.Body)
			json.Unmarshal(data, &body)
		}

		f.mu.Lock()
		f.requests = append(f.requests, r)
		f.bodies = append(f.bodies, body)
		h, ok := f.handlers[r.Method+" "+r.URL.Path]
		f.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer good-token" {
			writeError(w, http.StatusUnauthorized, "The access token expired")
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "no handler for "+r.URL.Path)
			return
		}
		h(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeAPI) handle(method, path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method+" /v1/"+path] = h
}

func (f *fakeAPI) last() (*http.Request, map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.requests)
	return f.requests[n-1], f.bodies[n-1]
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"status": status, "message": msg}})
}

func newTestCatalog(f *fakeAPI) *SpotifyCatalog {
	return NewSpotifyCatalog(SpotifyOptions{
		BaseURL:   f.URL + "/v1",
		Timeout:   2 * time.Second,
		RateLimit: 1000,
		Logger:    shared.NewLogger(io.Discard),
	})
}

func track(id, name, artist, albumID, albumName string, number int) map[string]any {
	return map[string]any{
		"id":           id,
		"name":         name,
		"uri":          "spotify:track:" + id,
		"track_number": number,
		"artists":      []map[string]any{{"name": artist}},
		"album":        map[string]any{"id": albumID, "name": albumName},
	}
}

func TestSpotifyCatalogSearch(t *testing.T) {
	t.Run("maps track hits in provider order", func(t *testing.T) {
		f := newFakeAPI(t)
		f.handle("GET", "search", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"tracks": map[string]any{
				"items": []any{
					track("t1", "Violin Sonata No. 1: I. Vivace ma non troppo", "Itzhak Perlman", "a1", "Brahms: Violin Sonatas", 1),
					track("t2", "Violin Sonata No. 1: II. Adagio", "Itzhak Perlman", "a1", "Brahms: Violin Sonatas", 2),
				},
				"total": 2, "limit": 15, "offset": 0,
			}})
		})

		got, err := newTestCatalog(f).Search(context.Background(), "good-token", "brahms sonata perlman", 15)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}

		if len(got) != 2 {
			t.Fatalf("expected 2 results, got %d", len(got))
		}
		want := models.SearchResult{
			URI:             "spotify:track:t1",
			Title:           "Violin Sonata No. 1: I. Vivace ma non troppo",
			ArtistName:      "Itzhak Perlman",
			AlbumID:         "a1",
			AlbumName:       "Brahms: Violin Sonatas",
			AlbumTrackIndex: 0,
		}
		if got[0] != want {
			t.Errorf("Search()[0] = %+v, want %+v", got[0], want)
		}

		req, _ := f.last()
		q := req.URL.Query()
		if q.Get("q") != "brahms sonata perlman" || q.Get("type") != "track" || q.Get("limit") != "15" {
			t.Errorf("unexpected search query %v", q)
		}
	})

	t.Run("empty result is not an error", func(t *testing.T) {
		f := newFakeAPI(t)
		f.handle("GET", "search", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"tracks": map[string]any{"items": []any{}}})
		})

		got, err := newTestCatalog(f).Search(context.Background(), "good-token", "nothing", 15)
		if err != nil || len(got) != 0 {
			t.Errorf("expected no results and no error, got %v %v", got, err)
		}
	})

	t.Run("rejected token is unauthorized", func(t *testing.T) {
		f := newFakeAPI(t)
		_, err := newTestCatalog(f).Search(context.Background(), "expired", "q", 15)

		if !errors.Is(err, shared.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		var pe *shared.ProviderError
		if !errors.As(err, &pe) || pe.Status != http.StatusUnauthorized {
			t.Errorf("expected ProviderError with 401, got %v", err)
		}
	})

	t.Run("server error carries provider message", func(t *testing.T) {
		f := newFakeAPI(t)
		f.handle("GET", "search", func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusBadGateway, "upstream is sad")
		})

		_, err := newTestCatalog(f).Search(context.Background(), "good-token", "q", 15)
		var pe *shared.ProviderError
		if !errors.As(err, &pe) {
			t.Fatalf("expected ProviderError, got %v", err)
		}
		if pe.Status != http.StatusBadGateway || pe.Message != "upstream is sad" {
			t.Errorf("unexpected provider error %+v", pe)
		}
	})

	t.Run("timeout is an API request error", func(t *testing.T) {
		f := newFakeAPI(t)
		f.handle("GET", "search", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			writeJSON(w, map[string]any{})
		})

		c := newTestCatalog(f)
		c.timeout = 20 * time.Millisecond
		_, err := c.Search(context.Background(), "good-token", "q", 15)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("transport failure is an API request error", func(t *testing.T) {
		c := NewSpotifyCatalog(SpotifyOptions{
			BaseURL:    "http://catalog.invalid/v1/",
			RateLimit:  1000,
			HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection reset"))},
			Logger:     shared.NewLogger(io.Discard),
		})

		_, err := c.Search(context.Background(), "good-token", "q", 15)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
		var pe *shared.ProviderError
		if errors.As(err, &pe) {
			t.Errorf("transport failure should not look like a provider response, got %+v", pe)
		}
	})
}

func TestSpotifyCatalogAlbumTracks(t *testing.T) {
	f := newFakeAPI(t)
	f.handle("GET", "albums/a1/tracks", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		total := 62
		var items []any
		for i := offset; i < total && i < offset+pageSize; i++ {
			items = append(items, map[string]any{
				"id":   fmt.Sprintf("t%d", i),
				"name": fmt.Sprintf("Track %d", i),
				"uri":  fmt.Sprintf("spotify:track:t%d", i),
			})
		}
		writeJSON(w, map[string]any{"items": items, "total": total, "offset": offset, "limit": pageSize})
	})

	got, err := newTestCatalog(f).AlbumTracks(context.Background(), "good-token", "a1")
	if err != nil {
		t.Fatalf("AlbumTracks() error = %v", err)
	}

	if len(got) != 62 {
		t.Fatalf("expected 62 tracks across pages, got %d", len(got))
	}
	for i, tr := range got {
		if tr.TrackIndex != i {
			t.Fatalf("track %d has index %d", i, tr.TrackIndex)
		}
	}
	if got[61].URI != "spotify:track:t61" {
		t.Errorf("unexpected last track %+v", got[61])
	}
	if f.count() != 2 {
		t.Errorf("expected 2 page requests, got %d", f.count())
	}
}

func TestSpotifyCatalogPlaylists(t *testing.T) {
	f := newFakeAPI(t)
	f.handle("GET", "me/playlists", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"items": []any{
			map[string]any{"id": "p1", "name": "Morning Chamber", "uri": "spotify:playlist:p1"},
			map[string]any{"id": "p2", "name": "Late Romantics", "uri": "spotify:playlist:p2"},
		}})
	})

	got, err := newTestCatalog(f).Playlists(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("Playlists() error = %v", err)
	}
	if len(got) != 2 || got[1] != (models.Playlist{ID: "p2", Name: "Late Romantics", URI: "spotify:playlist:p2"}) {
		t.Errorf("unexpected playlists %+v", got)
	}
}

func TestSpotifyCatalogPlayer(t *testing.T) {
	noContent := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }

	t.Run("Play sends ordered uris to device", func(t *testing.T) {
		f := newFakeAPI(t)
		f.handle("PUT", "me/player/play", noContent)

		intent := models.PlaybackIntent{TargetURIs: []string{"spotify:track:1", "spotify:track:2"}, DeviceID: "dev-1"}
		if err := newTestCatalog(f).Play(context.Background(), "good-token", intent); err != nil {
			t.Fatalf("Play() error = %v", err)
		}

		req, body := f.last()
		if req.URL.Query().Get("device_id") != "dev-1" {
			t.Errorf("expected device_id dev-1, got %q", req.URL.Query().Get("device_id"))
		}
		uris, _ := body["uris"].([]any)
		if len(uris) != 2 || uris[0] != "spotify:track:1" || uris[1] != "spotify:track:2" {
			t.Errorf("unexpected uris %v", body["uris"])
		}
		if _, ok := body["context_uri"]; ok {
			t.Error("context_uri must not be sent with uris")
		}
	})

	t.Run("Play with context", func(t *testing.T) {
		f := newFakeAPI(t)
		f.handle("PUT", "me/player/play", noContent)

		intent := models.PlaybackIntent{ContextURI: "spotify:playlist:p1"}
		if err := newTestCatalog(f).Play(context.Background(), "good-token", intent); err != nil {
			t.Fatalf("Play() error = %v", err)
		}

		_, body := f.last()
		if body["context_uri"] != "spotify:playlist:p1" {
			t.Errorf("expected context uri, got %v", body)
		}
	})

	t.Run("Play rejects invalid intent without a request", func(t *testing.T) {
		f := newFakeAPI(t)
		err := newTestCatalog(f).Play(context.Background(), "good-token", models.PlaybackIntent{})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		if f.count() != 0 {
			t.Error("no request should be made")
		}
	})

	t.Run("no active device", func(t *testing.T) {
		f := newFakeAPI(t)
		f.handle("PUT", "me/player/pause", func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "Player command failed: No active device found")
		})

		err := newTestCatalog(f).Pause(context.Background(), "good-token", "")
		var nd *shared.NoActiveDeviceError
		if !errors.As(err, &nd) {
			t.Fatalf("expected NoActiveDeviceError, got %v", err)
		}
		if !strings.Contains(nd.Message, "No active device") {
			t.Errorf("expected provider message, got %q", nd.Message)
		}
	})

	t.Run("Resume and Next", func(t *testing.T) {
		f := newFakeAPI(t)
		f.handle("PUT", "me/player/play", noContent)
		f.handle("POST", "me/player/next", noContent)
		c := newTestCatalog(f)

		if err := c.Resume(context.Background(), "good-token", ""); err != nil {
			t.Errorf("Resume() error = %v", err)
		}
		if err := c.Next(context.Background(), "good-token", "dev-2"); err != nil {
			t.Errorf("Next() error = %v", err)
		}
		req, _ := f.last()
		if req.URL.Query().Get("device_id") != "dev-2" {
			t.Errorf("expected device_id dev-2, got %q", req.URL.RawQuery)
		}
	})

	t.Run("Devices", func(t *testing.T) {
		f := newFakeAPI(t)
		f.handle("GET", "me/player/devices", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"devices": []any{
				map[string]any{"id": "d1", "name": "Kitchen", "type": "Speaker", "is_active": false},
				map[string]any{"id": "d2", "name": "Laptop", "type": "Computer", "is_active": true},
			}})
		})

		got, err := newTestCatalog(f).Devices(context.Background(), "good-token")
		if err != nil {
			t.Fatalf("Devices() error = %v", err)
		}
		want := models.DeviceState{DeviceID: "d2", Name: "Laptop", Type: "Computer", IsActive: true}
		if len(got) != 2 || got[1] != want {
			t.Errorf("unexpected devices %+v", got)
		}
	})

	t.Run("NowPlaying", func(t *testing.T) {
		f := newFakeAPI(t)
		f.handle("GET", "me/player/currently-playing", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{
				"is_playing": true,
				"item":       track("t2", "II. Adagio", "Itzhak Perlman", "a1", "Sonatas", 2),
			})
		})

		got, err := newTestCatalog(f).NowPlaying(context.Background(), "good-token")
		if err != nil {
			t.Fatalf("NowPlaying() error = %v", err)
		}
		if got == nil || got.Title != "II. Adagio" || !got.IsPlaying || got.Artist != "Itzhak Perlman" {
			t.Errorf("unexpected now playing %+v", got)
		}
	})
}

func TestClassify(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		if classify(nil, true) != nil {
			t.Error("expected nil")
		}
	})

	t.Run("empty body keeps status", func(t *testing.T) {
		err := classify(errors.New("spotify: HTTP 503: Service Unavailable (body empty)"), false)
		var pe *shared.ProviderError
		if !errors.As(err, &pe) || pe.Status != 503 {
			t.Errorf("expected 503 provider error, got %v", err)
		}
	})

	t.Run("404 outside player is a provider error", func(t *testing.T) {
		err := classify(errors.New("spotify: HTTP 404: Not Found (body empty)"), false)
		if errors.Is(err, shared.ErrNoActiveDevice) {
			t.Error("non-player 404 should not mean no device")
		}
	})

	t.Run("transport error", func(t *testing.T) {
		err := classify(errors.New("dial tcp: connection refused"), false)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})
}
