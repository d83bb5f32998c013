package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/maestro/internal/metrics"
	"github.com/desertthunder/maestro/internal/models"
	"github.com/desertthunder/maestro/internal/repositories"
	"github.com/desertthunder/maestro/internal/shared"
)

// tokenServer is a fake token endpoint that records every form it receives.
type tokenServer struct {
	*httptest.Server
	hits   atomic.Int32
	mu     sync.Mutex
	forms  []url.Values
	status int
	body   map[string]any
	delay  time.Duration
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{
		status: http.StatusOK,
		body: map[string]any{
			"access_token":  "fresh-access",
			"refresh_token": "fresh-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		},
	}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.hits.Add(1)
		if ts.delay > 0 {
			time.Sleep(ts.delay)
		}

		id, secret, ok := r.BasicAuth()
		if !ok || id != "client-id" || secret != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":"invalid_client"}`)
			return
		}

		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		ts.mu.Lock()
		ts.forms = append(ts.forms, r.PostForm)
		status, body := ts.status, ts.body
		ts.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) respond(status int, body map[string]any) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.status, ts.body = status, body
}

func (ts *tokenServer) lastForm() url.Values {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.forms) == 0 {
		return nil
	}
	return ts.forms[len(ts.forms)-1]
}

func newTestManager(t *testing.T, ts *tokenServer) (*Manager, *Store) {
	t.Helper()
	store := NewStore(nil, shared.NewLogger(io.Discard))
	m := NewManager(store, Options{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://127.0.0.1:3000/callback",
		TokenURL:     ts.URL + "/api/token",
		Logger:       shared.NewLogger(io.Discard),
	})
	return m, store
}

func seed(t *testing.T, store *Store, userID string, expires time.Time) {
	t.Helper()
	err := store.Put(models.Credential{
		UserID:       userID,
		AccessToken:  "stale-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    expires,
	})
	if err != nil {
		t.Fatalf("failed to seed credential: %v", err)
	}
}

func TestExchangeCode(t *testing.T) {
	t.Run("stores credential from token response", func(t *testing.T) {
		ts := newTokenServer(t)
		m, store := newTestManager(t, ts)

		cred, err := m.ExchangeCode(context.Background(), "alice", "the-code", "http://127.0.0.1:9999/callback")
		if err != nil {
			t.Fatalf("ExchangeCode() error = %v", err)
		}

		if cred.AccessToken != "fresh-access" || cred.RefreshToken != "fresh-refresh" {
			t.Errorf("unexpected tokens %+v", cred)
		}
		if until := time.Until(cred.ExpiresAt); until < 59*time.Minute || until > 61*time.Minute {
			t.Errorf("expected expiry about an hour out, got %v", until)
		}

		form := ts.lastForm()
		if form.Get("grant_type") != "authorization_code" {
			t.Errorf("expected authorization_code grant, got %q", form.Get("grant_type"))
		}
		if form.Get("code") != "the-code" {
			t.Errorf("expected code the-code, got %q", form.Get("code"))
		}
		if form.Get("redirect_uri") != "http://127.0.0.1:9999/callback" {
			t.Errorf("expected caller redirect uri, got %q", form.Get("redirect_uri"))
		}
		if form.Get("client_secret") != "" {
			t.Error("client secret should travel in the Authorization header only")
		}

		stored, err := store.Get("alice")
		if err != nil {
			t.Fatalf("credential should be stored: %v", err)
		}
		if stored.AccessToken != "fresh-access" {
			t.Errorf("expected stored access token, got %s", stored.AccessToken)
		}
	})

	t.Run("missing access token fails", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.respond(http.StatusOK, map[string]any{"refresh_token": "r", "token_type": "Bearer"})
		m, store := newTestManager(t, ts)

		_, err := m.ExchangeCode(context.Background(), "alice", "code", "")
		var exErr *shared.AuthExchangeError
		if !errors.As(err, &exErr) {
			t.Fatalf("expected AuthExchangeError, got %v", err)
		}
		if store.Len() != 0 {
			t.Error("nothing should be stored on failure")
		}
	})

	t.Run("missing refresh token fails", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.respond(http.StatusOK, map[string]any{"access_token": "a", "token_type": "Bearer", "expires_in": 3600})
		m, store := newTestManager(t, ts)

		_, err := m.ExchangeCode(context.Background(), "alice", "code", "")
		if !errors.Is(err, shared.ErrNoRefreshToken) || !errors.Is(err, shared.ErrAuthFailed) {
			t.Fatalf("expected ErrNoRefreshToken exchange failure, got %v", err)
		}
		if store.Len() != 0 {
			t.Error("nothing should be stored on failure")
		}
	})

	t.Run("non-2xx fails", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.respond(http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
		m, _ := newTestManager(t, ts)

		_, err := m.ExchangeCode(context.Background(), "alice", "code", "")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Fatalf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("unconfigured client", func(t *testing.T) {
		m := NewManager(NewStore(nil, nil), Options{Logger: shared.NewLogger(io.Discard)})
		if m.Configured() {
			t.Fatal("expected unconfigured manager")
		}

		_, err := m.ExchangeCode(context.Background(), "alice", "code", "")
		if !errors.Is(err, shared.ErrNotConfigured) {
			t.Fatalf("expected ErrNotConfigured, got %v", err)
		}
	})
}

func TestRefresh(t *testing.T) {
	t.Run("keeps previous refresh token when omitted", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.respond(http.StatusOK, map[string]any{"access_token": "next", "token_type": "Bearer", "expires_in": 3600})
		m, _ := newTestManager(t, ts)

		next, err := m.Refresh(context.Background(), models.Credential{UserID: "alice", RefreshToken: "keep-me"})
		if err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}

		if next.AccessToken != "next" {
			t.Errorf("expected new access token, got %s", next.AccessToken)
		}
		if next.RefreshToken != "keep-me" {
			t.Errorf("expected refresh token to be retained, got %s", next.RefreshToken)
		}

		form := ts.lastForm()
		if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "keep-me" {
			t.Errorf("unexpected refresh form %v", form)
		}
	})

	t.Run("rotates refresh token when returned", func(t *testing.T) {
		ts := newTokenServer(t)
		m, _ := newTestManager(t, ts)

		next, err := m.Refresh(context.Background(), models.Credential{UserID: "alice", RefreshToken: "old"})
		if err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		if next.RefreshToken != "fresh-refresh" {
			t.Errorf("expected rotated refresh token, got %s", next.RefreshToken)
		}
	})

	t.Run("failure is AuthRefreshError", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.respond(http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
		m, _ := newTestManager(t, ts)

		_, err := m.Refresh(context.Background(), models.Credential{UserID: "alice", RefreshToken: "old"})
		var refErr *shared.AuthRefreshError
		if !errors.As(err, &refErr) {
			t.Fatalf("expected AuthRefreshError, got %v", err)
		}
	})
}

func TestValidToken(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("not linked", func(t *testing.T) {
		ts := newTokenServer(t)
		m, _ := newTestManager(t, ts)

		_, err := m.ValidToken(context.Background(), "nobody")
		var nl *shared.NotLinkedError
		if !errors.As(err, &nl) {
			t.Fatalf("expected NotLinkedError, got %v", err)
		}
	})

	t.Run("fresh token is returned without network", func(t *testing.T) {
		ts := newTokenServer(t)
		m, store := newTestManager(t, ts)
		m.now = func() time.Time { return now }
		seed(t, store, "alice", now.Add(10*time.Minute))

		tok, err := m.ValidToken(context.Background(), "alice")
		if err != nil {
			t.Fatalf("ValidToken() error = %v", err)
		}
		if tok != "stale-access" {
			t.Errorf("expected cached token, got %s", tok)
		}
		if ts.hits.Load() != 0 {
			t.Errorf("expected no token endpoint calls, got %d", ts.hits.Load())
		}
	})

	t.Run("token inside skew is refreshed", func(t *testing.T) {
		ts := newTokenServer(t)
		m, store := newTestManager(t, ts)
		m.now = func() time.Time { return now }
		seed(t, store, "alice", now.Add(4*time.Minute))

		tok, err := m.ValidToken(context.Background(), "alice")
		if err != nil {
			t.Fatalf("ValidToken() error = %v", err)
		}
		if tok != "fresh-access" {
			t.Errorf("expected refreshed token, got %s", tok)
		}

		stored, _ := store.Get("alice")
		if stored.AccessToken != "fresh-access" || stored.RefreshToken != "fresh-refresh" {
			t.Errorf("expected store to hold refreshed credential, got %+v", stored)
		}
	})

	t.Run("concurrent callers share one refresh", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.delay = 50 * time.Millisecond
		m, store := newTestManager(t, ts)
		seed(t, store, "alice", time.Now().Add(-time.Minute))

		var wg sync.WaitGroup
		tokens := make([]string, 8)
		errs := make([]error, 8)
		for i := range tokens {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tokens[i], errs[i] = m.ValidToken(context.Background(), "alice")
			}(i)
		}
		wg.Wait()

		for i := range tokens {
			if errs[i] != nil {
				t.Fatalf("caller %d: %v", i, errs[i])
			}
			if tokens[i] != "fresh-access" {
				t.Errorf("caller %d got %s", i, tokens[i])
			}
		}
		if hits := ts.hits.Load(); hits != 1 {
			t.Errorf("expected exactly one refresh, got %d", hits)
		}
		if m.locks.size() != 0 {
			t.Errorf("expected user locks to be released, %d remain", m.locks.size())
		}
	})

	t.Run("refresh failures exhaust budget and unlink", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.respond(http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
		m, store := newTestManager(t, ts)
		m.now = func() time.Time { return now }
		seed(t, store, "alice", now.Add(-time.Minute))

		for i := 1; i < defaultMaxFailures; i++ {
			_, err := m.ValidToken(context.Background(), "alice")
			if !errors.Is(err, shared.ErrRefreshFailed) {
				t.Fatalf("attempt %d: expected ErrRefreshFailed, got %v", i, err)
			}
			if store.Len() != 1 {
				t.Fatalf("attempt %d: credential should survive below budget", i)
			}
		}

		_, err := m.ValidToken(context.Background(), "alice")
		if !errors.Is(err, shared.ErrNotLinked) {
			t.Fatalf("expected ErrNotLinked after budget, got %v", err)
		}
		if _, err := store.Get("alice"); !errors.Is(err, shared.ErrNotLinked) {
			t.Error("credential should be deleted")
		}
	})

	t.Run("success resets failure count", func(t *testing.T) {
		ts := newTokenServer(t)
		m, store := newTestManager(t, ts)
		// every token the server hands out is already inside the skew
		m.now = func() time.Time { return time.Now().Add(time.Hour) }
		seed(t, store, "alice", time.Now())

		ts.respond(http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
		m.ValidToken(context.Background(), "alice")
		m.ValidToken(context.Background(), "alice")

		ts.respond(http.StatusOK, map[string]any{"access_token": "ok", "token_type": "Bearer", "expires_in": 1})
		if _, err := m.ValidToken(context.Background(), "alice"); err != nil {
			t.Fatalf("expected recovery, got %v", err)
		}

		ts.respond(http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
		if _, err := m.ValidToken(context.Background(), "alice"); !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected counter to restart, got %v", err)
		}
	})
}

func TestForceRefresh(t *testing.T) {
	t.Run("refreshes rejected token", func(t *testing.T) {
		ts := newTokenServer(t)
		m, store := newTestManager(t, ts)
		seed(t, store, "alice", time.Now().Add(time.Hour))

		tok, err := m.ForceRefresh(context.Background(), "alice", "stale-access")
		if err != nil {
			t.Fatalf("ForceRefresh() error = %v", err)
		}
		if tok != "fresh-access" {
			t.Errorf("expected fresh token, got %s", tok)
		}
	})

	t.Run("already rotated token is reused", func(t *testing.T) {
		ts := newTokenServer(t)
		m, store := newTestManager(t, ts)
		seed(t, store, "alice", time.Now().Add(time.Hour))

		tok, err := m.ForceRefresh(context.Background(), "alice", "some-older-token")
		if err != nil {
			t.Fatalf("ForceRefresh() error = %v", err)
		}
		if tok != "stale-access" || ts.hits.Load() != 0 {
			t.Errorf("expected stored token without network, got %s (%d hits)", tok, ts.hits.Load())
		}
	})
}

func TestUnlink(t *testing.T) {
	ts := newTokenServer(t)
	m, store := newTestManager(t, ts)
	seed(t, store, "alice", time.Now().Add(time.Hour))

	if err := m.Unlink(context.Background(), "alice"); err != nil {
		t.Fatalf("Unlink() error = %v", err)
	}
	if store.Len() != 0 {
		t.Error("expected empty store")
	}
	if err := m.Unlink(context.Background(), "alice"); !errors.Is(err, shared.ErrNotLinked) {
		t.Errorf("expected ErrNotLinked on second unlink, got %v", err)
	}
}

func TestStoreWithBackend(t *testing.T) {
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()
	shared.ConfigureDatabase(db, 1, 1)
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	repo := repositories.NewCredentialRepository(db)
	cred := models.Credential{UserID: "alice", AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour)}

	t.Run("Put writes through", func(t *testing.T) {
		store := NewStore(repo, shared.NewLogger(io.Discard))
		if err := store.Put(cred); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if _, err := repo.Get("alice"); err != nil {
			t.Errorf("expected row in backend: %v", err)
		}
	})

	t.Run("Get falls back to backend", func(t *testing.T) {
		store := NewStore(repo, shared.NewLogger(io.Discard))
		got, err := store.Get("alice")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.AccessToken != "a" {
			t.Errorf("expected backend credential, got %+v", got)
		}
		if store.Len() != 1 {
			t.Error("backend hit should populate the cache")
		}
	})

	t.Run("Delete removes from both", func(t *testing.T) {
		store := NewStore(repo, shared.NewLogger(io.Discard))
		if err := store.Delete("alice"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := repo.Get("alice"); !errors.Is(err, repositories.ErrNotFound) {
			t.Errorf("expected backend row to be gone, got %v", err)
		}
		if _, err := store.Get("alice"); !errors.Is(err, shared.ErrNotLinked) {
			t.Errorf("expected NotLinked, got %v", err)
		}
	})

	t.Run("linked count reads persisted rows", func(t *testing.T) {
		for _, user := range []string{"bob", "carol"} {
			c := cred
			c.UserID = user
			if err := repo.Save(c); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
		}

		store := NewStore(repo, shared.NewLogger(io.Discard))
		if store.Len() != 0 {
			t.Fatalf("expected empty cache, got %d", store.Len())
		}
		if n, err := store.Count(); err != nil || n != 2 {
			t.Errorf("Count() = %d, %v; want 2", n, err)
		}

		rec := metrics.NewRecorder()
		m := NewManager(store, Options{Logger: shared.NewLogger(io.Discard), Metrics: rec})
		m.ReportLinked()

		w := httptest.NewRecorder()
		rec.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if !strings.Contains(w.Body.String(), "maestro_linked_users 2") {
			t.Errorf("expected gauge of 2 linked users, got:\n%s", w.Body.String())
		}
	})
}
