package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/maestro/internal/metrics"
	"github.com/desertthunder/maestro/internal/models"
	"github.com/desertthunder/maestro/internal/shared"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const (
	defaultExpirySkew     = 5 * time.Minute
	defaultRequestTimeout = 10 * time.Second
	defaultMaxFailures    = 3
	// used when the token response carries no expires_in
	defaultTokenLifetime = time.Hour
)

// Scopes requested when linking an account.
var Scopes = []string{
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
}

// Options configures a [Manager].
type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string

	ExpirySkew         time.Duration
	RequestTimeout     time.Duration
	MaxRefreshFailures int

	// HTTPClient is used for token endpoint calls when set.
	HTTPClient *http.Client
	Logger     *log.Logger
	Metrics    *metrics.Recorder
}

// OptionsFromConfig builds [Options] from the application config.
func OptionsFromConfig(cfg *shared.Config) Options {
	return Options{
		ClientID:           cfg.Credentials.Spotify.ClientID,
		ClientSecret:       cfg.Credentials.Spotify.ClientSecret,
		RedirectURI:        cfg.Credentials.Spotify.RedirectURI,
		AuthURL:            cfg.Provider.AuthURL,
		TokenURL:           cfg.Provider.TokenURL,
		ExpirySkew:         cfg.Auth.ExpirySkew.Duration,
		RequestTimeout:     cfg.Auth.RequestTimeout.Duration,
		MaxRefreshFailures: cfg.Auth.MaxRefreshFailures,
	}
}

// Manager implements the token lifecycle on top of a [Store].
type Manager struct {
	oauth   *oauth2.Config
	store   *Store
	locks   *keyedMutex
	opts    Options
	logger  *log.Logger
	metrics *metrics.Recorder
	now     func() time.Time

	mu       sync.Mutex
	failures map[string]int
}

// NewManager creates a [Manager]. Zero durations and budgets fall back to defaults.
func NewManager(store *Store, opts Options) *Manager {
	if opts.AuthURL == "" {
		opts.AuthURL = spotifyauth.AuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyauth.TokenURL
	}
	if opts.ExpirySkew <= 0 {
		opts.ExpirySkew = defaultExpirySkew
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.MaxRefreshFailures <= 0 {
		opts.MaxRefreshFailures = defaultMaxFailures
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Manager{
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   opts.AuthURL,
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		store:    store,
		locks:    newKeyedMutex(),
		opts:     opts,
		logger:   shared.WithLogger(opts.Logger, "component", "auth"),
		metrics:  opts.Metrics,
		now:      time.Now,
		failures: make(map[string]int),
	}
}

// Configured reports whether client credentials are present.
func (m *Manager) Configured() bool {
	return m.opts.ClientID != "" && m.opts.ClientSecret != ""
}

// AuthURL returns the provider consent URL carrying state.
func (m *Manager) AuthURL(state string) string {
	return m.oauth.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for tokens and stores them for userID.
//
// redirectURI must match the one used to obtain the code; empty uses the configured value.
func (m *Manager) ExchangeCode(ctx context.Context, userID, code, redirectURI string) (models.Credential, error) {
	if !m.Configured() {
		return models.Credential{}, &shared.AuthExchangeError{Err: shared.ErrNotConfigured}
	}
	if userID == "" || code == "" {
		return models.Credential{}, &shared.AuthExchangeError{Err: shared.ErrMissingArgument}
	}

	cfg := *m.oauth
	if redirectURI != "" {
		cfg.RedirectURL = redirectURI
	}

	ctx, cancel := m.requestContext(ctx)
	defer cancel()

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		m.logger.Error("code exchange failed", "user", userID, "error", err)
		return models.Credential{}, &shared.AuthExchangeError{Err: err}
	}
	if tok.RefreshToken == "" {
		return models.Credential{}, &shared.AuthExchangeError{Err: shared.ErrNoRefreshToken}
	}

	cred := m.credentialFrom(userID, tok, "")
	if err := m.store.Put(cred); err != nil {
		return models.Credential{}, fmt.Errorf("failed to store credential: %w", err)
	}
	m.resetFailures(userID)
	m.ReportLinked()

	m.logger.Info("account linked", "user", userID, "expires_at", cred.ExpiresAt)
	return cred, nil
}

// Refresh runs the refresh grant for cred and returns the replacement. The store is not touched.
//
// A response without a refresh token keeps the previous one.
func (m *Manager) Refresh(ctx context.Context, cred models.Credential) (models.Credential, error) {
	if cred.RefreshToken == "" {
		return models.Credential{}, &shared.AuthRefreshError{UserID: cred.UserID, Err: shared.ErrNoRefreshToken}
	}

	ctx, cancel := m.requestContext(ctx)
	defer cancel()

	tok, err := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		m.metrics.Refresh(false)
		return models.Credential{}, &shared.AuthRefreshError{UserID: cred.UserID, Err: err}
	}
	m.metrics.Refresh(true)

	next := m.credentialFrom(cred.UserID, tok, cred.RefreshToken)
	next.CreatedAt = cred.CreatedAt
	return next, nil
}

// ValidToken returns an access token for userID that is usable for at least the expiry skew.
func (m *Manager) ValidToken(ctx context.Context, userID string) (string, error) {
	cred, err := m.store.Get(userID)
	if err != nil {
		return "", err
	}
	if cred.FreshAt(m.now(), m.opts.ExpirySkew) {
		return cred.AccessToken, nil
	}

	unlock := m.locks.Lock(userID)
	defer unlock()

	// another caller may have refreshed while we waited
	cred, err = m.store.Get(userID)
	if err != nil {
		return "", err
	}
	if cred.FreshAt(m.now(), m.opts.ExpirySkew) {
		return cred.AccessToken, nil
	}

	return m.refreshLocked(ctx, cred)
}

// ForceRefresh refreshes userID's credential after the provider rejected rejected.
//
// If the stored token already differs from rejected, it was refreshed concurrently and is returned as is.
func (m *Manager) ForceRefresh(ctx context.Context, userID, rejected string) (string, error) {
	unlock := m.locks.Lock(userID)
	defer unlock()

	cred, err := m.store.Get(userID)
	if err != nil {
		return "", err
	}
	if cred.AccessToken != rejected {
		return cred.AccessToken, nil
	}

	return m.refreshLocked(ctx, cred)
}

// Unlink deletes userID's credential.
func (m *Manager) Unlink(ctx context.Context, userID string) error {
	unlock := m.locks.Lock(userID)
	defer unlock()

	if err := m.store.Delete(userID); err != nil {
		return err
	}
	m.resetFailures(userID)
	m.ReportLinked()
	m.logger.Info("account unlinked", "user", userID)
	return nil
}

// ReportLinked publishes the number of linked users to the metrics recorder.
func (m *Manager) ReportLinked() {
	if m.metrics == nil {
		return
	}
	n, err := m.store.Count()
	if err != nil {
		m.logger.Warn("failed to count linked users", "error", err)
		return
	}
	m.metrics.Linked(n)
}

// refreshLocked must be called with the user's lock held.
func (m *Manager) refreshLocked(ctx context.Context, cred models.Credential) (string, error) {
	m.logger.Debug("refreshing access token", "user", cred.UserID, "expires_at", cred.ExpiresAt)

	next, err := m.Refresh(ctx, cred)
	if err != nil {
		failures := m.recordFailure(cred.UserID)
		m.logger.Warn("token refresh failed", "user", cred.UserID, "failures", failures, "error", err)

		if failures >= m.opts.MaxRefreshFailures {
			if derr := m.store.Delete(cred.UserID); derr != nil {
				m.logger.Error("failed to unlink after refresh failures", "user", cred.UserID, "error", derr)
			}
			m.resetFailures(cred.UserID)
			m.ReportLinked()
			m.logger.Warn("refresh budget exhausted, account unlinked", "user", cred.UserID)
			return "", &shared.NotLinkedError{UserID: cred.UserID}
		}
		return "", err
	}

	if err := m.store.Put(next); err != nil {
		return "", fmt.Errorf("failed to store refreshed credential: %w", err)
	}
	m.resetFailures(cred.UserID)
	return next.AccessToken, nil
}

func (m *Manager) credentialFrom(userID string, tok *oauth2.Token, previousRefresh string) models.Credential {
	now := m.now()
	expires := tok.Expiry
	if expires.IsZero() {
		expires = now.Add(defaultTokenLifetime)
	}
	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}
	return models.Credential{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    expires,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// requestContext bounds a token endpoint call and injects the configured HTTP client.
func (m *Manager) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.opts.HTTPClient)
	}
	return context.WithTimeout(ctx, m.opts.RequestTimeout)
}

func (m *Manager) recordFailure(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[userID]++
	return m.failures[userID]
}

func (m *Manager) resetFailures(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, userID)
}
