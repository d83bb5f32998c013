package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/maestro/internal/models"
	"github.com/desertthunder/maestro/internal/repositories"
	"github.com/desertthunder/maestro/internal/shared"
)

const defaultStateTTL = 10 * time.Minute

// Linker runs the authorization code flow. Implemented by [auth.Manager].
type Linker interface {
	Configured() bool
	AuthURL(state string) string
	ExchangeCode(ctx context.Context, userID, code, redirectURI string) (models.Credential, error)
}

// StateStore binds OAuth state values to users. Implemented by [repositories.LinkStateRepository].
type StateStore interface {
	Create(state, userID string, ttl time.Duration) error
	// Consume returns the user bound to state and invalidates it.
	Consume(state string) (string, error)
}

// OAuthHandler links a user's provider account.
//
// GET /link?user=<id> binds a fresh state to the user and redirects to the consent page.
// GET /callback consumes that state and exchanges the code for the bound user.
// A state is single use and expires after its TTL.
type OAuthHandler struct {
	linker Linker
	states StateStore
	ttl    time.Duration
	logger *log.Logger
	linked chan string
}

// NewOAuthHandler creates an [OAuthHandler]. A non-positive ttl uses ten minutes.
func NewOAuthHandler(linker Linker, states StateStore, ttl time.Duration, logger *log.Logger) *OAuthHandler {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &OAuthHandler{
		linker: linker,
		states: states,
		ttl:    ttl,
		logger: shared.WithLogger(logger, "component", "oauth"),
		linked: make(chan string, 8),
	}
}

// Linked receives the user id of every completed link.
//
// Sends never block; notifications are dropped while the buffer is full.
func (h *OAuthHandler) Linked() <-chan string {
	return h.linked
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"GET /link", "GET /callback"}
}

// ServeHTTP dispatches between the link and callback routes.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/link":
		h.link(w, r)
	case "/callback":
		h.callback(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *OAuthHandler) link(w http.ResponseWriter, r *http.Request) {
	if !h.linker.Configured() {
		http.Error(w, "Music playback is not configured", http.StatusServiceUnavailable)
		return
	}

	userID := r.URL.Query().Get("user")
	if userID == "" {
		http.Error(w, "Missing user parameter", http.StatusBadRequest)
		return
	}

	state := shared.GenerateState()
	if err := h.states.Create(state, userID, h.ttl); err != nil {
		h.logger.Error("failed to store link state", "user", userID, "error", err)
		http.Error(w, "Could not start linking", http.StatusInternalServerError)
		return
	}

	h.logger.Debug("link started", "user", userID)
	http.Redirect(w, r, h.linker.AuthURL(state), http.StatusFound)
}

// callback validates state parameter (CSRF protection), exchanges the authorization code, and stores the credential.
func (h *OAuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	state := q.Get("state")
	if state == "" {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}
	userID, err := h.states.Consume(state)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to read link state", "error", err)
		http.Error(w, "Could not complete linking", http.StatusInternalServerError)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.logger.Warn("authorization denied", "user", userID, "error", q.Get("error"))
		http.Error(w, fmt.Sprintf("Authorization failed: %s", q.Get("error")), http.StatusBadRequest)
		return
	}

	if _, err := h.linker.ExchangeCode(r.Context(), userID, code, ""); err != nil {
		h.logger.Error("token exchange failed", "user", userID, "error", err)
		http.Error(w, "Token exchange failed", http.StatusBadGateway)
		return
	}

	h.logger.Info("account linked", "user", userID)
	select {
	case h.linked <- userID:
	default:
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := linkedPage.Execute(w, userID); err != nil {
		h.logger.Error("failed to render page", "error", err)
	}
}

var linkedPage = template.Must(template.New("linked").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Account Linked</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Account Linked</h1>
        <p>{{.}} can now ask for music. You can close this window.</p>
    </div>
</body>
</html>
`))
