package server

import (
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/maestro/internal/shared"
)

// Deps are the collaborators of the HTTP boundary.
type Deps struct {
	Linker   Linker
	States   StateStore
	Player   Player
	StateTTL time.Duration
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *log.Logger
}

// NewRouter registers the link, command, health and metrics routes behind request logging and panic recovery.
func NewRouter(deps Deps) *BasicRouter {
	if deps.Logger == nil {
		deps.Logger = shared.NewLogger(nil)
	}

	r := NewBasicRouter()
	r.Use(Logging(deps.Logger), Recover(deps.Logger))

	r.HandleFunc(http.MethodGet, "/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "ok\n")
	})
	if deps.Metrics != nil {
		r.Handle(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Handler(NewOAuthHandler(deps.Linker, deps.States, deps.StateTTL, deps.Logger))
	r.Handler(NewCommandHandler(deps.Player, deps.Logger))
	return r
}

// NewHTTPServer wraps handler in an [http.Server] with conservative timeouts.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// skip waits and catalog calls happen inside the request
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
