package server

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/maestro/internal/shared"
)

// UserHeader carries the caller's opaque user id. Authentication happens upstream.
const UserHeader = "X-User-ID"

// maximum command body size
const maxBody = 4 << 10

// Player is the orchestrator surface exposed over HTTP. Implemented by [playback.Orchestrator].
type Player interface {
	Dispatch(ctx context.Context, userID, text string) string
	PlayByQuery(ctx context.Context, userID, text string) string
	PlayByPlaylistName(ctx context.Context, userID, name string) string
	Pause(ctx context.Context, userID string) string
	Resume(ctx context.Context, userID string) string
	SkipNext(ctx context.Context, userID string) string
	ListDevices(ctx context.Context, userID string) string
}

// CommandHandler serves the playback API. Every response is a plain text status line.
type CommandHandler struct {
	player Player
	logger *log.Logger
}

// NewCommandHandler creates a [CommandHandler].
func NewCommandHandler(player Player, logger *log.Logger) *CommandHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &CommandHandler{player: player, logger: shared.WithLogger(logger, "component", "api")}
}

// Routes returns the HTTP routes this handler serves.
func (h *CommandHandler) Routes() []string {
	return []string{
		"POST /api/command",
		"POST /api/play",
		"POST /api/playlist",
		"POST /api/pause",
		"POST /api/resume",
		"POST /api/skip",
		"GET /api/devices",
	}
}

// ServeHTTP resolves the caller and runs the operation named by the path.
func (h *CommandHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get(UserHeader))
	if userID == "" {
		http.Error(w, "Missing "+UserHeader+" header", http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	var reply string

	switch r.URL.Path {
	case "/api/pause":
		reply = h.player.Pause(ctx, userID)
	case "/api/resume":
		reply = h.player.Resume(ctx, userID)
	case "/api/skip":
		reply = h.player.SkipNext(ctx, userID)
	case "/api/devices":
		reply = h.player.ListDevices(ctx, userID)
	default:
		text, err := readText(r)
		if err != nil {
			http.Error(w, "Could not read request body", http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/api/play":
			reply = h.player.PlayByQuery(ctx, userID, text)
		case "/api/playlist":
			reply = h.player.PlayByPlaylistName(ctx, userID, text)
		default:
			reply = h.player.Dispatch(ctx, userID, text)
		}
	}

	h.logger.Debug("command handled", "user", userID, "path", r.URL.Path)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, reply+"\n")
}

func readText(r *http.Request) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}
