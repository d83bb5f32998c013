package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/maestro/internal/matching"
	"github.com/desertthunder/maestro/internal/metrics"
	"github.com/desertthunder/maestro/internal/models"
	"github.com/desertthunder/maestro/internal/movements"
	"github.com/desertthunder/maestro/internal/services"
	"github.com/desertthunder/maestro/internal/shared"
)

const (
	defaultSearchLimit = 15
	defaultSkipDelay   = 300 * time.Millisecond
)

// TokenSource hands out access tokens for a user. Implemented by [auth.Manager].
type TokenSource interface {
	ValidToken(ctx context.Context, userID string) (string, error)
	// ForceRefresh replaces a token the provider rejected.
	ForceRefresh(ctx context.Context, userID, rejected string) (string, error)
	Configured() bool
}

// Options configures an [Orchestrator].
type Options struct {
	SearchLimit int
	// SkipDelay is how long to wait after a skip before reading the new track.
	SkipDelay time.Duration
	Logger    *log.Logger
	Metrics   *metrics.Recorder
}

// OptionsFromConfig reads the [playback] table.
func OptionsFromConfig(cfg *shared.Config) Options {
	return Options{
		SearchLimit: cfg.Playback.SearchLimit,
		SkipDelay:   cfg.Playback.SkipSettleDelay.Duration,
	}
}

// Orchestrator sequences search, ranking, movement resolution and playback commands per user.
type Orchestrator struct {
	tokens   TokenSource
	catalog  services.Catalog
	scorer   *matching.Scorer
	sessions *sessions

	searchLimit int
	skipDelay   time.Duration
	logger      *log.Logger
	metrics     *metrics.Recorder

	// wait blocks for d or until ctx is done.
	wait func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates an [Orchestrator].
func NewOrchestrator(tokens TokenSource, catalog services.Catalog, scorer *matching.Scorer, opts Options) *Orchestrator {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = defaultSearchLimit
	}
	if opts.SkipDelay <= 0 {
		opts.SkipDelay = defaultSkipDelay
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if scorer == nil {
		scorer = matching.NewScorer(matching.DefaultVocabulary(), matching.DefaultWeights(), 0)
	}

	return &Orchestrator{
		tokens:      tokens,
		catalog:     catalog,
		scorer:      scorer,
		sessions:    newSessions(),
		searchLimit: opts.SearchLimit,
		skipDelay:   opts.SkipDelay,
		logger:      shared.WithLogger(opts.Logger, "component", "playback"),
		metrics:     opts.Metrics,
		wait:        sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// State returns the user's session state.
func (o *Orchestrator) State(userID string) SessionState {
	state, _ := o.sessions.get(userID).snapshot()
	return state
}

// Status describes the user's session in one line.
func (o *Orchestrator) Status(userID string) string {
	state, title := o.sessions.get(userID).snapshot()
	if title == "" {
		return fmt.Sprintf("Session is %s.", state)
	}
	return fmt.Sprintf("Session is %s. Last started: %s.", state, title)
}

// PlayByQuery searches for text, picks the best match and plays the whole work it belongs to.
func (o *Orchestrator) PlayByQuery(ctx context.Context, userID, text string) string {
	msg, err := o.playByQuery(ctx, userID, text)
	return o.reply(userID, "play", msg, err)
}

// PlayByPlaylistName plays the user's playlist named name.
func (o *Orchestrator) PlayByPlaylistName(ctx context.Context, userID, name string) string {
	msg, err := o.playByPlaylistName(ctx, userID, name)
	return o.reply(userID, "playlist", msg, err)
}

// Pause pauses playback on the active device.
func (o *Orchestrator) Pause(ctx context.Context, userID string) string {
	msg, err := o.transport(ctx, userID, Paused, "Paused.", o.catalog.Pause)
	return o.reply(userID, "pause", msg, err)
}

// Resume resumes playback on the active device.
func (o *Orchestrator) Resume(ctx context.Context, userID string) string {
	msg, err := o.transport(ctx, userID, Active, "Resumed.", o.catalog.Resume)
	return o.reply(userID, "resume", msg, err)
}

// SkipNext skips to the next track and reports what is playing afterwards.
//
// The provider updates playback state asynchronously, so the read after the delay may still show the old track.
func (o *Orchestrator) SkipNext(ctx context.Context, userID string) string {
	msg, err := o.skipNext(ctx, userID)
	return o.reply(userID, "skip", msg, err)
}

// ListDevices lists the user's open devices.
func (o *Orchestrator) ListDevices(ctx context.Context, userID string) string {
	msg, err := o.listDevices(ctx, userID)
	return o.reply(userID, "devices", msg, err)
}

func (o *Orchestrator) playByQuery(ctx context.Context, userID, text string) (string, error) {
	if err := o.ready(); err != nil {
		return "", err
	}
	query := strings.TrimSpace(text)
	if query == "" {
		return "", fmt.Errorf("%w: nothing to search for", shared.ErrMissingArgument)
	}

	sess := o.sessions.get(userID)
	sess.set(Searching)

	var results []models.SearchResult
	err := o.withToken(ctx, userID, func(token string) error {
		var err error
		results, err = o.catalog.Search(ctx, token, query, o.searchLimit)
		return err
	})
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", &shared.NoResultsError{Query: query}
	}

	top := o.scorer.Rank(results, query)[0]
	sess.set(Resolved)

	set := o.resolve(ctx, userID, top, query)

	sess.set(Commanding)
	device, err := o.pickDevice(ctx, userID)
	if err != nil {
		return "", err
	}

	intent := models.PlaybackIntent{TargetURIs: set.URIs(), DeviceID: device.DeviceID}
	err = o.withToken(ctx, userID, func(token string) error {
		return o.catalog.Play(ctx, token, intent)
	})
	if err != nil {
		return "", err
	}

	sess.setPlaying(top.Title)
	o.logger.Info("playing", "user", userID, "uri", top.URI, "score", top.Score, "tracks", len(set), "device", device.Name)

	msg := fmt.Sprintf("Playing %s by %s", top.Title, top.ArtistName)
	if len(set) > 1 {
		msg += fmt.Sprintf(" (%d movements)", len(set))
	}
	msg += fmt.Sprintf(" on %s.", device.Name)
	if o.scorer.LowConfidence(top) {
		msg += " This was a low-confidence match; try adding the composer or performer."
	}
	return msg, nil
}

// resolve widens the top match to its whole work. Album lookup failures fall back to the match alone.
func (o *Orchestrator) resolve(ctx context.Context, userID string, top models.ScoredResult, query string) models.MovementSet {
	matched := models.AlbumTrack{URI: top.URI, Title: top.Title, TrackIndex: top.AlbumTrackIndex}
	if top.AlbumID == "" {
		return models.MovementSet{matched}
	}

	var tracks []models.AlbumTrack
	err := o.withToken(ctx, userID, func(token string) error {
		var err error
		tracks, err = o.catalog.AlbumTracks(ctx, token, top.AlbumID)
		return err
	})
	if err != nil {
		o.logger.Warn("album lookup failed, playing single track", "user", userID, "album", top.AlbumID, "error", err)
		return models.MovementSet{matched}
	}
	return movements.Resolve(tracks, matched, query)
}

func (o *Orchestrator) playByPlaylistName(ctx context.Context, userID, name string) (string, error) {
	if err := o.ready(); err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	sess := o.sessions.get(userID)
	sess.set(Searching)

	var playlists []models.Playlist
	err := o.withToken(ctx, userID, func(token string) error {
		var err error
		playlists, err = o.catalog.Playlists(ctx, token)
		return err
	})
	if err != nil {
		return "", err
	}

	pl, ok := FindPlaylist(playlists, name)
	if !ok {
		return "", &shared.PlaylistNotFoundError{Name: name}
	}
	sess.set(Resolved)

	sess.set(Commanding)
	device, err := o.pickDevice(ctx, userID)
	if err != nil {
		return "", err
	}

	intent := models.PlaybackIntent{ContextURI: pl.URI, DeviceID: device.DeviceID}
	err = o.withToken(ctx, userID, func(token string) error {
		return o.catalog.Play(ctx, token, intent)
	})
	if err != nil {
		return "", err
	}

	sess.setPlaying(pl.Name)
	o.logger.Info("playing playlist", "user", userID, "playlist", pl.ID, "device", device.Name)
	return fmt.Sprintf("Playing playlist %s on %s.", pl.Name, device.Name), nil
}

// FindPlaylist returns the playlist whose name equals name ignoring case, or failing that the first whose name contains it.
func FindPlaylist(playlists []models.Playlist, name string) (models.Playlist, bool) {
	want := shared.NormalizeText(name)
	for _, p := range playlists {
		if shared.NormalizeText(p.Name) == want {
			return p, true
		}
	}
	for _, p := range playlists {
		if strings.Contains(shared.NormalizeText(p.Name), want) {
			return p, true
		}
	}
	return models.Playlist{}, false
}

func (o *Orchestrator) transport(ctx context.Context, userID string, next SessionState, done string, cmd func(context.Context, string, string) error) (string, error) {
	if err := o.ready(); err != nil {
		return "", err
	}
	sess := o.sessions.get(userID)
	sess.set(Commanding)

	err := o.withToken(ctx, userID, func(token string) error {
		return cmd(ctx, token, "")
	})
	if err != nil {
		return "", err
	}
	sess.set(next)
	return done, nil
}

func (o *Orchestrator) skipNext(ctx context.Context, userID string) (string, error) {
	if _, err := o.transport(ctx, userID, Active, "", o.catalog.Next); err != nil {
		return "", err
	}

	if err := o.wait(ctx, o.skipDelay); err != nil {
		return "Skipped.", nil
	}

	var np *models.NowPlaying
	err := o.withToken(ctx, userID, func(token string) error {
		var err error
		np, err = o.catalog.NowPlaying(ctx, token)
		return err
	})
	if err != nil {
		o.logger.Debug("now playing after skip failed", "user", userID, "error", err)
		return "Skipped.", nil
	}
	if np == nil {
		return "Skipped. Nothing is playing now.", nil
	}
	return fmt.Sprintf("Skipped. Now playing %s by %s.", np.Title, np.Artist), nil
}

func (o *Orchestrator) listDevices(ctx context.Context, userID string) (string, error) {
	if err := o.ready(); err != nil {
		return "", err
	}

	devices, err := o.devices(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		return "No devices are open. Open the app on a phone, computer or speaker.", nil
	}

	var b strings.Builder
	b.WriteString("Devices:")
	for _, d := range devices {
		fmt.Fprintf(&b, "\n- %s (%s)", d.Name, d.Type)
		if d.IsActive {
			b.WriteString(" [active]")
		}
	}
	return b.String(), nil
}

func (o *Orchestrator) devices(ctx context.Context, userID string) ([]models.DeviceState, error) {
	var devices []models.DeviceState
	err := o.withToken(ctx, userID, func(token string) error {
		var err error
		devices, err = o.catalog.Devices(ctx, token)
		return err
	})
	return devices, err
}

// pickDevice returns the active device, or the first one listed.
func (o *Orchestrator) pickDevice(ctx context.Context, userID string) (models.DeviceState, error) {
	devices, err := o.devices(ctx, userID)
	if err != nil {
		return models.DeviceState{}, err
	}
	if len(devices) == 0 {
		return models.DeviceState{}, &shared.NoActiveDeviceError{}
	}
	for _, d := range devices {
		if d.IsActive {
			return d, nil
		}
	}
	return devices[0], nil
}

// withToken runs fn with the user's token. A rejected token is refreshed and fn retried once.
func (o *Orchestrator) withToken(ctx context.Context, userID string, fn func(token string) error) error {
	token, err := o.tokens.ValidToken(ctx, userID)
	if err != nil {
		return err
	}

	err = fn(token)
	if !errors.Is(err, shared.ErrUnauthorized) {
		return err
	}

	o.logger.Debug("token rejected, refreshing", "user", userID)
	token, err = o.tokens.ForceRefresh(ctx, userID, token)
	if err != nil {
		return err
	}
	return fn(token)
}

func (o *Orchestrator) ready() error {
	if o.tokens == nil || !o.tokens.Configured() {
		return shared.ErrNotConfigured
	}
	return nil
}

// reply records the outcome and turns err into a message for the user.
func (o *Orchestrator) reply(userID, op, msg string, err error) string {
	o.metrics.Command(op, err)
	if err == nil {
		return msg
	}

	o.sessions.get(userID).set(Idle)
	o.logger.Warn("command failed", "user", userID, "op", op, "error", err)
	return Message(err)
}

// Message converts an orchestrator error into the text shown to the user.
func Message(err error) string {
	var (
		noResults *shared.NoResultsError
		notFound  *shared.PlaylistNotFoundError
		provider  *shared.ProviderError
	)

	switch {
	case err == nil:
		return ""
	case errors.Is(err, shared.ErrNotConfigured):
		return "Music playback is not configured."
	case shared.IsCredentialError(err), errors.Is(err, shared.ErrUnauthorized):
		return "Please relink your music account."
	case errors.Is(err, shared.ErrRefreshFailed):
		return "The music service could not refresh your session; try again shortly."
	case errors.Is(err, shared.ErrNoActiveDevice):
		return "Open the app on a device first, then try again."
	case errors.As(err, &noResults):
		return fmt.Sprintf("Nothing found for %q.", noResults.Query)
	case errors.As(err, &notFound):
		return fmt.Sprintf("No playlist named %q.", notFound.Name)
	case errors.Is(err, shared.ErrMissingArgument):
		return "Tell me what to play."
	case errors.As(err, &provider):
		return fmt.Sprintf("The music service returned an error: %s", provider.Message)
	default:
		return fmt.Sprintf("Something went wrong: %v", err)
	}
}
