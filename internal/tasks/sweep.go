package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/maestro/internal/models"
	"github.com/desertthunder/maestro/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultInterval  = 10 * time.Minute
	defaultHorizon   = 15 * time.Minute
	defaultWorkers   = 4
	maxWorkers       = 10
	defaultRateLimit = 2.0
)

// Refresher replaces a user's access token. Implemented by [auth.Manager].
type Refresher interface {
	ForceRefresh(ctx context.Context, userID, rejected string) (string, error)
}

// CredentialLister enumerates persisted credentials. Implemented by [repositories.CredentialRepository].
type CredentialLister interface {
	List() ([]models.Credential, error)
}

// StatePruner deletes expired link states. Implemented by [repositories.LinkStateRepository].
type StatePruner interface {
	Prune() (int64, error)
}

// Options configures a [Sweeper].
type Options struct {
	Interval  time.Duration // Time between sweeps (default: 10m)
	Horizon   time.Duration // Refresh credentials expiring within this window (default: 15m)
	Workers   int           // Concurrent refreshes (default: 4, max: 10)
	RateLimit float64       // Refreshes per second (default: 2)
	Logger    *log.Logger
}

// OptionsFromConfig maps the maintenance section of cfg onto [Options].
func OptionsFromConfig(cfg *shared.Config) Options {
	m := cfg.Maintenance
	return Options{
		Interval:  m.Interval.Duration,
		Horizon:   m.Horizon.Duration,
		Workers:   m.Workers,
		RateLimit: m.RateLimit,
	}
}

// SweepResult summarizes one pass.
type SweepResult struct {
	PrunedStates int64
	Linked       int
	Due          int
	Refreshed    int
	Failed       int
	Errors       map[string]error // by user id
}

// Sweeper keeps stored credentials ahead of their expiry.
type Sweeper struct {
	refresher Refresher
	creds     CredentialLister
	states    StatePruner
	opts      Options
	logger    *log.Logger
	now       func() time.Time
}

// NewSweeper creates a [Sweeper]. states may be nil when link states are not persisted.
func NewSweeper(refresher Refresher, creds CredentialLister, states StatePruner, opts Options) *Sweeper {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Horizon <= 0 {
		opts.Horizon = defaultHorizon
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Workers > maxWorkers {
		opts.Workers = maxWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Sweeper{
		refresher: refresher,
		creds:     creds,
		states:    states,
		opts:      opts,
		logger:    shared.WithLogger(logger, "component", "sweeper"),
		now:       time.Now,
	}
}

type refreshJob struct {
	userID   string
	rejected string
}

type refreshResult struct {
	userID string
	err    error
}

// RunOnce performs a single sweep. Progress is reported on prog when it is non-nil.
//
// Individual refresh failures are collected in the result; only failures to read the stores are returned as errors.
func (s *Sweeper) RunOnce(ctx context.Context, prog chan<- ProgressUpdate) (*SweepResult, error) {
	result := &SweepResult{Errors: map[string]error{}}

	if s.states != nil {
		removed, err := s.states.Prune()
		if err != nil {
			return result, fmt.Errorf("failed to prune link states: %w", err)
		}
		result.PrunedStates = removed
		s.sendProgress(prog, pruneUpdate(removed))
	}

	creds, err := s.creds.List()
	if err != nil {
		return result, fmt.Errorf("failed to list credentials: %w", err)
	}

	now := s.now()
	var due []refreshJob
	for _, cred := range creds {
		if !cred.FreshAt(now, s.opts.Horizon) {
			due = append(due, refreshJob{userID: cred.UserID, rejected: cred.AccessToken})
		}
	}
	result.Linked = len(creds)
	result.Due = len(due)
	s.sendProgress(prog, scanUpdate(len(creds), len(due)))

	if len(due) == 0 {
		return result, nil
	}

	limiter := rate.NewLimiter(rate.Limit(s.opts.RateLimit), 1)
	jobs := make(chan refreshJob, len(due))
	results := make(chan refreshResult, len(due))

	var wg sync.WaitGroup
	for range min(s.opts.Workers, len(due)) {
		wg.Add(1)
		go s.refreshWorker(ctx, &wg, limiter, jobs, results)
	}

	for _, job := range due {
		jobs <- job
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		if res.err != nil {
			result.Failed++
			result.Errors[res.userID] = res.err
			s.logger.Warn("credential refresh failed", "user", res.userID, "error", res.err)
			s.sendProgress(prog, refreshFailedUpdate(completed, len(due), res.userID, res.err))
			continue
		}
		result.Refreshed++
		s.sendProgress(prog, refreshedUpdate(completed, len(due), res.userID))
	}

	s.logger.Info("sweep finished",
		"linked", result.Linked, "due", result.Due,
		"refreshed", result.Refreshed, "failed", result.Failed)

	return result, ctx.Err()
}

// Start runs a sweep immediately and then on every interval until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context, prog chan<- ProgressUpdate) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx, prog); err != nil && ctx.Err() == nil {
			s.logger.Error("sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) refreshWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan refreshJob,
	results chan<- refreshResult,
) {
	defer wg.Done()

	for job := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			results <- refreshResult{userID: job.userID, err: err}
			continue
		}
		_, err := s.refresher.ForceRefresh(ctx, job.userID, job.rejected)
		results <- refreshResult{userID: job.userID, err: err}
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (s *Sweeper) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
