package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/ericfisherdev/mmpresence/internal/domain/model"
	"github.com/ericfisherdev/mmpresence/internal/domain/port/driven"
)

const (
	// AwayThreshold is Mattermost's default inactivity timeout before a session
	// is marked away. The reassertion interval must stay below it.
	AwayThreshold = 5 * time.Minute

	// DefaultInterval is the tick period used when none is configured.
	DefaultInterval = 2 * time.Minute
)

// ReassertService periodically pushes the desired presence status using the
// stored session identifiers.
type ReassertService struct {
	store    driven.SessionStore
	client   driven.StatusClient
	policy   model.ReassertPolicy
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.RWMutex
	last *model.TickResult
}

// NewReassertService creates a new ReassertService with all required dependencies.
// An unknown policy falls back to model.PolicyAlways.
func NewReassertService(
	store driven.SessionStore,
	client driven.StatusClient,
	policy model.ReassertPolicy,
	interval time.Duration,
	logger *slog.Logger,
) *ReassertService {
	if !policy.Valid() {
		policy = model.PolicyAlways
	}
	return &ReassertService{
		store:    store,
		client:   client,
		policy:   policy,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Policy returns the active reassertion policy.
func (s *ReassertService) Policy() model.ReassertPolicy {
	return s.policy
}

// Interval returns the tick period.
func (s *ReassertService) Interval() time.Duration {
	return s.interval
}

// Start runs one tick immediately, then ticks on the configured interval until
// ctx is canceled. Every scheduled tick runs on its own goroutine, so a request
// that hangs never delays the next tick. On cancellation Start stops the timer
// and waits for in-flight ticks before returning.
func (s *ReassertService) Start(ctx context.Context) {
	if s.interval >= AwayThreshold {
		s.logger.Warn("reassert interval is not below the away threshold; status may flip to away between ticks",
			"interval", s.interval,
			"away_threshold", AwayThreshold,
		)
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger)),
	)
	c.Schedule(cron.Every(s.interval), cron.FuncJob(func() { s.Tick(ctx) }))
	c.Start()

	s.logger.Info("reassert scheduler started", "interval", s.interval, "policy", string(s.policy))

	// The first tick runs beside the timer so a hung call cannot hold it back.
	var first sync.WaitGroup
	first.Add(1)
	go func() {
		defer first.Done()
		s.Tick(ctx)
	}()

	<-ctx.Done()
	<-c.Stop().Done()
	first.Wait()
	s.logger.Info("reassert scheduler stopped")
}

// RunNow runs a single tick outside the timer and returns its result.
func (s *ReassertService) RunNow(ctx context.Context) model.TickResult {
	s.logger.Info("manual reassert requested")
	return s.Tick(ctx)
}

// LastResult returns the result of the most recent tick, if any.
func (s *ReassertService) LastResult() (model.TickResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return model.TickResult{}, false
	}
	return *s.last, true
}

// Tick performs one reassertion cycle. It never panics on remote or storage
// failures; every failure is logged and reflected in the returned result.
func (s *ReassertService) Tick(ctx context.Context) model.TickResult {
	result := model.TickResult{
		ID:        uuid.NewString(),
		StartedAt: s.now(),
	}
	logger := s.logger.With("tick_id", result.ID)

	s.runTick(ctx, logger, &result)

	result.FinishedAt = s.now()
	s.record(result)
	return result
}

func (s *ReassertService) runTick(ctx context.Context, logger *slog.Logger, result *model.TickResult) {
	creds, err := s.store.Get(ctx)
	if err != nil {
		result.Outcome = model.TickFailed
		result.Error = err.Error()
		logger.Error("load session failed", "error", err)
		return
	}

	if missing := creds.MissingFields(); len(missing) > 0 {
		result.Outcome = model.TickSkippedMissing
		result.Missing = missing
		result.Error = ErrMissingCredentials.Error()
		logger.Warn("tick skipped: missing credentials", "missing", missing)
		return
	}

	if creds.DesiredStatus == "" {
		result.Outcome = model.TickSkippedNoDesired
		logger.Info("tick skipped: no desired status configured")
		return
	}

	desired := creds.DesiredStatus
	result.Desired = desired
	target := creds.Target()

	if s.policy != model.PolicyAlways {
		observed, err := s.client.ReadStatus(ctx, target)
		if err != nil {
			result.Outcome = model.TickFailed
			result.Error = err.Error()
			logger.Error("read status failed", "domain", target.Domain, "error", err)
			return
		}
		result.Observed = observed

		if !s.shouldWrite(observed, desired) {
			result.Outcome = model.TickUnchanged
			logger.Debug("status left unchanged",
				"observed", string(observed),
				"desired", string(desired),
				"policy", string(s.policy),
			)
			return
		}
	}

	if err := s.client.WriteStatus(ctx, target, desired); err != nil {
		result.Outcome = model.TickFailed
		result.Error = err.Error()
		logger.Error("write status failed", "domain", target.Domain, "status", string(desired), "error", err)
		return
	}

	result.Outcome = model.TickWritten
	logger.Info("status reasserted",
		"domain", target.Domain,
		"status", string(desired),
		"observed", string(result.Observed),
	)
}

// shouldWrite applies the read-first policies to an observed status.
func (s *ReassertService) shouldWrite(observed, desired model.Status) bool {
	switch s.policy {
	case model.PolicyOnMismatch:
		return observed != desired
	case model.PolicyWhenAway:
		return observed == model.StatusAway && desired != model.StatusAway
	default:
		return true
	}
}

func (s *ReassertService) record(result model.TickResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &result
}
