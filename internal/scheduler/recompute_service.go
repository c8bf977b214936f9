package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"recoledger/internal/tracker"
)

// DefaultInterval is how often the recompute job runs when no interval is configured.
const DefaultInterval = 24 * time.Hour

// Job runs one recompute pass. trigger records what started it.
type Job interface {
	Recompute(ctx context.Context, trigger string) (*tracker.RunReport, error)
}

// RecomputeConfig configures RecomputeService.
type RecomputeConfig struct {
	Interval   time.Duration
	RunOnStart bool
	// JobTimeout bounds a single pass. Zero means no bound beyond the service's lifetime.
	JobTimeout time.Duration
}

// RecomputeService runs Job at a fixed interval under suture supervision.
// Passes never overlap: a manual trigger is refused while a pass is running
// or another trigger is already queued.
type RecomputeService struct {
	job    Job
	config RecomputeConfig
	logger tracker.Logger
	clock  tracker.Clock

	trigger chan struct{}
	running atomic.Bool

	mu      sync.Mutex
	lastRun time.Time
	last    *tracker.RunReport
}

// NewRecomputeService creates a RecomputeService.
func NewRecomputeService(job Job, config RecomputeConfig, logger tracker.Logger, clock tracker.Clock) *RecomputeService {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	return &RecomputeService{
		job:     job,
		config:  config,
		logger:  logger,
		clock:   clock,
		trigger: make(chan struct{}, 1),
	}
}

// Serve implements suture.Service.
func (s *RecomputeService) Serve(ctx context.Context) error {
	s.logger.Info("recompute scheduler starting", "interval", s.config.Interval.String(), "run_on_start", s.config.RunOnStart)

	if s.config.RunOnStart {
		s.run(ctx, tracker.TriggerSchedule)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("recompute scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx, tracker.TriggerSchedule)
		case <-s.trigger:
			s.run(ctx, tracker.TriggerManual)
		}
	}
}

// Trigger requests an immediate pass. It never blocks and reports false when
// a pass is in flight or a request is already queued.
func (s *RecomputeService) Trigger() bool {
	if s.running.Load() {
		return false
	}
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// LastRun returns the time and report of the most recent pass, if any.
func (s *RecomputeService) LastRun() (time.Time, *tracker.RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.last
}

// Running reports whether a pass is in flight.
func (s *RecomputeService) Running() bool {
	return s.running.Load()
}

func (s *RecomputeService) run(ctx context.Context, trigger string) {
	s.running.Store(true)
	defer s.running.Store(false)

	runCtx := ctx
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	report, err := s.job.Recompute(runCtx, trigger)
	if err != nil {
		s.logger.Error("recompute failed", "trigger", trigger, "error", err)
	}

	s.mu.Lock()
	s.lastRun = s.clock.Now()
	s.last = report
	s.mu.Unlock()
}

func (s *RecomputeService) String() string {
	return "recompute-scheduler"
}
