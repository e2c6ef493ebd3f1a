// Package scheduler drives the pipeline's long-cycle timers: universe
// refresh, daily store maintenance, and the ingestor activity
// snapshot. Each timer is an explicit time.Ticker loop in its own
// goroutine; refresh and maintenance ticks run their callback in that
// goroutine under a per-tick timeout context.
package scheduler

import (
	"context"
	"log"
	"time"
)

// Config holds every tick interval the Scheduler drives.
type Config struct {
	RefreshPeriod      time.Duration // Universe Manager refresh cycle, default 48h
	MaintenancePeriod  time.Duration // Store prune cycle, default 24h
	ActivitySnapshot   time.Duration // Ingestor activity report, default 10min
	RefreshTimeout     time.Duration
	MaintenanceTimeout time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		RefreshPeriod:      48 * time.Hour,
		MaintenancePeriod:  24 * time.Hour,
		ActivitySnapshot:   10 * time.Minute,
		RefreshTimeout:     2 * time.Minute,
		MaintenanceTimeout: 2 * time.Minute,
	}
}

// Scheduler ticks three independent timers and invokes the supplied
// callbacks on each. It never blocks one timer's callback on another:
// each timer loop runs in its own goroutine, cancelled on ctx.Done.
type Scheduler struct {
	cfg             Config
	logger          *log.Logger
	refreshUniverse func(ctx context.Context) error
	pruneStore      func(ctx context.Context) error
	reportActivity  func()
}

// New builds a Scheduler. Any callback may be nil, in which case that
// timer still fires but does nothing (useful in tests that only
// exercise one tick kind). logger defaults to log.Default() if nil.
func New(cfg Config, refreshUniverse func(ctx context.Context) error, pruneStore func(ctx context.Context) error, reportActivity func(), logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		cfg:             cfg,
		logger:          logger,
		refreshUniverse: refreshUniverse,
		pruneStore:      pruneStore,
		reportActivity:  reportActivity,
	}
}

// Run starts all three ticking loops and blocks until ctx is
// cancelled. The Universe Manager's first refresh fires immediately at
// startup rather than waiting a full RefreshPeriod.
func (s *Scheduler) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() { s.runRefreshLoop(ctx); close(done) }()

	maintDone := make(chan struct{})
	go func() {
		s.runTicker(ctx, s.cfg.MaintenancePeriod, s.cfg.MaintenanceTimeout, s.pruneStore, "maintenance")
		close(maintDone)
	}()

	snapDone := make(chan struct{})
	go func() {
		defer close(snapDone)
		ticker := time.NewTicker(s.cfg.ActivitySnapshot)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.reportActivity != nil {
					s.reportActivity()
				}
			}
		}
	}()

	<-ctx.Done()
	<-done
	<-maintDone
	<-snapDone
	return ctx.Err()
}

// runRefreshLoop fires the Universe Manager refresh immediately, then
// every RefreshPeriod.
func (s *Scheduler) runRefreshLoop(ctx context.Context) {
	s.tick(ctx, s.cfg.RefreshTimeout, s.refreshUniverse, "universe refresh")

	ticker := time.NewTicker(s.cfg.RefreshPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, s.cfg.RefreshTimeout, s.refreshUniverse, "universe refresh")
		}
	}
}

// runTicker fires fn on every period after waiting one full period
// (maintenance and pruning do not need to run at process start).
func (s *Scheduler) runTicker(ctx context.Context, period, timeout time.Duration, fn func(ctx context.Context) error, label string) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, timeout, fn, label)
		}
	}
}

// tick runs fn inline under its own bounded-deadline context and logs failure
// without propagating it: a single bad tick never takes down the
// Scheduler task.
func (s *Scheduler) tick(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error, label string) {
	if fn == nil {
		return
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := fn(tctx); err != nil {
		s.logger.Printf("%s tick failed: %v", label, err)
	}
}
