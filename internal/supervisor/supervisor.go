// Package supervisor is the root composition: it owns the top-level
// context, wires the Store, Universe Manager, Ingestor, Signal Engine,
// notifier Dispatcher and Scheduler tasks together, and is the single
// place a fatal error is reported to the notifier before process exit.
// A second SIGINT/SIGTERM during drain forces an immediate exit.
package supervisor

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"solana-signal-pipeline/internal/ingestor"
	"solana-signal-pipeline/internal/notifier"
	"solana-signal-pipeline/internal/scheduler"
	"solana-signal-pipeline/internal/signalengine"
	"solana-signal-pipeline/internal/storage"
	"solana-signal-pipeline/internal/universe"
)

// errorReportInterval bounds how often a non-fatal transient warning
// is sent to the notifier: at most once per interval.
const errorReportInterval = 10 * time.Minute

// Supervisor owns the root context and every long-running task.
type Supervisor struct {
	store     *storage.Store
	universe  *universe.Manager
	ingestor  *ingestor.Ingestor
	engine    *signalengine.Engine
	scheduler *scheduler.Scheduler
	dispatch  *notifier.Dispatcher
	sink      notifier.Sink
	logger    *log.Logger

	mu            sync.Mutex
	lastWarningAt time.Time
}

// Components bundles the already-constructed tasks the Supervisor
// drives; building them (picking postgres vs memory, wiring HTTP
// clients) is the binary's job, not the Supervisor's.
type Components struct {
	Store     *storage.Store
	Universe  *universe.Manager
	Ingestor  *ingestor.Ingestor
	Engine    *signalengine.Engine
	Scheduler *scheduler.Scheduler
	Dispatch  *notifier.Dispatcher
	Sink      notifier.Sink
}

// New builds a Supervisor from already-wired Components. logger
// defaults to log.Default() if nil.
func New(c Components, logger *log.Logger) *Supervisor {
	if logger == nil {
		logger = log.Default()
	}
	return &Supervisor{
		store:     c.Store,
		universe:  c.Universe,
		ingestor:  c.Ingestor,
		engine:    c.Engine,
		scheduler: c.Scheduler,
		dispatch:  c.Dispatch,
		sink:      c.Sink,
		logger:    logger,
	}
}

// Run starts every task, blocks until a SIGINT/SIGTERM or a fatal
// error, then drains for up to 10s before returning. A second
// SIGINT/SIGTERM during drain forces immediate exit. Returns the
// first fatal error encountered, or nil on a clean signal shutdown.
func (s *Supervisor) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	fatal := make(chan error, 4)

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && err != context.Canceled {
				s.reportFatal(ctx, name, err)
				select {
				case fatal <- err:
				default:
				}
				cancel()
			}
		}()
	}

	run("ingestor", s.ingestor.Run)
	run("signalengine", func(ctx context.Context) error { return s.engine.Run(ctx, s.ingestor.Events()) })
	run("scheduler", s.scheduler.Run)
	run("dispatcher", func(ctx context.Context) error { return s.dispatch.Run(ctx, time.Minute) })

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case sig := <-sigCh:
		s.logger.Printf("received %v, shutting down gracefully", sig)
		cancel()
		s.awaitDrainOrForce(sigCh, done)
	case <-done:
	}

	select {
	case err := <-fatal:
		return err
	default:
		return nil
	}
}

// awaitDrainOrForce waits up to 10s for tasks to finish after the root
// context is cancelled, forcing immediate exit on a second signal or
// on timeout.
func (s *Supervisor) awaitDrainOrForce(sigCh <-chan os.Signal, done <-chan struct{}) {
	select {
	case <-done:
	case sig := <-sigCh:
		s.logger.Printf("received second %v, forcing immediate exit", sig)
		os.Exit(1)
	case <-time.After(10 * time.Second):
		s.logger.Printf("graceful shutdown timed out after 10s, forcing exit")
		os.Exit(1)
	}
}

// reportFatal sends the one bounded fatal message before the component
// that raised it brings the process down.
func (s *Supervisor) reportFatal(ctx context.Context, component string, err error) {
	s.logger.Printf("fatal in %s: %v", component, err)
	if s.sink == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if sendErr := s.sink.Send(sctx, notifier.FatalMessage(component, err)); sendErr != nil {
		s.logger.Printf("failed to deliver fatal notification: %v", sendErr)
	}
}

// ReportWarning sends a non-fatal transient warning to the notifier,
// rate-limited to at most once per errorReportInterval.
func (s *Supervisor) ReportWarning(ctx context.Context, component string, err error) {
	s.mu.Lock()
	now := time.Now()
	if !s.lastWarningAt.IsZero() && now.Sub(s.lastWarningAt) < errorReportInterval {
		s.mu.Unlock()
		return
	}
	s.lastWarningAt = now
	s.mu.Unlock()

	if s.sink == nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.sink.Send(sctx, notifier.WarningMessage(component, err)); err != nil {
		s.logger.Printf("failed to deliver warning notification: %v", err)
	}
}

// ActivityReporter builds the Scheduler's 10-minute activity-snapshot
// callback: it reads the Ingestor's counters and forwards a bounded
// text summary to the notifier sink.
func (s *Supervisor) ActivityReporter() func() {
	return func() {
		snap := s.ingestor.Snapshot()
		msg := notifier.ActivitySnapshotMessage(snap.Messages, snap.Errors, snap.PoolEvents, snap.SwapEvents, snap.DroppedEvents)
		if s.sink == nil {
			s.logger.Print(msg)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.sink.Send(ctx, msg); err != nil {
			s.logger.Printf("failed to deliver activity snapshot: %v", err)
		}
	}
}

// RefreshUniverse and PruneStore are the Scheduler's other two
// callbacks, wrapping the Universe Manager and Store with the
// Supervisor's own warning reporting on transient failure.
func (s *Supervisor) RefreshUniverse(ctx context.Context) error {
	if err := s.universe.Refresh(ctx, time.Now()); err != nil {
		s.ReportWarning(ctx, "universe", err)
		return err
	}
	return nil
}

func (s *Supervisor) PruneStore(ctx context.Context) error {
	policy := storage.RetentionPolicy{
		CatalogRetain: int64((72 * time.Hour).Seconds()),
		OHLCVRetain:   int64((24 * time.Hour).Seconds()),
		SignalsRetain: int64((24 * time.Hour).Seconds()),
	}
	if err := s.store.Prune(ctx, policy, time.Now().Unix()); err != nil {
		s.ReportWarning(ctx, "store", err)
		return err
	}
	return nil
}
