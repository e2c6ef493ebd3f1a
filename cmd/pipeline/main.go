// Package main wires the Universe Manager, Event Ingestor, Signal
// Engine, Scheduler and notifier Dispatcher behind the Supervisor and
// runs them until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"solana-signal-pipeline/internal/config"
	"solana-signal-pipeline/internal/ingestor"
	"solana-signal-pipeline/internal/ingestor/enrichment"
	"solana-signal-pipeline/internal/ingestor/ws"
	"solana-signal-pipeline/internal/notifier"
	"solana-signal-pipeline/internal/observability"
	"solana-signal-pipeline/internal/rolling"
	"solana-signal-pipeline/internal/scheduler"
	"solana-signal-pipeline/internal/signalengine"
	"solana-signal-pipeline/internal/signalengine/aggregator"
	"solana-signal-pipeline/internal/storage"
	chstore "solana-signal-pipeline/internal/storage/clickhouse"
	"solana-signal-pipeline/internal/storage/memory"
	"solana-signal-pipeline/internal/storage/migrations"
	pgstore "solana-signal-pipeline/internal/storage/postgres"
	"solana-signal-pipeline/internal/supervisor"
	"solana-signal-pipeline/internal/universe"
	"solana-signal-pipeline/internal/universe/catalog"
)

// raydiumProgramID and orcaWhirlpoolProgramID are the two AMM programs
// the reference deployment subscribes to.
const (
	raydiumProgramID       = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	orcaWhirlpoolProgramID = "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics HTTP address")
	programsFlag := flag.String("programs", "", "Comma-separated AMM program IDs to monitor (default: raydium,orca)")
	flag.Parse()

	logger := log.New(os.Stdout, "[pipeline] ", log.LstdFlags)

	programs := resolvePrograms(*programsFlag)
	logger.Printf("monitoring AMM programs: %v", programs)

	metrics := observability.New("")
	startMetricsServer(*metricsAddr, logger)

	store, cleanup, err := buildStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatalf("build store: %v", err)
	}
	defer cleanup()

	if err := store.Catalog.Bootstrap(context.Background()); err != nil {
		logger.Fatalf("bootstrap store: %v", err)
	}
	store = observability.InstrumentStore(store, metrics)

	sup := buildSupervisor(cfg, store, programs, logger)

	if err := sup.Run(context.Background()); err != nil {
		logger.Fatalf("pipeline exited with error: %v", err)
	}
	logger.Println("shutdown complete")
}

func resolvePrograms(flagValue string) []string {
	if flagValue == "" {
		return []string{raydiumProgramID, orcaWhirlpoolProgramID}
	}
	var out []string
	for _, p := range strings.Split(flagValue, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func startMetricsServer(addr string, logger *log.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	go func() {
		logger.Printf("metrics listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Printf("metrics server stopped: %v", err)
		}
	}()
}

func buildStore(ctx context.Context, cfg config.Config, logger *log.Logger) (*storage.Store, func(), error) {
	if cfg.UseMemoryStore {
		s := &storage.Store{
			Catalog: memory.NewCatalogStore(),
			Pool:    memory.NewPoolStore(),
			OHLCV:   memory.NewOHLCVStore(),
			Signal:  memory.NewSignalStore(),
		}
		return s, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.StoreURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	ohlcvStore := storage.OHLCVStore(pgstore.NewOHLCVStore(pool))
	var chConn *chstore.Conn
	cleanup := func() { pool.Close() }

	if cfg.ClickhouseURL != "" {
		chConn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseURL)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("bootstrap clickhouse: %w", err)
		}
		ohlcvStore = chstore.NewOHLCVStore(chConn)
		cleanup = func() {
			pool.Close()
			chConn.Close()
		}
	}

	s := &storage.Store{
		Catalog: pgstore.NewCatalogStore(pool),
		Pool:    pgstore.NewPoolStore(pool),
		OHLCV:   ohlcvStore,
		Signal:  pgstore.NewSignalStore(pool),
	}
	return s, cleanup, nil
}

func buildSupervisor(cfg config.Config, store *storage.Store, programs []string, logger *log.Logger) *supervisor.Supervisor {
	state := rolling.New()

	catalogClient := catalog.NewHTTPClient(cfg.CatalogBaseURL, cfg.CatalogAPIKey)
	universeLogger := log.New(os.Stdout, "[universe] ", log.LstdFlags)
	mgr := universe.New(cfg.Universe, store.Catalog, catalogClient, state, universeLogger)

	enrichmentClient := enrichment.NewHTTPClient(cfg.EnrichmentBaseURL, cfg.StreamAPIKey)
	wsLogger := log.New(os.Stdout, "[ws] ", log.LstdFlags)
	wsClient := ws.New(cfg.StreamWSEndpoint, programs, cfg.WS, wsLogger)
	ingestorLogger := log.New(os.Stdout, "[ingestor] ", log.LstdFlags)
	ing := ingestor.New(cfg.Ingestor, wsClient, enrichmentClient, store.Pool, store.OHLCV, mgr, ingestorLogger)

	var sink notifier.Sink
	if cfg.NotifierToken != "" {
		sink = notifier.NewTelegramClient(cfg.NotifierToken, cfg.NotifierChannelID)
	}

	aggClient := aggregator.NewHTTPClient(cfg.AggregatorBaseURL)
	engineLogger := log.New(os.Stdout, "[signalengine] ", log.LstdFlags)
	var dispatch *notifier.Dispatcher
	if sink != nil {
		dispatch = notifier.NewDispatcher(sink, store.Signal, log.New(os.Stdout, "[notifier] ", log.LstdFlags))
	} else {
		dispatch = notifier.NewDispatcher(noSink{}, store.Signal, log.New(os.Stdout, "[notifier] ", log.LstdFlags))
	}
	engine := signalengine.New(cfg.SignalEngine, state, aggClient, store.Signal, dispatch.Notify, engineLogger)

	// The Scheduler's callbacks wrap the Supervisor's own methods, so
	// the Supervisor is built twice: once with every task but the
	// Scheduler to obtain those bound methods, again with the
	// now-ready Scheduler attached.
	bootstrap := supervisor.New(supervisor.Components{
		Store: store, Universe: mgr, Ingestor: ing, Engine: engine, Dispatch: dispatch, Sink: sink,
	}, logger)

	schedLogger := log.New(os.Stdout, "[scheduler] ", log.LstdFlags)
	sched := scheduler.New(cfg.Scheduler, bootstrap.RefreshUniverse, bootstrap.PruneStore, bootstrap.ActivityReporter(), schedLogger)

	return supervisor.New(supervisor.Components{
		Store: store, Universe: mgr, Ingestor: ing, Engine: engine,
		Scheduler: sched, Dispatch: dispatch, Sink: sink,
	}, logger)
}

// noSink rejects every message when no NOTIFIER_TOKEN is configured;
// signals still persist and are simply never marked notified, which is
// the documented behavior for an undeliverable sink.
type noSink struct{}

func (noSink) Send(ctx context.Context, text string) error {
	return fmt.Errorf("notifier: no sink configured")
}
