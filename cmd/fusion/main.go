package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/nvoloshin/betfuse/internal/fusion/api"
	"github.com/nvoloshin/betfuse/internal/fusion/ingest"
	"github.com/nvoloshin/betfuse/internal/fusion/resolve"
	"github.com/nvoloshin/betfuse/internal/fusion/snapshot"
	"github.com/nvoloshin/betfuse/internal/fusion/store"
	"github.com/nvoloshin/betfuse/internal/opportunity"
	pkgconfig "github.com/nvoloshin/betfuse/internal/pkg/config"
	"github.com/nvoloshin/betfuse/internal/pkg/logging"
	"github.com/nvoloshin/betfuse/internal/pkg/metrics"
)

const defaultConfigPath = "configs/production.yaml"

type cliConfig struct {
	configPath string
	runFor     time.Duration
}

func main() {
	if err := run(); err != nil {
		slog.Error("Fusion service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := parseFlags()

	appConfig, err := pkgconfig.Load(cfg.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if _, err := logging.Setup(&appConfig.Logging, "fusion"); err != nil {
		slog.Warn("Failed to setup logging, continuing with default logger", "error", err)
	}
	slog.Info("Config loaded", "path", cfg.configPath)

	ctx, cancel := createContext(cfg.runFor)
	defer cancel()
	setupSignalHandler(cancel)

	// Shared state: key-partitioned store, resolver on top of it.
	st := store.New(appConfig.Fusion.FreshnessWindow.Std())
	resolver := resolve.New(appConfig.Fusion.Resolver, st)
	health := ingest.NewSourceHealth(appConfig.Fusion.FreshnessWindow.Std())
	pipeline := ingest.NewPipeline(resolver, st, health)

	sweeper := store.NewSweeper(st, appConfig.Fusion.SweepInterval.Std())
	go sweeper.Run(ctx)

	// Opportunities are consumed here via the query API and Redis snapshots;
	// the autobet service runs its own engine in-process.
	engine := opportunity.New(appConfig.Opportunity, st)
	go engine.Run(ctx, nil)

	if appConfig.Ingest.Kafka.Enabled {
		consumer := ingest.NewKafkaConsumer(appConfig.Ingest.Kafka, pipeline)
		defer consumer.Close()
		go consumer.Run(ctx)
	}

	if appConfig.Redis.Enabled {
		publisher, err := snapshot.NewPublisher(appConfig.Redis, st, engine, appConfig.Opportunity.TickInterval.Std())
		if err != nil {
			return fmt.Errorf("failed to init redis snapshot publisher: %w", err)
		}
		defer publisher.Close()
		go publisher.Run(ctx)
	}

	if appConfig.Metrics.Addr != "" {
		metricsSrv := metrics.StartServer(appConfig.Metrics.Addr, nil)
		defer metricsSrv.Close()
	}

	router := mux.NewRouter()
	pipeline.Register(router)
	api.NewServer(st, engine, resolver, health).Register(router)

	srv := &http.Server{
		Addr:              appConfig.Ingest.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("Fusion service listening", "addr", appConfig.Ingest.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func parseFlags() cliConfig {
	var cfg cliConfig

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = defaultConfigPath
	}

	flag.StringVar(&cfg.configPath, "config", defaultConfig, "Path to config file (can be set via CONFIG_PATH env var)")
	flag.DurationVar(&cfg.runFor, "run-for", 0, "Auto-stop after duration (e.g. 10s, 1m). 0 = run until SIGINT/SIGTERM")
	flag.Parse()
	return cfg
}

func createContext(runFor time.Duration) (context.Context, context.CancelFunc) {
	if runFor > 0 {
		return context.WithTimeout(context.Background(), runFor)
	}
	return context.WithCancel(context.Background())
}

func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("Received signal, stopping", "signal", sig)
		cancel()
	}()
}
