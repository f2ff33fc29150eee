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

	"github.com/nvoloshin/betfuse/internal/autobet"
	"github.com/nvoloshin/betfuse/internal/fusion/api"
	"github.com/nvoloshin/betfuse/internal/fusion/ingest"
	"github.com/nvoloshin/betfuse/internal/fusion/resolve"
	"github.com/nvoloshin/betfuse/internal/fusion/snapshot"
	"github.com/nvoloshin/betfuse/internal/fusion/store"
	"github.com/nvoloshin/betfuse/internal/ledger"
	"github.com/nvoloshin/betfuse/internal/opportunity"
	pkgconfig "github.com/nvoloshin/betfuse/internal/pkg/config"
	"github.com/nvoloshin/betfuse/internal/pkg/logging"
	"github.com/nvoloshin/betfuse/internal/pkg/metrics"
	"github.com/nvoloshin/betfuse/internal/pkg/models"
)

const defaultConfigPath = "configs/production.yaml"

// opportunityBuffer absorbs evaluation bursts without stalling the
// opportunity engine tick loop.
const opportunityBuffer = 64

type cliConfig struct {
	configPath string
	runFor     time.Duration
}

func main() {
	if err := run(); err != nil {
		slog.Error("AutoBet service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := parseFlags()

	appConfig, err := pkgconfig.Load(cfg.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if _, err := logging.Setup(&appConfig.Logging, "autobet"); err != nil {
		slog.Warn("Failed to setup logging, continuing with default logger", "error", err)
	}
	slog.Info("Config loaded", "path", cfg.configPath, "autobet_enabled", appConfig.AutoBet.Enabled)

	ctx, cancel := createContext(cfg.runFor)
	defer cancel()
	setupSignalHandler(cancel)

	// The full fusion stack runs in-process so decisions act on the
	// freshest state instead of a polled snapshot.
	st := store.New(appConfig.Fusion.FreshnessWindow.Std())
	resolver := resolve.New(appConfig.Fusion.Resolver, st)
	health := ingest.NewSourceHealth(appConfig.Fusion.FreshnessWindow.Std())
	pipeline := ingest.NewPipeline(resolver, st, health)

	sweeper := store.NewSweeper(st, appConfig.Fusion.SweepInterval.Std())
	go sweeper.Run(ctx)

	led, err := ledger.Open(appConfig.Ledger)
	if err != nil {
		return fmt.Errorf("failed to open audit ledger: %w", err)
	}
	defer led.Close()

	risk, err := restoreRiskState(ctx, appConfig.AutoBet, led)
	if err != nil {
		return err
	}

	executor := autobet.NewHTTPExecutor(appConfig.AutoBet.Executor)

	var notifier autobet.Notifier
	if appConfig.AutoBet.Telegram.BotToken != "" {
		notifier = autobet.NewTelegramNotifier(appConfig.AutoBet.Telegram.BotToken, appConfig.AutoBet.Telegram.ChatID)
	}
	defer func() {
		if notifier != nil {
			notifier.Stop()
		}
	}()

	engine := autobet.NewEngine(appConfig.AutoBet, risk, led, executor, notifier)
	defer engine.Close()

	opps := make(chan models.Opportunity, opportunityBuffer)
	oppEngine := opportunity.New(appConfig.Opportunity, st)
	go oppEngine.Run(ctx, opps)
	go engine.Run(ctx, opps)

	if appConfig.Ingest.Kafka.Enabled {
		consumer := ingest.NewKafkaConsumer(appConfig.Ingest.Kafka, pipeline)
		defer consumer.Close()
		go consumer.Run(ctx)
	}

	if appConfig.Redis.Enabled {
		publisher, err := snapshot.NewPublisher(appConfig.Redis, st, oppEngine, appConfig.Opportunity.TickInterval.Std())
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

	ingestRouter := mux.NewRouter()
	pipeline.Register(ingestRouter)
	api.NewServer(st, oppEngine, resolver, health).Register(ingestRouter)

	ingestSrv := startServer(appConfig.Ingest.HTTPAddr, ingestRouter, "Feed intake", cancel)
	betSrv := startServer(appConfig.AutoBet.HTTPAddr, autobet.NewRouter(engine), "AutoBet API", cancel)

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := ingestSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return betSrv.Shutdown(shutdownCtx)
}

// restoreRiskState replays the full audit ledger so exposure, open
// conditions and the loss streak survive restarts.
func restoreRiskState(ctx context.Context, cfg pkgconfig.AutoBetConfig, led ledger.Ledger) (*autobet.RiskState, error) {
	records, err := led.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit ledger: %w", err)
	}

	risk := autobet.NewRiskState(cfg)
	summary := ledger.Replay(records)
	risk.Restore(summary, time.Now().UTC())

	slog.Info("Risk state restored from ledger",
		"records", len(records),
		"open_conditions", len(summary.OpenConditions),
		"open_exposure", summary.OpenExposure().StringFixed(2),
		"realized_pnl", summary.RealizedPnL.StringFixed(2),
		"loss_streak", summary.LossStreak,
		"bankroll", risk.Bankroll().StringFixed(2))
	return risk, nil
}

func startServer(addr string, handler http.Handler, name string, cancel context.CancelFunc) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info(name+" listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "server", name, "error", err)
			cancel()
		}
	}()
	return srv
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
