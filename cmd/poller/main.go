// cmd/poller/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/modbus-poller/internal/api"
	"github.com/tamzrod/modbus-poller/internal/config"
	"github.com/tamzrod/modbus-poller/internal/logger"
	"github.com/tamzrod/modbus-poller/internal/metrics"
	"github.com/tamzrod/modbus-poller/internal/poller"
	"github.com/tamzrod/modbus-poller/internal/publish"
	"github.com/tamzrod/modbus-poller/internal/scheduler"
	"github.com/tamzrod/modbus-poller/internal/status"
	"github.com/tamzrod/modbus-poller/internal/store"
	"github.com/tamzrod/modbus-poller/internal/writer"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfgPath := flag.String("config", "poller.yaml", "path to the YAML configuration")
	once := flag.Bool("once", false, "poll every enabled device once and exit")
	flag.Parse()

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}

	config.Normalize(cfg)

	if err := logger.Init(cfg.Logging); err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *once); err != nil {
		lg := logger.Get()
		lg.Error().Err(err).Msg("poller exited")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, once bool) error {
	lg := logger.WithComponent("main")

	// --------------------
	// Store + seed
	// --------------------

	repo, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			lg.Warn().Err(err).Msg("store close failed")
		}
	}()

	seed, err := cfg.Seed()
	if err != nil {
		return err
	}
	if err := repo.ApplySeed(ctx, seed); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	// --------------------
	// Pipeline
	// --------------------

	tracker := status.NewTracker()
	rec := metrics.New()

	exec, err := poller.New(poller.ModbusDialer(cfg.Poller.Timeout()), logger.WithComponent("poller"))
	if err != nil {
		return err
	}

	var publishers []publish.Publisher
	if cfg.Kafka.Enabled() {
		kp, err := publish.NewKafkaPublisher(publish.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout(),
		})
		if err != nil {
			return err
		}
		publishers = append(publishers, kp)
		lg.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka publishing enabled")
	}

	sink := publish.NewFanout(repo, logger.WithComponent("publish"), publishers...)
	defer func() {
		if err := sink.Close(); err != nil {
			lg.Warn().Err(err).Msg("publisher close failed")
		}
	}()

	orch, err := scheduler.New(
		scheduler.Config{
			Refresh:         cfg.Poller.Refresh(),
			DefaultInterval: cfg.Poller.DefaultInterval(),
			MaxDevices:      cfg.Poller.Limit(),
		},
		repo,
		sink,
		exec,
		scheduler.Options{
			Tracker: tracker,
			Metrics: rec,
			Logger:  logger.WithComponent("scheduler"),
		},
	)
	if err != nil {
		return err
	}

	if once {
		return runOnce(ctx, orch, lg)
	}

	// --------------------
	// HTTP + scheduler
	// --------------------

	coils, err := writer.New(writer.ModbusDialer(cfg.Poller.Timeout()), rec, logger.WithComponent("writer"))
	if err != nil {
		return err
	}

	handler := api.NewHandler(repo, coils, tracker, logger.WithComponent("api"))
	srv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           api.NewRouter(handler, cfg.HTTP.GinMode, rec.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return orch.Run(gctx)
	})

	g.Go(func() error {
		lg.Info().Str("listen", cfg.HTTP.Listen).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	lg.Info().Msg("poller stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Repository, error) {
	switch cfg.Driver {
	case store.DriverMemory:
		return store.NewMemoryStore(cfg.Retention), nil
	case store.DriverPostgres:
		return store.NewPostgresStore(ctx, store.PostgresConfig{
			DSN:      cfg.DSN,
			MaxConns: cfg.MaxConns,
			Migrate:  cfg.Migrate,
		}, logger.WithComponent("store"))
	}
	return nil, fmt.Errorf("%w: %q", store.ErrUnknownDriver, cfg.Driver)
}

func runOnce(ctx context.Context, orch *scheduler.Orchestrator, lg zerolog.Logger) error {
	snaps, err := orch.RunOnce(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, s := range snaps {
		if !s.OK {
			failed++
		}
	}
	lg.Info().Int("devices", len(snaps)).Int("failed", failed).Msg("single pass complete")
	return nil
}
