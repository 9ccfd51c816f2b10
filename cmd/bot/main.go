package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"MarketForecaster/internal/artifact"
	"MarketForecaster/internal/collector"
	"MarketForecaster/internal/config"
	"MarketForecaster/internal/logging"
	"MarketForecaster/internal/metrics"
	"MarketForecaster/internal/notifier"
	"MarketForecaster/internal/pipeline"
	"MarketForecaster/internal/recorder"
	"MarketForecaster/internal/scheduler"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		logging.Setup("info")
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.Log.Level)
	log.Info().Msg("MarketForecaster starting...")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fetcher, err := collector.NewFetcher(cfg.DataSource.Source, cfg.DataSource.BaseURL,
		cfg.DataSource.APIKey, cfg.DataSource.FilePath, cfg.Proxy)
	if err != nil {
		log.Fatal().Err(err).Msg("init fetcher")
	}
	log.Info().Str("source", fetcher.Name()).Str("symbol", cfg.DataSource.Symbol).Msg("data source")

	pipe, err := pipeline.FromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init pipeline")
	}

	// Init recorder
	var rec recorder.Recorder = recorder.NewNoopRecorder()
	var sqliteRec *recorder.SQLiteRecorder
	if cfg.Database.SQLitePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
			log.Warn().Err(err).Msg("create database dir")
		}
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			rec, sqliteRec = sr, sr
			defer sr.Close()
		}
	}

	store, closeStore, err := openStore(ctx, cfg, sqliteRec)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("init model store")
	}
	defer closeStore()

	var sender notifier.Sender = notifier.NewLogNotifier()
	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sender = tn
	}

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Error().Err(err).Msg("metrics server")
			}
		}()
	}

	sched := scheduler.NewScheduler(ctx, scheduler.Deps{
		Collector: collector.NewCollector(fetcher),
		Pipeline:  pipe,
		Store:     store,
		Notifier:  sender,
		Recorder:  rec,
		Metrics:   m,
	}, scheduler.Options{
		Symbol:      cfg.DataSource.Symbol,
		Interval:    cfg.DataSource.Interval,
		HistoryDays: cfg.DataSource.HistoryDays,
		Steps:       cfg.Forecast.Steps,
	})
	if err := sched.LoadLatest(ctx); err != nil {
		log.Warn().Err(err).Msg("load published model; next retrain will replace it")
	}
	if err := sched.RegisterAll(cfg.Schedule.RetrainCron, cfg.Schedule.ForecastCron); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("Telegram polling started")
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" || sched.Models.Load() == nil {
		log.Info().Msg("executing retrain task now")
		go sched.RunRetrainNow()
	}

	log.Info().Msg("MarketForecaster is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping...")
}

// openStore returns the configured artifact backend and its cleanup.
func openStore(ctx context.Context, cfg *config.Config, sqliteRec *recorder.SQLiteRecorder) (artifact.BlobStore, func(), error) {
	noop := func() {}
	switch strings.ToLower(cfg.Storage.Backend) {
	case "redis":
		store, client, err := artifact.NewRedisStore(ctx, cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { client.Close() }, nil
	case "sqlite":
		if sqliteRec != nil {
			return sqliteRec, noop, nil
		}
		log.Warn().Msg("sqlite recorder unavailable, storing models on disk")
	}
	return artifact.NewFileStore(cfg.Storage.ModelDir), noop, nil
}
