package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"MarketForecaster/internal/artifact"
	"MarketForecaster/internal/collector"
	"MarketForecaster/internal/forecast"
	"MarketForecaster/internal/logging"
	"MarketForecaster/internal/metrics"
	"MarketForecaster/internal/model"
	"MarketForecaster/internal/modelstore"
	"MarketForecaster/internal/notifier"
	"MarketForecaster/internal/pipeline"
	"MarketForecaster/internal/recorder"
	"MarketForecaster/internal/trainer"
)

const sendRetries = 3

// Deps are the collaborators of the scheduled jobs.
type Deps struct {
	Collector *collector.Collector
	Pipeline  *pipeline.Pipeline
	Store     artifact.BlobStore
	Notifier  notifier.Sender
	Recorder  recorder.Recorder
	Metrics   *metrics.Metrics
}

// Options selects what is fetched and how far ahead to forecast.
type Options struct {
	Symbol      string
	Interval    string
	HistoryDays int
	Steps       int
}

// Scheduler manages the retrain and forecast cron jobs and serves chat commands.
type Scheduler struct {
	Cron   *cron.Cron
	Models forecast.Holder
	Ctx    context.Context

	deps Deps
	opts Options
	log  zerolog.Logger

	// retrainMu serialises fits; forecasts keep reading the previous model meanwhile.
	retrainMu sync.Mutex
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, deps Deps, opts Options) *Scheduler {
	if opts.Steps <= 0 {
		opts.Steps = 1
	}
	return &Scheduler{
		Cron: cron.New(cron.WithSeconds()),
		Ctx:  ctx,
		deps: deps,
		opts: opts,
		log:  logging.Component("scheduler"),
	}
}

// RegisterAll registers the retrain and forecast jobs.
func (s *Scheduler) RegisterAll(retrainCron, forecastCron string) error {
	if _, err := s.Cron.AddFunc(retrainCron, s.retrainTask); err != nil {
		return fmt.Errorf("register retrain task: %w", err)
	}
	if _, err := s.Cron.AddFunc(forecastCron, s.forecastTask); err != nil {
		return fmt.Errorf("register forecast task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// LoadLatest installs the most recently published model, if any.
func (s *Scheduler) LoadLatest(ctx context.Context) error {
	blob, err := s.deps.Store.Get(ctx, artifact.LatestKey)
	if errors.Is(err, artifact.ErrNotFound) {
		s.log.Info().Str("store", s.deps.Store.Name()).Msg("no published model yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: get latest: %w", s.deps.Store.Name(), err)
	}
	m, err := modelstore.Load(blob)
	if err != nil {
		return err
	}
	s.install(m)
	s.log.Info().Str("model_id", m.ID).Str("family", m.Family).Msg("model loaded")
	return nil
}

func (s *Scheduler) request() collector.Request {
	return collector.NewRequest(s.opts.Symbol, s.opts.Interval, s.opts.HistoryDays)
}

func (s *Scheduler) collect(ctx context.Context) (*model.PriceSeries, error) {
	series, err := s.deps.Collector.Collect(ctx, s.request())
	if err != nil {
		s.deps.Metrics.FetchErrors.WithLabelValues(s.deps.Collector.Fetcher.Name()).Inc()
		return nil, err
	}
	s.deps.Metrics.SeriesBars.Set(float64(series.Len()))
	return series, nil
}

// Retrain fetches fresh history, fits a model, publishes it and swaps it in.
func (s *Scheduler) Retrain(ctx context.Context) (*trainer.TrainedModel, error) {
	s.retrainMu.Lock()
	defer s.retrainMu.Unlock()

	start := time.Now()
	family := s.deps.Pipeline.Regressor.Family()
	m, err := s.retrain(ctx)
	s.deps.Metrics.TrainingDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.deps.Metrics.TrainingRuns.WithLabelValues(family, "error").Inc()
		return nil, err
	}
	s.deps.Metrics.TrainingRuns.WithLabelValues(family, "ok").Inc()
	return m, nil
}

func (s *Scheduler) retrain(ctx context.Context) (*trainer.TrainedModel, error) {
	series, err := s.collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	res, err := s.deps.Pipeline.Run(series)
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	m := res.Model

	blob, err := modelstore.Save(m)
	if err != nil {
		return nil, err
	}
	if err := artifact.Publish(ctx, s.deps.Store, m.ID, blob); err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}
	prev := s.install(m)

	ev := s.log.Info().Str("model_id", m.ID).Str("family", m.Family).
		Int("train_rows", m.Meta.TrainRows).Int("test_rows", m.Meta.TestRows).
		Float64("test_mse", m.Meta.TestMSE)
	if prev != nil {
		ev = ev.Str("replaced", prev.ID)
	}
	ev.Msg("model retrained")

	if err := s.deps.Recorder.RecordTrainingRun(&recorder.TrainingRun{
		ModelID:   m.ID,
		Symbol:    series.Symbol,
		Family:    m.Family,
		Features:  len(m.Schema),
		TrainRows: m.Meta.TrainRows,
		TestRows:  m.Meta.TestRows,
		TrainMSE:  m.Meta.TrainMSE,
		TestMSE:   m.Meta.TestMSE,
		FittedAt:  m.Meta.FittedAt,
	}); err != nil {
		s.log.Error().Err(err).Msg("record training run")
	}
	return m, nil
}

func (s *Scheduler) install(m *trainer.TrainedModel) *trainer.TrainedModel {
	s.deps.Metrics.TestMSE.Set(m.Meta.TestMSE)
	s.deps.Metrics.TrainRows.Set(float64(m.Meta.TrainRows))
	return s.Models.Swap(m)
}

// Forecast runs the configured number of steps on fresh history with the current model.
func (s *Scheduler) Forecast(ctx context.Context) (*model.PriceSeries, []model.Forecast, error) {
	if s.Models.Load() == nil {
		return nil, nil, forecast.ErrNoModel
	}
	series, err := s.collect(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("collect: %w", err)
	}
	m, steps, err := s.Models.Iterate(series, s.opts.Steps)
	if err != nil {
		return nil, nil, err
	}
	for _, f := range steps {
		s.deps.Metrics.ObserveForecast(f.Horizon, f.PredictedPctChange)
		if err := s.deps.Recorder.RecordForecast(&recorder.ForecastEvent{
			ModelID:   m.ID,
			Symbol:    series.Symbol,
			Anchor:    f.Anchor,
			Horizon:   f.Horizon,
			PctChange: f.PredictedPctChange,
			Price:     f.PredictedPrice,
		}); err != nil {
			s.log.Error().Err(err).Msg("record forecast")
		}
	}
	s.log.Info().Str("model_id", m.ID).Int("steps", len(steps)).
		Float64("pct_change", steps[0].PredictedPctChange).Msg("forecast published")
	return series, steps, nil
}

// RunRetrainNow executes the retrain job immediately (for RUN_ON_START).
func (s *Scheduler) RunRetrainNow() {
	s.retrainTask()
}

func (s *Scheduler) retrainTask() {
	s.log.Info().Msg("running retrain task")
	m, err := s.Retrain(s.Ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("retrain")
		s.trySend(notifier.FormatError("Retrain", err))
		return
	}
	s.trySend("✅ Retrained\n\n" + notifier.FormatModelReport(m))
}

func (s *Scheduler) forecastTask() {
	s.log.Info().Msg("running forecast task")
	if s.Models.Load() == nil {
		if _, err := s.Retrain(s.Ctx); err != nil {
			s.log.Error().Err(err).Msg("initial retrain")
			s.trySend(notifier.FormatError("Forecast", err))
			return
		}
	}
	s.trySend(s.forecastReport(s.Ctx))
}

func (s *Scheduler) forecastReport(ctx context.Context) string {
	series, steps, err := s.Forecast(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("forecast")
		return notifier.FormatError("Forecast", err)
	}
	return notifier.FormatForecastReport(series, steps, s.Models.Load())
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	// Group chats append the bot name: /forecast@SomeBot.
	cmd, _, _ := strings.Cut(strings.ToLower(command), "@")
	switch cmd {
	case "/forecast":
		if s.Models.Load() == nil {
			return notifier.FormatModelReport(nil)
		}
		return s.forecastReport(ctx)
	case "/model":
		return notifier.FormatModelReport(s.Models.Load())
	case "/retrain":
		m, err := s.Retrain(ctx)
		if err != nil {
			return notifier.FormatError("Retrain", err)
		}
		return "✅ Retrained\n\n" + notifier.FormatModelReport(m)
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.deps.Notifier.SendWithRetry(s.Ctx, text, sendRetries); err != nil {
		s.log.Error().Err(err).Msg("send notification")
	}
}
