// Package metrics exposes daemon metrics for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"MarketForecaster/internal/logging"
)

// Metrics holds all collectors of the forecaster daemon.
type Metrics struct {
	TrainingRuns     *prometheus.CounterVec // labels: family, status
	TrainingDuration prometheus.Histogram
	TestMSE          prometheus.Gauge
	TrainRows        prometheus.Gauge
	Forecasts        prometheus.Counter
	ForecastPct      *prometheus.GaugeVec   // labels: horizon
	FetchErrors      *prometheus.CounterVec // labels: source
	SeriesBars       prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		TrainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecaster_training_runs_total",
			Help: "Model fits by family and outcome",
		}, []string{"family", "status"}),
		TrainingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "forecaster_training_duration_seconds",
			Help:    "Wall time of fetch plus fit",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		TestMSE: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forecaster_model_test_mse",
			Help: "Out-of-sample MSE of the serving model",
		}),
		TrainRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forecaster_model_train_rows",
			Help: "Training rows of the serving model",
		}),
		Forecasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecaster_forecasts_total",
			Help: "Published forecasts",
		}),
		ForecastPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "forecaster_last_forecast_pct_change",
			Help: "Most recent predicted percent change by horizon",
		}, []string{"horizon"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecaster_fetch_errors_total",
			Help: "Failed market data fetches by source",
		}, []string{"source"}),
		SeriesBars: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forecaster_series_bars",
			Help: "Bars in the most recently collected series",
		}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.TrainingRuns,
		m.TrainingDuration,
		m.TestMSE,
		m.TrainRows,
		m.Forecasts,
		m.ForecastPct,
		m.FetchErrors,
		m.SeriesBars,
	)
	return m
}

// ObserveForecast records one published forecast.
func (m *Metrics) ObserveForecast(horizon int, pct float64) {
	m.Forecasts.Inc()
	m.ForecastPct.WithLabelValues(strconv.Itoa(horizon)).Set(pct)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics and /health on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger := logging.Component("metrics")
	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
