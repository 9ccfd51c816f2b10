package recorder

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"MarketForecaster/internal/artifact"
)

func openTemp(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRecorder: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSQLiteRecorder_TrainingRuns(t *testing.T) {
	r := openTemp(t)
	ctx := context.Background()

	if run, err := r.LatestTrainingRun(ctx); err != nil || run != nil {
		t.Fatalf("empty db: run=%v err=%v", run, err)
	}

	fitted := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"first", "second"} {
		err := r.RecordTrainingRun(&TrainingRun{
			ModelID: id, Symbol: "SPX500", Family: "linear", Features: 15,
			TrainRows: 165, TestRows: 30, TrainMSE: 0.001, TestMSE: 0.002, FittedAt: fitted,
		})
		if err != nil {
			t.Fatalf("RecordTrainingRun: %v", err)
		}
	}

	run, err := r.LatestTrainingRun(ctx)
	if err != nil {
		t.Fatalf("LatestTrainingRun: %v", err)
	}
	if run.ModelID != "second" || run.TestRows != 30 || !run.FittedAt.Equal(fitted) {
		t.Errorf("got %+v", run)
	}
}

func TestSQLiteRecorder_Forecasts(t *testing.T) {
	r := openTemp(t)
	for h := 5; h <= 15; h += 5 {
		err := r.RecordForecast(&ForecastEvent{
			ModelID: "m1", Symbol: "SPX500", Anchor: time.Now(), Horizon: h, PctChange: 0.01, Price: 101,
		})
		if err != nil {
			t.Fatalf("RecordForecast: %v", err)
		}
	}
	n, err := r.CountForecasts(context.Background(), "m1")
	if err != nil {
		t.Fatalf("CountForecasts: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestSQLiteRecorder_BlobStore(t *testing.T) {
	r := openTemp(t)
	ctx := context.Background()

	if _, err := r.Get(ctx, artifact.LatestKey); !errors.Is(err, artifact.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := artifact.Publish(ctx, r, "id-1", []byte("v1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := artifact.Publish(ctx, r, "id-2", []byte("v2")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	got, err := r.Get(ctx, artifact.LatestKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("v2")) {
		t.Errorf("latest = %s, want v2", got)
	}
	if got, _ := r.Get(ctx, "id-1"); !bytes.Equal(got, []byte("v1")) {
		t.Errorf("id-1 = %s, want v1", got)
	}
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	if err := r.RecordTrainingRun(&TrainingRun{}); err != nil {
		t.Error(err)
	}
	if err := r.RecordForecast(&ForecastEvent{}); err != nil {
		t.Error(err)
	}
	if err := r.Close(); err != nil {
		t.Error(err)
	}
}
