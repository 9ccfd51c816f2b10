package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"MarketForecaster/internal/artifact"
	"MarketForecaster/internal/logging"
)

// SQLiteRecorder persists training runs and forecasts to SQLite. It also stores model
// artifacts, so it can serve as the daemon's artifact.BlobStore.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the daemon writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logging.Component("recorder")}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.logger.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS training_runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			model_id    TEXT NOT NULL,
			symbol      TEXT,
			family      TEXT,
			features    INTEGER,
			train_rows  INTEGER,
			test_rows   INTEGER,
			train_mse   REAL,
			test_mse    REAL,
			fitted_at   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_training_ts ON training_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS forecasts (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			model_id    TEXT NOT NULL,
			symbol      TEXT,
			anchor      INTEGER,
			horizon     INTEGER,
			pct_change  REAL,
			price       REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_forecasts_ts ON forecasts(timestamp)`,

		`CREATE TABLE IF NOT EXISTS model_blobs (
			key         TEXT PRIMARY KEY,
			blob        BLOB NOT NULL,
			updated_at  INTEGER NOT NULL
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordTrainingRun(run *TrainingRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO training_runs
		(timestamp, model_id, symbol, family, features, train_rows, test_rows, train_mse, test_mse, fitted_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), run.ModelID, run.Symbol, run.Family, run.Features,
		run.TrainRows, run.TestRows, run.TrainMSE, run.TestMSE, run.FittedAt.Unix(),
	)
	return err
}

func (r *SQLiteRecorder) RecordForecast(evt *ForecastEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO forecasts
		(timestamp, model_id, symbol, anchor, horizon, pct_change, price)
		VALUES (?,?,?,?,?,?,?)`,
		time.Now().Unix(), evt.ModelID, evt.Symbol, evt.Anchor.Unix(),
		evt.Horizon, evt.PctChange, evt.Price,
	)
	return err
}

// LatestTrainingRun returns the most recent training run, or nil if there is none.
func (r *SQLiteRecorder) LatestTrainingRun(ctx context.Context) (*TrainingRun, error) {
	var run TrainingRun
	var fitted int64
	err := r.db.QueryRowContext(ctx, `SELECT model_id, symbol, family, features, train_rows, test_rows,
		train_mse, test_mse, fitted_at FROM training_runs ORDER BY id DESC LIMIT 1`).Scan(
		&run.ModelID, &run.Symbol, &run.Family, &run.Features, &run.TrainRows, &run.TestRows,
		&run.TrainMSE, &run.TestMSE, &fitted,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.FittedAt = time.Unix(fitted, 0).UTC()
	return &run, nil
}

// CountForecasts returns how many forecasts were recorded for modelID.
func (r *SQLiteRecorder) CountForecasts(ctx context.Context, modelID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM forecasts WHERE model_id = ?`, modelID).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Name() string { return "sqlite" }

// Put upserts an artifact blob.
func (r *SQLiteRecorder) Put(ctx context.Context, key string, blob []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO model_blobs (key, blob, updated_at) VALUES (?,?,?)
		ON CONFLICT(key) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		key, blob, time.Now().Unix())
	return err
}

func (r *SQLiteRecorder) Get(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := r.db.QueryRowContext(ctx, `SELECT blob FROM model_blobs WHERE key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, artifact.ErrNotFound
	}
	return blob, err
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}

var _ artifact.BlobStore = (*SQLiteRecorder)(nil)
