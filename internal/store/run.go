package store

import (
	"context"
	"database/sql"
	"math"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"sifsim/internal/config"
	"sifsim/internal/trainer"
)

const (
	insertRun = `INSERT INTO run (started_at, model, dataset, seed, unsupervised, config, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	finishRun = `UPDATE run SET finished_at = ?, status = ?, best_epoch = ?, error = ? WHERE id = ?`

	insertEvaluation = `INSERT INTO evaluation (run_id, split, epoch, loss, pairs, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	insertMetric = `INSERT INTO metric (evaluation_id, name, value) VALUES (?, ?, ?)`

	selectRuns = `SELECT id, started_at, finished_at, model, dataset, seed, unsupervised, status, best_epoch, error
		FROM run ORDER BY id DESC LIMIT ?`

	selectLastMetrics = `SELECT m.name, m.value
		FROM metric m
		JOIN evaluation e ON e.id = m.evaluation_id
		WHERE e.id = (SELECT MAX(id) FROM evaluation WHERE run_id = ? AND split = ?)`
)

// Run summarizes one stored run.
type Run struct {
	ID           int64              `json:"id" yaml:"id"`
	StartedAt    string             `json:"started_at" yaml:"started_at"`
	FinishedAt   string             `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Model        string             `json:"model" yaml:"model"`
	Dataset      string             `json:"dataset" yaml:"dataset"`
	Seed         int64              `json:"seed" yaml:"seed"`
	Unsupervised bool               `json:"unsupervised" yaml:"unsupervised"`
	Status       string             `json:"status" yaml:"status"`
	BestEpoch    int                `json:"best_epoch,omitempty" yaml:"best_epoch,omitempty"`
	Error        string             `json:"error,omitempty" yaml:"error,omitempty"`
	Test         map[string]float64 `json:"test,omitempty" yaml:"test,omitempty"`
}

// CreateRun records the start of a run configured by cfg and returns its id.
func CreateRun(db *sql.DB, cfg *config.Config) (int64, error) {
	if db == nil {
		return 0, ErrNotInitialized
	}
	if cfg == nil {
		return 0, errors.New("config is required")
	}

	b, err := yaml.Marshal(cfg)
	if err != nil {
		return 0, errors.Wrap(err, "failed to marshal run config")
	}

	res, err := db.Exec(insertRun, now(), string(cfg.Model), string(cfg.Dataset),
		cfg.Seed, cfg.Unsupervised, string(b), StatusRunning)
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert run")
	}
	return res.LastInsertId()
}

// SaveEvaluation stores one evaluation and its metrics for runID.
// NaN values are stored as NULL.
func SaveEvaluation(ctx context.Context, db *sql.DB, runID int64, ev trainer.Evaluation) error {
	if db == nil {
		return ErrNotInitialized
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, insertEvaluation, runID, ev.Split, ev.Epoch,
		nullable(ev.Loss), len(ev.Predictions), now())
	if err != nil {
		return errors.Wrapf(err, "failed to insert %s evaluation", ev.Split)
	}
	evalID, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to get evaluation id")
	}

	names := make([]string, 0, len(ev.Metrics))
	for name := range ev.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	stmt, err := tx.PrepareContext(ctx, insertMetric)
	if err != nil {
		return errors.Wrap(err, "failed to prepare metric insert statement")
	}
	defer stmt.Close()

	for _, name := range names {
		if _, err := stmt.ExecContext(ctx, evalID, name, nullable(ev.Metrics[name])); err != nil {
			return errors.Wrapf(err, "failed to insert metric %s", name)
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit evaluation")
}

// FinishRun marks runID as done, or failed when runErr is set.
func FinishRun(db *sql.DB, runID int64, res *trainer.Result, runErr error) error {
	if db == nil {
		return ErrNotInitialized
	}

	status := StatusDone
	var msg sql.NullString
	if runErr != nil {
		status = StatusFailed
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	var best sql.NullInt64
	if res != nil {
		best = sql.NullInt64{Int64: int64(res.BestEpoch), Valid: true}
	}

	if _, err := db.Exec(finishRun, now(), status, best, msg, runID); err != nil {
		return errors.Wrapf(err, "failed to finish run %d", runID)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first, each with the metrics of
// its last test evaluation.
func ListRuns(db *sql.DB, limit int) ([]*Run, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = defaultListCap
	}

	rows, err := db.Query(selectRuns, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute select runs statement")
	}
	defer rows.Close()

	list := make([]*Run, 0)
	for rows.Next() {
		r := &Run{}
		var (
			finished sql.NullString
			best     sql.NullInt64
			msg      sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.Model, &r.Dataset,
			&r.Seed, &r.Unsupervised, &r.Status, &best, &msg); err != nil {
			return nil, errors.Wrap(err, "failed to scan run row")
		}
		r.FinishedAt = finished.String
		r.BestEpoch = int(best.Int64)
		r.Error = msg.String
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate run rows")
	}

	for _, r := range list {
		if r.Test, err = lastMetrics(db, r.ID, "test"); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func lastMetrics(db *sql.DB, runID int64, split string) (map[string]float64, error) {
	rows, err := db.Query(selectLastMetrics, runID, split)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to select %s metrics for run %d", split, runID)
	}
	defer rows.Close()

	var out map[string]float64
	for rows.Next() {
		var (
			name  string
			value sql.NullFloat64
		)
		if err := rows.Scan(&name, &value); err != nil {
			return nil, errors.Wrap(err, "failed to scan metric row")
		}
		if !value.Valid {
			continue
		}
		if out == nil {
			out = make(map[string]float64)
		}
		out[name] = value.Float64
	}
	return out, rows.Err()
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// Recorder saves every evaluation of a trainer run under one run id.
type Recorder struct {
	DB    *sql.DB
	RunID int64
}

// RecordEvaluation implements trainer.Recorder.
func (r *Recorder) RecordEvaluation(ctx context.Context, ev trainer.Evaluation) error {
	return SaveEvaluation(ctx, r.DB, r.RunID, ev)
}
