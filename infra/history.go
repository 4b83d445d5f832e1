package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunRecord summarises one workflow run. Payloads are never kept.
type RunRecord struct {
	ID         string       `json:"id"`
	Workflow   string       `json:"workflow"`
	Target     string       `json:"target,omitempty"`
	Status     RunStatus    `json:"status"`
	FailedStep string       `json:"failed_step,omitempty"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Steps      []StepRecord `json:"steps,omitempty"`
}

func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// StepRecord is the outcome of one step within a run.
type StepRecord struct {
	StepID   string `json:"step_id"`
	StepName string `json:"step_name"`
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// fixed width so timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	workflow    TEXT NOT NULL,
	target      TEXT,
	status      TEXT NOT NULL,
	failed_step TEXT,
	error       TEXT,
	started_at  TEXT NOT NULL,
	finished_at TEXT
);
CREATE TABLE IF NOT EXISTS run_steps (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	step_index INTEGER NOT NULL,
	step_id    TEXT NOT NULL,
	step_name  TEXT NOT NULL,
	step_type  TEXT NOT NULL,
	success    BOOLEAN NOT NULL,
	error      TEXT,
	PRIMARY KEY (run_id, step_index)
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);
`

// History stores run records in SQLite ("sqlite") or Postgres ("pgx").
type History struct {
	db     *sql.DB
	driver string
}

// OpenHistory opens the database and creates the tables when missing. For
// SQLite the dsn is a file path whose directory is created.
func OpenHistory(ctx context.Context, driver, dsn string) (*History, error) {
	switch driver {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	case "pgx":
	default:
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// single connection serialises writers on the file
		db.SetMaxOpenConns(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	h := &History{db: db, driver: driver}
	if err := h.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

func (h *History) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := h.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate history: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func (h *History) rebind(q string) string {
	if h.driver != "pgx" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (h *History) Close() error { return h.db.Close() }

// Record inserts or replaces a run and its steps.
func (h *History) Record(ctx context.Context, run RunRecord) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, h.rebind(`DELETE FROM run_steps WHERE run_id = ?`), run.ID); err != nil {
		return fmt.Errorf("clear steps: %w", err)
	}
	if _, err := tx.ExecContext(ctx, h.rebind(`DELETE FROM runs WHERE id = ?`), run.ID); err != nil {
		return fmt.Errorf("clear run: %w", err)
	}
	var finished any
	if !run.FinishedAt.IsZero() {
		finished = formatTime(run.FinishedAt)
	}
	_, err = tx.ExecContext(ctx, h.rebind(
		`INSERT INTO runs(id, workflow, target, status, failed_step, error, started_at, finished_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID, run.Workflow, run.Target, string(run.Status), run.FailedStep, run.Error, formatTime(run.StartedAt), finished)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for i, s := range run.Steps {
		_, err := tx.ExecContext(ctx, h.rebind(
			`INSERT INTO run_steps(run_id, step_index, step_id, step_name, step_type, success, error)
			 VALUES(?, ?, ?, ?, ?, ?, ?)`),
			run.ID, i, s.StepID, s.StepName, s.Type, s.Success, s.Error)
		if err != nil {
			return fmt.Errorf("insert step %s: %w", s.StepID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent lists the newest runs first, without their steps.
func (h *History) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx, h.rebind(
		`SELECT id, workflow, target, status, failed_step, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := []RunRecord{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns one run with its steps.
func (h *History) Get(ctx context.Context, id string) (RunRecord, error) {
	row := h.db.QueryRowContext(ctx, h.rebind(
		`SELECT id, workflow, target, status, failed_step, error, started_at, finished_at
		 FROM runs WHERE id = ?`), id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, err
	}

	rows, err := h.db.QueryContext(ctx, h.rebind(
		`SELECT step_id, step_name, step_type, success, error
		 FROM run_steps WHERE run_id = ? ORDER BY step_index`), id)
	if err != nil {
		return RunRecord{}, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s StepRecord
		var msg sql.NullString
		if err := rows.Scan(&s.StepID, &s.StepName, &s.Type, &s.Success, &msg); err != nil {
			return RunRecord{}, fmt.Errorf("scan step: %w", err)
		}
		s.Error = nullStr(msg)
		r.Steps = append(r.Steps, s)
	}
	return r, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanRun(s scanner) (RunRecord, error) {
	var r RunRecord
	var status, started string
	var target, failed, msg, finished sql.NullString
	if err := s.Scan(&r.ID, &r.Workflow, &target, &status, &failed, &msg, &started, &finished); err != nil {
		return RunRecord{}, err
	}
	r.Target = nullStr(target)
	r.Status = RunStatus(status)
	r.FailedStep = nullStr(failed)
	r.Error = nullStr(msg)
	r.StartedAt = parseTime(started)
	if finished.Valid {
		r.FinishedAt = parseTime(finished.String)
	}
	return r, nil
}
