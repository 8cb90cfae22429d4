package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const defaultListLimit = 50

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	insertRunStmt *sql.Stmt
	getRunStmt    *sql.Stmt
}

var (
	sqliteOpen              = sql.Open
	sqlitePrepareStatements = (*SQLiteStore).prepareStatements
)

// NewSQLiteStore opens or creates a SQLite store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sqliteOpen("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db}
	if err := sqlitePrepareStatements(st); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			task TEXT NOT NULL,
			init_checkpoint TEXT NOT NULL,
			data_dir TEXT NOT NULL,
			max_seq_length INTEGER NOT NULL,
			batch_size INTEGER NOT NULL,
			learning_rate REAL NOT NULL,
			num_train_epochs INTEGER NOT NULL,
			other_parameters TEXT NOT NULL,
			accuracy REAL,
			model_dir TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_task ON runs(task)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_checkpoint ON runs(init_checkpoint)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}

	ctx := context.Background()

	insert, err := s.db.PrepareContext(ctx, `
		INSERT INTO runs (
			id, created_at, task, init_checkpoint, data_dir, max_seq_length,
			batch_size, learning_rate, num_train_epochs, other_parameters, accuracy, model_dir
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("store: prepare insert run: %w", err)
	}
	s.insertRunStmt = insert

	get, err := s.db.PrepareContext(ctx, `
		SELECT id, created_at, task, init_checkpoint, data_dir, max_seq_length,
			batch_size, learning_rate, num_train_epochs, other_parameters, accuracy, model_dir
		FROM runs WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("store: prepare get run: %w", err)
	}
	s.getRunStmt = get

	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	for _, stmt := range []*sql.Stmt{s.insertRunStmt, s.getRunStmt} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRun persists one run record.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) error {
	if s == nil || s.insertRunStmt == nil {
		return errors.New("store: nil sqlite store")
	}
	if run == nil {
		return errors.New("store: nil run record")
	}
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("store: empty run id")
	}

	var accuracy sql.NullFloat64
	if run.Accuracy != nil {
		accuracy = sql.NullFloat64{Float64: *run.Accuracy, Valid: true}
	}

	_, err := s.insertRunStmt.ExecContext(ctx,
		run.ID, run.CreatedAt.UTC().UnixMilli(), run.Task, run.InitCheckpoint, run.DataDir,
		run.MaxSeqLength, run.BatchSize, run.LearningRate, run.NumTrainEpochs,
		run.OtherParameters, accuracy, run.ModelDir,
	)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}
	return nil
}

// GetRun returns one run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	if s == nil || s.getRunStmt == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	row := s.getRunStmt.QueryRowContext(ctx, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: run %q not found", id)
	}
	return run, err
}

// ListRuns returns runs matching the filter, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil sqlite store")
	}

	query := `
		SELECT id, created_at, task, init_checkpoint, data_dir, max_seq_length,
			batch_size, learning_rate, num_train_epochs, other_parameters, accuracy, model_dir
		FROM runs WHERE 1=1`
	var args []any
	if v := strings.TrimSpace(filter.Task); v != "" {
		query += " AND task = ?"
		args = append(args, v)
	}
	if v := strings.TrimSpace(filter.Checkpoint); v != "" {
		query += " AND init_checkpoint LIKE ?"
		args = append(args, "%"+v+"%")
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UTC().UnixMilli())
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// BestRuns returns the highest-accuracy runs for a task. Runs without an
// accuracy are excluded.
func (s *SQLiteStore) BestRuns(ctx context.Context, task string, limit int) ([]*RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, created_at, task, init_checkpoint, data_dir, max_seq_length,
			batch_size, learning_rate, num_train_epochs, other_parameters, accuracy, model_dir
		FROM runs WHERE accuracy IS NOT NULL`
	var args []any
	if v := strings.TrimSpace(task); v != "" {
		query += " AND task = ?"
		args = append(args, v)
	}
	query += " ORDER BY accuracy DESC, created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: best runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		run       RunRecord
		createdAt int64
		accuracy  sql.NullFloat64
	)
	err := row.Scan(&run.ID, &createdAt, &run.Task, &run.InitCheckpoint, &run.DataDir,
		&run.MaxSeqLength, &run.BatchSize, &run.LearningRate, &run.NumTrainEpochs,
		&run.OtherParameters, &accuracy, &run.ModelDir)
	if err != nil {
		return nil, err
	}
	run.CreatedAt = time.UnixMilli(createdAt).UTC()
	if accuracy.Valid {
		v := accuracy.Float64
		run.Accuracy = &v
	}
	return &run, nil
}

func scanRuns(rows *sql.Rows) ([]*RunRecord, error) {
	var out []*RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate runs: %w", err)
	}
	return out, nil
}
