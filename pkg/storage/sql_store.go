package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/polisai/polis-dag/pkg/domain"
)

// SQLRunStore implements RunStore over database/sql. The SQLite and Postgres
// constructors differ only in connection setup and placeholder style.
type SQLRunStore struct {
	db       *sql.DB
	numbered bool
}

var (
	_ RunStore = (*SQLRunStore)(nil)
	_ RunStore = (*MemoryRunStore)(nil)
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS pipeline_defs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		def TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		id TEXT PRIMARY KEY,
		pipeline_id TEXT,
		name TEXT,
		status TEXT NOT NULL,
		log TEXT NOT NULL,
		result TEXT,
		error TEXT,
		started_at TEXT NOT NULL,
		ended_at TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs(status)`,
	`CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started ON pipeline_runs(started_at)`,
}

func (s *SQLRunStore) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLRunStore) rebind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Ping verifies the database is reachable.
func (s *SQLRunStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLRunStore) SavePipeline(ctx context.Context, p domain.StoredPipeline) error {
	def, err := json.Marshal(p.Definition)
	if err != nil {
		return fmt.Errorf("failed to encode definition: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO pipeline_defs (id, name, def, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, def = excluded.def`),
		p.ID, p.Name, string(def), formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save pipeline: %w", err)
	}
	return nil
}

func (s *SQLRunStore) GetPipeline(ctx context.Context, id string) (*domain.StoredPipeline, error) {
	var (
		p       domain.StoredPipeline
		def     string
		created string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, name, def, created_at FROM pipeline_defs WHERE id = ?`), id).
		Scan(&p.ID, &p.Name, &def, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPipelineNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline: %w", err)
	}
	if err := json.Unmarshal([]byte(def), &p.Definition); err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return &p, nil
}

func (s *SQLRunStore) CreateRun(ctx context.Context, rec *domain.RunRecord) error {
	args, err := runArgs(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO pipeline_runs (pipeline_id, name, status, log, result, error, started_at, ended_at, id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`), args...)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (s *SQLRunStore) UpdateRun(ctx context.Context, rec *domain.RunRecord) error {
	args, err := runArgs(rec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE pipeline_runs SET pipeline_id = ?, name = ?, status = ?, log = ?, result = ?,
			error = ?, started_at = ?, ended_at = ?
		WHERE id = ?`), args...)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrRunNotFound, rec.ID)
	}
	return nil
}

// runArgs encodes rec in the column order shared by CreateRun and UpdateRun,
// with the id last.
func runArgs(rec *domain.RunRecord) ([]any, error) {
	logLines := rec.Log
	if logLines == nil {
		logLines = []string{}
	}
	logJSON, err := json.Marshal(logLines)
	if err != nil {
		return nil, fmt.Errorf("failed to encode log: %w", err)
	}

	var result sql.NullString
	if rec.Result != nil {
		raw, err := json.Marshal(rec.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to encode result: %w", err)
		}
		result = sql.NullString{String: string(raw), Valid: true}
	}

	var ended sql.NullString
	if rec.EndedAt != nil {
		ended = sql.NullString{String: formatTime(*rec.EndedAt), Valid: true}
	}

	return []any{
		nullIfEmpty(rec.PipelineID),
		nullIfEmpty(rec.Name),
		string(rec.Status),
		string(logJSON),
		result,
		nullIfEmpty(rec.Error),
		formatTime(rec.StartedAt),
		ended,
		rec.ID,
	}, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const runColumns = `id, pipeline_id, name, status, log, result, error, started_at, ended_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.RunRecord, error) {
	var (
		rec                      domain.RunRecord
		pipelineID, name, errMsg sql.NullString
		status, logJSON, started string
		result, ended            sql.NullString
	)
	if err := row.Scan(&rec.ID, &pipelineID, &name, &status, &logJSON, &result, &errMsg, &started, &ended); err != nil {
		return nil, err
	}

	rec.PipelineID = pipelineID.String
	rec.Name = name.String
	rec.Status = domain.RunStatus(status)
	rec.Error = errMsg.String

	if err := json.Unmarshal([]byte(logJSON), &rec.Log); err != nil {
		return nil, fmt.Errorf("failed to decode log: %w", err)
	}
	if result.Valid {
		if err := json.Unmarshal([]byte(result.String), &rec.Result); err != nil {
			return nil, fmt.Errorf("failed to decode result: %w", err)
		}
	}

	var err error
	if rec.StartedAt, err = parseTime(started); err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if ended.Valid {
		t, err := parseTime(ended.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ended_at: %w", err)
		}
		rec.EndedAt = &t
	}
	return &rec, nil
}

func (s *SQLRunStore) GetRun(ctx context.Context, id string) (*domain.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+runColumns+` FROM pipeline_runs WHERE id = ?`), id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return rec, nil
}

func (s *SQLRunStore) ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, listLimit(filter))

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	out := []domain.RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *SQLRunStore) Close() error {
	return s.db.Close()
}
