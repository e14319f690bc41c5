package sqlite

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

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Store struct {
	db *sql.DB
}

type RunRecord struct {
	ID                 string
	Symbol             string
	InitialCapital     string
	StrategyPreference string
	RiskTolerance      string
	ConsiderNews       bool
	Status             string
	FailedRole         string
	Error              string
	Markdown           string
	StartedAt          time.Time
	FinishedAt         time.Time
}

type SectionRecord struct {
	RunID     string
	Seq       int
	Role      string
	Content   string
	ToolCalls string
}

type RunWithMeta struct {
	RunRecord
	RowID     int64
	CreatedAt string
}

type SectionWithMeta struct {
	SectionRecord
	CreatedAt string
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    initial_capital TEXT NOT NULL,
    strategy_preference TEXT NOT NULL,
    risk_tolerance TEXT NOT NULL,
    consider_news INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    failed_role TEXT,
    error TEXT,
    markdown TEXT NOT NULL DEFAULT '',
    started_at DATETIME NOT NULL,
    finished_at DATETIME NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sections (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    tool_calls TEXT NOT NULL DEFAULT '[]',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_symbol ON runs(symbol);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// SaveRun upserts a run together with its sections. Sections are replaced
// wholesale so re-saving a run never leaves stale rows behind.
func (s *Store) SaveRun(ctx context.Context, run RunRecord, sections []SectionRecord) error {
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("run id is required")
	}
	if run.Status == "" {
		run.Status = StatusCompleted
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (id, symbol, initial_capital, strategy_preference, risk_tolerance, consider_news,
                  status, failed_role, error, markdown, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    symbol=excluded.symbol,
    initial_capital=excluded.initial_capital,
    strategy_preference=excluded.strategy_preference,
    risk_tolerance=excluded.risk_tolerance,
    consider_news=excluded.consider_news,
    status=excluded.status,
    failed_role=excluded.failed_role,
    error=excluded.error,
    markdown=excluded.markdown,
    started_at=excluded.started_at,
    finished_at=excluded.finished_at,
    updated_at=CURRENT_TIMESTAMP
`, run.ID, run.Symbol, run.InitialCapital, run.StrategyPreference, run.RiskTolerance, run.ConsiderNews,
		run.Status, run.FailedRole, run.Error, run.Markdown, run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("clear sections: %w", err)
	}

	for _, sec := range sections {
		if sec.Seq <= 0 {
			return fmt.Errorf("section seq must be positive")
		}
		if strings.TrimSpace(sec.Role) == "" {
			return fmt.Errorf("section role is required")
		}
		toolCalls := sec.ToolCalls
		if toolCalls == "" {
			toolCalls = "[]"
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO sections (run_id, seq, role, content, tool_calls)
VALUES (?, ?, ?, ?, ?)
`, run.ID, sec.Seq, sec.Role, sec.Content, toolCalls)
		if err != nil {
			return fmt.Errorf("insert section: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save run: %w", err)
	}
	return nil
}

// ListRuns pages through runs newest first, keyed by rowid.
func (s *Store) ListRuns(ctx context.Context, cursor int64, limit int) ([]RunWithMeta, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT rowid, id, symbol, initial_capital, strategy_preference, risk_tolerance, consider_news,
       status, failed_role, error, markdown, started_at, finished_at, created_at
FROM runs
WHERE (? = 0 OR rowid < ?)
ORDER BY rowid DESC
LIMIT ?
`, cursor, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunWithMeta
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs rows: %w", err)
	}
	return runs, nil
}

// GetRun returns nil when no run with the given id exists.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunWithMeta, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, fmt.Errorf("run id is required")
	}
	row := s.db.QueryRowContext(ctx, `
SELECT rowid, id, symbol, initial_capital, strategy_preference, risk_tolerance, consider_news,
       status, failed_role, error, markdown, started_at, finished_at, created_at
FROM runs
WHERE id = ?
LIMIT 1
`, runID)

	rec, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunWithMeta, error) {
	var rec RunWithMeta
	var failedRole, errMsg sql.NullString
	err := row.Scan(&rec.RowID, &rec.ID, &rec.Symbol, &rec.InitialCapital, &rec.StrategyPreference,
		&rec.RiskTolerance, &rec.ConsiderNews, &rec.Status, &failedRole, &errMsg, &rec.Markdown,
		&rec.StartedAt, &rec.FinishedAt, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	rec.FailedRole = failedRole.String
	rec.Error = errMsg.String
	return &rec, nil
}

// ListSections returns a run's sections in hand-off order.
func (s *Store) ListSections(ctx context.Context, runID string) ([]SectionWithMeta, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, fmt.Errorf("run id is required")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, seq, role, content, tool_calls, created_at
FROM sections
WHERE run_id = ?
ORDER BY seq ASC
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	var secs []SectionWithMeta
	for rows.Next() {
		var rec SectionWithMeta
		if err := rows.Scan(&rec.RunID, &rec.Seq, &rec.Role, &rec.Content, &rec.ToolCalls, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		secs = append(secs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sections rows: %w", err)
	}
	return secs, nil
}
