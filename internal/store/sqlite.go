package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/models"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout is fixed width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists cache entries and discovery runs.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens or creates a SQLite database at dbPath. ":memory:"
// opens a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = dbPath + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tool_cache (
		cache_key   TEXT PRIMARY KEY,
		tool_name   TEXT NOT NULL,
		tool_params TEXT NOT NULL,
		result      TEXT NOT NULL,
		expires_at  TEXT NOT NULL,
		hit_count   INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_tool_cache_expires ON tool_cache(expires_at);
	CREATE INDEX IF NOT EXISTS idx_tool_cache_tool ON tool_cache(tool_name);

	CREATE TABLE IF NOT EXISTS discovery_runs (
		run_id     TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		inputs     TEXT NOT NULL,
		outputs    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_user_created ON discovery_runs(user_id, created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetEntry reads a live cache entry and increments its hit count in the same
// transaction. Expired entries are deleted and reported as ErrNotFound.
func (s *SQLiteStore) GetEntry(ctx context.Context, key string) (*models.CacheEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var e models.CacheEntry
	var expires string
	err = tx.QueryRowContext(ctx,
		`SELECT cache_key, tool_name, tool_params, result, expires_at, hit_count
		 FROM tool_cache WHERE cache_key = ?`, key).
		Scan(&e.CacheKey, &e.ToolName, &e.Params, &e.Result, &expires, &e.HitCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select cache entry: %w", err)
	}

	e.ExpiresAt, err = time.Parse(timeLayout, expires)
	if err != nil || e.Expired(s.now()) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tool_cache WHERE cache_key = ?`, key); err != nil {
			return nil, fmt.Errorf("evict cache entry: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE tool_cache SET hit_count = hit_count + 1 WHERE cache_key = ?`, key); err != nil {
		return nil, fmt.Errorf("touch cache entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	e.HitCount++
	return &e, nil
}

// PutEntry inserts or replaces an entry with the given TTL. The hit count
// restarts at zero.
func (s *SQLiteStore) PutEntry(ctx context.Context, e models.CacheEntry, ttl time.Duration) error {
	expires := s.now().UTC().Add(ttl).Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tool_cache (cache_key, tool_name, tool_params, result, expires_at, hit_count)
		 VALUES (?, ?, ?, ?, ?, 0)
		 ON CONFLICT(cache_key) DO UPDATE SET
			tool_name = excluded.tool_name,
			tool_params = excluded.tool_params,
			result = excluded.result,
			expires_at = excluded.expires_at,
			hit_count = 0`,
		e.CacheKey, e.ToolName, e.Params, e.Result, expires)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return tx.Commit()
}

// DeleteEntry removes an entry if present.
func (s *SQLiteStore) DeleteEntry(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tool_cache WHERE cache_key = ?`, key)
	return err
}

// PurgeExpired deletes every expired entry and returns how many were removed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tool_cache WHERE expires_at <= ?`, s.now().UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return res.RowsAffected()
}

// CacheStats summarises the cache per tool name.
type CacheStats struct {
	ToolName string `json:"tool_name"`
	Entries  int    `json:"entries"`
	Hits     int    `json:"hits"`
}

// Stats returns per-tool entry and hit totals.
func (s *SQLiteStore) Stats(ctx context.Context) ([]CacheStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tool_name, COUNT(*), COALESCE(SUM(hit_count), 0)
		 FROM tool_cache GROUP BY tool_name ORDER BY tool_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CacheStats
	for rows.Next() {
		var st CacheStats
		if err := rows.Scan(&st.ToolName, &st.Entries, &st.Hits); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
