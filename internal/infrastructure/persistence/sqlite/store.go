// Package sqlite provides the default, file-backed progress store: one row per
// storage key holding the serialized record, plus an XP history table.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/MirasRuslanJR/PyShark/internal/domain/progress"
	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
)

const domainName = "sqlite"

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store persists progress records in SQLite.
type Store struct {
	db *sqlx.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens (creating if needed) a SQLite database and applies embedded migrations.
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := path
	if path != ":memory:" {
		cleanPath := filepath.Clean(path)
		if dir := filepath.Dir(cleanPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		dsn = "file:" + cleanPath
	}
	dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)"

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(db, migrationFS, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Load implements progress.Store.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	var doc string
	err := s.db.GetContext(ctx, &doc, `SELECT document FROM progress_records WHERE storage_key = ?`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.WrapError(domainName, "Load", shared.ErrNotFound, "no record under "+key, err)
		}
		return nil, shared.StorageUnavailable(domainName, "Load", err)
	}
	return []byte(doc), nil
}

// Save implements progress.Store. An XP change is appended to the history
// in the same transaction.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	var totals struct {
		XP    int `json:"xp"`
		Level int `json:"level"`
	}
	if err := json.Unmarshal(data, &totals); err != nil {
		return shared.CorruptState(domainName, "Save", err, "document is not a progress record")
	}
	now := toMillis(time.Now())

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return shared.StorageUnavailable(domainName, "Save", err)
	}
	defer func() { _ = tx.Rollback() }()

	var oldXP int
	err = tx.GetContext(ctx, &oldXP, `SELECT xp FROM progress_records WHERE storage_key = ?`, key)
	existed := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return shared.StorageUnavailable(domainName, "Save", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO progress_records (storage_key, document, xp, level, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(storage_key) DO UPDATE SET
		    document = excluded.document,
		    xp = excluded.xp,
		    level = excluded.level,
		    updated_at = excluded.updated_at
	`, key, string(data), totals.XP, max(totals.Level, 1), now); err != nil {
		return shared.StorageUnavailable(domainName, "Save", err)
	}

	if !existed || oldXP != totals.XP {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO progress_xp_history (storage_key, old_xp, new_xp, level, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, key, oldXP, totals.XP, max(totals.Level, 1), now); err != nil {
			return shared.StorageUnavailable(domainName, "Save", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return shared.StorageUnavailable(domainName, "Save", err)
	}
	return nil
}

type historyRow struct {
	OldXP     int   `db:"old_xp"`
	NewXP     int   `db:"new_xp"`
	Level     int   `db:"level"`
	CreatedAt int64 `db:"created_at"`
}

// XPHistory implements progress.HistoryReader.
func (s *Store) XPHistory(ctx context.Context, key string, limit int) ([]progress.XPChange, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []historyRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT old_xp, new_xp, level, created_at FROM (
			SELECT id, old_xp, new_xp, level, created_at
			FROM progress_xp_history
			WHERE storage_key = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC
	`, key, limit)
	if err != nil {
		return nil, shared.StorageUnavailable(domainName, "XPHistory", err)
	}

	out := make([]progress.XPChange, 0, len(rows))
	for _, r := range rows {
		out = append(out, progress.XPChange{
			OldXP:     r.OldXP,
			NewXP:     r.NewXP,
			Level:     r.Level,
			ChangedAt: fromMillis(r.CreatedAt),
		})
	}
	return out, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Migrations
// ──────────────────────────────────────────────────────────────────────────────

const migrationTable = "schema_migrations"

// applyMigrations executes embedded migrations from root at most once per file.
func applyMigrations(db *sqlx.DB, migrations fs.FS, root string) error {
	entries, err := fs.ReadDir(migrations, root)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var found int
		err := db.Get(&found, `SELECT COUNT(1) FROM `+migrationTable+` WHERE name = ?`, file)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if found > 0 {
			continue
		}

		content, err := fs.ReadFile(migrations, root+"/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		upSQL := extractUpMigration(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}

		tx, err := db.Beginx()
		if err != nil {
			return fmt.Errorf("begin migration transaction %s: %w", file, err)
		}
		if _, err := tx.Exec(upSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
			file, toMillis(time.Now()),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// extractUpMigration returns the SQL in the -- +migrate Up section.
func extractUpMigration(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}
