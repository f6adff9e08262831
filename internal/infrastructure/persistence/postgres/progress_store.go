package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MirasRuslanJR/PyShark/internal/domain/progress"
	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
)

const domainName = "postgres"

// ProgressStore implements progress.Store on the progress_records table.
type ProgressStore struct {
	conn *Connection
}

// NewProgressStore creates a store over an open connection.
func NewProgressStore(conn *Connection) *ProgressStore {
	return &ProgressStore{conn: conn}
}

// Open connects, applies migrations and returns the store.
func Open(ctx context.Context, databaseURL string) (*ProgressStore, error) {
	conn, err := NewConnectionFromURL(ctx, databaseURL, DefaultPoolOptions())
	if err != nil {
		return nil, err
	}
	if err := NewMigrator(conn).Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return NewProgressStore(conn), nil
}

// Load implements progress.Store.
func (s *ProgressStore) Load(ctx context.Context, key string) ([]byte, error) {
	var doc []byte
	err := s.conn.Pool().QueryRow(ctx,
		`SELECT document FROM progress_records WHERE storage_key = $1`, key,
	).Scan(&doc)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.WrapError(domainName, "Load", shared.ErrNotFound, "no record under "+key, err)
		}
		return nil, shared.StorageUnavailable(domainName, "Load", err)
	}
	return doc, nil
}

// Save implements progress.Store. An XP change is appended to the history
// in the same transaction.
func (s *ProgressStore) Save(ctx context.Context, key string, data []byte) error {
	var totals struct {
		XP    int `json:"xp"`
		Level int `json:"level"`
	}
	if err := json.Unmarshal(data, &totals); err != nil {
		return shared.CorruptState(domainName, "Save", err, "document is not a progress record")
	}

	err := s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		var oldXP int
		err := tx.QueryRow(ctx,
			`SELECT xp FROM progress_records WHERE storage_key = $1 FOR UPDATE`, key,
		).Scan(&oldXP)
		existed := err == nil
		if err != nil && !IsNoRows(err) {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO progress_records (storage_key, document, xp, level, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (storage_key) DO UPDATE
			SET document = EXCLUDED.document,
			    xp = EXCLUDED.xp,
			    level = EXCLUDED.level,
			    updated_at = NOW()
		`, key, data, totals.XP, totals.Level)
		if err != nil {
			return err
		}

		if existed && oldXP == totals.XP {
			return nil
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO progress_xp_history (storage_key, old_xp, new_xp, level)
			VALUES ($1, $2, $3, $4)
		`, key, oldXP, totals.XP, totals.Level)
		return err
	})
	if err != nil {
		if IsInvalidJSON(err) {
			return shared.CorruptState(domainName, "Save", err, "database rejected document")
		}
		return shared.StorageUnavailable(domainName, "Save", err)
	}
	return nil
}

// XPHistory returns up to limit most recent XP changes, oldest first.
func (s *ProgressStore) XPHistory(ctx context.Context, key string, limit int) ([]progress.XPChange, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.conn.Pool().Query(ctx, `
		SELECT old_xp, new_xp, level, created_at FROM (
			SELECT id, old_xp, new_xp, level, created_at
			FROM progress_xp_history
			WHERE storage_key = $1
			ORDER BY id DESC
			LIMIT $2
		) recent ORDER BY id ASC
	`, key, limit)
	if err != nil {
		return nil, shared.StorageUnavailable(domainName, "XPHistory", err)
	}
	defer rows.Close()

	var out []progress.XPChange
	for rows.Next() {
		var c progress.XPChange
		if err := rows.Scan(&c.OldXP, &c.NewXP, &c.Level, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan xp history: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Ping checks if the database connection is alive.
func (s *ProgressStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the pool.
func (s *ProgressStore) Close() error {
	s.conn.Close()
	return nil
}
