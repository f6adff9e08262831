package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE PROGRESS RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- One serialized progress record per storage key
CREATE TABLE IF NOT EXISTS progress_records (
    storage_key VARCHAR(128) PRIMARY KEY,
    document JSONB NOT NULL,
    xp INTEGER NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_xp CHECK (xp >= 0),
    CONSTRAINT valid_level CHECK (level >= 1)
);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: XP HISTORY
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- XP history for tracking changes over time
CREATE TABLE IF NOT EXISTS progress_xp_history (
    id BIGSERIAL PRIMARY KEY,
    storage_key VARCHAR(128) NOT NULL REFERENCES progress_records(storage_key) ON DELETE CASCADE,
    old_xp INTEGER NOT NULL,
    new_xp INTEGER NOT NULL,
    level INTEGER NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_progress_xp_history_key_date
    ON progress_xp_history(storage_key, created_at DESC);
`

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_progress_records", UpSQL: migration001Up},
		{Version: 2, Name: "create_progress_xp_history", UpSQL: migration002Up},
	}
}
