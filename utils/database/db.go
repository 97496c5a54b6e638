package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS timers (
    guild_id   TEXT NOT NULL,
    channel_id TEXT NOT NULL,
    message_id TEXT NOT NULL,
    author_id  TEXT NOT NULL,
    event      TEXT NOT NULL,
    title      TEXT NOT NULL,
    expires    DATETIME NOT NULL,
    PRIMARY KEY (guild_id, channel_id, message_id)
);
CREATE INDEX IF NOT EXISTS idx_timers_expires ON timers (expires);

CREATE TABLE IF NOT EXISTS giveaways (
    guild_id         TEXT NOT NULL,
    channel_id       TEXT NOT NULL,
    message_id       TEXT NOT NULL,
    extra_message_id TEXT NOT NULL DEFAULT '',
    prize            TEXT NOT NULL,
    host_id          TEXT NOT NULL,
    donor_id         TEXT NOT NULL DEFAULT '',
    winner_count     INTEGER NOT NULL,
    winners          TEXT NOT NULL DEFAULT '[]',
    participants     TEXT NOT NULL DEFAULT '[]',
    ended            INTEGER NOT NULL DEFAULT 0,
    ends             DATETIME NOT NULL,
    required_roles    TEXT NOT NULL DEFAULT '[]',
    blacklisted_roles TEXT NOT NULL DEFAULT '[]',
    bypass_roles      TEXT NOT NULL DEFAULT '[]',
    multiplier_roles  TEXT NOT NULL DEFAULT '{}',
    messages          TEXT NOT NULL DEFAULT '{}',
    messages_required INTEGER NOT NULL DEFAULT 0,
    allowed_message_channels TEXT NOT NULL DEFAULT '[]',
    required_level     INTEGER NOT NULL DEFAULT 0,
    required_weekly_xp INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (guild_id, channel_id, message_id)
);

CREATE TABLE IF NOT EXISTS guild_settings (
    guild_id        TEXT PRIMARY KEY,
    log_channel_id  TEXT NOT NULL DEFAULT '',
    dm_winner       INTEGER NOT NULL DEFAULT 1,
    dm_host         INTEGER NOT NULL DEFAULT 1,
    manager_roles   TEXT NOT NULL DEFAULT '[]',
    end_message     TEXT NOT NULL,
    reroll_message  TEXT NOT NULL,
    dm_message      TEXT NOT NULL,
    dm_host_message TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS raffles (
    guild_id  TEXT NOT NULL,
    name      TEXT NOT NULL,
    winner_id TEXT NOT NULL DEFAULT '',
    tickets   TEXT NOT NULL DEFAULT '{}',
    PRIMARY KEY (guild_id, name)
);

CREATE TABLE IF NOT EXISTS donation_categories (
    guild_id  TEXT NOT NULL,
    name      TEXT NOT NULL,
    symbol    TEXT NOT NULL DEFAULT '$',
    autoroles TEXT NOT NULL DEFAULT '{}',
    PRIMARY KEY (guild_id, name)
);

CREATE TABLE IF NOT EXISTS donations (
    guild_id  TEXT NOT NULL,
    category  TEXT NOT NULL,
    member_id TEXT NOT NULL,
    amount    INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (guild_id, category, member_id)
);
`

// Init opens the sqlite database at the given path and ensures the schema
// exists.
func Init(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// sqlite handles one writer at a time; a single pooled connection avoids
	// SQLITE_BUSY under concurrent joins and keeps :memory: databases whole.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}
