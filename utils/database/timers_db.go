package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"giveaway-bot/model"

	"github.com/jmoiron/sqlx"
)

// CreateTimer inserts a new timer row.
func CreateTimer(db *sqlx.DB, timer model.Timer) error {
	query := `INSERT INTO timers (guild_id, channel_id, message_id, author_id, event, title, expires)
              VALUES (:guild_id, :channel_id, :message_id, :author_id, :event, :title, :expires)`

	if _, err := db.NamedExec(query, timer); err != nil {
		return fmt.Errorf("failed to insert timer: %w", err)
	}
	return nil
}

// NextTimerWithin returns the timer with the earliest expiry before
// now+horizon, or nil if none is due within the horizon.
func NextTimerWithin(db *sqlx.DB, now time.Time, horizon time.Duration) (*model.Timer, error) {
	var timer model.Timer
	query := `SELECT * FROM timers WHERE expires < ? ORDER BY expires LIMIT 1`
	err := db.Get(&timer, query, now.Add(horizon).UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query next timer: %w", err)
	}
	return &timer, nil
}

// GetTimer fetches the timer for a (guild, channel, message) triple.
func GetTimer(db *sqlx.DB, key model.TimerKey) (*model.Timer, error) {
	var timer model.Timer
	query := `SELECT * FROM timers WHERE guild_id = ? AND channel_id = ? AND message_id = ?`
	err := db.Get(&timer, query, key.GuildID, key.ChannelID, key.MessageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get timer: %w", err)
	}
	return &timer, nil
}

// DeleteTimer removes the timer row and reports whether a row was actually
// deleted. Callers use the result to decide whether they own the dispatch:
// only the deleter of the row may fire the event.
func DeleteTimer(db *sqlx.DB, key model.TimerKey) (bool, error) {
	query := `DELETE FROM timers WHERE guild_id = ? AND channel_id = ? AND message_id = ?`
	res, err := db.Exec(query, key.GuildID, key.ChannelID, key.MessageID)
	if err != nil {
		return false, fmt.Errorf("failed to delete timer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check deleted timer rows: %w", err)
	}
	return n > 0, nil
}

// CountTimers returns the number of pending durable timers.
func CountTimers(db *sqlx.DB) (int, error) {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM timers`); err != nil {
		return 0, fmt.Errorf("failed to count timers: %w", err)
	}
	return n, nil
}
