package database

import (
	"database/sql"
	"errors"
	"fmt"

	"giveaway-bot/model"

	"github.com/jmoiron/sqlx"
)

type donationCategoryRow struct {
	GuildID   string `db:"guild_id"`
	Name      string `db:"name"`
	Symbol    string `db:"symbol"`
	Autoroles string `db:"autoroles"`
}

// GetDonationCategory fetches a category definition, or nil if absent.
func GetDonationCategory(db *sqlx.DB, guildID, name string) (*model.DonationCategory, error) {
	var row donationCategoryRow
	err := db.Get(&row, `SELECT * FROM donation_categories WHERE guild_id = ? AND name = ?`, guildID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get donation category: %w", err)
	}

	var autoroles map[string]int64
	if err := decodeJSON(row.Autoroles, &autoroles); err != nil {
		return nil, fmt.Errorf("failed to decode autoroles: %w", err)
	}
	return &model.DonationCategory{
		GuildID:   row.GuildID,
		Name:      row.Name,
		Symbol:    row.Symbol,
		Autoroles: autoroles,
	}, nil
}

// SaveDonationCategory upserts a category definition.
func SaveDonationCategory(db *sqlx.DB, c *model.DonationCategory) error {
	query := `INSERT INTO donation_categories (guild_id, name, symbol, autoroles)
              VALUES (:guild_id, :name, :symbol, :autoroles)
              ON CONFLICT (guild_id, name) DO UPDATE SET
                  symbol = excluded.symbol,
                  autoroles = excluded.autoroles`

	row := &donationCategoryRow{
		GuildID:   c.GuildID,
		Name:      c.Name,
		Symbol:    c.Symbol,
		Autoroles: encodeJSON(c.Autoroles),
	}
	if _, err := db.NamedExec(query, row); err != nil {
		return fmt.Errorf("failed to save donation category: %w", err)
	}
	return nil
}

// AdjustDonation applies a delta to a member's running total inside a single
// transaction and returns the new amount. Unlike the giveaway participant
// path, the ledger is a strict transactional read-modify-write: a negative
// delta that would push the total below zero rolls back with
// ErrInsufficientDonations.
func AdjustDonation(db *sqlx.DB, guildID, category, memberID string, delta int64) (int64, error) {
	tx, err := db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("failed to begin donation transaction: %w", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.Get(&current,
		`SELECT amount FROM donations WHERE guild_id = ? AND category = ? AND member_id = ?`,
		guildID, category, memberID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to read donation amount: %w", err)
	}

	next := current + delta
	if next < 0 {
		return current, model.ErrInsufficientDonations
	}

	_, err = tx.Exec(`INSERT INTO donations (guild_id, category, member_id, amount)
                      VALUES (?, ?, ?, ?)
                      ON CONFLICT (guild_id, category, member_id) DO UPDATE SET amount = excluded.amount`,
		guildID, category, memberID, next)
	if err != nil {
		return 0, fmt.Errorf("failed to write donation amount: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit donation transaction: %w", err)
	}
	return next, nil
}

// GetDonation returns a member's running total (zero when absent).
func GetDonation(db *sqlx.DB, guildID, category, memberID string) (int64, error) {
	var amount int64
	err := db.Get(&amount,
		`SELECT amount FROM donations WHERE guild_id = ? AND category = ? AND member_id = ?`,
		guildID, category, memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get donation amount: %w", err)
	}
	return amount, nil
}

// TopDonations returns the highest running totals in a category.
func TopDonations(db *sqlx.DB, guildID, category string, limit int) ([]model.Donation, error) {
	var rows []model.Donation
	query := `SELECT * FROM donations WHERE guild_id = ? AND category = ?
              ORDER BY amount DESC LIMIT ?`
	if err := db.Select(&rows, query, guildID, category, limit); err != nil {
		return nil, fmt.Errorf("failed to list top donations: %w", err)
	}
	return rows, nil
}
