package database

import (
	"database/sql"
	"errors"
	"fmt"

	"giveaway-bot/model"

	"github.com/jmoiron/sqlx"
)

type raffleRow struct {
	GuildID  string `db:"guild_id"`
	Name     string `db:"name"`
	WinnerID string `db:"winner_id"`
	Tickets  string `db:"tickets"`
}

// GetRaffle fetches a raffle by guild and name, or nil if absent.
func GetRaffle(db *sqlx.DB, guildID, name string) (*model.Raffle, error) {
	var row raffleRow
	err := db.Get(&row, `SELECT * FROM raffles WHERE guild_id = ? AND name = ?`, guildID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raffle: %w", err)
	}

	tickets, err := decodeIntMap(row.Tickets)
	if err != nil {
		return nil, fmt.Errorf("failed to decode raffle tickets: %w", err)
	}
	return &model.Raffle{
		GuildID:  row.GuildID,
		Name:     row.Name,
		WinnerID: row.WinnerID,
		Tickets:  tickets,
	}, nil
}

// SaveRaffle upserts the raffle state.
func SaveRaffle(db *sqlx.DB, r *model.Raffle) error {
	query := `INSERT INTO raffles (guild_id, name, winner_id, tickets)
              VALUES (:guild_id, :name, :winner_id, :tickets)
              ON CONFLICT (guild_id, name) DO UPDATE SET
                  winner_id = excluded.winner_id,
                  tickets = excluded.tickets`

	row := &raffleRow{
		GuildID:  r.GuildID,
		Name:     r.Name,
		WinnerID: r.WinnerID,
		Tickets:  encodeIntMap(r.Tickets),
	}
	if _, err := db.NamedExec(query, row); err != nil {
		return fmt.Errorf("failed to save raffle: %w", err)
	}
	return nil
}

// DeleteRaffle removes the raffle row.
func DeleteRaffle(db *sqlx.DB, guildID, name string) error {
	if _, err := db.Exec(`DELETE FROM raffles WHERE guild_id = ? AND name = ?`, guildID, name); err != nil {
		return fmt.Errorf("failed to delete raffle: %w", err)
	}
	return nil
}

// ListRaffleNames returns the raffle names of a guild.
func ListRaffleNames(db *sqlx.DB, guildID string) ([]string, error) {
	var names []string
	if err := db.Select(&names, `SELECT name FROM raffles WHERE guild_id = ? ORDER BY name`, guildID); err != nil {
		return nil, fmt.Errorf("failed to list raffles: %w", err)
	}
	return names, nil
}
