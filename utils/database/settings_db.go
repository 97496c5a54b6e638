package database

import (
	"database/sql"
	"errors"
	"fmt"

	"giveaway-bot/model"

	"github.com/jmoiron/sqlx"
)

type guildSettingsRow struct {
	GuildID       string `db:"guild_id"`
	LogChannelID  string `db:"log_channel_id"`
	DMWinner      bool   `db:"dm_winner"`
	DMHost        bool   `db:"dm_host"`
	ManagerRoles  string `db:"manager_roles"`
	EndMessage    string `db:"end_message"`
	RerollMessage string `db:"reroll_message"`
	DMMessage     string `db:"dm_message"`
	DMHostMessage string `db:"dm_host_message"`
}

// GetGuildSettings fetches the stored settings for a guild, falling back to
// the defaults when no row exists.
func GetGuildSettings(db *sqlx.DB, guildID string) (*model.GuildSettings, error) {
	var row guildSettingsRow
	err := db.Get(&row, `SELECT * FROM guild_settings WHERE guild_id = ?`, guildID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultGuildSettings(guildID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guild settings: %w", err)
	}

	managers, err := decodeList(row.ManagerRoles)
	if err != nil {
		return nil, fmt.Errorf("failed to decode manager roles: %w", err)
	}

	return &model.GuildSettings{
		GuildID:       row.GuildID,
		LogChannelID:  row.LogChannelID,
		DMWinner:      row.DMWinner,
		DMHost:        row.DMHost,
		ManagerRoles:  managers,
		EndMessage:    row.EndMessage,
		RerollMessage: row.RerollMessage,
		DMMessage:     row.DMMessage,
		DMHostMessage: row.DMHostMessage,
	}, nil
}

// UpsertGuildSettings stores the full settings row for a guild.
func UpsertGuildSettings(db *sqlx.DB, s *model.GuildSettings) error {
	query := `INSERT INTO guild_settings (
                  guild_id, log_channel_id, dm_winner, dm_host, manager_roles,
                  end_message, reroll_message, dm_message, dm_host_message)
              VALUES (:guild_id, :log_channel_id, :dm_winner, :dm_host, :manager_roles,
                  :end_message, :reroll_message, :dm_message, :dm_host_message)
              ON CONFLICT (guild_id) DO UPDATE SET
                  log_channel_id = excluded.log_channel_id,
                  dm_winner = excluded.dm_winner,
                  dm_host = excluded.dm_host,
                  manager_roles = excluded.manager_roles,
                  end_message = excluded.end_message,
                  reroll_message = excluded.reroll_message,
                  dm_message = excluded.dm_message,
                  dm_host_message = excluded.dm_host_message`

	row := &guildSettingsRow{
		GuildID:       s.GuildID,
		LogChannelID:  s.LogChannelID,
		DMWinner:      s.DMWinner,
		DMHost:        s.DMHost,
		ManagerRoles:  encodeList(s.ManagerRoles),
		EndMessage:    s.EndMessage,
		RerollMessage: s.RerollMessage,
		DMMessage:     s.DMMessage,
		DMHostMessage: s.DMHostMessage,
	}
	if _, err := db.NamedExec(query, row); err != nil {
		return fmt.Errorf("failed to upsert guild settings: %w", err)
	}
	return nil
}
