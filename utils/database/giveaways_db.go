package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"giveaway-bot/model"

	"github.com/jmoiron/sqlx"
)

// giveawayRow mirrors the giveaways table. List and map columns are stored
// as JSON text; the row is decoded into a typed model.Giveaway exactly once
// at this boundary.
type giveawayRow struct {
	GuildID        string    `db:"guild_id"`
	ChannelID      string    `db:"channel_id"`
	MessageID      string    `db:"message_id"`
	ExtraMessageID string    `db:"extra_message_id"`
	Prize          string    `db:"prize"`
	HostID         string    `db:"host_id"`
	DonorID        string    `db:"donor_id"`
	WinnerCount    int       `db:"winner_count"`
	Winners        string    `db:"winners"`
	Participants   string    `db:"participants"`
	Ended          bool      `db:"ended"`
	Ends           time.Time `db:"ends"`

	RequiredRoles    string `db:"required_roles"`
	BlacklistedRoles string `db:"blacklisted_roles"`
	BypassRoles      string `db:"bypass_roles"`
	MultiplierRoles  string `db:"multiplier_roles"`

	Messages               string `db:"messages"`
	MessagesRequired       int    `db:"messages_required"`
	AllowedMessageChannels string `db:"allowed_message_channels"`

	RequiredLevel    int `db:"required_level"`
	RequiredWeeklyXP int `db:"required_weekly_xp"`
}

func encodeList(v []string) string {
	if v == nil {
		v = []string{}
	}
	data, _ := json.Marshal(v)
	return string(data)
}

func encodeIntMap(v map[string]int) string {
	if v == nil {
		v = map[string]int{}
	}
	data, _ := json.Marshal(v)
	return string(data)
}

func decodeList(data string) ([]string, error) {
	var v []string
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeIntMap(data string) (map[string]int, error) {
	var v map[string]int
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, err
	}
	if v == nil {
		v = map[string]int{}
	}
	return v, nil
}

func (r *giveawayRow) decode() (*model.Giveaway, error) {
	g := &model.Giveaway{
		GuildID:          r.GuildID,
		ChannelID:        r.ChannelID,
		MessageID:        r.MessageID,
		ExtraMessageID:   r.ExtraMessageID,
		Prize:            r.Prize,
		HostID:           r.HostID,
		DonorID:          r.DonorID,
		WinnerCount:      r.WinnerCount,
		Ended:            r.Ended,
		Ends:             r.Ends,
		MessagesRequired: r.MessagesRequired,
		RequiredLevel:    r.RequiredLevel,
		RequiredWeeklyXP: r.RequiredWeeklyXP,
	}

	var err error
	if g.Winners, err = decodeList(r.Winners); err != nil {
		return nil, fmt.Errorf("failed to decode winners: %w", err)
	}
	if g.Participants, err = decodeList(r.Participants); err != nil {
		return nil, fmt.Errorf("failed to decode participants: %w", err)
	}
	if g.RequiredRoles, err = decodeList(r.RequiredRoles); err != nil {
		return nil, fmt.Errorf("failed to decode required roles: %w", err)
	}
	if g.BlacklistedRoles, err = decodeList(r.BlacklistedRoles); err != nil {
		return nil, fmt.Errorf("failed to decode blacklisted roles: %w", err)
	}
	if g.BypassRoles, err = decodeList(r.BypassRoles); err != nil {
		return nil, fmt.Errorf("failed to decode bypass roles: %w", err)
	}
	if g.MultiplierRoles, err = decodeIntMap(r.MultiplierRoles); err != nil {
		return nil, fmt.Errorf("failed to decode multiplier roles: %w", err)
	}
	if g.Messages, err = decodeIntMap(r.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode message counters: %w", err)
	}
	if g.AllowedMessageChannels, err = decodeList(r.AllowedMessageChannels); err != nil {
		return nil, fmt.Errorf("failed to decode allowed message channels: %w", err)
	}
	return g, nil
}

func encodeGiveaway(g *model.Giveaway) *giveawayRow {
	return &giveawayRow{
		GuildID:                g.GuildID,
		ChannelID:              g.ChannelID,
		MessageID:              g.MessageID,
		ExtraMessageID:         g.ExtraMessageID,
		Prize:                  g.Prize,
		HostID:                 g.HostID,
		DonorID:                g.DonorID,
		WinnerCount:            g.WinnerCount,
		Winners:                encodeList(g.Winners),
		Participants:           encodeList(g.Participants),
		Ended:                  g.Ended,
		Ends:                   g.Ends.UTC(),
		RequiredRoles:          encodeList(g.RequiredRoles),
		BlacklistedRoles:       encodeList(g.BlacklistedRoles),
		BypassRoles:            encodeList(g.BypassRoles),
		MultiplierRoles:        encodeIntMap(g.MultiplierRoles),
		Messages:               encodeIntMap(g.Messages),
		MessagesRequired:       g.MessagesRequired,
		AllowedMessageChannels: encodeList(g.AllowedMessageChannels),
		RequiredLevel:          g.RequiredLevel,
		RequiredWeeklyXP:       g.RequiredWeeklyXP,
	}
}

// CreateGiveaway inserts a new giveaway row.
func CreateGiveaway(db *sqlx.DB, g *model.Giveaway) error {
	query := `INSERT INTO giveaways (
                  guild_id, channel_id, message_id, extra_message_id, prize, host_id, donor_id,
                  winner_count, winners, participants, ended, ends,
                  required_roles, blacklisted_roles, bypass_roles, multiplier_roles,
                  messages, messages_required, allowed_message_channels,
                  required_level, required_weekly_xp)
              VALUES (
                  :guild_id, :channel_id, :message_id, :extra_message_id, :prize, :host_id, :donor_id,
                  :winner_count, :winners, :participants, :ended, :ends,
                  :required_roles, :blacklisted_roles, :bypass_roles, :multiplier_roles,
                  :messages, :messages_required, :allowed_message_channels,
                  :required_level, :required_weekly_xp)`

	if _, err := db.NamedExec(query, encodeGiveaway(g)); err != nil {
		return fmt.Errorf("failed to insert giveaway: %w", err)
	}
	return nil
}

// GetGiveaway fetches and decodes a giveaway, or returns nil if absent.
func GetGiveaway(db *sqlx.DB, key model.TimerKey) (*model.Giveaway, error) {
	var row giveawayRow
	query := `SELECT * FROM giveaways WHERE guild_id = ? AND channel_id = ? AND message_id = ?`
	err := db.Get(&row, query, key.GuildID, key.ChannelID, key.MessageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get giveaway: %w", err)
	}
	return row.decode()
}

// UpdateParticipants persists the full participant list.
func UpdateParticipants(db *sqlx.DB, key model.TimerKey, participants []string) error {
	query := `UPDATE giveaways SET participants = ? WHERE guild_id = ? AND channel_id = ? AND message_id = ?`
	if _, err := db.Exec(query, encodeList(participants), key.GuildID, key.ChannelID, key.MessageID); err != nil {
		return fmt.Errorf("failed to update participants: %w", err)
	}
	return nil
}

// UpdateMessages persists the per-member message counters.
func UpdateMessages(db *sqlx.DB, key model.TimerKey, messages map[string]int) error {
	query := `UPDATE giveaways SET messages = ? WHERE guild_id = ? AND channel_id = ? AND message_id = ?`
	if _, err := db.Exec(query, encodeIntMap(messages), key.GuildID, key.ChannelID, key.MessageID); err != nil {
		return fmt.Errorf("failed to update message counters: %w", err)
	}
	return nil
}

// MarkEnded flips the ended flag and reports whether this call claimed the
// transition. The WHERE ended = 0 guard makes ending a giveaway a
// check-and-set: a manual force-end racing the timer fire ends it once.
func MarkEnded(db *sqlx.DB, key model.TimerKey) (bool, error) {
	query := `UPDATE giveaways SET ended = 1
              WHERE guild_id = ? AND channel_id = ? AND message_id = ? AND ended = 0`
	res, err := db.Exec(query, key.GuildID, key.ChannelID, key.MessageID)
	if err != nil {
		return false, fmt.Errorf("failed to mark giveaway ended: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check ended rows: %w", err)
	}
	return n > 0, nil
}

// UpdateWinners persists the winner id list.
func UpdateWinners(db *sqlx.DB, key model.TimerKey, winners []string) error {
	query := `UPDATE giveaways SET winners = ? WHERE guild_id = ? AND channel_id = ? AND message_id = ?`
	if _, err := db.Exec(query, encodeList(winners), key.GuildID, key.ChannelID, key.MessageID); err != nil {
		return fmt.Errorf("failed to update winners: %w", err)
	}
	return nil
}

// DeleteGiveaway removes the giveaway row.
func DeleteGiveaway(db *sqlx.DB, key model.TimerKey) error {
	query := `DELETE FROM giveaways WHERE guild_id = ? AND channel_id = ? AND message_id = ?`
	if _, err := db.Exec(query, key.GuildID, key.ChannelID, key.MessageID); err != nil {
		return fmt.Errorf("failed to delete giveaway: %w", err)
	}
	return nil
}

// ListTrackedGiveaways returns all running giveaways with a message
// requirement, for the message tracker to warm its cache at startup.
func ListTrackedGiveaways(db *sqlx.DB) ([]*model.Giveaway, error) {
	var rows []giveawayRow
	query := `SELECT * FROM giveaways WHERE messages_required > 0 AND ended = 0`
	if err := db.Select(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to list tracked giveaways: %w", err)
	}

	giveaways := make([]*model.Giveaway, 0, len(rows))
	for i := range rows {
		g, err := rows[i].decode()
		if err != nil {
			return nil, err
		}
		giveaways = append(giveaways, g)
	}
	return giveaways, nil
}

// CountActiveGiveaways returns the number of giveaways not yet ended.
func CountActiveGiveaways(db *sqlx.DB) (int, error) {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM giveaways WHERE ended = 0`); err != nil {
		return 0, fmt.Errorf("failed to count active giveaways: %w", err)
	}
	return n, nil
}
