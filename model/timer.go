package model

import "time"

// Timer represents a durable scheduled deadline tied to an event tag.
// It is keyed by the (guild, channel, message) triple and is never mutated
// in place: it is created once and deleted on fire or cancel.
type Timer struct {
	GuildID   string    `db:"guild_id"`
	ChannelID string    `db:"channel_id"`
	MessageID string    `db:"message_id"`
	AuthorID  string    `db:"author_id"`
	Event     string    `db:"event"`
	Title     string    `db:"title"`
	Expires   time.Time `db:"expires"`
}

// TimerKey identifies a timer (and the giveaway sharing its triple).
type TimerKey struct {
	GuildID   string
	ChannelID string
	MessageID string
}

func (t Timer) Key() TimerKey {
	return TimerKey{GuildID: t.GuildID, ChannelID: t.ChannelID, MessageID: t.MessageID}
}
