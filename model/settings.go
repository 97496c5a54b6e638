package model

// GuildSettings holds the per-guild giveaway defaults and notification
// templates. Templates support the {winners}, {winner} and {prize}
// placeholders.
type GuildSettings struct {
	GuildID      string
	LogChannelID string
	DMWinner     bool
	DMHost       bool
	ManagerRoles []string

	EndMessage    string
	RerollMessage string
	DMMessage     string
	DMHostMessage string
}

// DefaultGuildSettings returns the settings used for guilds without a
// stored row.
func DefaultGuildSettings(guildID string) *GuildSettings {
	return &GuildSettings{
		GuildID:       guildID,
		DMWinner:      true,
		DMHost:        true,
		EndMessage:    "Congratulations {winners}! You won the giveaway for {prize}!",
		RerollMessage: "Congratulations {winners}! You are the new winner(s) of the giveaway for {prize}!",
		DMMessage:     "You won the giveaway for {prize}!",
		DMHostMessage: "Your giveaway for {prize} has ended! Winners: {winners}",
	}
}
