package model

import "time"

// RankAPIConfig points at the external rank service used for the level and
// weekly XP entry requirements.
type RankAPIConfig struct {
	BaseURL string
	Token   string
}

// Config is the process configuration, loaded from environment variables
// and the data/config.yaml file.
type Config struct {
	BotToken     string
	AppID        string
	LogChannelID string
	Debug        bool

	DatabasePath string
	WebAddr      string

	RankAPI RankAPIConfig

	// MessageCooldown gates how often a member's messages count towards a
	// giveaway's message requirement.
	MessageCooldown time.Duration
	// MessageFlushInterval is how often tracked message counters are
	// written back to the store.
	MessageFlushInterval time.Duration
	// SettingsTTL bounds how long cached guild settings stay valid.
	SettingsTTL time.Duration
}
