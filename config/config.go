// Package config loads the process configuration. Secrets come from the
// environment (via .env in development); tunables live in data/config.yaml.
package config

import (
	"fmt"
	"os"
	"time"

	"giveaway-bot/model"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Load reads the environment and data/config.yaml into a model.Config.
func Load() (*model.Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg(".env file not found, relying on environment variables")
	}

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("BOT_TOKEN environment variable not set")
	}
	appID := os.Getenv("APP_ID")
	if appID == "" {
		return nil, fmt.Errorf("APP_ID environment variable not set")
	}
	logChannelID := os.Getenv("LOG_CHANNEL_ID")
	if logChannelID == "" {
		log.Warn().Msg("LOG_CHANNEL_ID not set, telemetry will only reach the local log")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("data")

	v.SetDefault("database.path", "data/giveaways.db")
	v.SetDefault("web.addr", ":8091")
	v.SetDefault("tracker.cooldown", 5*time.Second)
	v.SetDefault("tracker.flush_interval", 5*time.Minute)
	v.SetDefault("settings.ttl", 10*time.Minute)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Info().Msg("data/config.yaml not found, using defaults")
	}

	return &model.Config{
		BotToken:     token,
		AppID:        appID,
		LogChannelID: logChannelID,
		Debug:        os.Getenv("DEBUG") == "true",

		DatabasePath: v.GetString("database.path"),
		WebAddr:      v.GetString("web.addr"),

		RankAPI: model.RankAPIConfig{
			BaseURL: v.GetString("rank_api.base_url"),
			Token:   os.Getenv("RANK_API_TOKEN"),
		},

		MessageCooldown:      v.GetDuration("tracker.cooldown"),
		MessageFlushInterval: v.GetDuration("tracker.flush_interval"),
		SettingsTTL:          v.GetDuration("settings.ttl"),
	}, nil
}

// SetupLogger configures the global zerolog logger.
func SetupLogger(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	})
}
