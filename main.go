package main

import (
	"os"

	"giveaway-bot/bot"
	"giveaway-bot/config"
	"giveaway-bot/utils/database"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	config.SetupLogger(cfg.Debug)

	if err := os.MkdirAll("data", os.ModePerm); err != nil {
		log.Fatal().Err(err).Msg("failed to create data directory")
	}
	db, err := database.Init(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	b, err := bot.New(cfg, db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bot")
	}
	defer b.Close()

	if err := b.Run(); err != nil {
		log.Fatal().Err(err).Msg("bot exited with error")
	}
}
