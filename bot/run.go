package bot

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

// Run opens the gateway connection, starts the background machinery and
// blocks until the process receives a termination signal.
func (b *Bot) Run() error {
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway connection: %w", err)
	}

	if err := b.Tracker.Load(); err != nil {
		return fmt.Errorf("failed to warm message tracker: %w", err)
	}

	b.Dispatcher.Start()
	b.scheduler.Start()
	go b.web.Run()

	b.Telemetry.Startup("Bot has started successfully.")
	log.Info().Msg("bot is running, press CTRL-C to exit")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc
	return nil
}

// Close flushes in-memory state and shuts everything down in dependency
// order.
func (b *Bot) Close() {
	log.Info().Msg("gracefully shutting down")

	b.scheduler.Stop()
	b.Dispatcher.Stop()
	b.Tracker.Flush()

	if err := b.Session.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close gateway session")
	}
	if err := b.DB.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close database")
	}
}
