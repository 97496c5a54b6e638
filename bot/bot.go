package bot

import (
	"fmt"
	"time"

	"giveaway-bot/donations"
	"giveaway-bot/giveaway"
	"giveaway-bot/model"
	"giveaway-bot/raffles"
	"giveaway-bot/timers"
	"giveaway-bot/utils/database"
	"giveaway-bot/web"

	"github.com/bwmarrin/discordgo"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// EventReminder is the timer event tag for plain user reminders.
const EventReminder = "timer"

// Bot wires the Discord session to the timer dispatcher and the feature
// services.
type Bot struct {
	Session    *discordgo.Session
	DB         *sqlx.DB
	Config     *model.Config
	Dispatcher *timers.Dispatcher
	Giveaways  *giveaway.Service
	Raffles    *raffles.Service
	Donations  *donations.Service
	Tracker    *giveaway.Tracker
	Settings   *giveaway.SettingsCache
	Telemetry  *Telemetry

	scheduler *Scheduler
	web       *web.Server
}

func New(cfg *model.Config, db *sqlx.DB) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	telemetry := NewTelemetry(session, cfg.LogChannelID)
	dispatcher := timers.New(&database.TimerStore{DB: db}, telemetry)

	settings := giveaway.NewSettingsCache(db, cfg.SettingsTTL)
	tracker := giveaway.NewTracker(db, cfg.MessageCooldown)
	resolver := NewMemberResolver(session)

	var ranks giveaway.RankProvider
	if cfg.RankAPI.BaseURL != "" {
		ranks = NewRankClient(cfg.RankAPI)
	}
	evaluator := giveaway.NewEvaluator(ranks)
	registry := giveaway.NewRegistry(db, evaluator, tracker)

	giveaways := giveaway.NewService(giveaway.ServiceConfig{
		DB:        db,
		Scheduler: dispatcher,
		Registry:  registry,
		Notifier:  NewNotifier(session, settings),
		Members:   resolver,
		Tracker:   tracker,
	})

	b := &Bot{
		Session:    session,
		DB:         db,
		Config:     cfg,
		Dispatcher: dispatcher,
		Giveaways:  giveaways,
		Raffles:    raffles.NewService(db, nil),
		Donations:  donations.NewService(db, resolver),
		Tracker:    tracker,
		Settings:   settings,
		Telemetry:  telemetry,
		web:        web.NewServer(cfg.WebAddr, db, session, cfg.Debug),
	}

	b.scheduler, err = NewScheduler(tracker, settings, cfg.MessageFlushInterval, cfg.SettingsTTL)
	if err != nil {
		return nil, err
	}

	dispatcher.Register(giveaway.EventGiveaway, giveaways.HandleTimer)
	dispatcher.Register(EventReminder, b.handleReminder)

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)

	return b, nil
}

// CreateReminder schedules a plain timer that pings its author on expiry.
func (b *Bot) CreateReminder(guildID, channelID, messageID, authorID, title string, at time.Time) error {
	return b.Dispatcher.CreateTimer(model.Timer{
		GuildID:   guildID,
		ChannelID: channelID,
		MessageID: messageID,
		AuthorID:  authorID,
		Event:     EventReminder,
		Title:     title,
		Expires:   at.UTC(),
	})
}

func (b *Bot) handleReminder(timer model.Timer) {
	content := fmt.Sprintf("<@%s> Your timer for **%s** has expired.", timer.AuthorID, timer.Title)
	if _, err := b.Session.ChannelMessageSend(timer.ChannelID, content); err != nil {
		log.Warn().Err(err).Str("channel_id", timer.ChannelID).Msg("failed to deliver reminder")
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Info().
		Str("user", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("gateway session ready")
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	b.Tracker.HandleMessage(m.GuildID, m.ChannelID, m.Author.ID)
}
