package bot

import (
	"fmt"
	"strings"

	"giveaway-bot/giveaway"
	"giveaway-bot/model"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// Notifier posts lifecycle announcements and winner DMs using the guild's
// message templates. Every send is best-effort: a failed announcement never
// rolls back the lifecycle bookkeeping that triggered it.
type Notifier struct {
	session  *discordgo.Session
	settings *giveaway.SettingsCache
}

func NewNotifier(session *discordgo.Session, settings *giveaway.SettingsCache) *Notifier {
	return &Notifier{session: session, settings: settings}
}

func (n *Notifier) GiveawayEnded(g *model.Giveaway, winners []string) {
	s := n.guildSettings(g.GuildID)

	if len(winners) == 0 {
		n.announce(g, fmt.Sprintf("The giveaway for **%s** ended without any valid entries.", g.Prize))
		return
	}

	n.announce(g, renderTemplate(s.EndMessage, g, winners))
	if s.DMWinner {
		for _, winner := range winners {
			n.directMessage(winner, renderTemplate(s.DMMessage, g, winners))
		}
	}
	if s.DMHost && g.HostID != "" {
		n.directMessage(g.HostID, renderTemplate(s.DMHostMessage, g, winners))
	}
}

func (n *Notifier) GiveawayRerolled(g *model.Giveaway, winners []string) {
	s := n.guildSettings(g.GuildID)

	if len(winners) == 0 {
		n.announce(g, fmt.Sprintf("No entries left to reroll for **%s**.", g.Prize))
		return
	}

	n.announce(g, renderTemplate(s.RerollMessage, g, winners))
	if s.DMWinner {
		for _, winner := range winners {
			n.directMessage(winner, renderTemplate(s.DMMessage, g, winners))
		}
	}
}

// GiveawayCancelled announces the cancellation and deletes the satellite
// message, if the giveaway posted one.
func (n *Notifier) GiveawayCancelled(g *model.Giveaway) {
	n.announce(g, fmt.Sprintf("The giveaway for **%s** has been cancelled.", g.Prize))
	if g.ExtraMessageID != "" {
		if err := n.session.ChannelMessageDelete(g.ChannelID, g.ExtraMessageID); err != nil {
			log.Warn().Err(err).
				Str("channel_id", g.ChannelID).
				Str("message_id", g.ExtraMessageID).
				Msg("failed to delete giveaway satellite message")
		}
	}
}

func (n *Notifier) guildSettings(guildID string) *model.GuildSettings {
	s, err := n.settings.Get(guildID)
	if err != nil {
		log.Warn().Err(err).Str("guild_id", guildID).Msg("failed to load guild settings, using defaults")
		return model.DefaultGuildSettings(guildID)
	}
	return s
}

// announce replies under the giveaway message so the announcement threads
// with it.
func (n *Notifier) announce(g *model.Giveaway, content string) {
	_, err := n.session.ChannelMessageSendReply(g.ChannelID, content, &discordgo.MessageReference{
		GuildID:   g.GuildID,
		ChannelID: g.ChannelID,
		MessageID: g.MessageID,
	})
	if err != nil {
		log.Warn().Err(err).
			Str("channel_id", g.ChannelID).
			Str("message_id", g.MessageID).
			Msg("failed to send giveaway announcement")
	}
}

func (n *Notifier) directMessage(userID, content string) {
	channel, err := n.session.UserChannelCreate(userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to open DM channel")
		return
	}
	if _, err := n.session.ChannelMessageSend(channel.ID, content); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to send DM")
	}
}

func renderTemplate(template string, g *model.Giveaway, winners []string) string {
	mentions := make([]string, len(winners))
	for i, id := range winners {
		mentions[i] = "<@" + id + ">"
	}
	first := ""
	if len(mentions) > 0 {
		first = mentions[0]
	}
	return strings.NewReplacer(
		"{winners}", strings.Join(mentions, ", "),
		"{winner}", first,
		"{prize}", g.Prize,
	).Replace(template)
}
