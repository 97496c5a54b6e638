package bot

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const (
	colorGreen = 3066993
	colorRed   = 15158332
)

// Telemetry mirrors operational events to a Discord log channel on top of
// the local log, so the dispatcher's restarts are visible to operators. A
// zero channel id keeps everything local.
type Telemetry struct {
	session      *discordgo.Session
	logChannelID string
}

func NewTelemetry(session *discordgo.Session, logChannelID string) *Telemetry {
	return &Telemetry{session: session, logChannelID: logChannelID}
}

// Report satisfies timers.Reporter.
func (t *Telemetry) Report(scope string, err error) {
	log.Error().Err(err).Str("scope", scope).Msg("telemetry report")
	t.send("Error", colorRed, scope, err.Error())
}

// Startup announces a successful boot.
func (t *Telemetry) Startup(detail string) {
	t.send("Startup", colorGreen, "system", detail)
}

func (t *Telemetry) send(title string, color int, scope, detail string) {
	if t.session == nil || t.logChannelID == "" {
		return
	}
	embed := &discordgo.MessageEmbed{
		Title: title,
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Scope", Value: scope, Inline: true},
			{Name: "Detail", Value: detail},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := t.session.ChannelMessageSendEmbed(t.logChannelID, embed); err != nil {
		log.Warn().Err(err).Msg("failed to mirror telemetry to log channel")
	}
}
