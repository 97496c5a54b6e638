package bot

import (
	"errors"
	"fmt"

	"giveaway-bot/giveaway"

	"github.com/bwmarrin/discordgo"
)

// MemberResolver looks up guild members through the session state first and
// falls back to the REST API on a cache miss. It satisfies
// giveaway.MemberSource and donations.RoleSyncer.
type MemberResolver struct {
	session *discordgo.Session
}

func NewMemberResolver(session *discordgo.Session) *MemberResolver {
	return &MemberResolver{session: session}
}

// ResolveMember returns the member's current roles, or nil when they are no
// longer in the guild.
func (r *MemberResolver) ResolveMember(guildID, memberID string) (*giveaway.Member, error) {
	m, err := r.session.State.Member(guildID, memberID)
	if err != nil {
		m, err = r.session.GuildMember(guildID, memberID)
		if err != nil {
			var restErr *discordgo.RESTError
			if errors.As(err, &restErr) && restErr.Message != nil &&
				restErr.Message.Code == discordgo.ErrCodeUnknownMember {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to fetch member %s: %w", memberID, err)
		}
	}
	return &giveaway.Member{ID: memberID, Roles: m.Roles}, nil
}

func (r *MemberResolver) AddRole(guildID, memberID, roleID string) error {
	return r.session.GuildMemberRoleAdd(guildID, memberID, roleID)
}

func (r *MemberResolver) RemoveRole(guildID, memberID, roleID string) error {
	return r.session.GuildMemberRoleRemove(guildID, memberID, roleID)
}
