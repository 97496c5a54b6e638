package giveaway

import (
	"context"
	"fmt"
	"strings"

	"giveaway-bot/model"
)

// Member is the slice of a guild member that entry checks need.
type Member struct {
	ID    string
	Roles []string
}

func (m Member) hasRole(roleID string) bool {
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// Rank is a member's standing on the external leveling service.
type Rank struct {
	Level    int
	WeeklyXP int
}

// RankProvider resolves a member's rank. Implementations typically call an
// external HTTP API, so the lookup carries a context.
type RankProvider interface {
	MemberRank(ctx context.Context, guildID, memberID string) (*Rank, error)
}

// Evaluator decides whether a member may enter a giveaway and with what
// weight. Checks collect every unmet condition instead of stopping at the
// first, so the member sees the whole list at once.
type Evaluator struct {
	ranks RankProvider
}

func NewEvaluator(ranks RankProvider) *Evaluator {
	return &Evaluator{ranks: ranks}
}

// CheckRequirements returns nil when the member meets every entry condition,
// a *model.EligibilityError listing each unmet condition otherwise. Rank
// lookups are only performed when the giveaway actually gates on them.
func (e *Evaluator) CheckRequirements(ctx context.Context, g *model.Giveaway, m Member) error {
	var reasons []string

	if missing := missingRoles(g.RequiredRoles, m); len(missing) > 0 {
		reasons = append(reasons,
			fmt.Sprintf("you need the following roles to enter: %s", mentionRoles(missing)))
	}
	if held := heldRoles(g.BlacklistedRoles, m); len(held) > 0 {
		reasons = append(reasons,
			fmt.Sprintf("you cannot enter while you have these roles: %s", mentionRoles(held)))
	}

	if g.RequiredLevel > 0 || g.RequiredWeeklyXP > 0 {
		rank, err := e.memberRank(ctx, g.GuildID, m.ID)
		if err != nil {
			return fmt.Errorf("failed to check rank requirements: %w", err)
		}
		if g.RequiredLevel > 0 && rank.Level < g.RequiredLevel {
			reasons = append(reasons,
				fmt.Sprintf("you need to be level %d to enter (you are level %d)", g.RequiredLevel, rank.Level))
		}
		if g.RequiredWeeklyXP > 0 && rank.WeeklyXP < g.RequiredWeeklyXP {
			reasons = append(reasons,
				fmt.Sprintf("you need %d weekly XP to enter (you have %d)", g.RequiredWeeklyXP, rank.WeeklyXP))
		}
	}

	if g.MessagesRequired > 0 {
		sent := g.Messages[m.ID]
		if sent < g.MessagesRequired {
			reasons = append(reasons,
				fmt.Sprintf("you need to send %d more messages to enter", g.MessagesRequired-sent))
		}
	}

	if len(reasons) > 0 {
		return &model.EligibilityError{Reasons: reasons}
	}
	return nil
}

func (e *Evaluator) memberRank(ctx context.Context, guildID, memberID string) (*Rank, error) {
	if e.ranks == nil {
		return nil, fmt.Errorf("no rank provider configured")
	}
	return e.ranks.MemberRank(ctx, guildID, memberID)
}

// CanBypass reports whether the member holds a bypass role. Bypassing
// suppresses failed requirements but never changes the entry weight.
func CanBypass(g *model.Giveaway, m Member) bool {
	for _, r := range g.BypassRoles {
		if m.hasRole(r) {
			return true
		}
	}
	return false
}

// EntryWeight computes the number of entries the member receives: one base
// entry plus the extra entries of every multiplier role held, stacking
// additively.
func EntryWeight(g *model.Giveaway, m Member) int {
	weight := 1
	for roleID, extra := range g.MultiplierRoles {
		if extra > 0 && m.hasRole(roleID) {
			weight += extra
		}
	}
	return weight
}

func missingRoles(required []string, m Member) []string {
	var missing []string
	for _, r := range required {
		if !m.hasRole(r) {
			missing = append(missing, r)
		}
	}
	return missing
}

func heldRoles(blacklisted []string, m Member) []string {
	var held []string
	for _, r := range blacklisted {
		if m.hasRole(r) {
			held = append(held, r)
		}
	}
	return held
}

func mentionRoles(roleIDs []string) string {
	mentions := make([]string, len(roleIDs))
	for i, id := range roleIDs {
		mentions[i] = fmt.Sprintf("<@&%s>", id)
	}
	return strings.Join(mentions, ", ")
}
