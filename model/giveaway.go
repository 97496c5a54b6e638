package model

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrAlreadyJoined     = errors.New("you have already joined the giveaway")
	ErrNotParticipating  = errors.New("you are not a participant of this giveaway")
	ErrGiveawayEnded     = errors.New("the giveaway has already ended")
	ErrGiveawayNotEnded  = errors.New("the giveaway has not ended yet")
	ErrGiveawayNotFound  = errors.New("giveaway not found")
)

// EligibilityError reports every unmet entry condition at once so the caller
// can show the full list instead of the first failure.
type EligibilityError struct {
	Reasons []string
}

func (e *EligibilityError) Error() string {
	return strings.Join(e.Reasons, "\n")
}

// Giveaway represents a timed giveaway with entry rules and a winner count.
//
// Participants is a flat ordered list of member ids where duplicates are
// weighted entries: the number of occurrences of an id equals the weight
// computed for that member at join time. Later role changes do not alter
// existing entries.
type Giveaway struct {
	GuildID        string
	ChannelID      string
	MessageID      string
	ExtraMessageID string
	Prize          string
	HostID         string
	DonorID        string
	WinnerCount    int
	Winners        []string
	Participants   []string
	Ended          bool
	Ends           time.Time

	RequiredRoles    []string
	BlacklistedRoles []string
	BypassRoles      []string
	// MultiplierRoles maps a role id to the number of extra entries it
	// grants. Entries stack additively across roles.
	MultiplierRoles map[string]int

	// Messages tracks per-member message counts for this giveaway. It is
	// mutated in memory by the message tracker and flushed on an interval.
	Messages               map[string]int
	MessagesRequired       int
	AllowedMessageChannels []string

	RequiredLevel    int
	RequiredWeeklyXP int
}

func (g *Giveaway) Key() TimerKey {
	return TimerKey{GuildID: g.GuildID, ChannelID: g.ChannelID, MessageID: g.MessageID}
}

// DistinctParticipants returns the number of unique member ids in the
// participant list regardless of entry weight.
func (g *Giveaway) DistinctParticipants() int {
	seen := make(map[string]struct{}, len(g.Participants))
	for _, id := range g.Participants {
		seen[id] = struct{}{}
	}
	return len(seen)
}

// HasParticipant reports whether the member id appears in the participant
// list at least once.
func (g *Giveaway) HasParticipant(memberID string) bool {
	for _, id := range g.Participants {
		if id == memberID {
			return true
		}
	}
	return false
}

// TracksMessages reports whether the giveaway needs live message counting.
func (g *Giveaway) TracksMessages() bool {
	return g.MessagesRequired > 0 && !g.Ended
}
