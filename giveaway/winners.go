package giveaway

import (
	"math/rand"

	"giveaway-bot/utils/draw"
)

// MemberFilter reports whether a drawn member still qualifies to win, for
// example whether they are still in the guild. A nil filter keeps everyone.
type MemberFilter func(memberID string) bool

// DrawResult holds the outcome of a winner draw.
type DrawResult struct {
	// Winners are the drawn member ids, fewer than requested when the pool
	// ran dry first.
	Winners []string
	// Remaining is the pool after the draw, with every copy of each drawn
	// or disqualified member removed.
	Remaining []string
}

// DrawWinners picks up to count winners from a weighted pool. Each draw is
// uniform over the remaining copies, so a member's chance is proportional to
// their entry weight. All copies of a drawn member leave the pool before the
// next draw: nobody wins twice. Disqualified members leave the pool the same
// way without occupying a winner slot.
func DrawWinners(rng *rand.Rand, pool []string, count int, keep MemberFilter) DrawResult {
	remaining := append([]string(nil), pool...)
	var winners []string
	for len(winners) < count && len(remaining) > 0 {
		id := draw.Pick(rng, remaining)
		remaining = draw.RemoveAll(remaining, id)
		if keep == nil || keep(id) {
			winners = append(winners, id)
		}
	}
	return DrawResult{Winners: winners, Remaining: remaining}
}
