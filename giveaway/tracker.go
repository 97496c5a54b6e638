package giveaway

import (
	"sync"
	"time"

	"giveaway-bot/model"
	"giveaway-bot/utils/database"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Tracker counts messages for giveaways that gate entry on activity.
// Counters live in memory and are flushed to the database on an interval, so
// a chatty guild does not turn every message into a write.
type Tracker struct {
	db       *sqlx.DB
	cooldown time.Duration

	mu       sync.Mutex
	tracked  map[model.TimerKey]*trackedGiveaway
	limiters map[limiterKey]*memberLimiter
}

type trackedGiveaway struct {
	guildID  string
	channels map[string]struct{}
	counts   map[string]int
	dirty    bool
}

type limiterKey struct {
	key      model.TimerKey
	memberID string
}

type memberLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTracker builds a tracker. Messages from the same member count at most
// once per cooldown, so spam cannot farm the requirement.
func NewTracker(db *sqlx.DB, cooldown time.Duration) *Tracker {
	return &Tracker{
		db:       db,
		cooldown: cooldown,
		tracked:  make(map[model.TimerKey]*trackedGiveaway),
		limiters: make(map[limiterKey]*memberLimiter),
	}
}

// Load warms the tracker from the database after a restart.
func (t *Tracker) Load() error {
	giveaways, err := database.ListTrackedGiveaways(t.db)
	if err != nil {
		return err
	}
	for _, g := range giveaways {
		t.Track(g)
	}
	return nil
}

// Track starts counting messages for a giveaway.
func (t *Tracker) Track(g *model.Giveaway) {
	if !g.TracksMessages() {
		return
	}

	tracked := &trackedGiveaway{
		guildID: g.GuildID,
		counts:  make(map[string]int, len(g.Messages)),
	}
	for id, n := range g.Messages {
		tracked.counts[id] = n
	}
	if len(g.AllowedMessageChannels) > 0 {
		tracked.channels = make(map[string]struct{}, len(g.AllowedMessageChannels))
		for _, ch := range g.AllowedMessageChannels {
			tracked.channels[ch] = struct{}{}
		}
	}

	t.mu.Lock()
	t.tracked[g.Key()] = tracked
	t.mu.Unlock()
}

// Forget drops a giveaway and its limiters without flushing. Counters of a
// finished giveaway have no further use.
func (t *Tracker) Forget(key model.TimerKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tracked, key)
	for lk := range t.limiters {
		if lk.key == key {
			delete(t.limiters, lk)
		}
	}
}

// HandleMessage credits one message to every tracked giveaway of the guild
// whose channel filter admits the message. Credits are rate limited per
// member and giveaway.
func (t *Tracker) HandleMessage(guildID, channelID, memberID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for key, tracked := range t.tracked {
		if tracked.guildID != guildID {
			continue
		}
		if tracked.channels != nil {
			if _, ok := tracked.channels[channelID]; !ok {
				continue
			}
		}
		if !t.allowLocked(key, memberID, now) {
			continue
		}
		tracked.counts[memberID]++
		tracked.dirty = true
	}
}

func (t *Tracker) allowLocked(key model.TimerKey, memberID string, now time.Time) bool {
	if t.cooldown <= 0 {
		return true
	}
	lk := limiterKey{key: key, memberID: memberID}
	ml, ok := t.limiters[lk]
	if !ok {
		ml = &memberLimiter{limiter: rate.NewLimiter(rate.Every(t.cooldown), 1)}
		t.limiters[lk] = ml
	}
	ml.lastSeen = now
	return ml.limiter.Allow()
}

// MessageCount returns the live counter for a member, and whether the
// giveaway is tracked at all.
func (t *Tracker) MessageCount(key model.TimerKey, memberID string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tracked, ok := t.tracked[key]
	if !ok {
		return 0, false
	}
	return tracked.counts[memberID], true
}

// Flush writes every dirty counter set to the database. Runs on a schedule;
// failures are logged and retried on the next tick.
func (t *Tracker) Flush() {
	t.mu.Lock()
	pending := make(map[model.TimerKey]map[string]int)
	for key, tracked := range t.tracked {
		if !tracked.dirty {
			continue
		}
		snapshot := make(map[string]int, len(tracked.counts))
		for id, n := range tracked.counts {
			snapshot[id] = n
		}
		pending[key] = snapshot
		tracked.dirty = false
	}
	t.mu.Unlock()

	for key, counts := range pending {
		if err := database.UpdateMessages(t.db, key, counts); err != nil {
			log.Error().Err(err).Str("message_id", key.MessageID).Msg("failed to flush message counters")
			t.markDirty(key)
		}
	}
}

func (t *Tracker) markDirty(key model.TimerKey) {
	t.mu.Lock()
	if tracked, ok := t.tracked[key]; ok {
		tracked.dirty = true
	}
	t.mu.Unlock()
}

// EvictIdleLimiters drops limiters that have not seen a message for the
// given duration. Runs on a schedule to keep the map bounded.
func (t *Tracker) EvictIdleLimiters(idle time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-idle)
	for lk, ml := range t.limiters {
		if ml.lastSeen.Before(cutoff) {
			delete(t.limiters, lk)
		}
	}
}
