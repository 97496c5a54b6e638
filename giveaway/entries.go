package giveaway

import (
	"context"
	"errors"
	"sync"

	"giveaway-bot/model"
	"giveaway-bot/utils/database"
	"giveaway-bot/utils/draw"

	"github.com/jmoiron/sqlx"
)

// CountSource supplies live message counts that have not been flushed to the
// database yet.
type CountSource interface {
	MessageCount(key model.TimerKey, memberID string) (int, bool)
}

// Registry handles joining and leaving giveaways. Mutations to one
// giveaway's participant list are serialized through a per-giveaway lock so
// concurrent joins cannot lose each other's read-modify-write.
type Registry struct {
	db        *sqlx.DB
	evaluator *Evaluator
	counts    CountSource

	mu    sync.Mutex
	locks map[model.TimerKey]*sync.Mutex
}

func NewRegistry(db *sqlx.DB, evaluator *Evaluator, counts CountSource) *Registry {
	return &Registry{
		db:        db,
		evaluator: evaluator,
		counts:    counts,
		locks:     make(map[model.TimerKey]*sync.Mutex),
	}
}

func (r *Registry) lockFor(key model.TimerKey) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[key] = lock
	}
	return lock
}

// forget drops the per-giveaway lock once the giveaway is gone.
func (r *Registry) forget(key model.TimerKey) {
	r.mu.Lock()
	delete(r.locks, key)
	r.mu.Unlock()
}

// Join enters a member into a giveaway with their computed entry weight and
// returns the distinct participant count after the join. Members holding a
// bypass role may enter despite unmet requirements, but bypassing never
// inflates their weight.
func (r *Registry) Join(ctx context.Context, key model.TimerKey, m Member) (int, error) {
	lock := r.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	g, err := database.GetGiveaway(r.db, key)
	if err != nil {
		return 0, err
	}
	if g == nil {
		return 0, model.ErrGiveawayNotFound
	}
	if g.Ended {
		return 0, model.ErrGiveawayEnded
	}
	if g.HasParticipant(m.ID) {
		return 0, model.ErrAlreadyJoined
	}

	r.overlayLiveCounts(g, m.ID)
	if err := r.evaluator.CheckRequirements(ctx, g, m); err != nil {
		var elig *model.EligibilityError
		if !errors.As(err, &elig) || !CanBypass(g, m) {
			return 0, err
		}
	}

	weight := EntryWeight(g, m)
	for i := 0; i < weight; i++ {
		g.Participants = append(g.Participants, m.ID)
	}
	if err := database.UpdateParticipants(r.db, key, g.Participants); err != nil {
		return 0, err
	}
	return g.DistinctParticipants(), nil
}

// Leave removes every entry the member holds in the giveaway and returns
// the distinct participant count after the removal.
func (r *Registry) Leave(key model.TimerKey, memberID string) (int, error) {
	lock := r.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	g, err := database.GetGiveaway(r.db, key)
	if err != nil {
		return 0, err
	}
	if g == nil {
		return 0, model.ErrGiveawayNotFound
	}
	if g.Ended {
		return 0, model.ErrGiveawayEnded
	}
	if !g.HasParticipant(memberID) {
		return 0, model.ErrNotParticipating
	}

	g.Participants = draw.RemoveAll(g.Participants, memberID)
	if err := database.UpdateParticipants(r.db, key, g.Participants); err != nil {
		return 0, err
	}
	return g.DistinctParticipants(), nil
}

// overlayLiveCounts patches unflushed message counters into the loaded row
// so the requirement check sees up-to-date numbers.
func (r *Registry) overlayLiveCounts(g *model.Giveaway, memberID string) {
	if r.counts == nil || g.MessagesRequired <= 0 {
		return
	}
	if n, ok := r.counts.MessageCount(g.Key(), memberID); ok {
		if g.Messages == nil {
			g.Messages = make(map[string]int)
		}
		g.Messages[memberID] = n
	}
}
