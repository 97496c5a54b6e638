package giveaway

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"giveaway-bot/model"
	"giveaway-bot/utils/database"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// EventGiveaway is the timer event tag giveaway deadlines fire under.
const EventGiveaway = "giveaway"

// Scheduler is the timer surface the lifecycle needs.
type Scheduler interface {
	CreateTimer(timer model.Timer) error
	CancelTimer(key model.TimerKey) error
}

// Notifier announces lifecycle transitions in chat. Implementations must not
// block for long; they run on the dispatch path.
type Notifier interface {
	GiveawayEnded(g *model.Giveaway, winners []string)
	GiveawayRerolled(g *model.Giveaway, winners []string)
	GiveawayCancelled(g *model.Giveaway)
}

// MemberSource resolves a member of a guild, or nil when they left. The
// draw uses it to discard departed members and to re-check eligibility with
// their current roles.
type MemberSource interface {
	ResolveMember(guildID, memberID string) (*Member, error)
}

// TrackerControl is the message tracker surface the lifecycle needs.
type TrackerControl interface {
	Track(g *model.Giveaway)
	Forget(key model.TimerKey)
}

// ServiceConfig wires a lifecycle service together. Notifier, Members,
// Tracker and Rand are optional.
type ServiceConfig struct {
	DB        *sqlx.DB
	Scheduler Scheduler
	Registry  *Registry
	Notifier  Notifier
	Members   MemberSource
	Tracker   TrackerControl
	Rand      *rand.Rand
}

// Service drives a giveaway from creation to its winner announcement.
//
// Ending is guarded by a check-and-set on the ended flag: whichever path
// flips it first (the timer firing or a manual force-end) owns the winner
// draw, and every other path sees ErrGiveawayEnded.
type Service struct {
	db        *sqlx.DB
	scheduler Scheduler
	registry  *Registry
	notifier  Notifier
	members   MemberSource
	tracker   TrackerControl

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewService(cfg ServiceConfig) *Service {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		db:        cfg.DB,
		scheduler: cfg.Scheduler,
		registry:  cfg.Registry,
		notifier:  cfg.Notifier,
		members:   cfg.Members,
		tracker:   cfg.Tracker,
		rng:       rng,
	}
}

// Start persists a new giveaway and schedules its deadline.
func (s *Service) Start(g *model.Giveaway) error {
	if err := database.CreateGiveaway(s.db, g); err != nil {
		return err
	}
	timer := model.Timer{
		GuildID:   g.GuildID,
		ChannelID: g.ChannelID,
		MessageID: g.MessageID,
		AuthorID:  g.HostID,
		Event:     EventGiveaway,
		Title:     g.Prize,
		Expires:   g.Ends.UTC(),
	}
	if err := s.scheduler.CreateTimer(timer); err != nil {
		return err
	}
	if s.tracker != nil && g.TracksMessages() {
		s.tracker.Track(g)
	}
	return nil
}

// Join enters a member into a giveaway and returns the distinct participant
// count after the join.
func (s *Service) Join(ctx context.Context, key model.TimerKey, m Member) (int, error) {
	return s.registry.Join(ctx, key, m)
}

// Leave removes a member's entries from a giveaway and returns the distinct
// participant count after the removal.
func (s *Service) Leave(key model.TimerKey, memberID string) (int, error) {
	return s.registry.Leave(key, memberID)
}

// HandleTimer is the dispatcher handler for giveaway deadlines.
func (s *Service) HandleTimer(timer model.Timer) {
	if _, err := s.End(timer.Key()); err != nil && !errors.Is(err, model.ErrGiveawayEnded) {
		log.Error().Err(err).
			Str("guild_id", timer.GuildID).
			Str("message_id", timer.MessageID).
			Msg("failed to end giveaway on deadline")
	}
}

// End finishes a giveaway, draws its winners and announces them. Ending an
// already-ended giveaway returns ErrGiveawayEnded without side effects, so
// the timer firing and a manual force-end can race safely.
func (s *Service) End(key model.TimerKey) ([]string, error) {
	g, err := database.GetGiveaway(s.db, key)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, model.ErrGiveawayNotFound
	}

	claimed, err := database.MarkEnded(s.db, key)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, model.ErrGiveawayEnded
	}
	g.Ended = true

	if err := s.scheduler.CancelTimer(key); err != nil {
		log.Warn().Err(err).Str("message_id", key.MessageID).Msg("failed to cancel giveaway timer")
	}
	if s.tracker != nil {
		s.tracker.Forget(key)
	}
	s.registry.forget(key)

	winners, err := s.drawAndPersist(g, g.WinnerCount)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.GiveawayEnded(g, winners)
	}
	return winners, nil
}

// Reroll re-runs the draw over the full participant pool and overwrites the
// recorded winners. The pool is never reduced by a draw, so every reroll
// sees the same entries the deadline saw.
func (s *Service) Reroll(key model.TimerKey, count int) ([]string, error) {
	g, err := database.GetGiveaway(s.db, key)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, model.ErrGiveawayNotFound
	}
	if !g.Ended {
		return nil, model.ErrGiveawayNotEnded
	}
	if count <= 0 {
		count = 1
	}

	winners, err := s.drawAndPersist(g, count)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.GiveawayRerolled(g, winners)
	}
	return winners, nil
}

// Cancel deletes a giveaway outright: the deadline is dropped and no winner
// is ever drawn.
func (s *Service) Cancel(key model.TimerKey) error {
	g, err := database.GetGiveaway(s.db, key)
	if err != nil {
		return err
	}
	if g == nil {
		return model.ErrGiveawayNotFound
	}

	if err := s.scheduler.CancelTimer(key); err != nil {
		log.Warn().Err(err).Str("message_id", key.MessageID).Msg("failed to cancel giveaway timer")
	}
	if s.tracker != nil {
		s.tracker.Forget(key)
	}
	s.registry.forget(key)

	if err := database.DeleteGiveaway(s.db, key); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.GiveawayCancelled(g)
	}
	return nil
}

// drawAndPersist draws from a copy of the participant pool and records the
// winners. The stored pool itself is never rewritten: winners stay a subset
// of the persisted participants, and a later reroll draws from the same
// entries.
func (s *Service) drawAndPersist(g *model.Giveaway, count int) ([]string, error) {
	s.rngMu.Lock()
	result := DrawWinners(s.rng, g.Participants, count, s.winnerFilter(g))
	s.rngMu.Unlock()

	g.Winners = result.Winners
	if err := database.UpdateWinners(s.db, g.Key(), g.Winners); err != nil {
		return nil, err
	}
	return result.Winners, nil
}

// winnerFilter discards drawn members who left the guild or no longer meet
// the entry requirements (unless their current roles bypass them). A failed
// rank lookup keeps the member: an API outage must not silently void wins.
func (s *Service) winnerFilter(g *model.Giveaway) MemberFilter {
	if s.members == nil {
		return nil
	}
	return func(memberID string) bool {
		m, err := s.members.ResolveMember(g.GuildID, memberID)
		if err != nil {
			log.Warn().Err(err).Str("member_id", memberID).Msg("failed to resolve drawn member")
			return true
		}
		if m == nil {
			return false
		}
		err = s.registry.evaluator.CheckRequirements(context.Background(), g, *m)
		if err == nil {
			return true
		}
		var elig *model.EligibilityError
		if errors.As(err, &elig) {
			return CanBypass(g, *m)
		}
		log.Warn().Err(err).Str("member_id", memberID).Msg("failed to re-check drawn member")
		return true
	}
}
