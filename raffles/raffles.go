// Package raffles implements named per-guild ticket raffles. A raffle is a
// plain weight map without entry rules; the roll is a single weighted pick.
package raffles

import (
	"math/rand"
	"sync"
	"time"

	"giveaway-bot/model"
	"giveaway-bot/utils/database"
	"giveaway-bot/utils/draw"

	"github.com/jmoiron/sqlx"
)

type Service struct {
	db *sqlx.DB

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService builds a raffle service. A nil rng gets a time-seeded source.
func NewService(db *sqlx.DB, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{db: db, rng: rng}
}

// Get returns a raffle or ErrRaffleNotFound.
func (s *Service) Get(guildID, name string) (*model.Raffle, error) {
	r, err := database.GetRaffle(s.db, guildID, name)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, model.ErrRaffleNotFound
	}
	return r, nil
}

// List returns the raffle names of a guild.
func (s *Service) List(guildID string) ([]string, error) {
	return database.ListRaffleNames(s.db, guildID)
}

// AddTickets grants tickets to a member, creating the raffle on first use.
func (s *Service) AddTickets(guildID, name, memberID string, count int) (*model.Raffle, error) {
	r, err := database.GetRaffle(s.db, guildID, name)
	if err != nil {
		return nil, err
	}
	if r == nil {
		r = &model.Raffle{GuildID: guildID, Name: name, Tickets: map[string]int{}}
	}

	r.Tickets[memberID] += count
	if r.Tickets[memberID] <= 0 {
		delete(r.Tickets, memberID)
	}
	if err := database.SaveRaffle(s.db, r); err != nil {
		return nil, err
	}
	return r, nil
}

// RemoveTickets takes tickets away from a member. Removing below zero clears
// the member from the raffle.
func (s *Service) RemoveTickets(guildID, name, memberID string, count int) (*model.Raffle, error) {
	r, err := s.Get(guildID, name)
	if err != nil {
		return nil, err
	}
	if r.Tickets[memberID] == 0 {
		return nil, model.ErrNoTickets
	}

	r.Tickets[memberID] -= count
	if r.Tickets[memberID] <= 0 {
		delete(r.Tickets, memberID)
	}
	if err := database.SaveRaffle(s.db, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Roll draws the raffle winner, with probability proportional to tickets
// held, and records them on the raffle.
func (s *Service) Roll(guildID, name string) (string, error) {
	r, err := s.Get(guildID, name)
	if err != nil {
		return "", err
	}

	s.rngMu.Lock()
	winner := draw.PickWeighted(s.rng, r.Tickets)
	s.rngMu.Unlock()
	if winner == "" {
		return "", model.ErrNoTickets
	}

	r.WinnerID = winner
	if err := database.SaveRaffle(s.db, r); err != nil {
		return "", err
	}
	return winner, nil
}

// Delete removes a raffle entirely.
func (s *Service) Delete(guildID, name string) error {
	if _, err := s.Get(guildID, name); err != nil {
		return err
	}
	return database.DeleteRaffle(s.db, guildID, name)
}
