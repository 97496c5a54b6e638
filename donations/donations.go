// Package donations keeps per-guild donation ledgers and grants threshold
// roles as members' totals cross category autorole amounts.
package donations

import (
	"giveaway-bot/model"
	"giveaway-bot/utils/database"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// RoleSyncer applies role changes on the chat platform. A nil syncer
// disables autoroles.
type RoleSyncer interface {
	AddRole(guildID, memberID, roleID string) error
	RemoveRole(guildID, memberID, roleID string) error
}

type Service struct {
	db    *sqlx.DB
	roles RoleSyncer
}

func NewService(db *sqlx.DB, roles RoleSyncer) *Service {
	return &Service{db: db, roles: roles}
}

// SaveCategory creates or updates a category definition.
func (s *Service) SaveCategory(c *model.DonationCategory) error {
	return database.SaveDonationCategory(s.db, c)
}

// Category returns a category or ErrDonationCategoryNotFound.
func (s *Service) Category(guildID, name string) (*model.DonationCategory, error) {
	c, err := database.GetDonationCategory(s.db, guildID, name)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, model.ErrDonationCategoryNotFound
	}
	return c, nil
}

// Add credits a donation to a member's running total and reconciles their
// autoroles against the new amount.
func (s *Service) Add(guildID, category, memberID string, amount int64) (int64, error) {
	return s.adjust(guildID, category, memberID, amount)
}

// Remove debits a member's running total. Debiting below zero fails with
// ErrInsufficientDonations and leaves the ledger untouched.
func (s *Service) Remove(guildID, category, memberID string, amount int64) (int64, error) {
	return s.adjust(guildID, category, memberID, -amount)
}

func (s *Service) adjust(guildID, category, memberID string, delta int64) (int64, error) {
	c, err := s.Category(guildID, category)
	if err != nil {
		return 0, err
	}

	total, err := database.AdjustDonation(s.db, guildID, category, memberID, delta)
	if err != nil {
		return total, err
	}
	s.syncRoles(c, memberID, total)
	return total, nil
}

// Total returns a member's running total in a category.
func (s *Service) Total(guildID, category, memberID string) (int64, error) {
	if _, err := s.Category(guildID, category); err != nil {
		return 0, err
	}
	return database.GetDonation(s.db, guildID, category, memberID)
}

// Leaderboard returns the top donors of a category.
func (s *Service) Leaderboard(guildID, category string, limit int) ([]model.Donation, error) {
	if _, err := s.Category(guildID, category); err != nil {
		return nil, err
	}
	return database.TopDonations(s.db, guildID, category, limit)
}

// syncRoles grants every autorole whose threshold the total reaches and
// revokes the rest. Role errors are logged, not returned: the ledger update
// already committed.
func (s *Service) syncRoles(c *model.DonationCategory, memberID string, total int64) {
	if s.roles == nil {
		return
	}
	for roleID, threshold := range c.Autoroles {
		var err error
		if total >= threshold {
			err = s.roles.AddRole(c.GuildID, memberID, roleID)
		} else {
			err = s.roles.RemoveRole(c.GuildID, memberID, roleID)
		}
		if err != nil {
			log.Warn().Err(err).
				Str("guild_id", c.GuildID).
				Str("member_id", memberID).
				Str("role_id", roleID).
				Msg("failed to sync donation autorole")
		}
	}
}
