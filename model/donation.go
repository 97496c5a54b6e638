package model

import "errors"

var (
	ErrDonationCategoryNotFound = errors.New("that is not a valid donation category")
	ErrInsufficientDonations    = errors.New("the member does not have that much donated")
)

// DonationCategory is a per-guild donation ledger definition. Autoroles maps
// a role id to the donation amount at which the role is granted.
type DonationCategory struct {
	GuildID   string
	Name      string
	Symbol    string
	Autoroles map[string]int64
}

// Donation is a single member's running total within a category.
type Donation struct {
	GuildID  string `db:"guild_id"`
	Category string `db:"category"`
	MemberID string `db:"member_id"`
	Amount   int64  `db:"amount"`
}
