package model

import "errors"

var (
	ErrRaffleNotFound = errors.New("raffle not found")
	ErrNoTickets      = errors.New("that member does not have any tickets in this raffle")
)

// Raffle is a named per-guild ticket draw. Unlike giveaways it carries no
// eligibility rules: a roll is a single weighted pick over the ticket map.
type Raffle struct {
	GuildID  string
	Name     string
	WinnerID string
	// Tickets maps a member id to the number of tickets they hold.
	Tickets map[string]int
}
