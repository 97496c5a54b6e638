package database

import (
	"time"

	"giveaway-bot/model"

	"github.com/jmoiron/sqlx"
)

// TimerStore adapts the timer queries to the dispatcher's store interface.
type TimerStore struct {
	DB *sqlx.DB
}

func (s *TimerStore) CreateTimer(timer model.Timer) error {
	return CreateTimer(s.DB, timer)
}

func (s *TimerStore) NextTimerWithin(now time.Time, horizon time.Duration) (*model.Timer, error) {
	return NextTimerWithin(s.DB, now, horizon)
}

func (s *TimerStore) GetTimer(key model.TimerKey) (*model.Timer, error) {
	return GetTimer(s.DB, key)
}

func (s *TimerStore) DeleteTimer(key model.TimerKey) (bool, error) {
	return DeleteTimer(s.DB, key)
}
