package bot

import (
	"fmt"
	"time"

	"giveaway-bot/giveaway"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler owns the periodic maintenance jobs: flushing message counters,
// evicting stale settings, and trimming idle rate limiters.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(tracker *giveaway.Tracker, settings *giveaway.SettingsCache, flushInterval, settingsTTL time.Duration) (*Scheduler, error) {
	c := cron.New()

	jobs := []struct {
		spec string
		name string
		fn   func()
	}{
		{
			spec: fmt.Sprintf("@every %s", flushInterval),
			name: "flush message counters",
			fn:   tracker.Flush,
		},
		{
			spec: fmt.Sprintf("@every %s", settingsTTL),
			name: "evict expired settings",
			fn:   settings.EvictExpired,
		},
		{
			spec: "@every 30m",
			name: "evict idle limiters",
			fn:   func() { tracker.EvictIdleLimiters(time.Hour) },
		},
	}

	for _, job := range jobs {
		job := job
		_, err := c.AddFunc(job.spec, func() {
			log.Debug().Str("job", job.name).Msg("running scheduled job")
			job.fn()
		})
		if err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
	}

	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
