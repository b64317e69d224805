package batch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StartScheduler runs RunOnce once a day at scheduleHour local time,
// following the teacher's StartJanitor shape (a single background
// goroutine selecting on a timer and ctx.Done). Unlike a fixed-interval
// ticker, each firing recomputes the next midnight-relative target so
// drift never accumulates across days.
func (s *Submitter) StartScheduler(ctx context.Context, scheduleHour int) {
	if scheduleHour < 0 || scheduleHour > 23 {
		scheduleHour = 2
	}
	go func() {
		for {
			wait := time.Until(nextRun(s.now(), scheduleHour))
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				summary := s.RunOnce(ctx)
				log.Info().Int("device_count", len(summary.Devices)).Msg("batch: scheduled run complete")
			}
		}
	}()
}

// nextRun returns the next occurrence of scheduleHour:00 local time
// strictly after now.
func nextRun(now time.Time, scheduleHour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), scheduleHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
