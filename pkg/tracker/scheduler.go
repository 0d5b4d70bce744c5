package tracker

import (
	"context"
	"time"

	"github.com/vznh/conviction/internal/utils"
	"github.com/vznh/conviction/pkg/storage"
)

// tickPeriod is the reconciliation cadence. The two boundary windows are
// one minute wide, so a period above 60s could skip them entirely.
const tickPeriod = 60 * time.Second

// Scheduler runs the daily reconciliation loop: a reset shortly after
// midnight and a finalize pass just before it, both in the campaign zone.
// Ticks run to completion on a single goroutine; a tick that overruns
// simply delays the next one, two ticks never run concurrently. Boundaries
// missed while the process was down are not replayed; a fresh Rebuild on
// startup is the recovery path.
type Scheduler struct {
	service *Service
}

func NewScheduler(service *Service) *Scheduler {
	return &Scheduler{service: service}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick evaluates the boundary windows once. Exported so the run loop and
// tests share the exact same logic.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.service.cfg.Now()
	clock := s.service.cfg.Clock
	hour, minute := clock.LocalTime(now)

	if hour == 0 && minute == 1 {
		isoToday := clock.ISODate(now)
		if s.service.store.ResetAll(isoToday) {
			s.service.journal(ctx, storage.Event{Kind: storage.EventReset})
			s.service.PublishPanels(ctx)
			utils.Log.Info("Daily reset completed.")
		}
	}

	if hour == 23 && minute == 59 {
		currentDay := clock.CurrentDayIndex(now)
		missed := s.service.store.FinalizeMissedDay(currentDay)
		events := make([]storage.Event, 0, len(missed))
		for _, m := range missed {
			events = append(events, storage.Event{Participant: m.Participant, Day: m.Day, Kind: storage.EventMissed})
		}
		s.service.journal(ctx, events...)
		s.service.PublishPanels(ctx)
		utils.Log.Info("Finalized missed days at end of day.")
	}
}
