package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"posdoctor/internal/domain"
)

var schedulerActor = domain.Actor{Username: "scheduler", Role: "system"}

// ScheduleRepair runs a daily repair pass at the given "HH:MM" time. The
// returned scheduler is already started; call Stop on shutdown.
func ScheduleRepair(svc *Service, at string, loc *time.Location) (*gocron.Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := gocron.NewScheduler(loc)
	s.SingletonModeAll()

	if _, err := s.Every(1).Day().At(at).Do(svc.scheduledRepair); err != nil {
		return nil, fmt.Errorf("schedule repair at %q: %w", at, err)
	}
	s.StartAsync()
	svc.log.Info().Str("at", at).Str("location", loc.String()).Msg("scheduled daily repair")
	return s, nil
}

func (s *Service) scheduledRepair() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ctx = WithActor(ctx, schedulerActor)
	if _, err := s.Repair(ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduled repair failed")
	}
}
