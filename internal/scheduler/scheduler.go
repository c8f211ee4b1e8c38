// Package scheduler runs the lottery's periodic jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"saint-devil-lottery/internal/config"
	"saint-devil-lottery/internal/model"
)

// jobTimeout bounds a single job run.
const jobTimeout = 30 * time.Second

// Jobs is the work the scheduler triggers. service.AdminService implements it.
type Jobs interface {
	EnsureToday(ctx context.Context) (*model.DailyStats, bool, error)
	PurgePlayRecords(ctx context.Context) (int64, error)
}

// Scheduler wraps a cron runner evaluated in the lottery timezone.
type Scheduler struct {
	cron *cron.Cron
	jobs Jobs
}

// New registers the configured jobs. Empty specs are skipped.
func New(cfg config.SchedulerConfig, loc *time.Location, jobs Jobs) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		cron: cron.New(cron.WithLocation(loc)),
		jobs: jobs,
	}

	if cfg.DayStart != "" {
		if _, err := s.cron.AddFunc(cfg.DayStart, s.dayStart); err != nil {
			return nil, fmt.Errorf("invalid day_start schedule %q: %w", cfg.DayStart, err)
		}
	}
	if cfg.Purge != "" {
		if _, err := s.cron.AddFunc(cfg.Purge, s.purge); err != nil {
			return nil, fmt.Errorf("invalid purge schedule %q: %w", cfg.Purge, err)
		}
	}

	return s, nil
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Run prepares today's draw, starts the cron runner and blocks until ctx is
// done, then waits for running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.dayStart()

	s.cron.Start()
	log.Info().Int("jobs", s.Jobs()).Msg("Scheduler started")

	<-ctx.Done()

	<-s.cron.Stop().Done()
	log.Info().Msg("Scheduler stopped")
	return nil
}

func (s *Scheduler) dayStart() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	stats, created, err := s.jobs.EnsureToday(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Day start job failed")
		return
	}
	log.Info().
		Str("date", stats.Date).
		Bool("created", created).
		Int("saint", stats.SaintWinnerPosition).
		Int("devil", stats.DevilWinnerPosition).
		Msg("Day start job finished")
}

func (s *Scheduler) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.jobs.PurgePlayRecords(ctx); err != nil {
		log.Error().Err(err).Msg("Purge job failed")
	}
}
