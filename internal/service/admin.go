package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"saint-devil-lottery/internal/lottery"
	"saint-devil-lottery/internal/model"
	"saint-devil-lottery/internal/pkg/metrics"
	"saint-devil-lottery/internal/repository"
)

// Admin operation names used in logs and metrics.
const (
	OpSetPositions = "set_positions"
	OpRandomPair   = "random_pair"
	OpResetAll     = "reset_all"
	OpStats        = "stats"
	OpEnsureToday  = "ensure_today"
)

// AdminService handles operator actions on the lottery state.
type AdminService struct {
	store     repository.Store
	generator *lottery.PositionGenerator
	lottery   *LotteryService
}

// NewAdminService creates a new AdminService instance. Dates come from ls so
// admin actions and plays agree on what "today" is.
func NewAdminService(store repository.Store, generator *lottery.PositionGenerator, ls *LotteryService) *AdminService {
	return &AdminService{
		store:     store,
		generator: generator,
		lottery:   ls,
	}
}

// SetPositions overrides today's winner positions and clears both found flags.
func (s *AdminService) SetPositions(ctx context.Context, saintPos, devilPos int) (*model.DailyStats, error) {
	if err := lottery.ValidatePositions(saintPos, devilPos); err != nil {
		return nil, err
	}

	stats, err := s.store.SetPositions(ctx, s.lottery.Today(), saintPos, devilPos)
	if err != nil {
		return nil, fmt.Errorf("failed to set positions: %w", err)
	}

	metrics.RecordAdminOperation(OpSetPositions)
	log.Info().
		Str("operation", OpSetPositions).
		Str("date", stats.Date).
		Int("saint", saintPos).
		Int("devil", devilPos).
		Int("total_players", stats.TotalPlayers).
		Msg("Winner positions overridden")

	return stats, nil
}

// GenerateRandomPair draws a fresh pair and applies it as today's override.
func (s *AdminService) GenerateRandomPair(ctx context.Context) (*model.DailyStats, error) {
	saintPos, devilPos := s.generator.GeneratePair()

	stats, err := s.store.SetPositions(ctx, s.lottery.Today(), saintPos, devilPos)
	if err != nil {
		return nil, fmt.Errorf("failed to apply random positions: %w", err)
	}

	metrics.RecordAdminOperation(OpRandomPair)
	log.Info().
		Str("operation", OpRandomPair).
		Str("date", stats.Date).
		Int("saint", saintPos).
		Int("devil", devilPos).
		Msg("Random winner positions applied")

	return stats, nil
}

// ResetAll clears every day and every play record.
func (s *AdminService) ResetAll(ctx context.Context) error {
	if err := s.store.ResetAll(ctx); err != nil {
		return fmt.Errorf("failed to reset lottery: %w", err)
	}

	metrics.RecordAdminOperation(OpResetAll)
	log.Info().Str("operation", OpResetAll).Msg("Lottery state reset")
	return nil
}

// Stats returns today's full stats, winner positions included.
func (s *AdminService) Stats(ctx context.Context) (*model.DailyStats, error) {
	stats, err := s.lottery.TodayStats(ctx)
	if err != nil {
		return nil, err
	}
	metrics.RecordAdminOperation(OpStats)
	return stats, nil
}

// EnsureToday creates today's stats if missing. The bool reports creation.
func (s *AdminService) EnsureToday(ctx context.Context) (*model.DailyStats, bool, error) {
	date := s.lottery.Today()
	stats, created, err := s.store.GetOrCreateDay(ctx, date, s.generator.GeneratePair)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure day %s: %w", date, err)
	}

	metrics.RecordAdminOperation(OpEnsureToday)
	if created {
		log.Info().
			Str("operation", OpEnsureToday).
			Str("date", date).
			Int("saint", stats.SaintWinnerPosition).
			Int("devil", stats.DevilWinnerPosition).
			Msg("New lottery day started")
	}
	return stats, created, nil
}

// PurgePlayRecords drops play records that can no longer block anyone.
func (s *AdminService) PurgePlayRecords(ctx context.Context) (int64, error) {
	cutoff := s.lottery.clock.Now().Add(-s.lottery.limiter.Window())
	purged, err := s.store.PurgePlayRecords(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge play records: %w", err)
	}
	if purged > 0 {
		log.Info().Int64("purged", purged).Time("before", cutoff).Msg("Expired play records purged")
	}
	return purged, nil
}
