// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"saint-devil-lottery/internal/lottery"
	"saint-devil-lottery/internal/model"
	"saint-devil-lottery/internal/pkg/metrics"
	"saint-devil-lottery/internal/repository"
)

// MaxCard is the highest card index a player can flip.
const MaxCard = 2

// maxDayRetries bounds how often a play restarts after a concurrent reset
// removed the day it was about to join.
const maxDayRetries = 3

// PlayRequest is a single play submission. IP must come from the transport,
// never from the client payload.
type PlayRequest struct {
	Name  string
	Phone string
	Card  int
	IP    string
}

// Eligibility is the result of a pre-play check.
type Eligibility struct {
	Allowed    bool
	RetryAfter time.Duration
}

// LotteryService runs plays against a Store.
type LotteryService struct {
	store     repository.Store
	generator *lottery.PositionGenerator
	limiter   *lottery.RateLimiter
	clock     clockwork.Clock
	loc       *time.Location
}

// NewLotteryService creates a new LotteryService instance.
// A nil loc means UTC.
func NewLotteryService(
	store repository.Store,
	generator *lottery.PositionGenerator,
	limiter *lottery.RateLimiter,
	clock clockwork.Clock,
	loc *time.Location,
) *LotteryService {
	if loc == nil {
		loc = time.UTC
	}
	return &LotteryService{
		store:     store,
		generator: generator,
		limiter:   limiter,
		clock:     clock,
		loc:       loc,
	}
}

// Today returns the lottery date of now.
func (s *LotteryService) Today() string {
	return s.clock.Now().In(s.loc).Format(model.DateLayout)
}

// Play runs one play: rate-limit check, position allocation, evaluation,
// winner claim and play record, all in one atomic unit.
func (s *LotteryService) Play(ctx context.Context, req PlayRequest) (*model.PlayOutcome, error) {
	start := time.Now()

	if req.Card < 0 || req.Card > MaxCard {
		metrics.RecordRejection(metrics.ReasonInvalidInput)
		return nil, lottery.ErrInvalidCard
	}
	id, err := lottery.NewIdentity(req.Name, req.Phone, req.IP)
	if err != nil {
		metrics.RecordRejection(metrics.ReasonInvalidInput)
		return nil, err
	}
	if !id.Resolved() {
		log.Warn().
			Err(lottery.ErrIdentityUnresolved).
			Str("phone", id.Phone).
			Msg("Player IP unavailable, falling back to unknown")
	}

	now := s.clock.Now()
	date := now.In(s.loc).Format(model.DateLayout)

	var outcome *model.PlayOutcome
	for attempt := 0; ; attempt++ {
		outcome, err = s.playOnce(ctx, id, date, now)
		if errors.Is(err, repository.ErrDayNotFound) && attempt < maxDayRetries {
			log.Debug().Str("date", date).Int("attempt", attempt+1).Msg("Day vanished during play, retrying")
			continue
		}
		break
	}

	if err != nil {
		var played *lottery.PlayedRecentlyError
		if errors.As(err, &played) {
			metrics.RecordRejection(metrics.ReasonAlreadyPlayed)
			log.Debug().
				Str("identity", id.Key()).
				Dur("retry_after", played.RetryAfter).
				Msg("Play rejected, identity played recently")
			return nil, err
		}
		metrics.RecordRejection(metrics.ReasonError)
		log.Error().Err(err).Str("identity", id.Key()).Str("date", date).Msg("Play failed")
		return nil, fmt.Errorf("failed to play: %w", err)
	}

	outcome.PlayID = uuid.NewString()
	metrics.RecordPlay(resultLabel(outcome), time.Since(start))

	log.Info().
		Str("play_id", outcome.PlayID).
		Str("name", id.Name).
		Str("identity", id.Key()).
		Str("date", date).
		Int("card", req.Card).
		Int("position", outcome.Position).
		Bool("winner", outcome.IsWinner).
		Str("type", string(outcome.Type)).
		Msg("Play completed")

	return outcome, nil
}

func (s *LotteryService) playOnce(ctx context.Context, id lottery.Identity, date string, now time.Time) (*model.PlayOutcome, error) {
	if _, created, err := s.store.GetOrCreateDay(ctx, date, s.generator.GeneratePair); err != nil {
		return nil, err
	} else if created {
		log.Info().Str("date", date).Msg("Daily stats created")
	}

	var outcome *model.PlayOutcome
	err := s.store.Atomic(ctx, date, id.Key(), func(tx repository.Tx) error {
		wait, err := s.limiter.RetryAfter(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if wait > 0 {
			return &lottery.PlayedRecentlyError{RetryAfter: wait}
		}

		position, before, err := tx.AllocateNext(ctx, date)
		if err != nil {
			return err
		}

		o := lottery.Evaluate(position, before)
		if o.IsWinner {
			if err := tx.MarkWinnerFound(ctx, date, o.Type); err != nil {
				return err
			}
		}

		if err := s.limiter.RecordPlay(ctx, tx, id, now); err != nil {
			return err
		}
		outcome = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// CheckEligibility reports whether phone, seen from ip, may play now.
func (s *LotteryService) CheckEligibility(ctx context.Context, phone, ip string) (*Eligibility, error) {
	phone = lottery.NormalizePhone(phone)
	if !lottery.ValidPhone(phone) {
		return nil, lottery.ErrInvalidPhone
	}
	if ip = strings.TrimSpace(ip); ip == "" {
		ip = lottery.UnknownIP
	}
	id := lottery.Identity{Phone: phone, IP: ip}

	now := s.clock.Now()
	date := now.In(s.loc).Format(model.DateLayout)

	var wait time.Duration
	err := s.store.Atomic(ctx, date, id.Key(), func(tx repository.Tx) error {
		var err error
		wait, err = s.limiter.RetryAfter(ctx, tx, id, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check eligibility: %w", err)
	}
	return &Eligibility{Allowed: wait == 0, RetryAfter: wait}, nil
}

// TodayStats returns today's stats, creating the day if nobody played yet.
func (s *LotteryService) TodayStats(ctx context.Context) (*model.DailyStats, error) {
	stats, _, err := s.store.GetOrCreateDay(ctx, s.Today(), s.generator.GeneratePair)
	if err != nil {
		return nil, fmt.Errorf("failed to get today's stats: %w", err)
	}
	return stats, nil
}

func resultLabel(o *model.PlayOutcome) string {
	switch o.Type {
	case model.WinnerSaint:
		return metrics.ResultSaint
	case model.WinnerDevil:
		return metrics.ResultDevil
	default:
		return metrics.ResultNoPrize
	}
}
