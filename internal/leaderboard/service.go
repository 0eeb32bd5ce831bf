// Package leaderboard keeps a live spectator view of session standings in
// redis. It is a view only: the payout ranking is recomputed from the
// store by the winners service.
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/triviapot/internal/domain"
	"github.com/victornm/triviapot/internal/errors"
	"github.com/victornm/triviapot/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameScoreUpdated, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventScoreUpdated))
	})

	return s
}

type GetLeaderboardRequest struct {
	SessionID uint64
}

// GetLeaderboard returns all participants of a session ordered by correct
// answers descending, cumulative time ascending.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.boardKey(req.SessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("leaderboard not found: session=%d", req.SessionID))
	}

	times, err := s.redis.HGetAll(ctx, s.timesKey(req.SessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard times: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		participant := z.Member.(string)
		spent, _ := strconv.ParseInt(times[participant], 10, 64)
		entries = append(entries, domain.LeaderboardEntry{
			Participant: participant,
			Correct:     int(z.Score),
			TimeSpent:   spent,
		})
	}

	// The sorted set orders by correct count only; break ties locally.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Correct != entries[j].Correct {
			return entries[i].Correct > entries[j].Correct
		}
		return entries[i].TimeSpent < entries[j].TimeSpent
	})

	return &domain.Leaderboard{
		SessionID: req.SessionID,
		Entries:   entries,
	}, nil
}

// UpdateLeaderboard overwrites one participant's standing in the view.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventScoreUpdated) error {
	if err := s.redis.ZAdd(ctx, s.boardKey(e.SessionID), redis.Z{
		Score:  float64(e.Correct),
		Member: e.Participant,
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	if err := s.redis.HSet(ctx, s.timesKey(e.SessionID), e.Participant, e.TimeSpent).Err(); err != nil {
		return fmt.Errorf("update leaderboard times: %w", err)
	}

	return s.schedulePublish(ctx, e)
}

// schedulePublish publishes the refreshed leaderboard at most once per
// interval, since many scores update in a short burst.
func (s *Service) schedulePublish(ctx context.Context, e domain.EventScoreUpdated) error {
	ok, err := s.redis.SetNX(ctx, s.debounceKey(e.SessionID), e.UpdateTime.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{SessionID: e.SessionID})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: session=%d: %w", e.SessionID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{Leaderboard: *l})

	return nil
}

func (s *Service) boardKey(session uint64) string {
	return fmt.Sprintf("%s:%d:leaderboard", s.prefix, session)
}

func (s *Service) timesKey(session uint64) string {
	return fmt.Sprintf("%s:%d:times", s.prefix, session)
}

func (s *Service) debounceKey(session uint64) string {
	return fmt.Sprintf("%s:%d:debounce", s.prefix, session)
}
