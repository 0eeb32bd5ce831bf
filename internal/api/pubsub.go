package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/triviapot/internal/domain"
	"github.com/victornm/triviapot/internal/event"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	Leaderboard struct {
		SessionID uint64             `json:"session_id"`
		Entries   []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		Participant string `json:"participant"`
		Correct     int    `json:"correct"`
		TimeSpent   int64  `json:"time_spent"`
	}
)

// subscribeEvents forwards domain events to redis channels. Notifications
// are for external indexing and auditing, never for control flow.
func (a *API) subscribeEvents(eb *event.Bus) {
	sessionOf := map[string]func(event.Event) uint64{
		domain.EventNameSessionCreated:    func(e event.Event) uint64 { return e.(domain.EventSessionCreated).Session.SessionID },
		domain.EventNameQuestionAdded:     func(e event.Event) uint64 { return e.(domain.EventQuestionAdded).SessionID },
		domain.EventNameSessionStarted:    func(e event.Event) uint64 { return e.(domain.EventSessionStarted).SessionID },
		domain.EventNameRoundAdvanced:     func(e event.Event) uint64 { return e.(domain.EventRoundAdvanced).SessionID },
		domain.EventNameSessionCompleted:  func(e event.Event) uint64 { return e.(domain.EventSessionCompleted).SessionID },
		domain.EventNameAnswerSubmitted:   func(e event.Event) uint64 { return e.(domain.EventAnswerSubmitted).SessionID },
		domain.EventNameFeeDeposited:      func(e event.Event) uint64 { return e.(domain.EventFeeDeposited).SessionID },
		domain.EventNameFeeRefunded:       func(e event.Event) uint64 { return e.(domain.EventFeeRefunded).SessionID },
		domain.EventNameWinnersDeclared:   func(e event.Event) uint64 { return e.(domain.EventWinnersDeclared).Winners.SessionID },
		domain.EventNameRewardDistributed: func(e event.Event) uint64 { return e.(domain.EventRewardDistributed).Distribution.SessionID },
	}

	for name, sid := range sessionOf {
		sid := sid
		eb.Subscribe(name, func(ctx context.Context, e event.Event) error {
			return a.publishNotification(ctx, a.sessionChannel(sid(e)), e.Name(), e)
		})
	}

	eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})
}

// PublishLeaderboardUpdated fans the refreshed leaderboard out to every
// participant's own channel.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	l := e.Leaderboard

	data := Leaderboard{
		SessionID: l.SessionID,
		Entries:   make([]LeaderboardEntry, 0, len(l.Entries)),
	}

	for _, entry := range l.Entries {
		data.Entries = append(data.Entries, LeaderboardEntry{
			Participant: entry.Participant,
			Correct:     entry.Correct,
			TimeSpent:   entry.TimeSpent,
		})
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, entry := range data.Entries {
		entry := entry
		eg.Go(func() error {
			return a.publishNotification(ctx, a.participantChannel(entry.Participant), e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}

func (a *API) sessionChannel(sessionID uint64) string {
	return fmt.Sprintf("%s:session:%d", a.prefix, sessionID)
}

func (a *API) participantChannel(participant string) string {
	return fmt.Sprintf("%s:user:%s", a.prefix, participant)
}
