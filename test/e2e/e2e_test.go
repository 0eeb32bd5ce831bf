package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/triviapot/internal/domain"
	"github.com/victornm/triviapot/internal/errors"
	"github.com/victornm/triviapot/internal/escrow"
	"github.com/victornm/triviapot/internal/event"
	"github.com/victornm/triviapot/internal/leaderboard"
	"github.com/victornm/triviapot/internal/ledger"
	"github.com/victornm/triviapot/internal/score"
	"github.com/victornm/triviapot/internal/session"
	"github.com/victornm/triviapot/internal/store"
	"github.com/victornm/triviapot/internal/winners"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type app struct {
	ledger      *ledger.Memory
	bus         *event.Bus
	session     *session.Service
	escrow      *escrow.Service
	score       *score.Service
	winners     *winners.Service
	leaderboard *leaderboard.Service
}

func makeApp(t *testing.T) *app {
	t.Helper()

	st := store.NewMemory()
	locks := store.NewSessionLocks()
	eb := event.NewBus()
	lg := ledger.NewMemory()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { rc.Close() })

	now := func() time.Time { return baseTime }

	sessions := session.NewService(session.Config{
		Store:    st,
		Locks:    locks,
		EventBus: eb,
		NowFunc:  now,
	})

	return &app{
		ledger:  lg,
		bus:     eb,
		session: sessions,
		escrow: escrow.NewService(escrow.Config{
			Store:    st,
			Locks:    locks,
			EventBus: eb,
			Ledger:   lg,
			Registry: sessions,
			NowFunc:  now,
		}),
		score: score.NewService(score.Config{
			Store:    st,
			Locks:    locks,
			EventBus: eb,
		}),
		winners: winners.NewService(winners.Config{
			Store:    st,
			Locks:    locks,
			EventBus: eb,
		}),
		leaderboard: leaderboard.NewService(leaderboard.Config{
			EventBus: eb,
			Redis:    rc,
			Prefix:   "e2e",
		}),
	}
}

// TestCompetitionLifecycle walks one session front to back: schedule,
// question bank, deposits (with one refund), play, ranking, payout.
func TestCompetitionLifecycle(t *testing.T) {
	ctx := context.Background()
	a := makeApp(t)
	fee := decimal.NewFromInt(250)

	ss, err := a.session.CreateSession(ctx, session.CreateSessionRequest{
		Name:                 "friday trivia",
		Description:          "weekly pot",
		RegistrationDeadline: baseTime.Add(time.Hour),
		StartTime:            baseTime.Add(2 * time.Hour),
		MinParticipants:      2,
		TotalRounds:          3,
		EntryFee:             fee,
		FirstPct:             30,
		SecondPct:            20,
		ThirdPct:             10,
	})
	require.NoError(t, err)
	id := ss.SessionID

	for n := 1; n <= 3; n++ {
		require.NoError(t, a.session.AddQuestion(ctx, session.AddQuestionRequest{
			SessionID: id,
			Number:    n,
			Text:      "capital of France?",
			Options:   [4]string{"Paris", "Lyon", "Nice", "Lille"},
			Correct:   "Paris",
		}))
	}

	players := []string{"alice", "bob", "carol", "dave"}
	for _, p := range players {
		a.ledger.Credit(p, fee)
		_, err := a.escrow.Deposit(ctx, escrow.DepositRequest{
			SessionID:   id,
			Participant: p,
			Amount:      fee,
		})
		require.NoError(t, err)
	}

	// eve pays in and backs out before the start; her fee comes back and
	// the pool shrinks to the four remaining entries.
	a.ledger.Credit("eve", fee)
	_, err = a.escrow.Deposit(ctx, escrow.DepositRequest{SessionID: id, Participant: "eve", Amount: fee})
	require.NoError(t, err)
	_, err = a.escrow.Refund(ctx, escrow.RefundRequest{SessionID: id, Participant: "eve"})
	require.NoError(t, err)
	require.True(t, a.ledger.Balance("eve").Equal(fee))

	p, err := a.escrow.GetPrizeDetails(ctx, id)
	require.NoError(t, err)
	require.True(t, p.Pool.Equal(decimal.NewFromInt(1000)))
	require.Equal(t, 4, p.Participants)

	resp, err := a.session.Start(ctx, id)
	require.NoError(t, err)
	require.True(t, resp.Started)
	require.Equal(t, 4, resp.Participants)

	// Once started, deposits are locked in.
	_, err = a.escrow.Refund(ctx, escrow.RefundRequest{SessionID: id, Participant: "alice"})
	require.Equal(t, errors.ReasonTriviaAlreadyStarted, errors.ReasonOf(err))

	// alice and bob answer everything right, alice a beat sooner each
	// round; carol misses one; dave misses all.
	submissions := []struct {
		participant string
		answer      string
		offset      time.Duration
	}{
		{"alice", "Paris", time.Second},
		{"bob", "Paris", 2 * time.Second},
		{"carol", "Paris", 3 * time.Second},
		{"dave", "Lyon", 4 * time.Second},
	}

	for round := 1; round <= 3; round++ {
		_, err := a.session.AdvanceRound(ctx, id)
		require.NoError(t, err)

		roundStart := baseTime.Add(2 * time.Hour).Add(time.Duration(round) * 5 * time.Minute)
		for _, sub := range submissions {
			answer := sub.answer
			if sub.participant == "carol" && round == 3 {
				answer = "Nice"
			}
			_, err := a.score.SubmitAnswer(ctx, score.SubmitAnswerRequest{
				SessionID:   id,
				Question:    round,
				Participant: sub.participant,
				Answer:      answer,
				SubmitTime:  roundStart.Add(sub.offset),
			})
			require.NoError(t, err)
		}
	}

	ss2, err := a.session.Complete(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, ss2.Status)

	w, err := a.winners.DetermineWinners(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", w.First)
	assert.Equal(t, "bob", w.Second)
	assert.Equal(t, "carol", w.Third)

	d, err := a.escrow.Distribute(ctx, id)
	require.NoError(t, err)

	assert.True(t, d.Prizes[0].Equal(decimal.NewFromInt(300)))
	assert.True(t, d.Prizes[1].Equal(decimal.NewFromInt(200)))
	assert.True(t, d.Prizes[2].Equal(decimal.NewFromInt(100)))

	assert.True(t, a.ledger.Balance("alice").Equal(decimal.NewFromInt(300)))
	assert.True(t, a.ledger.Balance("bob").Equal(decimal.NewFromInt(200)))
	assert.True(t, a.ledger.Balance("carol").Equal(decimal.NewFromInt(100)))
	assert.True(t, a.ledger.Balance("dave").IsZero())

	// 40% of the pool never left custody.
	assert.True(t, a.ledger.EscrowBalance().Equal(decimal.NewFromInt(400)))

	_, err = a.escrow.Distribute(ctx, id)
	require.Equal(t, errors.ReasonAlreadyDistributed, errors.ReasonOf(err))

	// Drain the bus, push each final standing into the view once more
	// (score handlers run concurrently, so per-round writes may land in
	// any order), then the spectator view must agree with the payout
	// ranking.
	a.bus.Stop()
	for _, p := range players {
		sc, err := a.score.GetParticipantScore(ctx, id, p)
		require.NoError(t, err)
		require.NoError(t, a.leaderboard.UpdateLeaderboard(ctx, domain.EventScoreUpdated{
			SessionID:   id,
			Participant: p,
			Correct:     sc.Correct,
			TimeSpent:   sc.TimeSpent,
			UpdateTime:  baseTime.Add(3 * time.Hour),
		}))
	}

	l, err := a.leaderboard.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{SessionID: id})
	require.NoError(t, err)
	require.Len(t, l.Entries, 4)
	assert.Equal(t, "alice", l.Entries[0].Participant)
	assert.Equal(t, "bob", l.Entries[1].Participant)
	assert.Equal(t, "carol", l.Entries[2].Participant)
	assert.Equal(t, "dave", l.Entries[3].Participant)
}
