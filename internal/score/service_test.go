package score_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/triviapot/internal/domain"
	"github.com/victornm/triviapot/internal/errors"
	"github.com/victornm/triviapot/internal/event"
	"github.com/victornm/triviapot/internal/score"
	"github.com/victornm/triviapot/internal/session"
	"github.com/victornm/triviapot/internal/store"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *store.Memory
	session *session.Service
	score   *score.Service
}

func makeFixture(t *testing.T) *fixture {
	t.Helper()

	st := store.NewMemory()
	locks := store.NewSessionLocks()
	eb := event.NewBus()

	return &fixture{
		store: st,
		session: session.NewService(session.Config{
			Store:    st,
			Locks:    locks,
			EventBus: eb,
			NowFunc:  func() time.Time { return baseTime },
		}),
		score: score.NewService(score.Config{
			Store:    st,
			Locks:    locks,
			EventBus: eb,
		}),
	}
}

// startedSession creates a 3-round session with one question per round,
// registers alice and bob, and starts it. Question n's correct answer is
// always "Paris".
func (f *fixture) startedSession(t *testing.T) uint64 {
	t.Helper()
	ctx := context.Background()

	ss, err := f.session.CreateSession(ctx, session.CreateSessionRequest{
		Name:                 "friday trivia",
		RegistrationDeadline: baseTime.Add(time.Hour),
		StartTime:            baseTime.Add(2 * time.Hour),
		MinParticipants:      2,
		TotalRounds:          3,
		EntryFee:             decimal.NewFromInt(100),
		FirstPct:             30,
		SecondPct:            20,
		ThirdPct:             10,
	})
	require.NoError(t, err)

	for n := 1; n <= 3; n++ {
		require.NoError(t, f.session.AddQuestion(ctx, session.AddQuestionRequest{
			SessionID: ss.SessionID,
			Number:    n,
			Text:      "capital of France?",
			Options:   [4]string{"Paris", "Lyon", "Nice", "Lille"},
			Correct:   "Paris",
		}))
	}

	p, err := f.store.GetPrizeConfig(ctx, ss.SessionID)
	require.NoError(t, err)
	for _, name := range []string{"alice", "bob"} {
		require.NoError(t, f.store.PutParticipant(ctx, domain.ParticipantRecord{
			SessionID:   ss.SessionID,
			Participant: name,
			Balance:     p.EntryFee,
		}))
		p.Participants++
	}
	require.NoError(t, f.store.UpdatePrizeConfig(ctx, p))

	resp, err := f.session.Start(ctx, ss.SessionID)
	require.NoError(t, err)
	require.True(t, resp.Started)

	return ss.SessionID
}

// advance plays the session forward so questions up to round become active.
func (f *fixture) advance(t *testing.T, sessionID uint64, rounds int) {
	t.Helper()
	for i := 0; i < rounds; i++ {
		_, err := f.session.AdvanceRound(context.Background(), sessionID)
		require.NoError(t, err)
	}
}

func answer(sessionID uint64, question int, participant, answer string) score.SubmitAnswerRequest {
	return score.SubmitAnswerRequest{
		SessionID:   sessionID,
		Question:    question,
		Participant: participant,
		Answer:      answer,
		SubmitTime:  baseTime.Add(3 * time.Hour),
	}
}

func TestService_SubmitAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("correct answer bumps count and accumulates time units", func(t *testing.T) {
		f := makeFixture(t)
		id := f.startedSession(t)
		f.advance(t, id, 1)

		req := answer(id, 1, "alice", "Paris")
		resp, err := f.score.SubmitAnswer(ctx, req)
		require.NoError(t, err)

		assert.True(t, resp.Correct)
		assert.Equal(t, 1, resp.TotalCorrect)
		assert.Equal(t, req.SubmitTime.UnixMilli(), resp.TimeSpent)
	})

	t.Run("wrong answer leaves the score untouched but is recorded", func(t *testing.T) {
		f := makeFixture(t)
		id := f.startedSession(t)
		f.advance(t, id, 1)

		resp, err := f.score.SubmitAnswer(ctx, answer(id, 1, "alice", "Lyon"))
		require.NoError(t, err)

		assert.False(t, resp.Correct)
		assert.Equal(t, 0, resp.TotalCorrect)
		assert.Zero(t, resp.TimeSpent)

		rec, err := f.store.GetParticipant(ctx, id, "alice")
		require.NoError(t, err)
		assert.Contains(t, rec.AnswerTimes, 1)
	})

	t.Run("second submission for the same question is rejected", func(t *testing.T) {
		f := makeFixture(t)
		id := f.startedSession(t)
		f.advance(t, id, 1)

		_, err := f.score.SubmitAnswer(ctx, answer(id, 1, "alice", "Lyon"))
		require.NoError(t, err)

		_, err = f.score.SubmitAnswer(ctx, answer(id, 1, "alice", "Paris"))
		require.Equal(t, errors.ReasonAnswerAlreadySubmitted, errors.ReasonOf(err))

		s, err := f.score.GetParticipantScore(ctx, id, "alice")
		require.NoError(t, err)
		assert.Equal(t, 0, s.Correct)
	})

	t.Run("scores accumulate across questions", func(t *testing.T) {
		f := makeFixture(t)
		id := f.startedSession(t)
		f.advance(t, id, 2)

		first := answer(id, 1, "bob", "Paris")
		second := answer(id, 2, "bob", "Paris")
		second.SubmitTime = first.SubmitTime.Add(time.Minute)

		_, err := f.score.SubmitAnswer(ctx, first)
		require.NoError(t, err)
		resp, err := f.score.SubmitAnswer(ctx, second)
		require.NoError(t, err)

		assert.Equal(t, 2, resp.TotalCorrect)
		assert.Equal(t, first.SubmitTime.UnixMilli()+second.SubmitTime.UnixMilli(), resp.TimeSpent)
	})

	t.Run("unknown question is rejected", func(t *testing.T) {
		f := makeFixture(t)
		id := f.startedSession(t)

		_, err := f.score.SubmitAnswer(ctx, answer(id, 9, "alice", "Paris"))
		require.Equal(t, errors.CodeNotFound, errors.Convert(err).Code)
	})

	t.Run("participant without a deposit is rejected", func(t *testing.T) {
		f := makeFixture(t)
		id := f.startedSession(t)
		f.advance(t, id, 1)

		_, err := f.score.SubmitAnswer(ctx, answer(id, 1, "mallory", "Paris"))
		require.Equal(t, errors.CodeNotFound, errors.Convert(err).Code)
	})

	t.Run("question of a later round is not active yet", func(t *testing.T) {
		f := makeFixture(t)
		id := f.startedSession(t)
		f.advance(t, id, 1)

		_, err := f.score.SubmitAnswer(ctx, answer(id, 2, "alice", "Paris"))
		require.Equal(t, errors.CodeFailedPrecondition, errors.Convert(err).Code)

		_, err = f.score.SubmitAnswer(ctx, answer(id, 1, "alice", "Paris"))
		require.NoError(t, err)
	})

	t.Run("refunded participant cannot answer", func(t *testing.T) {
		f := makeFixture(t)
		id := f.startedSession(t)
		f.advance(t, id, 1)

		rec, err := f.store.GetParticipant(ctx, id, "alice")
		require.NoError(t, err)
		rec.Balance = decimal.Zero
		require.NoError(t, f.store.PutParticipant(ctx, rec))

		_, err = f.score.SubmitAnswer(ctx, answer(id, 1, "alice", "Paris"))
		require.Equal(t, errors.ReasonNoDeposit, errors.ReasonOf(err))
	})

	t.Run("answers are only accepted while in progress", func(t *testing.T) {
		f := makeFixture(t)
		id := f.startedSession(t)

		for i := 0; i < 3; i++ {
			_, err := f.session.AdvanceRound(ctx, id)
			require.NoError(t, err)
		}
		_, err := f.session.Complete(ctx, id)
		require.NoError(t, err)

		_, err = f.score.SubmitAnswer(ctx, answer(id, 1, "alice", "Paris"))
		require.Equal(t, errors.CodeFailedPrecondition, errors.Convert(err).Code)
	})
}

func TestService_GetParticipantScore(t *testing.T) {
	f := makeFixture(t)
	id := f.startedSession(t)

	_, err := f.score.GetParticipantScore(context.Background(), id, "mallory")
	require.Equal(t, errors.CodeNotFound, errors.Convert(err).Code)
}
