// Package score validates submitted answers against the question bank and
// maintains each participant's (correct-count, cumulative-time) tuple.
package score

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/victornm/triviapot/internal/domain"
	"github.com/victornm/triviapot/internal/errors"
	"github.com/victornm/triviapot/internal/event"
	"github.com/victornm/triviapot/internal/store"
)

type Config struct {
	Store    store.Store
	Locks    *store.SessionLocks
	EventBus *event.Bus
}

type Service struct {
	store store.Store
	locks *store.SessionLocks
	eb    *event.Bus
}

func NewService(c Config) *Service {
	return &Service{
		store: c.Store,
		locks: c.Locks,
		eb:    c.EventBus,
	}
}

type SubmitAnswerRequest struct {
	SessionID   uint64
	Question    int
	Participant string
	Answer      string
	SubmitTime  time.Time
}

type SubmitAnswerResponse struct {
	Correct      bool
	TotalCorrect int
	TimeSpent    int64
}

// SubmitAnswer scores one answer. The submit timestamp is recorded for
// audit no matter the outcome; correct answers bump the correct count and
// add the timestamp (unix ms) to the cumulative-time accumulator, where
// fewer units wins score ties. A second submission for the same question
// is rejected so a participant cannot inflate their count.
func (s *Service) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (*SubmitAnswerResponse, error) {
	unlock := s.locks.Lock(req.SessionID)
	defer unlock()

	ss, err := s.store.GetSession(ctx, req.SessionID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("session %d not found", req.SessionID),
		)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}

	if ss.Status != domain.StatusInProgress {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session %d is %s, answers are only accepted in progress", req.SessionID, ss.Status),
		)
	}

	q, err := s.store.GetQuestion(ctx, req.SessionID, req.Question)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("question %d not found in session %d", req.Question, req.SessionID),
		)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}

	// Questions open up round by round; answering ahead of the round
	// counter is rejected.
	if q.Number > ss.CurrentRound {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("question %d is not active yet, session %d is on round %d", q.Number, req.SessionID, ss.CurrentRound),
		)
	}

	rec, err := s.store.GetParticipant(ctx, req.SessionID, req.Participant)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("participant %s is not registered in session %d", req.Participant, req.SessionID),
		)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}

	// A zero balance means the fee was refunded; the record stays for the
	// audit trail but the participant is out of the competition.
	if !rec.Balance.IsPositive() {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithReason(errors.ReasonNoDeposit),
			errors.WithMessagef("participant %s holds no deposit in session %d", req.Participant, req.SessionID),
		)
	}

	if _, ok := rec.AnswerTimes[req.Question]; ok {
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithReason(errors.ReasonAnswerAlreadySubmitted),
			errors.WithMessagef("participant %s already answered question %d", req.Participant, req.Question),
		)
	}

	if rec.AnswerTimes == nil {
		rec.AnswerTimes = make(map[int]time.Time)
	}
	rec.AnswerTimes[req.Question] = req.SubmitTime

	correct := req.Answer == q.Correct
	if correct {
		rec.Correct++
		rec.TimeSpent += req.SubmitTime.UnixMilli()
	}

	if err := s.store.PutParticipant(ctx, rec); err != nil {
		return nil, errors.Internal(err)
	}

	s.eb.Publish(ctx, domain.EventAnswerSubmitted{
		SessionID:   req.SessionID,
		Participant: req.Participant,
		Question:    req.Question,
		Correct:     correct,
		SubmitTime:  req.SubmitTime,
	})
	s.eb.Publish(ctx, domain.EventScoreUpdated{
		SessionID:   req.SessionID,
		Participant: req.Participant,
		Correct:     rec.Correct,
		TimeSpent:   rec.TimeSpent,
		UpdateTime:  req.SubmitTime,
	})

	return &SubmitAnswerResponse{
		Correct:      correct,
		TotalCorrect: rec.Correct,
		TimeSpent:    rec.TimeSpent,
	}, nil
}

type ParticipantScore struct {
	Participant string
	Correct     int
	TimeSpent   int64
}

// GetParticipantScore returns the running score of one participant. Pure read.
func (s *Service) GetParticipantScore(ctx context.Context, sessionID uint64, participant string) (*ParticipantScore, error) {
	rec, err := s.store.GetParticipant(ctx, sessionID, participant)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("participant %s is not registered in session %d", participant, sessionID),
		)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}

	return &ParticipantScore{
		Participant: rec.Participant,
		Correct:     rec.Correct,
		TimeSpent:   rec.TimeSpent,
	}, nil
}
