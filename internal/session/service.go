// Package session owns session metadata and the question bank: scheduling,
// status transitions, round progression.
package session

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/triviapot/internal/domain"
	"github.com/victornm/triviapot/internal/errors"
	"github.com/victornm/triviapot/internal/event"
	"github.com/victornm/triviapot/internal/store"
)

type Config struct {
	Store    store.Store
	Locks    *store.SessionLocks
	EventBus *event.Bus

	// RequiredSplitTotal is the exact sum the three prize percentages must
	// reach. The remainder of the pool stays in custody when below 100.
	RequiredSplitTotal uint32

	NowFunc func() time.Time
}

const DefaultRequiredSplitTotal = 60

type Service struct {
	store store.Store
	locks *store.SessionLocks
	eb    *event.Bus

	splitTotal uint32
	now        func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		store:      c.Store,
		locks:      c.Locks,
		eb:         c.EventBus,
		splitTotal: c.RequiredSplitTotal,
		now:        c.NowFunc,
	}

	if s.splitTotal == 0 {
		s.splitTotal = DefaultRequiredSplitTotal
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

type CreateSessionRequest struct {
	Name                 string
	Description          string
	RegistrationDeadline time.Time
	StartTime            time.Time
	MinParticipants      int
	TotalRounds          int
	EntryFee             decimal.Decimal
	FirstPct             uint32
	SecondPct            uint32
	ThirdPct             uint32
}

// CreateSession validates the schedule and prize split, assigns the next
// sequential session id and opens registration.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*domain.Session, error) {
	now := s.now()

	if !req.RegistrationDeadline.After(now) {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithReason(errors.ReasonInvalidSchedule),
			errors.WithMessagef("registration deadline %s is not after now", req.RegistrationDeadline),
		)
	}
	if !req.StartTime.After(req.RegistrationDeadline) {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithReason(errors.ReasonInvalidSchedule),
			errors.WithMessagef("start time %s is not after registration deadline %s", req.StartTime, req.RegistrationDeadline),
		)
	}
	if req.FirstPct+req.SecondPct+req.ThirdPct != s.splitTotal {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithReason(errors.ReasonInvalidPrizeSplit),
			errors.WithMessagef("prize split %d+%d+%d must sum to %d", req.FirstPct, req.SecondPct, req.ThirdPct, s.splitTotal),
		)
	}
	if req.MinParticipants < 1 || req.TotalRounds < 1 {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("min participants and total rounds must be positive"),
		)
	}
	if !req.EntryFee.IsPositive() {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("entry fee must be positive"),
		)
	}

	ss := &domain.Session{
		Name:                 req.Name,
		Description:          req.Description,
		RegistrationDeadline: req.RegistrationDeadline,
		StartTime:            req.StartTime,
		MinParticipants:      req.MinParticipants,
		TotalRounds:          req.TotalRounds,
		CurrentRound:         0,
		Status:               domain.StatusRegistrationOpen,
		CreateTime:           now,
	}
	p := &domain.PrizeConfig{
		EntryFee:  req.EntryFee,
		FirstPct:  req.FirstPct,
		SecondPct: req.SecondPct,
		ThirdPct:  req.ThirdPct,
		Pool:      decimal.Zero,
	}

	if err := s.store.CreateSession(ctx, ss, p); err != nil {
		return nil, errors.Internal(err)
	}

	s.eb.Publish(ctx, domain.EventSessionCreated{Session: *ss})

	return ss, nil
}

type AddQuestionRequest struct {
	SessionID uint64
	Number    int
	Text      string
	Options   [4]string
	Correct   string
}

// AddQuestion appends a question to the bank of a not-yet-started session.
// Question numbers are bounds-checked against the declared total rounds.
func (s *Service) AddQuestion(ctx context.Context, req AddQuestionRequest) error {
	unlock := s.locks.Lock(req.SessionID)
	defer unlock()

	ss, err := s.getSession(ctx, req.SessionID)
	if err != nil {
		return err
	}

	if ss.Status != domain.StatusRegistrationOpen {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithReason(errors.ReasonSessionAlreadyActive),
			errors.WithMessagef("session %d is %s, question bank is frozen", ss.SessionID, ss.Status),
		)
	}
	if req.Number < 1 || req.Number > ss.TotalRounds {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithReason(errors.ReasonInvalidQuestionNumber),
			errors.WithMessagef("question number %d out of range [1, %d]", req.Number, ss.TotalRounds),
		)
	}
	if !optionOf(req.Options, req.Correct) {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("correct answer is not one of the options"),
		)
	}

	err = s.store.AddQuestion(ctx, domain.Question{
		SessionID: req.SessionID,
		Number:    req.Number,
		Text:      req.Text,
		Options:   req.Options,
		Correct:   req.Correct,
	})
	if stderrors.Is(err, store.ErrAlreadyExists) {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("question %d already exists in session %d", req.Number, req.SessionID),
		)
	}
	if err != nil {
		return errors.Internal(err)
	}

	s.eb.Publish(ctx, domain.EventQuestionAdded{
		SessionID: req.SessionID,
		Number:    req.Number,
	})

	return nil
}

func optionOf(options [4]string, answer string) bool {
	for _, o := range options {
		if o == answer {
			return true
		}
	}
	return false
}

// CheckRegistrationOpen reports whether the registration deadline has not
// passed. Pure read.
func (s *Service) CheckRegistrationOpen(ctx context.Context, sessionID uint64) (bool, error) {
	ss, err := s.getSession(ctx, sessionID)
	if err != nil {
		return false, err
	}

	return !s.now().After(ss.RegistrationDeadline), nil
}

type StartResponse struct {
	// Started is false when the minimum participant count is not met.
	// Not an error: the caller may retry after more deposits.
	Started      bool
	Participants int
}

// Start moves a session with enough participants into progress. Returns
// Started=false without mutating anything when below the minimum.
func (s *Service) Start(ctx context.Context, sessionID uint64) (*StartResponse, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	ss, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if ss.Status != domain.StatusRegistrationOpen {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithReason(errors.ReasonTriviaAlreadyStarted),
			errors.WithMessagef("session %d is %s", ss.SessionID, ss.Status),
		)
	}

	p, err := s.store.GetPrizeConfig(ctx, sessionID)
	if err != nil {
		return nil, errors.Internal(err)
	}

	if p.Participants < ss.MinParticipants {
		return &StartResponse{Started: false, Participants: p.Participants}, nil
	}

	ss.Status = domain.StatusInProgress
	if err := s.store.UpdateSession(ctx, ss); err != nil {
		return nil, errors.Internal(err)
	}

	s.eb.Publish(ctx, domain.EventSessionStarted{
		SessionID:    ss.SessionID,
		Participants: p.Participants,
	})

	return &StartResponse{Started: true, Participants: p.Participants}, nil
}

// AdvanceRound moves an in-progress session to the next round.
func (s *Service) AdvanceRound(ctx context.Context, sessionID uint64) (*domain.Session, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	ss, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if ss.Status != domain.StatusInProgress {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session %d is %s, not in progress", ss.SessionID, ss.Status),
		)
	}
	if ss.CurrentRound >= ss.TotalRounds {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithReason(errors.ReasonAllRoundsCompleted),
			errors.WithMessagef("session %d already played all %d rounds", ss.SessionID, ss.TotalRounds),
		)
	}

	ss.CurrentRound++
	if err := s.store.UpdateSession(ctx, ss); err != nil {
		return nil, errors.Internal(err)
	}

	s.eb.Publish(ctx, domain.EventRoundAdvanced{
		SessionID: ss.SessionID,
		Round:     ss.CurrentRound,
	})

	return &ss, nil
}

// Complete marks an in-progress session as completed once every round has
// been played. Terminal state.
func (s *Service) Complete(ctx context.Context, sessionID uint64) (*domain.Session, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	ss, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if ss.Status != domain.StatusInProgress {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session %d is %s, not in progress", ss.SessionID, ss.Status),
		)
	}
	if ss.CurrentRound < ss.TotalRounds {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithReason(errors.ReasonRoundsRemaining),
			errors.WithMessagef("session %d played %d of %d rounds", ss.SessionID, ss.CurrentRound, ss.TotalRounds),
		)
	}

	ss.Status = domain.StatusCompleted
	if err := s.store.UpdateSession(ctx, ss); err != nil {
		return nil, errors.Internal(err)
	}

	s.eb.Publish(ctx, domain.EventSessionCompleted{SessionID: ss.SessionID})

	return &ss, nil
}

// GetSession returns the session details. Pure read.
func (s *Service) GetSession(ctx context.Context, sessionID uint64) (*domain.Session, error) {
	ss, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &ss, nil
}

// GetQuestion returns a question including the correct option; callers
// serving participants must strip it.
func (s *Service) GetQuestion(ctx context.Context, sessionID uint64, number int) (*domain.Question, error) {
	q, err := s.store.GetQuestion(ctx, sessionID, number)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("question %d not found in session %d", number, sessionID),
		)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	return &q, nil
}

func (s *Service) getSession(ctx context.Context, sessionID uint64) (domain.Session, error) {
	ss, err := s.store.GetSession(ctx, sessionID)
	if stderrors.Is(err, store.ErrNotFound) {
		return domain.Session{}, errors.New(errors.CodeNotFound,
			errors.WithMessagef("session %d not found", sessionID),
		)
	}
	if err != nil {
		return domain.Session{}, errors.Internal(err)
	}
	return ss, nil
}
