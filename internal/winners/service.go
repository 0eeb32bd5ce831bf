// Package winners ranks participants of a completed session and caches the
// resulting winner set for the prize distribution.
package winners

import (
	"context"
	stderrors "errors"

	"github.com/victornm/triviapot/internal/domain"
	"github.com/victornm/triviapot/internal/errors"
	"github.com/victornm/triviapot/internal/event"
	"github.com/victornm/triviapot/internal/store"
)

// podium is the number of prize ranks.
const podium = 3

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

// DetermineWinners ranks all participants by (correct desc, time asc) in a
// single pass and caches the ordered top three. Hard failure on
// recomputation: the cached set is the payout authority.
func (s *Service) DetermineWinners(ctx context.Context, sessionID uint64) (*domain.WinnerSet, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	ss, err := s.store.GetSession(ctx, sessionID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("session %d not found", sessionID),
		)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}

	if ss.Status != domain.StatusCompleted {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session %d is %s, winners are determined after completion", sessionID, ss.Status),
		)
	}

	if _, err := s.store.GetWinners(ctx, sessionID); err == nil {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithReason(errors.ReasonWinnersAlreadyDeclared),
			errors.WithMessagef("winners of session %d already declared", sessionID),
		)
	} else if !stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.Internal(err)
	}

	recs, err := s.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, errors.Internal(err)
	}

	// Only participants whose fee is still held compete for the pool; a
	// record with a zero balance was refunded before the start.
	standings := make([]Standing, 0, len(recs))
	for _, r := range recs {
		if !r.Balance.IsPositive() {
			continue
		}
		standings = append(standings, Standing{
			Participant: r.Participant,
			Correct:     r.Correct,
			TimeSpent:   r.TimeSpent,
		})
	}
	if len(standings) == 0 {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithReason(errors.ReasonTooFewParticipants),
			errors.WithMessagef("session %d has no participants to rank", sessionID),
		)
	}

	best := top(standings, podium)

	w := domain.WinnerSet{SessionID: sessionID}
	ranked := []*string{&w.First, &w.Second, &w.Third}
	for i, b := range best {
		*ranked[i] = b.Participant
	}

	if err := s.store.PutWinners(ctx, w); err != nil {
		if stderrors.Is(err, store.ErrAlreadyExists) {
			return nil, errors.New(errors.CodeFailedPrecondition,
				errors.WithReason(errors.ReasonWinnersAlreadyDeclared),
			)
		}
		return nil, errors.Internal(err)
	}

	s.eb.Publish(ctx, domain.EventWinnersDeclared{Winners: w})

	return &w, nil
}

// GetWinners returns the cached winner set. Pure read.
func (s *Service) GetWinners(ctx context.Context, sessionID uint64) (*domain.WinnerSet, error) {
	w, err := s.store.GetWinners(ctx, sessionID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithReason(errors.ReasonNoWinnersYet),
			errors.WithMessagef("winners of session %d not determined yet", sessionID),
		)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}

	return &w, nil
}
