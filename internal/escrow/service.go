// Package escrow custodies entry fees: deposits into the prize pool,
// refunds before start, and the one-shot prize payout.
package escrow

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/victornm/triviapot/internal/domain"
	"github.com/victornm/triviapot/internal/errors"
	"github.com/victornm/triviapot/internal/event"
	"github.com/victornm/triviapot/internal/ledger"
	"github.com/victornm/triviapot/internal/session"
	"github.com/victornm/triviapot/internal/store"
)

// Minter is the reward-collectible collaborator, called once per winner
// after payout. Failures are logged, never rolled back into the payout.
type Minter interface {
	Mint(ctx context.Context, to string, sessionID uint64, rank int) error
}

// NopMinter is the default when no collectible contract is wired.
type NopMinter struct{}

func (NopMinter) Mint(context.Context, string, uint64, int) error { return nil }

type Config struct {
	Store    store.Store
	Locks    *store.SessionLocks
	EventBus *event.Bus
	Ledger   ledger.Ledger
	Registry *session.Service
	Minter   Minter
	NowFunc  func() time.Time
}

type Service struct {
	store    store.Store
	locks    *store.SessionLocks
	eb       *event.Bus
	ledger   ledger.Ledger
	registry *session.Service
	minter   Minter
	now      func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		store:    c.Store,
		locks:    c.Locks,
		eb:       c.EventBus,
		ledger:   c.Ledger,
		registry: c.Registry,
		minter:   c.Minter,
		now:      c.NowFunc,
	}

	if s.minter == nil {
		s.minter = NopMinter{}
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

type DepositRequest struct {
	SessionID   uint64
	Participant string
	Amount      decimal.Decimal
}

type DepositResponse struct {
	ReferenceID string
	Pool        decimal.Decimal
}

// Deposit pulls the entry fee into custody. Exactly once per participant:
// a non-zero balance means already paid.
func (s *Service) Deposit(ctx context.Context, req DepositRequest) (*DepositResponse, error) {
	unlock := s.locks.Lock(req.SessionID)
	defer unlock()

	open, err := s.registry.CheckRegistrationOpen(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	ss, err := s.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, errors.Internal(err)
	}

	if !open || ss.Status != domain.StatusRegistrationOpen {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithReason(errors.ReasonRegistrationClosed),
			errors.WithMessagef("registration for session %d is closed", req.SessionID),
		)
	}

	p, err := s.store.GetPrizeConfig(ctx, req.SessionID)
	if err != nil {
		return nil, errors.Internal(err)
	}

	if !req.Amount.Equal(p.EntryFee) {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithReason(errors.ReasonWrongFeeAmount),
			errors.WithMessagef("deposit %s does not match entry fee %s", req.Amount, p.EntryFee),
		)
	}

	rec, err := s.store.GetParticipant(ctx, req.SessionID, req.Participant)
	if err != nil && !stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.Internal(err)
	}
	if rec.Balance.IsPositive() {
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithReason(errors.ReasonAlreadyPaid),
			errors.WithMessagef("participant %s already paid the entry fee for session %d", req.Participant, req.SessionID),
		)
	}

	// All invariants hold; moving the tokens is the last check that can fail.
	if err := s.ledger.TransferFrom(ctx, req.Participant, req.Amount); err != nil {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("pull entry fee from %s failed", req.Participant),
			errors.WithCause(err),
		)
	}

	rec.SessionID = req.SessionID
	rec.Participant = req.Participant
	rec.Balance = req.Amount
	p.Participants++
	p.Pool = p.Pool.Add(req.Amount)

	if err := s.persistDeposit(ctx, rec, p); err != nil {
		return nil, err
	}

	ref := newReferenceID()
	s.eb.Publish(ctx, domain.EventFeeDeposited{
		ReferenceID: ref,
		SessionID:   req.SessionID,
		Participant: req.Participant,
		Amount:      req.Amount,
		Pool:        p.Pool,
	})

	return &DepositResponse{ReferenceID: ref, Pool: p.Pool}, nil
}

func (s *Service) persistDeposit(ctx context.Context, rec domain.ParticipantRecord, p domain.PrizeConfig) error {
	err := s.store.PutParticipant(ctx, rec)
	if err == nil {
		err = s.store.UpdatePrizeConfig(ctx, p)
		if err != nil {
			// The record went in but the pool did not; drain the stale
			// balance so the participant is not marked as already paid.
			zero := rec
			zero.Balance = decimal.Zero
			if perr := s.store.PutParticipant(ctx, zero); perr != nil {
				err = stderrors.Join(err, fmt.Errorf("drain deposit of %s: %w", rec.Participant, perr))
			}
		}
	}
	if err == nil {
		return nil
	}

	// The fee is already in custody; push it back so a failed deposit
	// moves nothing.
	if rerr := s.ledger.Transfer(ctx, rec.Participant, rec.Balance); rerr != nil {
		err = stderrors.Join(err, fmt.Errorf("return fee to %s: %w", rec.Participant, rerr))
	}

	return errors.Internal(err)
}

type RefundRequest struct {
	SessionID   uint64
	Participant string
}

type RefundResponse struct {
	ReferenceID string
	Amount      decimal.Decimal
}

// Refund returns the held entry fee while the trivia has not started.
func (s *Service) Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
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

	if ss.Status != domain.StatusRegistrationOpen {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithReason(errors.ReasonTriviaAlreadyStarted),
			errors.WithMessagef("session %d already started, deposits are locked", req.SessionID),
		)
	}

	rec, err := s.store.GetParticipant(ctx, req.SessionID, req.Participant)
	if stderrors.Is(err, store.ErrNotFound) || (err == nil && !rec.Balance.IsPositive()) {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithReason(errors.ReasonNoDeposit),
			errors.WithMessagef("participant %s holds no deposit in session %d", req.Participant, req.SessionID),
		)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}

	p, err := s.store.GetPrizeConfig(ctx, req.SessionID)
	if err != nil {
		return nil, errors.Internal(err)
	}

	amount := rec.Balance

	// Drain the deposit in the store before any money moves: a failure
	// here aborts with the fee still held, and a retried refund after a
	// partial failure finds a zero balance instead of paying twice.
	zeroed := rec
	zeroed.Balance = decimal.Zero
	if err := s.store.PutParticipant(ctx, zeroed); err != nil {
		return nil, errors.Internal(err)
	}

	shrunk := p
	shrunk.Participants--
	shrunk.Pool = shrunk.Pool.Sub(amount)
	if err := s.store.UpdatePrizeConfig(ctx, shrunk); err != nil {
		return nil, s.restoreRefund(ctx, rec, p, errors.Internal(err))
	}

	// Moving the tokens is the final, irrevocable step.
	if err := s.ledger.Transfer(ctx, req.Participant, amount); err != nil {
		return nil, s.restoreRefund(ctx, rec, p, errors.New(errors.CodeInternal,
			errors.WithMessagef("return fee to %s failed", req.Participant),
			errors.WithCause(err),
		))
	}

	ref := newReferenceID()
	s.eb.Publish(ctx, domain.EventFeeRefunded{
		ReferenceID: ref,
		SessionID:   req.SessionID,
		Participant: req.Participant,
		Amount:      amount,
	})

	return &RefundResponse{ReferenceID: ref, Amount: amount}, nil
}

// restoreRefund puts the held deposit back after a failed refund so the
// participant can retry. Restore failures are joined onto cause.
func (s *Service) restoreRefund(ctx context.Context, rec domain.ParticipantRecord, p domain.PrizeConfig, cause error) error {
	err := cause
	if perr := s.store.PutParticipant(ctx, rec); perr != nil {
		err = stderrors.Join(err, fmt.Errorf("restore deposit of %s: %w", rec.Participant, perr))
	}
	if perr := s.store.UpdatePrizeConfig(ctx, p); perr != nil {
		err = stderrors.Join(err, fmt.Errorf("restore prize pool of session %d: %w", p.SessionID, perr))
	}
	return err
}

// Distribute pays the cached winners their share of the pool. Exactly once
// per session; the un-split remainder stays in custody.
func (s *Service) Distribute(ctx context.Context, sessionID uint64) (*domain.Distribution, error) {
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
			errors.WithMessagef("session %d is %s, not completed", sessionID, ss.Status),
		)
	}

	if _, err := s.store.GetDistribution(ctx, sessionID); err == nil {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithReason(errors.ReasonAlreadyDistributed),
			errors.WithMessagef("session %d prizes already distributed", sessionID),
		)
	} else if !stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.Internal(err)
	}

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

	p, err := s.store.GetPrizeConfig(ctx, sessionID)
	if err != nil {
		return nil, errors.Internal(err)
	}

	d := domain.Distribution{
		SessionID: sessionID,
		Winners:   w.Ranked(),
		PayTime:   s.now(),
	}

	hundred := decimal.NewFromInt(100)
	for i, pct := range []uint32{p.FirstPct, p.SecondPct, p.ThirdPct} {
		d.Prizes[i] = p.Pool.Mul(decimal.NewFromInt(int64(pct))).Div(hundred)
	}

	paid := decimal.Zero
	for i, winner := range d.Winners {
		if winner == "" || !d.Prizes[i].IsPositive() {
			continue
		}
		paid = paid.Add(d.Prizes[i])
	}

	// Record the payout before any money moves. A store failure here
	// aborts with the pool untouched, and once the record exists a retry
	// fails with AlreadyDistributed instead of paying a second time.
	if err := s.store.PutDistribution(ctx, d); err != nil {
		if stderrors.Is(err, store.ErrAlreadyExists) {
			return nil, errors.New(errors.CodeFailedPrecondition,
				errors.WithReason(errors.ReasonAlreadyDistributed),
			)
		}
		return nil, errors.Internal(err)
	}

	if err := s.closeOut(ctx, p, paid); err != nil {
		return nil, err
	}

	// Moving the tokens is the final, irrevocable step.
	for i, winner := range d.Winners {
		if winner == "" || !d.Prizes[i].IsPositive() {
			continue
		}
		if err := s.ledger.Transfer(ctx, winner, d.Prizes[i]); err != nil {
			return nil, errors.New(errors.CodeInternal,
				errors.WithMessagef("pay prize %d to %s failed", i+1, winner),
				errors.WithCause(err),
			)
		}
	}

	s.mintRewards(ctx, d)

	s.eb.Publish(ctx, domain.EventRewardDistributed{
		ReferenceID:  newReferenceID(),
		Distribution: d,
	})

	return &d, nil
}

// closeOut zeroes the held balances and shrinks the pool to the remainder
// that stays in custody.
func (s *Service) closeOut(ctx context.Context, p domain.PrizeConfig, paid decimal.Decimal) error {
	recs, err := s.store.ListParticipants(ctx, p.SessionID)
	if err != nil {
		return errors.Internal(err)
	}

	for _, rec := range recs {
		if !rec.Balance.IsPositive() {
			continue
		}
		rec.Balance = decimal.Zero
		if err := s.store.PutParticipant(ctx, rec); err != nil {
			return errors.Internal(err)
		}
	}

	p.Pool = p.Pool.Sub(paid)
	if err := s.store.UpdatePrizeConfig(ctx, p); err != nil {
		return errors.Internal(err)
	}

	return nil
}

func (s *Service) mintRewards(ctx context.Context, d domain.Distribution) {
	for i, winner := range d.Winners {
		if winner == "" {
			continue
		}
		if err := s.minter.Mint(ctx, winner, d.SessionID, i+1); err != nil {
			slog.ErrorContext(ctx, "escrow: mint reward collectible failed",
				"session", d.SessionID,
				"winner", winner,
				"rank", i+1,
				"error", err,
			)
		}
	}
}

// GetPrizeDetails returns the prize configuration and pool. Pure read.
func (s *Service) GetPrizeDetails(ctx context.Context, sessionID uint64) (*domain.PrizeConfig, error) {
	p, err := s.store.GetPrizeConfig(ctx, sessionID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("session %d not found", sessionID),
		)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	return &p, nil
}

// GetDistribution returns the recorded payout. Pure read.
func (s *Service) GetDistribution(ctx context.Context, sessionID uint64) (*domain.Distribution, error) {
	d, err := s.store.GetDistribution(ctx, sessionID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("no distribution recorded for session %d", sessionID),
		)
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	return &d, nil
}

func newReferenceID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
