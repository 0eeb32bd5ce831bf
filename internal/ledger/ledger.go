// Package ledger is the fungible-token collaborator. The escrow service
// moves value through it and never touches balances directly.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrInsufficientFunds is returned when the debited account cannot cover
// the amount. A failed transfer moves nothing.
var ErrInsufficientFunds = errors.New("ledger: insufficient funds")

type Ledger interface {
	// Transfer moves amount out of the escrow account.
	Transfer(ctx context.Context, to string, amount decimal.Decimal) error
	// TransferFrom pulls amount from an external account into escrow.
	TransferFrom(ctx context.Context, from string, amount decimal.Decimal) error
}

// Memory is an in-process Ledger for tests and local development.
type Memory struct {
	mu       sync.Mutex
	escrow   decimal.Decimal
	balances map[string]decimal.Decimal
}

func NewMemory() *Memory {
	return &Memory{balances: make(map[string]decimal.Decimal)}
}

// Credit funds an external account. Test setup only.
func (l *Memory) Credit(account string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[account] = l.balances[account].Add(amount)
}

// Balance reads an external account.
func (l *Memory) Balance(account string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.balances[account]
}

// EscrowBalance reads the custody account.
func (l *Memory) EscrowBalance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.escrow
}

func (l *Memory) Transfer(_ context.Context, to string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.escrow.LessThan(amount) {
		return fmt.Errorf("transfer %s to %s: %w", amount, to, ErrInsufficientFunds)
	}

	l.escrow = l.escrow.Sub(amount)
	l.balances[to] = l.balances[to].Add(amount)
	return nil
}

func (l *Memory) TransferFrom(_ context.Context, from string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from].LessThan(amount) {
		return fmt.Errorf("transfer %s from %s: %w", amount, from, ErrInsufficientFunds)
	}

	l.balances[from] = l.balances[from].Sub(amount)
	l.escrow = l.escrow.Add(amount)
	return nil
}
