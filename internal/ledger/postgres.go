package ledger

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Postgres keeps token balances in a token_accounts table. Each transfer is
// a single transaction: debit checked against the balance, credit upserted,
// or nothing at all.
type Postgres struct {
	db     *pgxpool.Pool
	escrow string
}

func NewPostgres(db *pgxpool.Pool, escrowAccount string) *Postgres {
	return &Postgres{db: db, escrow: escrowAccount}
}

func (l *Postgres) Transfer(ctx context.Context, to string, amount decimal.Decimal) error {
	return l.move(ctx, l.escrow, to, amount)
}

func (l *Postgres) TransferFrom(ctx context.Context, from string, amount decimal.Decimal) error {
	return l.move(ctx, from, l.escrow, amount)
}

func (l *Postgres) move(ctx context.Context, from, to string, amount decimal.Decimal) (err error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const (
		debitStmt = `
UPDATE token_accounts
SET balance = balance - $2
WHERE account = $1 AND balance >= $2;`
		creditStmt = `
INSERT INTO token_accounts (account, balance)
VALUES ($1, $2)
ON CONFLICT (account)
DO UPDATE SET balance = token_accounts.balance + $2;`
	)

	tag, err := tx.Exec(ctx, debitStmt, from, amount)
	if err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transfer %s from %s to %s: %w", amount, from, to, ErrInsufficientFunds)
	}

	_, err = tx.Exec(ctx, creditStmt, to, amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}

	return tx.Commit(ctx)
}
