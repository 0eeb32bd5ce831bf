package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/triviapot/internal/ledger"
)

func TestMemory_TransferFrom(t *testing.T) {
	ctx := context.Background()

	t.Run("moves funds into custody", func(t *testing.T) {
		l := ledger.NewMemory()
		l.Credit("alice", decimal.NewFromInt(500))

		require.NoError(t, l.TransferFrom(ctx, "alice", decimal.NewFromInt(300)))

		assert.True(t, l.Balance("alice").Equal(decimal.NewFromInt(200)))
		assert.True(t, l.EscrowBalance().Equal(decimal.NewFromInt(300)))
	})

	t.Run("insufficient funds moves nothing", func(t *testing.T) {
		l := ledger.NewMemory()
		l.Credit("alice", decimal.NewFromInt(100))

		err := l.TransferFrom(ctx, "alice", decimal.NewFromInt(300))
		require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

		assert.True(t, l.Balance("alice").Equal(decimal.NewFromInt(100)))
		assert.True(t, l.EscrowBalance().IsZero())
	})
}

func TestMemory_Transfer(t *testing.T) {
	ctx := context.Background()

	t.Run("pays out of custody", func(t *testing.T) {
		l := ledger.NewMemory()
		l.Credit("alice", decimal.NewFromInt(500))
		require.NoError(t, l.TransferFrom(ctx, "alice", decimal.NewFromInt(500)))

		require.NoError(t, l.Transfer(ctx, "bob", decimal.NewFromInt(150)))

		assert.True(t, l.Balance("bob").Equal(decimal.NewFromInt(150)))
		assert.True(t, l.EscrowBalance().Equal(decimal.NewFromInt(350)))
	})

	t.Run("custody cannot go negative", func(t *testing.T) {
		l := ledger.NewMemory()

		err := l.Transfer(ctx, "bob", decimal.NewFromInt(1))
		require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

		assert.True(t, l.Balance("bob").IsZero())
	})
}
