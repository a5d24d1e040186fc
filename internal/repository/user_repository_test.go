package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreditReferralEarnings(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("credit moves balance and lifetime earnings together", func(t *testing.T) {
		user := &UserEntity{ID: 1, Name: "Alice", Role: "customer", ReferralBalance: 1000, TotalReferralEarnings: 1000}
		require.NoError(t, db.Write(ctx).Create(user).Error)

		err := repo.CreditReferralEarnings(ctx, 1, 250)
		assert.NoError(t, err)

		got, err := repo.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1250), got.ReferralBalance)
		assert.Equal(t, int64(1250), got.TotalReferralEarnings)
	})

	t.Run("user not found", func(t *testing.T) {
		err := repo.CreditReferralEarnings(ctx, 999, 100)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestUserRepository_DebitReferralBalance(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("successful debit", func(t *testing.T) {
		user := &UserEntity{ID: 1, Name: "Alice", Role: "customer", ReferralBalance: 1000, TotalReferralEarnings: 1000}
		require.NoError(t, db.Write(ctx).Create(user).Error)

		err := repo.DebitReferralBalance(ctx, 1, 300)
		assert.NoError(t, err)

		got, err := repo.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(700), got.ReferralBalance)
		assert.Equal(t, int64(1000), got.TotalReferralEarnings)
	})

	t.Run("debit above balance fails and leaves balance untouched", func(t *testing.T) {
		user := &UserEntity{ID: 2, Name: "Bob", Role: "customer", ReferralBalance: 100}
		require.NoError(t, db.Write(ctx).Create(user).Error)

		err := repo.DebitReferralBalance(ctx, 2, 200)
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		got, err := repo.Get(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(100), got.ReferralBalance)
	})

	t.Run("sequential debits against one balance", func(t *testing.T) {
		user := &UserEntity{ID: 3, Name: "Carol", Role: "customer", ReferralBalance: 1000}
		require.NoError(t, db.Write(ctx).Create(user).Error)

		require.NoError(t, repo.DebitReferralBalance(ctx, 3, 500))

		err := repo.DebitReferralBalance(ctx, 3, 600)
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		got, err := repo.Get(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(500), got.ReferralBalance)
	})

	t.Run("exact balance debit", func(t *testing.T) {
		user := &UserEntity{ID: 4, Name: "Dave", Role: "customer", ReferralBalance: 250}
		require.NoError(t, db.Write(ctx).Create(user).Error)

		err := repo.DebitReferralBalance(ctx, 4, 250)
		assert.NoError(t, err)

		got, err := repo.Get(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.ReferralBalance)
	})

	t.Run("user not found", func(t *testing.T) {
		err := repo.DebitReferralBalance(ctx, 999, 100)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestUserRepository_ReverseReferralEarnings(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("reversal undoes a credit exactly", func(t *testing.T) {
		user := &UserEntity{ID: 1, Name: "Alice", Role: "customer"}
		require.NoError(t, db.Write(ctx).Create(user).Error)

		require.NoError(t, repo.CreditReferralEarnings(ctx, 1, 400))
		require.NoError(t, repo.ReverseReferralEarnings(ctx, 1, 400))

		got, err := repo.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.ReferralBalance)
		assert.Equal(t, int64(0), got.TotalReferralEarnings)
	})

	t.Run("reversal beyond remaining balance fails closed", func(t *testing.T) {
		user := &UserEntity{ID: 2, Name: "Bob", Role: "customer"}
		require.NoError(t, db.Write(ctx).Create(user).Error)

		require.NoError(t, repo.CreditReferralEarnings(ctx, 2, 400))
		require.NoError(t, repo.DebitReferralBalance(ctx, 2, 300))

		err := repo.ReverseReferralEarnings(ctx, 2, 400)
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		got, err := repo.Get(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(100), got.ReferralBalance)
		assert.Equal(t, int64(400), got.TotalReferralEarnings)
	})
}

func TestUserRepository_ReferralCounters(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("increment bumps both counters", func(t *testing.T) {
		user := &UserEntity{ID: 1, Name: "Alice", Role: "executor"}
		require.NoError(t, db.Write(ctx).Create(user).Error)

		require.NoError(t, repo.IncrementReferralCounters(ctx, 1))
		require.NoError(t, repo.IncrementReferralCounters(ctx, 1))

		got, err := repo.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, got.TotalReferralsCount)
		assert.Equal(t, 2, got.ActiveReferralsCount)
	})

	t.Run("decrement only touches the active count", func(t *testing.T) {
		user := &UserEntity{ID: 2, Name: "Bob", Role: "executor", TotalReferralsCount: 3, ActiveReferralsCount: 3}
		require.NoError(t, db.Write(ctx).Create(user).Error)

		require.NoError(t, repo.DecrementActiveReferrals(ctx, 2))

		got, err := repo.Get(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, got.TotalReferralsCount)
		assert.Equal(t, 2, got.ActiveReferralsCount)
	})

	t.Run("decrement at zero does not go negative", func(t *testing.T) {
		user := &UserEntity{ID: 3, Name: "Carol", Role: "executor"}
		require.NoError(t, db.Write(ctx).Create(user).Error)

		err := repo.DecrementActiveReferrals(ctx, 3)
		assert.ErrorIs(t, err, ErrUserNotFound)

		got, err := repo.Get(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, 0, got.ActiveReferralsCount)
	})
}
