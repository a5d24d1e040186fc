package services

import (
	"context"
	"testing"

	"github.com/nimasrn/referral-ledger/internal/model"
	"github.com/nimasrn/referral-ledger/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRedemptionRepository struct {
	mock.Mock
}

func (m *MockRedemptionRepository) Create(ctx context.Context, redemption *model.Redemption) (*model.Redemption, error) {
	args := m.Called(ctx, redemption)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Redemption), args.Error(1)
}

func TestAccountService_UseBalance(t *testing.T) {
	ctx := context.Background()

	newService := func(users *MockUserRepository, redemptions *MockRedemptionRepository) *AccountService {
		codes := new(MockReferralCodeRepository)
		return NewAccountService(users, new(MockReferralRepository), redemptions, NewCodeService(codes), newTestSettings(nil))
	}

	t.Run("debit and redemption record happen together", func(t *testing.T) {
		users := new(MockUserRepository)
		redemptions := new(MockRedemptionRepository)
		svc := newService(users, redemptions)

		users.On("WithinTransaction", mock.Anything, mock.Anything).Return(nil)
		users.On("DebitReferralBalance", mock.Anything, int64(7), int64(300)).Return(nil)
		redemptions.On("Create", mock.Anything, mock.MatchedBy(func(r *model.Redemption) bool {
			return r.UserID == 7 && r.Amount == 300 && r.Reason == "order discount"
		})).Return(&model.Redemption{ID: 1, UserID: 7, Amount: 300}, nil)
		users.On("Get", mock.Anything, int64(7)).Return(&model.User{ID: 7, ReferralBalance: 700}, nil)

		remaining, err := svc.UseBalance(ctx, 7, 300, "order discount")
		require.NoError(t, err)
		assert.Equal(t, int64(700), remaining)

		users.AssertExpectations(t)
		redemptions.AssertExpectations(t)
	})

	t.Run("non-positive amount is rejected before any storage call", func(t *testing.T) {
		users := new(MockUserRepository)
		svc := newService(users, new(MockRedemptionRepository))

		_, err := svc.UseBalance(ctx, 7, 0, "x")
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = svc.UseBalance(ctx, 7, -50, "x")
		assert.ErrorIs(t, err, ErrInvalidAmount)

		users.AssertNotCalled(t, "WithinTransaction", mock.Anything, mock.Anything)
	})

	t.Run("insufficient balance maps and records nothing", func(t *testing.T) {
		users := new(MockUserRepository)
		redemptions := new(MockRedemptionRepository)
		svc := newService(users, redemptions)

		users.On("WithinTransaction", mock.Anything, mock.Anything).Return(nil)
		users.On("DebitReferralBalance", mock.Anything, int64(7), int64(2000)).Return(repository.ErrInsufficientBalance)

		_, err := svc.UseBalance(ctx, 7, 2000, "order discount")
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		redemptions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("unknown user maps", func(t *testing.T) {
		users := new(MockUserRepository)
		svc := newService(users, new(MockRedemptionRepository))

		users.On("WithinTransaction", mock.Anything, mock.Anything).Return(nil)
		users.On("DebitReferralBalance", mock.Anything, int64(99), int64(100)).Return(repository.ErrUserNotFound)

		_, err := svc.UseBalance(ctx, 99, 100, "x")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestAccountService_GetStats(t *testing.T) {
	ctx := context.Background()

	t.Run("summary for an established referrer", func(t *testing.T) {
		users := new(MockUserRepository)
		codes := new(MockReferralCodeRepository)
		settings := newTestSettings(map[string]string{SettingCashbackPercentage: "10"})
		svc := NewAccountService(users, new(MockReferralRepository), new(MockRedemptionRepository), NewCodeService(codes), settings)

		users.On("Get", mock.Anything, int64(1)).Return(&model.User{
			ID:                    1,
			ReferralBalance:       2500,
			TotalReferralEarnings: 10000,
			TotalReferralsCount:   4,
			ActiveReferralsCount:  3,
		}, nil)
		codes.On("GetActiveByUserID", mock.Anything, int64(1)).
			Return(&model.ReferralCode{ID: 1, UserID: 1, Code: "ABCD2345", IsActive: true}, nil)

		stats, err := svc.GetStats(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "ABCD2345", stats.Code)
		assert.Equal(t, 4, stats.TotalReferrals)
		assert.Equal(t, 3, stats.ActiveReferrals)
		assert.Equal(t, int64(2500), stats.Balance)
		assert.Equal(t, 25.0, stats.BalanceMajor)
		assert.Equal(t, int64(10000), stats.TotalEarnings)
		assert.Equal(t, 100.0, stats.TotalEarningsMajor)
		assert.Equal(t, "10", stats.CashbackPercentage)
		assert.True(t, stats.ProgramEnabled)
	})

	t.Run("user without a code gets zeros, not an error", func(t *testing.T) {
		users := new(MockUserRepository)
		codes := new(MockReferralCodeRepository)
		svc := NewAccountService(users, new(MockReferralRepository), new(MockRedemptionRepository), NewCodeService(codes), newTestSettings(nil))

		users.On("Get", mock.Anything, int64(2)).Return(&model.User{ID: 2}, nil)
		codes.On("GetActiveByUserID", mock.Anything, int64(2)).Return(nil, repository.ErrCodeNotFound)

		stats, err := svc.GetStats(ctx, 2)
		require.NoError(t, err)
		assert.Empty(t, stats.Code)
		assert.Zero(t, stats.TotalReferrals)
		assert.Zero(t, stats.Balance)
	})

	t.Run("unknown user", func(t *testing.T) {
		users := new(MockUserRepository)
		svc := NewAccountService(users, new(MockReferralRepository), new(MockRedemptionRepository), NewCodeService(new(MockReferralCodeRepository)), newTestSettings(nil))

		users.On("Get", mock.Anything, int64(99)).Return(nil, repository.ErrUserNotFound)

		_, err := svc.GetStats(ctx, 99)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestAccountService_GetMyCode(t *testing.T) {
	ctx := context.Background()

	t.Run("share payload is built from the configured base url", func(t *testing.T) {
		users := new(MockUserRepository)
		codes := new(MockReferralCodeRepository)
		settings := newTestSettings(map[string]string{SettingShareBaseURL: "https://market.example.com/join"})
		svc := NewAccountService(users, new(MockReferralRepository), new(MockRedemptionRepository), NewCodeService(codes), settings)

		users.On("Get", mock.Anything, int64(7)).Return(&model.User{ID: 7}, nil)
		codes.On("GetActiveByUserID", mock.Anything, int64(7)).
			Return(&model.ReferralCode{ID: 1, UserID: 7, Code: "WXYZ7890", IsActive: true}, nil)

		code, share, err := svc.GetMyCode(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, "WXYZ7890", code.Code)
		assert.Equal(t, "WXYZ7890", share.Code)
		assert.Equal(t, "https://market.example.com/join?ref=WXYZ7890", share.URL)
		assert.Contains(t, share.Text, "WXYZ7890")
	})

	t.Run("unknown user", func(t *testing.T) {
		users := new(MockUserRepository)
		svc := NewAccountService(users, new(MockReferralRepository), new(MockRedemptionRepository), NewCodeService(new(MockReferralCodeRepository)), newTestSettings(nil))

		users.On("Get", mock.Anything, int64(99)).Return(nil, repository.ErrUserNotFound)

		_, _, err := svc.GetMyCode(ctx, 99)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestAccountService_ListReferrals(t *testing.T) {
	ctx := context.Background()

	newService := func(referrals *MockReferralRepository) *AccountService {
		return NewAccountService(new(MockUserRepository), referrals, new(MockRedemptionRepository), NewCodeService(new(MockReferralCodeRepository)), newTestSettings(nil))
	}

	t.Run("page and offset math", func(t *testing.T) {
		referrals := new(MockReferralRepository)
		svc := newService(referrals)

		items := []*model.ReferralListItem{{ID: 3}, {ID: 4}}
		referrals.On("ListByReferrer", mock.Anything, int64(1), 2, 2).Return(items, int64(5), nil)

		page, err := svc.ListReferrals(ctx, 1, 2, 2)
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, 2, page.Pagination.CurrentPage)
		assert.Equal(t, 3, page.Pagination.LastPage)
		assert.Equal(t, int64(5), page.Pagination.Total)
	})

	t.Run("empty result still reports page one as the last page", func(t *testing.T) {
		referrals := new(MockReferralRepository)
		svc := newService(referrals)

		referrals.On("ListByReferrer", mock.Anything, int64(1), 20, 0).Return([]*model.ReferralListItem{}, int64(0), nil)

		page, err := svc.ListReferrals(ctx, 1, 1, 20)
		require.NoError(t, err)
		assert.Equal(t, 1, page.Pagination.LastPage)
	})

	t.Run("out-of-range input is rejected, not clamped", func(t *testing.T) {
		referrals := new(MockReferralRepository)
		svc := newService(referrals)

		_, err := svc.ListReferrals(ctx, 1, 0, 20)
		assert.ErrorIs(t, err, ErrInvalidPagination)

		_, err = svc.ListReferrals(ctx, 1, 1, 0)
		assert.ErrorIs(t, err, ErrInvalidPagination)

		_, err = svc.ListReferrals(ctx, 1, 1, 101)
		assert.ErrorIs(t, err, ErrInvalidPagination)

		referrals.AssertNotCalled(t, "ListByReferrer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
