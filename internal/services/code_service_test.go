package services

import (
	"context"
	"strings"
	"testing"

	"github.com/nimasrn/referral-ledger/internal/model"
	"github.com/nimasrn/referral-ledger/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReferralCodeRepository struct {
	mock.Mock
}

func (m *MockReferralCodeRepository) Create(ctx context.Context, code *model.ReferralCode) (*model.ReferralCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReferralCode), args.Error(1)
}

func (m *MockReferralCodeRepository) GetActiveByUserID(ctx context.Context, userID int64) (*model.ReferralCode, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReferralCode), args.Error(1)
}

func (m *MockReferralCodeRepository) GetByCode(ctx context.Context, code string) (*model.ReferralCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReferralCode), args.Error(1)
}

func (m *MockReferralCodeRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func TestRandomCode(t *testing.T) {
	t.Run("codes are 8 chars from the unambiguous alphabet", func(t *testing.T) {
		for i := 0; i < 1000; i++ {
			code, err := randomCode()
			require.NoError(t, err)
			require.Len(t, code, codeLength)
			for _, c := range code {
				assert.True(t, strings.ContainsRune(codeAlphabet, c), "unexpected symbol %q in %s", c, code)
			}
			assert.NotContains(t, code, "0")
			assert.NotContains(t, code, "O")
			assert.NotContains(t, code, "1")
			assert.NotContains(t, code, "I")
		}
	})

	t.Run("1000 generated codes are unique", func(t *testing.T) {
		seen := make(map[string]bool, 1000)
		for i := 0; i < 1000; i++ {
			code, err := randomCode()
			require.NoError(t, err)
			assert.False(t, seen[code], "duplicate code %s", code)
			seen[code] = true
		}
	})
}

func TestCodeService_GenerateUniqueCode(t *testing.T) {
	ctx := context.Background()

	t.Run("returns first free draw", func(t *testing.T) {
		repo := new(MockReferralCodeRepository)
		svc := NewCodeService(repo)

		repo.On("CodeExists", mock.Anything, mock.AnythingOfType("string")).Return(false, nil).Once()

		code, err := svc.GenerateUniqueCode(ctx)
		require.NoError(t, err)
		assert.Len(t, code, codeLength)
		repo.AssertExpectations(t)
	})

	t.Run("redraws on collision", func(t *testing.T) {
		repo := new(MockReferralCodeRepository)
		svc := NewCodeService(repo)

		repo.On("CodeExists", mock.Anything, mock.AnythingOfType("string")).Return(true, nil).Twice()
		repo.On("CodeExists", mock.Anything, mock.AnythingOfType("string")).Return(false, nil).Once()

		code, err := svc.GenerateUniqueCode(ctx)
		require.NoError(t, err)
		assert.Len(t, code, codeLength)
		repo.AssertExpectations(t)
	})

	t.Run("gives up after bounded attempts", func(t *testing.T) {
		repo := new(MockReferralCodeRepository)
		svc := NewCodeService(repo)

		repo.On("CodeExists", mock.Anything, mock.AnythingOfType("string")).Return(true, nil)

		_, err := svc.GenerateUniqueCode(ctx)
		assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
	})
}

func TestCodeService_CreateForUser(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the existing active code", func(t *testing.T) {
		repo := new(MockReferralCodeRepository)
		svc := NewCodeService(repo)

		existing := &model.ReferralCode{ID: 1, UserID: 7, Code: "ABCD2345", IsActive: true}
		repo.On("GetActiveByUserID", mock.Anything, int64(7)).Return(existing, nil)

		code, err := svc.CreateForUser(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, "ABCD2345", code.Code)

		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("generates and persists when absent", func(t *testing.T) {
		repo := new(MockReferralCodeRepository)
		svc := NewCodeService(repo)

		repo.On("GetActiveByUserID", mock.Anything, int64(7)).Return(nil, repository.ErrCodeNotFound)
		repo.On("CodeExists", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(c *model.ReferralCode) bool {
			return c.UserID == 7 && c.IsActive && len(c.Code) == codeLength
		})).Return(&model.ReferralCode{ID: 2, UserID: 7, Code: "WXYZ7890", IsActive: true}, nil)

		code, err := svc.CreateForUser(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(2), code.ID)
		repo.AssertExpectations(t)
	})

	t.Run("retries when the insert loses a race", func(t *testing.T) {
		repo := new(MockReferralCodeRepository)
		svc := NewCodeService(repo)

		repo.On("GetActiveByUserID", mock.Anything, int64(7)).Return(nil, repository.ErrCodeNotFound)
		repo.On("CodeExists", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)
		repo.On("Create", mock.Anything, mock.Anything).Return(nil, repository.ErrCodeTaken).Once()
		repo.On("Create", mock.Anything, mock.Anything).Return(&model.ReferralCode{ID: 3, UserID: 7, Code: "EFGH6789", IsActive: true}, nil).Once()

		code, err := svc.CreateForUser(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(3), code.ID)
		repo.AssertExpectations(t)
	})
}
