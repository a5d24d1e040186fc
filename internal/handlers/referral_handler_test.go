package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nimasrn/referral-ledger/internal/model"
	"github.com/nimasrn/referral-ledger/internal/services"
	xhttp "github.com/nimasrn/referral-ledger/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) UseBalance(ctx context.Context, userID, amount int64, reason string) (int64, error) {
	args := m.Called(ctx, userID, amount, reason)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountService) GetStats(ctx context.Context, userID int64) (*services.ReferralStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ReferralStats), args.Error(1)
}

func (m *MockAccountService) GetMyCode(ctx context.Context, userID int64) (*model.ReferralCode, *model.SharePayload, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.ReferralCode), args.Get(1).(*model.SharePayload), args.Error(2)
}

func (m *MockAccountService) ListReferrals(ctx context.Context, userID int64, page, perPage int) (*model.ReferralPage, error) {
	args := m.Called(ctx, userID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReferralPage), args.Error(1)
}

type MockReferralService struct {
	mock.Mock
}

func (m *MockReferralService) ProcessRegistration(ctx context.Context, newUserID int64, code string) (*model.Referral, error) {
	args := m.Called(ctx, newUserID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Referral), args.Error(1)
}

func (m *MockReferralService) ValidateCode(ctx context.Context, code string, requesterID int64) model.CodeValidation {
	args := m.Called(ctx, code, requesterID)
	return args.Get(0).(model.CodeValidation)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func TestReferralHandler_GetStats(t *testing.T) {
	t.Run("successful stats", func(t *testing.T) {
		account := new(MockAccountService)
		registry := new(MockReferralService)
		handler := NewReferralHandler(account, registry)

		account.On("GetStats", mock.Anything, int64(7)).Return(&services.ReferralStats{
			Code:               "ABCD2345",
			TotalReferrals:     3,
			ActiveReferrals:    2,
			Balance:            1500,
			BalanceMajor:       15,
			TotalEarnings:      4000,
			TotalEarningsMajor: 40,
			CashbackPercentage: "10",
			ProgramEnabled:     true,
		}, nil)

		ctx := setupTestContext("GET", "/api/v1/referral/stats?user_id=7", nil)
		handler.GetStats(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response services.ReferralStats
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, "ABCD2345", response.Code)
		assert.Equal(t, int64(1500), response.Balance)
		assert.Equal(t, float64(15), response.BalanceMajor)

		account.AssertExpectations(t)
	})

	t.Run("missing user_id", func(t *testing.T) {
		handler := NewReferralHandler(new(MockAccountService), new(MockReferralService))

		ctx := setupTestContext("GET", "/api/v1/referral/stats", nil)
		handler.GetStats(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("unknown user", func(t *testing.T) {
		account := new(MockAccountService)
		handler := NewReferralHandler(account, new(MockReferralService))

		account.On("GetStats", mock.Anything, int64(99)).Return(nil, services.ErrUserNotFound)

		ctx := setupTestContext("GET", "/api/v1/referral/stats?user_id=99", nil)
		handler.GetStats(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
		account.AssertExpectations(t)
	})
}

func TestReferralHandler_ListReferrals(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		account := new(MockAccountService)
		handler := NewReferralHandler(account, new(MockReferralService))

		account.On("ListReferrals", mock.Anything, int64(7), 1, 20).Return(&model.ReferralPage{
			Items: []*model.ReferralListItem{},
			Pagination: model.Pagination{
				CurrentPage: 1,
				LastPage:    1,
				PerPage:     20,
				Total:       0,
			},
		}, nil)

		ctx := setupTestContext("GET", "/api/v1/referral/referrals?user_id=7", nil)
		handler.ListReferrals(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		account.AssertExpectations(t)
	})

	t.Run("explicit pagination forwarded", func(t *testing.T) {
		account := new(MockAccountService)
		handler := NewReferralHandler(account, new(MockReferralService))

		account.On("ListReferrals", mock.Anything, int64(7), 3, 50).Return(&model.ReferralPage{
			Pagination: model.Pagination{CurrentPage: 3, LastPage: 3, PerPage: 50, Total: 120},
		}, nil)

		ctx := setupTestContext("GET", "/api/v1/referral/referrals?user_id=7&page=3&per_page=50", nil)
		handler.ListReferrals(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response model.ReferralPage
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, 3, response.Pagination.CurrentPage)
		assert.Equal(t, int64(120), response.Pagination.Total)

		account.AssertExpectations(t)
	})

	t.Run("invalid pagination is a 400", func(t *testing.T) {
		account := new(MockAccountService)
		handler := NewReferralHandler(account, new(MockReferralService))

		account.On("ListReferrals", mock.Anything, int64(7), 1, 500).
			Return(nil, services.ErrInvalidPagination)

		ctx := setupTestContext("GET", "/api/v1/referral/referrals?user_id=7&per_page=500", nil)
		handler.ListReferrals(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		account.AssertExpectations(t)
	})
}

func TestReferralHandler_GetMyCode(t *testing.T) {
	t.Run("returns code with share payload", func(t *testing.T) {
		account := new(MockAccountService)
		handler := NewReferralHandler(account, new(MockReferralService))

		account.On("GetMyCode", mock.Anything, int64(7)).Return(
			&model.ReferralCode{ID: 1, UserID: 7, Code: "WXYZ7890", IsActive: true},
			&model.SharePayload{
				Code: "WXYZ7890",
				URL:  "https://app.example.com/signup?ref=WXYZ7890",
				Text: "join me",
			},
			nil,
		)

		ctx := setupTestContext("GET", "/api/v1/referral/code?user_id=7", nil)
		handler.GetMyCode(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response myCodeResponse
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, "WXYZ7890", response.Code)
		require.NotNil(t, response.Share)
		assert.Contains(t, response.Share.URL, "ref=WXYZ7890")

		account.AssertExpectations(t)
	})
}

func TestReferralHandler_UseBalance(t *testing.T) {
	t.Run("successful redemption returns remaining balance", func(t *testing.T) {
		account := new(MockAccountService)
		handler := NewReferralHandler(account, new(MockReferralService))

		reqBody := useBalanceRequest{UserID: 7, Amount: 500, Reason: "order discount"}
		bodyBytes, _ := json.Marshal(reqBody)

		account.On("UseBalance", mock.Anything, int64(7), int64(500), "order discount").
			Return(int64(500), nil)

		ctx := setupTestContext("POST", "/api/v1/referral/use-balance", bodyBytes)
		handler.UseBalance(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response useBalanceResponse
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, int64(500), response.Balance)

		account.AssertExpectations(t)
	})

	t.Run("insufficient balance is a 422", func(t *testing.T) {
		account := new(MockAccountService)
		handler := NewReferralHandler(account, new(MockReferralService))

		reqBody := useBalanceRequest{UserID: 7, Amount: 1500}
		bodyBytes, _ := json.Marshal(reqBody)

		account.On("UseBalance", mock.Anything, int64(7), int64(1500), "").
			Return(int64(0), services.ErrInsufficientBalance)

		ctx := setupTestContext("POST", "/api/v1/referral/use-balance", bodyBytes)
		handler.UseBalance(ctx)

		assert.Equal(t, 422, ctx.Response.StatusCode())
		account.AssertExpectations(t)
	})

	t.Run("non-positive amount is a 400", func(t *testing.T) {
		account := new(MockAccountService)
		handler := NewReferralHandler(account, new(MockReferralService))

		reqBody := useBalanceRequest{UserID: 7, Amount: -5}
		bodyBytes, _ := json.Marshal(reqBody)

		account.On("UseBalance", mock.Anything, int64(7), int64(-5), "").
			Return(int64(0), services.ErrInvalidAmount)

		ctx := setupTestContext("POST", "/api/v1/referral/use-balance", bodyBytes)
		handler.UseBalance(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		account.AssertExpectations(t)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		handler := NewReferralHandler(new(MockAccountService), new(MockReferralService))

		ctx := setupTestContext("POST", "/api/v1/referral/use-balance", []byte("not json"))
		handler.UseBalance(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestReferralHandler_ValidateCode(t *testing.T) {
	t.Run("valid code", func(t *testing.T) {
		registry := new(MockReferralService)
		handler := NewReferralHandler(new(MockAccountService), registry)

		reqBody := validateCodeRequest{Code: "ABCD2345", UserID: 9}
		bodyBytes, _ := json.Marshal(reqBody)

		registry.On("ValidateCode", mock.Anything, "ABCD2345", int64(9)).Return(model.CodeValidation{
			Valid:              true,
			ReferrerName:       "Alice",
			CashbackPercentage: "10",
			Message:            services.MsgCodeValid,
		})

		ctx := setupTestContext("POST", "/api/v1/referral/validate-code", bodyBytes)
		handler.ValidateCode(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response model.CodeValidation
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.True(t, response.Valid)
		assert.Equal(t, "Alice", response.ReferrerName)

		registry.AssertExpectations(t)
	})

	t.Run("invalid code still answers 200", func(t *testing.T) {
		registry := new(MockReferralService)
		handler := NewReferralHandler(new(MockAccountService), registry)

		reqBody := validateCodeRequest{Code: "NOPE"}
		bodyBytes, _ := json.Marshal(reqBody)

		registry.On("ValidateCode", mock.Anything, "NOPE", int64(0)).Return(model.CodeValidation{
			Valid:   false,
			Message: services.MsgCodeNotFound,
		})

		ctx := setupTestContext("POST", "/api/v1/referral/validate-code", bodyBytes)
		handler.ValidateCode(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response model.CodeValidation
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.False(t, response.Valid)

		registry.AssertExpectations(t)
	})
}

func TestReferralHandler_Register(t *testing.T) {
	t.Run("successful registration", func(t *testing.T) {
		registry := new(MockReferralService)
		handler := NewReferralHandler(new(MockAccountService), registry)

		reqBody := registerRequest{UserID: 9, Code: "ABCD2345"}
		bodyBytes, _ := json.Marshal(reqBody)

		registry.On("ProcessRegistration", mock.Anything, int64(9), "ABCD2345").
			Return(&model.Referral{ID: 1, ReferrerID: 7, ReferredID: 9, Status: model.ReferralStatusActive}, nil)

		ctx := setupTestContext("POST", "/api/v1/referral/register", bodyBytes)
		handler.Register(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var response registerResponse
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.True(t, response.Registered)
		require.NotNil(t, response.Referral)
		assert.Equal(t, int64(7), response.Referral.ReferrerID)

		registry.AssertExpectations(t)
	})

	t.Run("business decline fails open with 200", func(t *testing.T) {
		registry := new(MockReferralService)
		handler := NewReferralHandler(new(MockAccountService), registry)

		reqBody := registerRequest{UserID: 7, Code: "ABCD2345"}
		bodyBytes, _ := json.Marshal(reqBody)

		registry.On("ProcessRegistration", mock.Anything, int64(7), "ABCD2345").
			Return(nil, services.ErrSelfReferral)

		ctx := setupTestContext("POST", "/api/v1/referral/register", bodyBytes)
		handler.Register(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response registerResponse
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.False(t, response.Registered)
		assert.NotEmpty(t, response.Reason)

		registry.AssertExpectations(t)
	})

	t.Run("storage error is a 500", func(t *testing.T) {
		registry := new(MockReferralService)
		handler := NewReferralHandler(new(MockAccountService), registry)

		reqBody := registerRequest{UserID: 9, Code: "ABCD2345"}
		bodyBytes, _ := json.Marshal(reqBody)

		registry.On("ProcessRegistration", mock.Anything, int64(9), "ABCD2345").
			Return(nil, errors.New("connection refused"))

		ctx := setupTestContext("POST", "/api/v1/referral/register", bodyBytes)
		handler.Register(ctx)

		assert.Equal(t, 500, ctx.Response.StatusCode())
		registry.AssertExpectations(t)
	})
}

func TestHelperFunctions(t *testing.T) {
	t.Run("readJSON", func(t *testing.T) {
		data := map[string]string{"key": "value"}
		bodyBytes, _ := json.Marshal(data)
		ctx := setupTestContext("POST", "/", bodyBytes)

		var result map[string]string
		err := readJSON(ctx, &result)
		require.NoError(t, err)
		assert.Equal(t, "value", result["key"])
	})

	t.Run("writeJSON", func(t *testing.T) {
		ctx := setupTestContext("GET", "/", nil)
		data := map[string]string{"message": "test"}

		writeJSON(ctx, 200, data)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Contains(t, string(ctx.Response.Header.Peek("Content-Type")), "application/json")

		var result map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &result)
		require.NoError(t, err)
		assert.Equal(t, "test", result["message"])
	})

	t.Run("writeError", func(t *testing.T) {
		ctx := setupTestContext("GET", "/", nil)
		writeError(ctx, 404, "not found")

		assert.Equal(t, 404, ctx.Response.StatusCode())

		var result map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &result)
		require.NoError(t, err)
		assert.Equal(t, "not found", result["error"])
	})
}
