package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/nimasrn/referral-ledger/internal/model"
	"github.com/nimasrn/referral-ledger/internal/services"
	xhttp "github.com/nimasrn/referral-ledger/pkg/http"
)

type AccountService interface {
	UseBalance(ctx context.Context, userID, amount int64, reason string) (int64, error)
	GetStats(ctx context.Context, userID int64) (*services.ReferralStats, error)
	GetMyCode(ctx context.Context, userID int64) (*model.ReferralCode, *model.SharePayload, error)
	ListReferrals(ctx context.Context, userID int64, page, perPage int) (*model.ReferralPage, error)
}

type ReferralService interface {
	ProcessRegistration(ctx context.Context, newUserID int64, code string) (*model.Referral, error)
	ValidateCode(ctx context.Context, code string, requesterID int64) model.CodeValidation
}

type ReferralHandler struct {
	account  AccountService
	registry ReferralService
}

func RegisterReferralRoutes(e *router.Group, h *ReferralHandler) {
	e.GET("/referral/stats", h.GetStats)
	e.GET("/referral/referrals", h.ListReferrals)
	e.GET("/referral/code", h.GetMyCode)
	e.POST("/referral/use-balance", h.UseBalance)
	e.POST("/referral/validate-code", h.ValidateCode)
	e.POST("/referral/register", h.Register)
}

func NewReferralHandler(account AccountService, registry ReferralService) *ReferralHandler {
	return &ReferralHandler{
		account:  account,
		registry: registry,
	}
}

type useBalanceRequest struct {
	UserID int64  `json:"user_id"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type useBalanceResponse struct {
	Balance int64 `json:"balance"`
}

type validateCodeRequest struct {
	Code   string `json:"code"`
	UserID int64  `json:"user_id"`
}

type registerRequest struct {
	UserID int64  `json:"user_id"`
	Code   string `json:"code"`
}

type registerResponse struct {
	Registered bool            `json:"registered"`
	Reason     string          `json:"reason,omitempty"`
	Referral   *model.Referral `json:"referral,omitempty"`
}

type myCodeResponse struct {
	Code  string              `json:"code"`
	Share *model.SharePayload `json:"share"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *ReferralHandler) GetStats(ctx *xhttp.RequestCtx) {
	userID, err := paramInt64(ctx, "user_id")
	if err != nil {
		writeError(ctx, 400, "invalid user_id")
		return
	}

	stats, err := h.account.GetStats(ctx, userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeError(ctx, 404, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, stats)
}

func (h *ReferralHandler) ListReferrals(ctx *xhttp.RequestCtx) {
	userID, err := paramInt64(ctx, "user_id")
	if err != nil {
		writeError(ctx, 400, "invalid user_id")
		return
	}

	page := 1
	if v := query(ctx, "page"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			page = n
		}
	}
	perPage := 20
	if v := query(ctx, "per_page"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			perPage = n
		}
	}

	result, err := h.account.ListReferrals(ctx, userID, page, perPage)
	if err != nil {
		if errors.Is(err, services.ErrInvalidPagination) {
			writeError(ctx, 400, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, result)
}

func (h *ReferralHandler) GetMyCode(ctx *xhttp.RequestCtx) {
	userID, err := paramInt64(ctx, "user_id")
	if err != nil {
		writeError(ctx, 400, "invalid user_id")
		return
	}

	code, share, err := h.account.GetMyCode(ctx, userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeError(ctx, 404, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, myCodeResponse{Code: code.Code, Share: share})
}

func (h *ReferralHandler) UseBalance(ctx *xhttp.RequestCtx) {
	var req useBalanceRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	balance, err := h.account.UseBalance(ctx, req.UserID, req.Amount, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount):
			writeError(ctx, 400, err.Error())
		case errors.Is(err, services.ErrInsufficientBalance):
			writeError(ctx, 422, err.Error())
		case errors.Is(err, services.ErrUserNotFound):
			writeError(ctx, 404, err.Error())
		default:
			writeError(ctx, 500, err.Error())
		}
		return
	}
	writeJSON(ctx, 200, useBalanceResponse{Balance: balance})
}

// ValidateCode always answers 200; the verdict lives in the body.
func (h *ReferralHandler) ValidateCode(ctx *xhttp.RequestCtx) {
	var req validateCodeRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	result := h.registry.ValidateCode(ctx, req.Code, req.UserID)
	writeJSON(ctx, 200, result)
}

// Register attributes a new user to a code owner. Business declines are
// a 200 with registered=false: the caller's registration flow must not
// fail because attribution did.
func (h *ReferralHandler) Register(ctx *xhttp.RequestCtx) {
	var req registerRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	referral, err := h.registry.ProcessRegistration(ctx, req.UserID, req.Code)
	if err != nil {
		if errors.Is(err, services.ErrRegistrationDeclined) {
			writeJSON(ctx, 200, registerResponse{Registered: false, Reason: err.Error()})
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 201, registerResponse{Registered: true, Referral: referral})
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func paramInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	idStr := ctx.QueryArgs().Peek(name)
	return strconv.ParseInt(string(idStr), 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}
