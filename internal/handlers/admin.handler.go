package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/nimasrn/referral-ledger/internal/model"
	"github.com/nimasrn/referral-ledger/internal/repository"
	"github.com/nimasrn/referral-ledger/internal/services"
	xhttp "github.com/nimasrn/referral-ledger/pkg/http"
)

type SettingsAdmin interface {
	List(ctx context.Context) ([]*model.Setting, error)
	Set(ctx context.Context, key, value, description string) error
}

type ReferralAdmin interface {
	Cancel(ctx context.Context, referralID int64) error
}

type CashbackAdmin interface {
	CancelTransaction(ctx context.Context, txnID int64) error
}

type AdminHandler struct {
	settings  SettingsAdmin
	referrals ReferralAdmin
	cashback  CashbackAdmin
}

func RegisterAdminRoutes(e *router.Group, h *AdminHandler) {
	e.GET("/admin/settings", h.ListSettings)
	e.PUT("/admin/settings", h.PutSetting)
	e.POST("/admin/referrals/{id}/cancel", h.CancelReferral)
	e.POST("/admin/transactions/{id}/cancel", h.CancelTransaction)
}

func NewAdminHandler(settings SettingsAdmin, referrals ReferralAdmin, cashback CashbackAdmin) *AdminHandler {
	return &AdminHandler{
		settings:  settings,
		referrals: referrals,
		cashback:  cashback,
	}
}

type putSettingRequest struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

type settingsListResponse struct {
	Items []*model.Setting `json:"items"`
}

func (h *AdminHandler) ListSettings(ctx *xhttp.RequestCtx) {
	items, err := h.settings.List(ctx)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, settingsListResponse{Items: items})
}

func (h *AdminHandler) PutSetting(ctx *xhttp.RequestCtx) {
	var req putSettingRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.Key == "" {
		writeError(ctx, 400, "key is required")
		return
	}

	if err := h.settings.Set(ctx, req.Key, req.Value, req.Description); err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]string{"key": req.Key, "value": req.Value})
}

func (h *AdminHandler) CancelReferral(ctx *xhttp.RequestCtx) {
	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid id")
		return
	}

	if err := h.referrals.Cancel(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrReferralNotFound):
			writeError(ctx, 404, err.Error())
		case errors.Is(err, services.ErrReferralCancelled):
			writeError(ctx, 409, err.Error())
		default:
			writeError(ctx, 500, err.Error())
		}
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "cancelled"})
}

func (h *AdminHandler) CancelTransaction(ctx *xhttp.RequestCtx) {
	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid id")
		return
	}

	if err := h.cashback.CancelTransaction(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrTransactionNotFound):
			writeError(ctx, 404, err.Error())
		case errors.Is(err, services.ErrTransactionCancelled):
			writeError(ctx, 409, err.Error())
		default:
			writeError(ctx, 500, err.Error())
		}
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "cancelled"})
}

func routeInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, _ := ctx.UserValue(name).(string)
	return strconv.ParseInt(v, 10, 64)
}
