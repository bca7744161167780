package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/unjob-ai/backend/internal/middleware"
	"github.com/unjob-ai/backend/internal/models"
	"github.com/unjob-ai/backend/internal/wallet"
	"github.com/unjob-ai/backend/internal/withdrawal"
)

// WithdrawalService is the lifecycle surface the handler needs.
type WithdrawalService interface {
	Request(ctx context.Context, userID uuid.UUID, amountPaise int64, method string, details models.PayoutDetails) (*models.Withdrawal, error)
	MarkProcessing(ctx context.Context, id, actorID uuid.UUID) (*models.Withdrawal, error)
	MarkCompleted(ctx context.Context, id, actorID uuid.UUID) (*models.Withdrawal, error)
	MarkFailed(ctx context.Context, id, actorID uuid.UUID, reason string) (*models.Withdrawal, error)
	Cancel(ctx context.Context, id, actorID uuid.UUID, reason string) (*models.Withdrawal, error)
	Status(ctx context.Context, id uuid.UUID) (*withdrawal.StatusView, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Withdrawal, error)
}

// WithdrawalHandler serves payout request and lifecycle endpoints.
type WithdrawalHandler struct {
	Svc    WithdrawalService
	Logger *slog.Logger
}

type withdrawalRequest struct {
	AmountPaise int64                `json:"amount_paise"`
	Method      string               `json:"method"`
	Details     models.PayoutDetails `json:"details"`
}

type transitionRequest struct {
	Reason string `json:"reason"`
}

// Create handles POST /api/v1/withdrawals.
func (h *WithdrawalHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req withdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.AmountPaise <= 0 {
		http.Error(w, `{"error":"amount must be positive"}`, http.StatusBadRequest)
		return
	}

	wd, err := h.Svc.Request(r.Context(), id.UserID, req.AmountPaise, req.Method, req.Details)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrInsufficientBalance):
			http.Error(w, `{"error":"insufficient wallet balance"}`, http.StatusUnprocessableEntity)
		case errors.Is(err, withdrawal.ErrBelowMinimum), errors.Is(err, withdrawal.ErrMissingPayoutDetails):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			h.Logger.Error("request withdrawal", "user_id", id.UserID, "error", err)
			http.Error(w, `{"error":"withdrawal request failed"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, wd)
}

// List handles GET /api/v1/withdrawals.
func (h *WithdrawalHandler) List(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.Svc.ListByUser(r.Context(), id.UserID)
	if err != nil {
		h.Logger.Error("list withdrawals", "user_id", id.UserID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /api/v1/withdrawals/{id}.
func (h *WithdrawalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	wid, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid withdrawal id"}`, http.StatusBadRequest)
		return
	}
	view, err := h.Svc.Status(r.Context(), wid)
	if err != nil {
		if errors.Is(err, withdrawal.ErrNotFound) {
			http.Error(w, `{"error":"withdrawal not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("get withdrawal", "withdrawal_id", wid, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if view.Withdrawal.UserID != id.UserID && id.Role != models.RoleAdmin {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// CancelOwn handles POST /api/v1/withdrawals/{id}/cancel. The requester
// un-arms a payout that has not been paid yet.
func (h *WithdrawalHandler) CancelOwn(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	wid, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid withdrawal id"}`, http.StatusBadRequest)
		return
	}
	view, err := h.Svc.Status(r.Context(), wid)
	if err != nil {
		if errors.Is(err, withdrawal.ErrNotFound) {
			http.Error(w, `{"error":"withdrawal not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("load withdrawal", "withdrawal_id", wid, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if view.Withdrawal.UserID != id.UserID {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	h.runTransition(w, r, wid, id.UserID, h.Svc.Cancel)
}

// Process handles POST /api/v1/admin/withdrawals/{id}/process.
func (h *WithdrawalHandler) Process(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, func(ctx context.Context, wid, actor uuid.UUID, _ string) (*models.Withdrawal, error) {
		return h.Svc.MarkProcessing(ctx, wid, actor)
	})
}

// Complete handles POST /api/v1/admin/withdrawals/{id}/complete.
func (h *WithdrawalHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, func(ctx context.Context, wid, actor uuid.UUID, _ string) (*models.Withdrawal, error) {
		return h.Svc.MarkCompleted(ctx, wid, actor)
	})
}

// Fail handles POST /api/v1/admin/withdrawals/{id}/fail.
func (h *WithdrawalHandler) Fail(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, h.Svc.MarkFailed)
}

func (h *WithdrawalHandler) adminTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, wid, actor uuid.UUID, reason string) (*models.Withdrawal, error)) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	wid, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid withdrawal id"}`, http.StatusBadRequest)
		return
	}
	h.runTransition(w, r, wid, id.UserID, fn)
}

func (h *WithdrawalHandler) runTransition(w http.ResponseWriter, r *http.Request, wid, actorID uuid.UUID, fn func(ctx context.Context, id, actor uuid.UUID, reason string) (*models.Withdrawal, error)) {
	var req transitionRequest
	// Reason is optional on most transitions; ignore decode failures on an
	// empty body.
	_ = json.NewDecoder(r.Body).Decode(&req)

	wd, err := fn(r.Context(), wid, actorID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, withdrawal.ErrNotFound):
			http.Error(w, `{"error":"withdrawal not found"}`, http.StatusNotFound)
		case errors.Is(err, withdrawal.ErrInvalidTransition):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			h.Logger.Error("withdrawal transition", "withdrawal_id", wid, "error", err)
			http.Error(w, `{"error":"transition failed"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, wd)
}
