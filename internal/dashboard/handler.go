package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/unjob-ai/backend/internal/ledger"
	"github.com/unjob-ai/backend/internal/middleware"
	"github.com/unjob-ai/backend/internal/models"
	"github.com/unjob-ai/backend/internal/reconcile"
	"github.com/unjob-ai/backend/internal/wallet"
)

// EarningsReader serves the freelancer earnings read contract.
type EarningsReader interface {
	EarningsSummary(ctx context.Context, userID uuid.UUID) (*ledger.EarningsSummary, error)
}

// WalletReader serves the wallet read contract with sync health.
type WalletReader interface {
	Summary(ctx context.Context, userID uuid.UUID) (*wallet.Summary, error)
}

// NotificationReader lists a user's notifications.
type NotificationReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Notification, error)
}

// Reconciler forces a wallet back into agreement with the ledger.
type Reconciler interface {
	Reconcile(ctx context.Context, userID uuid.UUID) (*reconcile.Result, error)
	ReconcileAll(ctx context.Context) (int, error)
}

// Handler serves the read-side dashboard endpoints plus the admin
// reconciliation triggers.
type Handler struct {
	Earnings      EarningsReader
	Wallets       WalletReader
	Notifications NotificationReader
	Reconciler    Reconciler
	Logger        *slog.Logger
}

// EarningsSummary handles GET /api/v1/earnings/summary.
func (h *Handler) EarningsSummary(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	summary, err := h.Earnings.EarningsSummary(r.Context(), id.UserID)
	if err != nil {
		h.Logger.Error("earnings summary", "user_id", id.UserID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// WalletSummary handles GET /api/v1/wallet/summary.
func (h *Handler) WalletSummary(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	summary, err := h.Wallets.Summary(r.Context(), id.UserID)
	if err != nil {
		h.Logger.Error("wallet summary", "user_id", id.UserID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ListNotifications handles GET /api/v1/notifications.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.Notifications.ListByUser(r.Context(), id.UserID, 50)
	if err != nil {
		h.Logger.Error("list notifications", "user_id", id.UserID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

// ReconcileUser handles POST /api/v1/admin/reconcile/{userID}.
func (h *Handler) ReconcileUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("userID"))
	if err != nil {
		http.Error(w, `{"error":"invalid user id"}`, http.StatusBadRequest)
		return
	}
	res, err := h.Reconciler.Reconcile(r.Context(), userID)
	if err != nil {
		h.Logger.Error("reconcile wallet", "user_id", userID, "error", err)
		http.Error(w, `{"error":"reconciliation failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ReconcileAll handles POST /api/v1/admin/reconcile.
func (h *Handler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	corrected, err := h.Reconciler.ReconcileAll(r.Context())
	if err != nil {
		h.Logger.Error("reconcile all wallets", "error", err)
		http.Error(w, `{"error":"reconciliation failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"corrected": corrected})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
