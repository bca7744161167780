package main

import (
	"net/http"

	"github.com/unjob-ai/backend/internal/dashboard"
	"github.com/unjob-ai/backend/internal/handlers"
	"github.com/unjob-ai/backend/internal/identity"
	"github.com/unjob-ai/backend/internal/middleware"
	"github.com/unjob-ai/backend/internal/models"
)

// RegisterRoutes adds the /api/v1/ endpoints to the given mux.
// Middleware chain: RequireAuth -> (RequireRole where noted) -> handler.
func RegisterRoutes(
	mux *http.ServeMux,
	identitySvc identity.Service,
	identityHandler *identity.Handler,
	settlementHandler *handlers.SettlementHandler,
	withdrawalHandler *handlers.WithdrawalHandler,
	dashHandler *dashboard.Handler,
) {
	auth := middleware.RequireAuth(identitySvc)
	hiring := middleware.RequireRole(models.RoleHiring)
	freelancer := middleware.RequireRole(models.RoleFreelancer)
	admin := middleware.RequireRole(models.RoleAdmin)

	// Public
	mux.HandleFunc("POST /api/v1/auth/register", identityHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", identityHandler.Login)
	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Project review: only the hiring side settles or rejects a submission.
	mux.Handle("POST /api/v1/projects/{id}/approve", auth(hiring(http.HandlerFunc(settlementHandler.Approve))))
	mux.Handle("POST /api/v1/projects/{id}/reject", auth(hiring(http.HandlerFunc(settlementHandler.Reject))))

	// Earnings and wallet read side (freelancer-facing)
	mux.Handle("GET /api/v1/earnings/summary", auth(freelancer(http.HandlerFunc(dashHandler.EarningsSummary))))
	mux.Handle("GET /api/v1/wallet/summary", auth(freelancer(http.HandlerFunc(dashHandler.WalletSummary))))
	mux.Handle("GET /api/v1/notifications", auth(http.HandlerFunc(dashHandler.ListNotifications)))

	// Withdrawal lifecycle
	mux.Handle("POST /api/v1/withdrawals", auth(freelancer(http.HandlerFunc(withdrawalHandler.Create))))
	mux.Handle("GET /api/v1/withdrawals", auth(http.HandlerFunc(withdrawalHandler.List)))
	mux.Handle("GET /api/v1/withdrawals/{id}", auth(http.HandlerFunc(withdrawalHandler.Get)))
	mux.Handle("POST /api/v1/withdrawals/{id}/cancel", auth(http.HandlerFunc(withdrawalHandler.CancelOwn)))

	// Admin payout operations
	mux.Handle("POST /api/v1/admin/withdrawals/{id}/process", auth(admin(http.HandlerFunc(withdrawalHandler.Process))))
	mux.Handle("POST /api/v1/admin/withdrawals/{id}/complete", auth(admin(http.HandlerFunc(withdrawalHandler.Complete))))
	mux.Handle("POST /api/v1/admin/withdrawals/{id}/fail", auth(admin(http.HandlerFunc(withdrawalHandler.Fail))))

	// Admin reconciliation triggers
	mux.Handle("POST /api/v1/admin/reconcile", auth(admin(http.HandlerFunc(dashHandler.ReconcileAll))))
	mux.Handle("POST /api/v1/admin/reconcile/{userID}", auth(admin(http.HandlerFunc(dashHandler.ReconcileUser))))
}
