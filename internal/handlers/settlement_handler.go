package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/unjob-ai/backend/internal/middleware"
	"github.com/unjob-ai/backend/internal/repository"
	"github.com/unjob-ai/backend/internal/settlement"
)

// Settler is the settlement surface the handler needs.
type Settler interface {
	ApproveProject(ctx context.Context, projectID, companyID uuid.UUID, feedback string) (*settlement.Result, error)
	RejectProject(ctx context.Context, projectID, companyID uuid.UUID, reason string) error
}

// SettlementHandler serves the project review endpoints.
type SettlementHandler struct {
	Svc    Settler
	Logger *slog.Logger
}

type reviewRequest struct {
	Feedback string `json:"feedback"`
	Reason   string `json:"reason"`
}

// Approve handles POST /api/v1/projects/{id}/approve. Approval settles the
// project: ledger record, wallet credit, archival schedule.
func (h *SettlementHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	projectID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid project id"}`, http.StatusBadRequest)
		return
	}
	var req reviewRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
			return
		}
	}

	res, err := h.Svc.ApproveProject(r.Context(), projectID, id.UserID, req.Feedback)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			http.Error(w, `{"error":"project not found"}`, http.StatusNotFound)
		case errors.Is(err, settlement.ErrForbidden):
			http.Error(w, `{"error":"you do not own this project"}`, http.StatusForbidden)
		case errors.Is(err, settlement.ErrNotSubmitted):
			http.Error(w, `{"error":"project is not awaiting review"}`, http.StatusConflict)
		default:
			h.Logger.Error("approve project", "project_id", projectID, "error", err)
			http.Error(w, `{"error":"settlement failed"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Reject handles POST /api/v1/projects/{id}/reject.
func (h *SettlementHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	projectID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid project id"}`, http.StatusBadRequest)
		return
	}
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Reason == "" {
		http.Error(w, `{"error":"reason is required"}`, http.StatusBadRequest)
		return
	}

	if err := h.Svc.RejectProject(r.Context(), projectID, id.UserID, req.Reason); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			http.Error(w, `{"error":"project not found"}`, http.StatusNotFound)
		case errors.Is(err, settlement.ErrForbidden):
			http.Error(w, `{"error":"you do not own this project"}`, http.StatusForbidden)
		case errors.Is(err, settlement.ErrNotSubmitted):
			http.Error(w, `{"error":"project is not awaiting review"}`, http.StatusConflict)
		default:
			h.Logger.Error("reject project", "project_id", projectID, "error", err)
			http.Error(w, `{"error":"rejection failed"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
