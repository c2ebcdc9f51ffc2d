package handler

import (
	"net/http"

	"github.com/felipemotter/gestor-sub001/internal/domain"
	"github.com/felipemotter/gestor-sub001/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// 2. Conciliação
// ============================================================

type autoMatchRequest struct {
	Manuals  []domain.Transaction `json:"manuals"`
	Imported []domain.Transaction `json:"imported"`
}

func autoMatchHandler(svc *service.ReconciliationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/reconciliation/auto-match")
		defer span.End()

		var req autoMatchRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		writeJSON(w, http.StatusOK, svc.AutoMatch(ctx, req.Manuals, req.Imported))
	}
}

type candidatesRequest struct {
	Manual            *domain.Transaction      `json:"manual"`
	Imported          []domain.Transaction     `json:"imported"`
	Settings          *domain.SettingsOverride `json:"settings,omitempty"`
	AllowCrossAccount bool                     `json:"allow_cross_account"`
}

type candidatesResponse struct {
	Candidates []domain.MatchCandidate `json:"candidates"`
}

func candidatesHandler(svc *service.ReconciliationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/reconciliation/candidates")
		defer span.End()

		var req candidatesRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Manual == nil {
			writeError(w, http.StatusBadRequest, "manual is required")
			return
		}
		settings := svc.Settings(req.Settings)
		if settings.DateToleranceDays < 0 || settings.AmountTolerance.IsNegative() {
			writeError(w, http.StatusBadRequest, "settings tolerances must not be negative")
			return
		}
		span.SetAttributes(attribute.String("manual.id", req.Manual.ID))

		candidates := svc.Rank(ctx, *req.Manual, req.Imported, &settings, req.AllowCrossAccount)
		writeJSON(w, http.StatusOK, candidatesResponse{Candidates: candidates})
	}
}

type discrepanciesResponse struct {
	Discrepancies []domain.BalanceDiscrepancy `json:"discrepancies"`
}

// discrepanciesHandler audits the authenticated user's accounts. Without
// authentication the owner comes from the owner_id query parameter.
func discrepanciesHandler(svc *service.ReconciliationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reconciliation/discrepancies")
		defer span.End()

		ownerID := OwnerIDFromContext(ctx)
		if ownerID == "" {
			ownerID = r.URL.Query().Get("owner_id")
		}
		if ownerID == "" {
			writeError(w, http.StatusBadRequest, "owner_id is required")
			return
		}
		span.SetAttributes(attribute.String("owner.id", ownerID))

		found, err := svc.Discrepancies(ctx, ownerID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, discrepanciesResponse{Discrepancies: found})
	}
}
