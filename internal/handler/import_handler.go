package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/felipemotter/gestor-sub001/internal/domain"
	"github.com/felipemotter/gestor-sub001/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// 1. Importação: POST /v1/imports/statement
// ============================================================

// uploadStatementHandler accepts the statement as a multipart "file" field
// (with an optional "rules" JSON field) or as the raw request body.
func uploadStatementHandler(svc *service.ImportService, maxBytes int64, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/imports/statement")
		defer span.End()

		accountID := r.URL.Query().Get("account_id")
		span.SetAttributes(attribute.String("account.id", accountID))

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		var (
			content []byte
			rules   []domain.Rule
			err     error
		)

		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if err := r.ParseMultipartForm(maxBytes); err != nil {
				writeUploadError(w, err)
				return
			}
			file, _, err := r.FormFile("file")
			if err != nil {
				writeError(w, http.StatusBadRequest, "file is required")
				return
			}
			defer file.Close()
			content, err = io.ReadAll(file)
			if err != nil {
				writeUploadError(w, err)
				return
			}
			if raw := r.FormValue("rules"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &rules); err != nil {
					writeError(w, http.StatusBadRequest, "rules must be a JSON array of rules")
					return
				}
			}
		} else {
			content, err = io.ReadAll(r.Body)
			if err != nil {
				writeUploadError(w, err)
				return
			}
		}

		preview, err := svc.Preview(ctx, accountID, string(content), rules)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, preview)
	}
}

func writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "statement file too large")
		return
	}
	writeError(w, http.StatusBadRequest, "could not read statement file")
}

// ============================================================
// POST /v1/accounts/{accountId}/imports/confirm
// ============================================================

type confirmImportRequest struct {
	Transactions []domain.Transaction `json:"transactions"`
}

func confirmImportHandler(svc *service.ImportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountId}/imports/confirm")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		span.SetAttributes(attribute.String("account.id", accountID))

		var req confirmImportRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.Confirm(ctx, accountID, req.Transactions)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}
