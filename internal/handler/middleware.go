package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/felipemotter/gestor-sub001/internal/domain"
	"github.com/felipemotter/gestor-sub001/internal/port"
	"github.com/felipemotter/gestor-sub001/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type contextKey string

const ownerIDKey contextKey = "ownerID"

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", &domain.ErrUnauthorized{Message: "Token de autenticação não fornecido"}
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", &domain.ErrUnauthorized{Message: "Formato de token inválido"}
	}
	return token, nil
}

// JWTAuthMiddleware accepts Supabase access tokens and puts the token's
// subject in the context as the owner of every ledger row the request touches.
func JWTAuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err == nil {
				var claims *service.JWTClaims
				if claims, err = authSvc.ValidateAccessToken(token); err == nil {
					ctx := context.WithValue(r.Context(), ownerIDKey, claims.Subject)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			logger.Warn("auth: request rejected",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			writeError(w, http.StatusUnauthorized, err.Error())
		})
	}
}

// AccountOwnerMiddleware loads the {accountId} of the route and rejects the
// request unless it belongs to the authenticated owner.
func AccountOwnerMiddleware(accounts port.AccountStore, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			accountID := chi.URLParam(r, "accountId")
			ownerID := OwnerIDFromContext(ctx)

			account, err := accounts.GetAccount(ctx, accountID)
			if err != nil {
				var notFound *domain.ErrNotFound
				if !errors.As(err, &notFound) {
					handleServiceError(w, err, logger)
					return
				}
				account = nil
			}
			if account == nil {
				writeError(w, http.StatusNotFound, "conta não encontrada")
				return
			}
			if account.OwnerID != ownerID {
				logger.Warn("auth: account belongs to another owner",
					zap.String("account_id", accountID),
					zap.String("owner_id", ownerID),
				)
				writeError(w, http.StatusForbidden, "conta não pertence ao usuário")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// OwnerIDFromContext returns the authenticated owner, or "" without auth.
func OwnerIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ownerIDKey).(string)
	return v
}
