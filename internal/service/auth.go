package service

import (
	"fmt"

	"github.com/felipemotter/gestor-sub001/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// JWTClaims are the claims Supabase Auth puts in user access tokens.
type JWTClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService validates access tokens issued by Supabase Auth.
type AuthService struct {
	jwtSecret []byte
	logger    *zap.Logger
}

// NewAuthService creates a validator for tokens signed with the project's
// JWT secret.
func NewAuthService(jwtSecret string, logger *zap.Logger) *AuthService {
	return &AuthService{jwtSecret: []byte(jwtSecret), logger: logger}
}

// ValidateAccessToken checks signature, expiry and role and returns the
// claims. The subject is the user id that owns accounts.
func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		s.logger.Debug("token rejected", zap.Error(err))
		return nil, &domain.ErrUnauthorized{Message: "Token inválido ou expirado"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido"}
	}
	if claims.Subject == "" || claims.Role != "authenticated" {
		return nil, &domain.ErrUnauthorized{Message: "Tipo de token inválido"}
	}
	return claims, nil
}
