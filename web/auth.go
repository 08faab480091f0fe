package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Claims is the verified identity of an authenticated caller.
type Claims struct {
	UserID string
}

// Verifier validates a caller token. Token issuance and claim semantics are
// owned by the auth service; this core only consumes the verdict.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

var ErrUnauthorized = errors.New("unauthorized")

type contextKey string

const claimsKey contextKey = "claims"

// ClaimsFromContext returns the claims the auth middleware attached.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)

	return claims, ok
}

// AuthMiddleware verifies the bearer token (or auth cookie) and stores the
// claims in the request context.
type AuthMiddleware struct {
	verifier Verifier
	logger   *zap.Logger
}

func NewAuthMiddleware(verifier Verifier, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthMiddleware{verifier: verifier, logger: logger}
}

func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, "UNAUTHORIZED", http.StatusUnauthorized)

			return
		}

		claims, err := m.verifier.Verify(r.Context(), token)
		if err != nil || claims == nil || claims.UserID == "" {
			m.logger.Info("token verification failed", zap.Error(err))
			http.Error(w, "UNAUTHORIZED", http.StatusUnauthorized)

			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	if cookie, err := r.Cookie("auth"); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}

	return header
}

// StaticVerifier maps fixed tokens to user ids. Development and test use
// only; production wires the auth service's verifier.
type StaticVerifier map[string]string

func (v StaticVerifier) Verify(_ context.Context, token string) (*Claims, error) {
	userID, ok := v[token]
	if !ok {
		return nil, ErrUnauthorized
	}

	return &Claims{UserID: userID}, nil
}
