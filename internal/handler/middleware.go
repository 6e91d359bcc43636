package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const actorIDKey contextKey = "actorID"

// ActorMiddleware resolves the acting user for mutating operations. The
// surrounding platform authenticates callers; here we only extract identity:
// the sub claim of a Bearer token when a secret is configured, otherwise the
// X-Actor-ID header. Mutations without an actor are refused so the audit
// fields are never empty.
func ActorMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID := actorFromToken(r, jwtSecret, logger)
			if actorID == "" {
				actorID = r.Header.Get("X-Actor-ID")
			}

			if actorID == "" && r.Method != http.MethodGet {
				writeError(w, http.StatusBadRequest, "actor identity required for mutating operations")
				return
			}

			ctx := context.WithValue(r.Context(), actorIDKey, actorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func actorFromToken(r *http.Request, jwtSecret string, logger *zap.Logger) string {
	if jwtSecret == "" {
		return ""
	}
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		logger.Debug("actor: invalid token", zap.Error(err))
		return ""
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

// ActorFromContext extracts the acting user id from context.
func ActorFromContext(ctx context.Context) string {
	v, _ := ctx.Value(actorIDKey).(string)
	return v
}
