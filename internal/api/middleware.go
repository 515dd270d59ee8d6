package api

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"campaign-funding-go/internal/apperr"
	"campaign-funding-go/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// AuthMiddleware verifies an HS256 bearer token and stores the caller in the
// request context. Claims: sub (user id), email, moderator.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAppError(w, r, apperr.ErrUnauthorized.WithMessage("authorization header required"))
				return
			}

			tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found || strings.TrimSpace(tokenString) == "" {
				writeAppError(w, r, apperr.ErrUnauthorized.WithMessage("authorization header must be a bearer token"))
				return
			}

			if len(secret) == 0 {
				zap.L().Error("Rejecting authenticated request: AUTH_JWT_SECRET is not configured")
				writeAppError(w, r, apperr.ErrUnauthorized)
				return
			}

			claims := jwt.MapClaims{}
			token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				return secret, nil
			})
			if err != nil || !token.Valid {
				zap.L().Debug("Bearer token rejected", zap.Error(err))
				writeAppError(w, r, apperr.ErrUnauthorized.WithMessage("invalid token"))
				return
			}

			actor, err := actorFromClaims(claims)
			if err != nil {
				writeAppError(w, r, apperr.ErrUnauthorized.WithMessage("%s", err.Error()))
				return
			}

			next.ServeHTTP(w, r.WithContext(models.WithActor(r.Context(), actor)))
		})
	}
}

func actorFromClaims(claims jwt.MapClaims) (*models.Actor, error) {
	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return nil, fmt.Errorf("token subject is required")
	}

	actor := &models.Actor{UserId: sub}
	if email, ok := claims["email"].(string); ok {
		actor.Email = email
	}
	if moderator, ok := claims["moderator"].(bool); ok {
		actor.IsModerator = moderator
	}
	return actor, nil
}

// RequireModerator rejects callers whose token does not carry moderator=true
func RequireModerator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := models.GetActor(r.Context())
		if actor == nil {
			writeAppError(w, r, apperr.ErrUnauthorized)
			return
		}
		if !actor.IsModerator {
			writeAppError(w, r, apperr.ErrForbidden.WithMessage("moderator role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit applies limiter per client IP under scope. Limiter failures fail
// open.
func RateLimit(limiter RateLimiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter, err := limiter.Allow(r.Context(), scope, clientIP(r))
			if err != nil {
				zap.L().Warn("Rate limiter unavailable, allowing request",
					zap.String("scope", scope),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeAppError(w, r, apperr.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
