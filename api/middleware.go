package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/littlewalk/go-walk/models"
)

type contextKey string

const actorIdKey contextKey = "actor_id"

const DebugUserHeader = "X-Debug-User-ID"

// accessLog writes one structured line per request.
func accessLog(logger models.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Infow(
					"http",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"requestId", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// authenticate resolves the actor from an HS256 bearer token's subject. Without a secret the actor is taken from the
// debug header instead, for local development.
func authenticate(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var actorId string
			if len(jwtSecret) == 0 {
				actorId = strings.TrimSpace(r.Header.Get(DebugUserHeader))
				if len(actorId) == 0 {
					writeUnauthorized(w, "missing "+DebugUserHeader+" header")
					return
				}
			} else {
				header := r.Header.Get("Authorization")
				if !strings.HasPrefix(header, "Bearer ") {
					writeUnauthorized(w, "missing or invalid token")
					return
				}
				token, err := jwt.Parse(
					strings.TrimPrefix(header, "Bearer "),
					func(t *jwt.Token) (any, error) {
						return []byte(jwtSecret), nil
					},
					jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
				)
				if err != nil || !token.Valid {
					writeUnauthorized(w, "invalid or expired token")
					return
				}
				if actorId, err = token.Claims.GetSubject(); err != nil || len(actorId) == 0 {
					writeUnauthorized(w, "token has no subject")
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorIdKey, actorId)))
		})
	}
}

func actorId(ctx context.Context) string {
	actorId, _ := ctx.Value(actorIdKey).(string)
	return actorId
}
