// internal/server/middleware.go
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"studybuddy-backend/internal/common/metrics"
)

type ctxKey string

const (
	userIDKey    ctxKey = "user_id"
	requestIDKey ctxKey = "request_id"
)

var errNoUser = errors.New("no user in context")

// UserFromContext returns the authenticated caller's id.
func UserFromContext(r *http.Request) (string, error) {
	uid, _ := r.Context().Value(userIDKey).(string)
	if uid == "" {
		return "", errNoUser
	}
	return uid, nil
}

// RequestIDFromContext returns the request id set by RequestIDMiddleware.
func RequestIDFromContext(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// parseUserToken validates an HS256 JWT and returns the user id from
// the "sub" claim.
func parseUserToken(token string, secret []byte) (string, error) {
	t, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !t.Valid {
		return "", errors.New("invalid token")
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("bad claims")
	}
	uid, _ := claims["sub"].(string)
	if uid == "" {
		return "", errors.New("no subject")
	}
	return uid, nil
}

// UserAuthMiddleware populates the caller identity from a bearer JWT.
func UserAuthMiddleware(jwtSecret string) mux.MiddlewareFunc {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing token"})
				return
			}
			uid, err := parseUserToken(token, secret)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ServiceAuthMiddleware gates dispatcher-only routes behind the shared
// service token. End-user JWTs are never accepted here; an
// authenticated end user must not be able to poll or acknowledge other
// users' pending notifications.
func ServiceAuthMiddleware(serviceToken string) mux.MiddlewareFunc {
	expected := []byte(serviceToken)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("X-Service-Token"))
			if len(got) == 0 {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing service token"})
				return
			}
			if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid service token"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDMiddleware assigns each request a uuid, echoed in the
// X-Request-ID response header.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware records request duration per route template.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unknown"
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).
			Observe(time.Since(started).Seconds())
	})
}
