package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sudhaanshuu/Arogyam/internal/booking"
	"github.com/Sudhaanshuu/Arogyam/internal/metrics"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	actorKey     contextKey = "actor"
)

const (
	headerUserID   = "X-User-Id"
	headerUserRole = "X-User-Role"
)

// RequestIDMiddleware adds a unique request ID to each request context
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs each request with method, path, status, duration,
// and request ID through the structured logger.
func LoggingMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", GetRequestID(r.Context())),
			)
		})
	}
}

// MetricsMiddleware records request counts and latency per route pattern.
// The pattern label (e.g. /bookings/{id}) keeps metric cardinality bounded;
// it is only populated after routing, so it is read after the handler runs.
func MetricsMiddleware(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			path := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}

			status := strconv.Itoa(wrapped.statusCode)
			collector.RequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			collector.RequestDuration.WithLabelValues(r.Method, path, status).
				Observe(time.Since(start).Seconds())
		})
	}
}

// IdentityMiddleware extracts the caller identity asserted by the upstream
// gateway. The scheduler trusts these headers verbatim; requests without them
// proceed as anonymous and are rejected by handlers that need an actor.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idStr := r.Header.Get(headerUserID)
		roleStr := strings.ToLower(r.Header.Get(headerUserRole))
		if idStr == "" || roleStr == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "X-User-Id must be a valid UUID")
			return
		}

		role := booking.Role(roleStr)
		switch role {
		case booking.RolePatient, booking.RolePractitioner, booking.RoleAdmin:
		default:
			writeError(w, http.StatusBadRequest, "invalid_user_role", "X-User-Role must be patient, practitioner, or admin")
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, booking.Actor{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ActorFrom retrieves the caller identity, reporting whether one was asserted.
func ActorFrom(ctx context.Context) (booking.Actor, bool) {
	a, ok := ctx.Value(actorKey).(booking.Actor)
	return a, ok
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
