package logger

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKeyCorrelationID struct{}

// Middleware tags every request context with a fresh correlation ID and
// echoes it in the X-Correlation-ID response header.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Correlation-ID", id)
		ctx := context.WithValue(r.Context(), ctxKeyCorrelationID{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CorrelationIDFromContext reports the request's correlation ID, if any.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyCorrelationID{}).(string)
	return id
}
