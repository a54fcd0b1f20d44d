// Package middleware holds the shared chi middleware stack: panic recovery,
// request logging, Prometheus metrics, tracing, CORS, content-type
// enforcement and a CIDR-guarded pprof mount.
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	apperrors "github.com/minimart/order-service/pkg/errors"
	"github.com/minimart/order-service/pkg/httputil"
)

// Recovery converts handler panics into opaque 500 responses. The stack
// trace goes to the log, never to the client.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.ErrorContext(r.Context(), "panic recovered",
						slog.Any("panic", rec),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("stack", string(debug.Stack())),
					)
					httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{
						Error: httputil.ErrorDetail{
							Code:    apperrors.CodeInternal,
							Message: "an unexpected error occurred",
						},
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
