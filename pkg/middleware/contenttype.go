package middleware

import (
	"mime"
	"net/http"

	apperrors "github.com/minimart/order-service/pkg/errors"
	"github.com/minimart/order-service/pkg/httputil"
)

// ContentTypeJSON rejects write requests whose body is not declared as JSON.
// Requests without a body pass through.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if r.ContentLength == 0 {
				break
			}
			ct := r.Header.Get("Content-Type")
			mediaType, _, err := mime.ParseMediaType(ct)
			if err != nil || mediaType != "application/json" {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.ErrorResponse{
					Error: httputil.ErrorDetail{
						Code:    apperrors.CodeInvalidInput,
						Message: "Content-Type must be application/json",
					},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
