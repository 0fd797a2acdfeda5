package middleware

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"user-network/utils/errors"
)

// statusByKind is the only mapping from failure kinds to HTTP status codes
var statusByKind = map[errors.Kind]int{
	errors.KindNotFound:   http.StatusNotFound,
	errors.KindConflict:   http.StatusConflict,
	errors.KindBadRequest: http.StatusBadRequest,
	errors.KindValidation: http.StatusUnprocessableEntity,
	errors.KindMethod:     http.StatusMethodNotAllowed,
	errors.KindInternal:   http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for err
func StatusFor(err error) int {
	if status, ok := statusByKind[errors.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorMiddleware recovers from panics and answers them with a standardized
// internal error response
func ErrorMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("Panic recovered",
						zap.Any("panic", rec),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
					)
					WriteError(w, errors.ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes err as a JSON response with the status of its kind.
// Internal failures never expose their underlying cause.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := errors.Wrap(err, "UNKNOWN_ERROR", "Unexpected error")
	status := StatusFor(apiErr)
	if status >= http.StatusInternalServerError {
		apiErr = errors.ErrInternal
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiErr)
}
