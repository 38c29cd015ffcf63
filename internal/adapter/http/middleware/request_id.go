package middleware

import (
	"net/http"

	wrap "github.com/Temutjin2k/driver-match-system/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestID reuses the caller's request id or mints one, puts it into the
// log context and echoes it on the response.
func (a *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := wrap.WithRequestID(r.Context(), requestID)
		w.Header().Set(requestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
