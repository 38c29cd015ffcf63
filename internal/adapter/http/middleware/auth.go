package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Temutjin2k/driver-match-system/internal/service/auth"
	wrap "github.com/Temutjin2k/driver-match-system/pkg/logger/wrapper"
)

// Auth validates the bearer token when present and puts the driver claims
// into the context. Requests without a token pass through anonymously;
// protected routes reject them via RequireDriver.
func (h *Middleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(header)
		if err != nil {
			errorResponse(w, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := h.tokens.Validate(ctx, token)
		if err != nil {
			h.log.Error(wrap.ErrorCtx(ctx, err), "failed to authenticate driver", err)
			errorResponse(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(ctx, claims)))
	})
}

// RequireDriver allows only requests carrying valid driver claims.
func (h *Middleware) RequireDriver(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := auth.ClaimsFromContext(r.Context())
		if claims == nil {
			errorResponse(w, http.StatusUnauthorized, "authorization required")
			return
		}
		if claims.Role != auth.RoleDriver {
			errorResponse(w, http.StatusForbidden, "forbidden: insufficient role")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	return parts[1], nil
}
