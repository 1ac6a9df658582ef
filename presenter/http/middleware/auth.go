package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/omni/job-relay/presenter/http/render"
)

var (
	ErrUnauthorized = errors.New("missing or invalid bearer token")
	ErrAuthDisabled = errors.New("endpoint is disabled, auth token is not configured")
)

// BearerAuth rejects requests without "Authorization: Bearer <token>". With
// an empty token every request is rejected.
func BearerAuth(token string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				render.ErrorStatus(w, r, http.StatusForbidden, ErrAuthDisabled)
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				render.ErrorStatus(w, r, http.StatusUnauthorized, ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
