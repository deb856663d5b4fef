package handlers

import (
	"crypto/subtle"
	"net/http"

	"taskboard-service/pkg/res"
)

// RequireAgentSecret guards mutating routes with the shared agent secret
// header. An empty configured secret disables the check (local mode).
func RequireAgentSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Agent-Secret")
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				res.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
