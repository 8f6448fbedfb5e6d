package api

import (
	"net/http"

	"github.com/greenpulse/greenpulse/internal/security"
)

// APIKeyMiddleware enforces API key authentication on every request to next.
//
// Behaviour:
//   - If mode != "apikey" or key == "", all requests are allowed (pass-through).
//   - Otherwise the value of header is compared to key; a missing, empty, or
//     incorrect key returns 401 and logs a security event.
func APIKeyMiddleware(mode, header, key string, seclog *security.Log, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Non-apikey modes or unconfigured key → allow everything.
		if mode != "apikey" || key == "" {
			next.ServeHTTP(w, r)
			return
		}

		if r.Header.Get(header) != key {
			seclog.LogEvent("auth_failed", security.SeverityHigh, r.RemoteAddr)
			jsonErr(w, http.StatusUnauthorized, "invalid api key")
			return
		}

		next.ServeHTTP(w, r)
	})
}
