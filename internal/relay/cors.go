package relay

import (
	"net/http"
)

const (
	corsAllowMethods = "GET, POST, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization, x-client-info, apikey, X-Client-Info"
	corsMaxAge       = "86400"
)

// Cors sets the relay CORS headers on every response. An origin outside the
// allow list gets the first allowed origin back, so the browser rejects the response.
func Cors(allowedOrigins []string) func(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowOrigin := origin
			if !allowed[origin] && len(allowedOrigins) > 0 {
				allowOrigin = allowedOrigins[0]
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowOrigin)
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")

			next.ServeHTTP(w, r)
		})
	}
}
