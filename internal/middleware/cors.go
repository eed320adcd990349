// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// Default CORS grants for the search API. The service is read-only
// over GET, so browsers only need the safe methods plus preflight.
var (
	defaultCORSMethods = []string{http.MethodGet, http.MethodHead, http.MethodOptions}
	defaultCORSHeaders = []string{"Content-Type", RequestIDHeader}
)

// CORSConfig configures cross-origin access to the search endpoints.
// An empty AllowedOrigins list disables CORS handling entirely, which
// is the right default for same-origin deployments.
type CORSConfig struct {
	AllowedOrigins   []string // explicit origin allowlist, no wildcards
	AllowedMethods   []string // defaults to GET, HEAD, OPTIONS
	AllowedHeaders   []string // defaults to Content-Type, X-Request-ID
	AllowCredentials bool
	MaxAge           int // preflight cache lifetime in seconds
}

// CORS returns middleware that validates the Origin header against the
// configured allowlist. Requests from unlisted origins are rejected
// with 403; requests without an Origin header pass through untouched.
// Preflight OPTIONS requests are answered directly with the allowed
// methods and headers; actual requests carry only the origin and
// credentials grants.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	allowedOrigins := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowedOrigins[origin] = true
		}
	}

	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = defaultCORSHeaders
	}
	allowMethods := strings.Join(methods, ", ")
	allowHeaders := strings.Join(headers, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowedOrigins) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				// Same-origin request.
				next.ServeHTTP(w, r)
				return
			}
			if !allowedOrigins[origin] {
				http.Error(w, "Origin not allowed", http.StatusForbidden)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			if cfg.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", allowMethods)
				w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
				if cfg.MaxAge > 0 {
					w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
