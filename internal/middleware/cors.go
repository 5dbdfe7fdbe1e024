// Package middleware holds HTTP middleware that sits in front of the dispatcher.
package middleware

import (
	"net/http"
	"strings"
)

// CorsConfig describes the static cross-origin policy.
type CorsConfig struct {
	AllowedOrigin  string
	AllowedMethods []string
	AllowedHeaders []string
}

// DefaultCorsConfig is the permissive policy the dispatcher is served with.
func DefaultCorsConfig() CorsConfig {
	return CorsConfig{
		AllowedOrigin:  "*",
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}
}

// NewCorsMiddleware sets the cross-origin headers on every response,
// regardless of method, origin or outcome.
func NewCorsMiddleware(cfg CorsConfig) func(http.Handler) http.Handler {
	defaults := DefaultCorsConfig()
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = defaults.AllowedOrigin
	}
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = defaults.AllowedMethods
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = defaults.AllowedHeaders
	}
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", cfg.AllowedOrigin)
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			next.ServeHTTP(w, r)
		})
	}
}
