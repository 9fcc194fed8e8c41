package cors

import (
	"net/http"
	"os"
	"strings"
)

// Config holds CORS middleware configuration
type Config struct {
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for local development
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{
			"http://localhost:5173", // Vite development server
			"http://localhost:3000",
			"http://localhost:8081",
		},
	}
}

// ConfigFromEnv builds a Config from the CORS_ALLOWED_ORIGINS environment
// variable (comma-separated), falling back to defaults when unset.
func ConfigFromEnv() Config {
	raw := os.Getenv("CORS_ALLOWED_ORIGINS")
	if raw == "" {
		return DefaultConfig()
	}

	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return DefaultConfig()
	}
	return Config{AllowedOrigins: origins}
}

// Handler applies CORS headers to HTTP responses
type Handler struct {
	config Config
}

// New creates a CORS handler with the given configuration
func New(config Config) *Handler {
	if len(config.AllowedOrigins) == 0 {
		config = DefaultConfig()
	}
	return &Handler{config: config}
}

// Middleware returns a middleware that applies CORS headers and
// short-circuits preflight requests.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if h.isAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			// The response differs per Origin, so caches must key on it
			w.Header().Add("Vary", "Origin")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Accept, Origin")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Preflight requests are answered here, never forwarded
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isAllowedOrigin checks if the provided origin is in the allowed list
func (h *Handler) isAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range h.config.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
