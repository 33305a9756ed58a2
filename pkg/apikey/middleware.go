package apikey

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Header is the HTTP header carrying the API key.
const Header = "X-API-Key"

// Middleware returns chi middleware that authenticates every request by
// API key and attaches the resolved tenant to the request context.
// Requests without a valid key are rejected with 401 before reaching any
// handler.
func Middleware(store *Store, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(Header)
			if token == "" {
				unauthorized(w, "missing API key")
				return
			}

			tenantID, err := store.ResolveTenant(token)
			if err != nil {
				if errors.Is(err, ErrUnknownKey) {
					unauthorized(w, "invalid API key")
					return
				}
				logger.Error("api key lookup failed", "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication unavailable"})
				return
			}

			ctx := WithTenant(r.Context(), TenantContext{TenantID: tenantID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
