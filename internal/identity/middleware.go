package identity

import (
	"encoding/json"
	"net/http"
)

const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
)

// Middleware resolves the caller from gateway headers. Requests without a valid
// identity are rejected with 401.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := Parse(r.Header.Get(HeaderUserID), r.Header.Get(HeaderRole))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}
