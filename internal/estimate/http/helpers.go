package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": kind, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func contextWithTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 7*time.Second)
}

// adminFrom returns the authenticated admin identity injected by the auth
// middleware, empty when the request carries none.
func adminFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Admin-ID"))
}
