package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code by substring-matching its message
// (spec §7): "invalid"→400, "not found"→404, "not approved"/"unauthorized"
// →403, "service not initialized"/"connection failed"→503, else 500.
func writeError(w http.ResponseWriter, err error) {
	writeErrorStatus(w, statusForError(err), err.Error())
}

func writeErrorStatus(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":      http.StatusText(status),
		"message":    message,
		"statusCode": status,
	})
}

func statusForError(err error) int {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "invalid"):
		return http.StatusBadRequest
	case strings.Contains(msg, "not found"):
		return http.StatusNotFound
	case strings.Contains(msg, "not approved"), strings.Contains(msg, "unauthorized"):
		return http.StatusForbidden
	case strings.Contains(msg, "service not initialized"), strings.Contains(msg, "connection failed"):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// queryIntDefault parses an optional positive-integer query param, falling
// back to def on absence or malformed input (spec §6.2: "invalid
// positive-integer query params fall back to documented defaults").
func queryIntDefault(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// queryNonNegativeIntDefault is queryIntDefault's 0-inclusive counterpart,
// used for offset params.
func queryNonNegativeIntDefault(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func clampInt(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
