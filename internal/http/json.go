package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// apiErrorCode is the machine-readable "error" field of a JSON failure body.
type apiErrorCode string

const (
	errCodeSessionUnavailable apiErrorCode = "session_unavailable"
	errCodeNotReady           apiErrorCode = "not_ready"
)

var apiErrorMessages = map[apiErrorCode]string{
	errCodeSessionUnavailable: "session unavailable",
	errCodeNotReady:           "session backend unreachable",
}

// apiError is the body of every JSON failure. Messages are fixed per code; causes
// stay in the server log.
type apiError struct {
	Error   apiErrorCode `json:"error"`
	Message string       `json:"message"`
}

// writeJSON encodes v before touching w, so an encoding failure still yields a clean 500.
// Login state is per user, so JSON responses are never cached.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeAPIError(w http.ResponseWriter, status int, code apiErrorCode) {
	writeJSON(w, status, apiError{Error: code, Message: apiErrorMessages[code]})
}
