package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/protect-ng/crossai/internal/fault"
	"github.com/protect-ng/crossai/pkg/types"
)

// errorBody is the JSON error envelope. Every error hands the caller the
// national emergency numbers: a degraded service must still point at a human
// dispatcher.
type errorBody struct {
	Error            string   `json:"error"`
	EmergencyNumbers []string `json:"emergency_numbers"`
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps err to an HTTP status via the fault taxonomy and writes the
// error envelope.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{
		Error:            err.Error(),
		EmergencyNumbers: types.FallbackNumbers,
	})
}

// statusFor maps the fault taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, fault.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, fault.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, fault.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, fault.ErrPersistence), errors.Is(err, fault.ErrConfiguration):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON request body into dst, capping the body at 10 MiB.
// Base64 audio payloads dominate request size.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 10<<20))
	if err := dec.Decode(dst); err != nil {
		return fault.Invalid("malformed JSON body: %v", err)
	}
	return nil
}

// clientInfo extracts caller metadata for audit rows. X-Forwarded-For wins
// over RemoteAddr because the service sits behind a proxy in production.
func clientInfo(r *http.Request) types.ClientInfo {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	}
	return types.ClientInfo{
		IP:        ip,
		UserAgent: r.Header.Get("User-Agent"),
		Platform:  "web",
	}
}
