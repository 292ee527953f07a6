package sso

import (
	"encoding/json"
	"errors"
	"net/http"

	ssocore "github.com/dmitrymomot/ssokit/pkg/sso"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain errors to HTTP statuses. Unknown errors surface
// as 500 with a generic body so internals never leak to callers.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ssocore.ErrTokenInvalid),
		errors.Is(err, ssocore.ErrTokenExpired),
		errors.Is(err, ssocore.ErrSessionNotFound),
		errors.Is(err, ssocore.ErrSessionExpired):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, ssocore.ErrOriginForbidden),
		errors.Is(err, ssocore.ErrModuleInactive):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, ssocore.ErrModuleNotRegistered):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, ssocore.ErrDurableWriteFailed):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: ssocore.ErrDurableWriteFailed.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
