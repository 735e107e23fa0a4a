package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/mindvault/internal/common"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error  string `json:"error"`
	Resend string `json:"resend,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeRequest[T any](w http.ResponseWriter, r *http.Request, req *T) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json request")
		return false
	}
	return true
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrDuplicateIdentity), errors.Is(err, common.ErrAlreadyVerified):
		return http.StatusConflict
	case errors.Is(err, common.ErrAccountNotFound), errors.Is(err, common.ErrTokenNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrNotVerified), errors.Is(err, common.ErrSecretMismatch):
		return http.StatusForbidden
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides internal error text behind 5xx responses.
func publicMessage(status int, err error) string {
	switch status {
	case http.StatusServiceUnavailable:
		return "service unavailable"
	case http.StatusInternalServerError:
		return "internal error"
	}
	if errors.Is(err, common.ErrValidation) {
		return err.Error()
	}
	for _, known := range []error{
		common.ErrDuplicateIdentity, common.ErrAlreadyVerified, common.ErrAccountNotFound,
		common.ErrTokenNotFound, common.ErrNotVerified, common.ErrSecretMismatch, common.ErrInvalidCredentials,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}
