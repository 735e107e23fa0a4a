package rest

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/dmitrijs2005/mindvault/internal/logging"
	"github.com/dmitrijs2005/mindvault/internal/server/auth"
)

const unauthenticated = "unauthenticated"

// SessionGate admits requests carrying a live bearer token and attaches the
// principal to the request context. Every rejection produces the same 401
// body; the reason is only logged.
func SessionGate(v Validator, logger logging.Logger) func(http.Handler) http.Handler {
	logger = logger.With("module", "session_gate")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.BearerToken(r.Header.Get(common.AuthorizationHeaderName))
			if !ok {
				logger.Debug(r.Context(), "rejected", "reason", "missing bearer token", "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, unauthenticated)
				return
			}

			p, err := v.Validate(r.Context(), token)
			if err != nil {
				if common.IsTokenError(err) {
					logger.Info(r.Context(), "rejected", "reason", err.Error(), "path", r.URL.Path)
					writeError(w, http.StatusUnauthorized, unauthenticated)
					return
				}
				logger.Error(r.Context(), "token validation", "error", err)
				if errors.Is(err, common.ErrStorageUnavailable) {
					writeError(w, http.StatusServiceUnavailable, "service unavailable")
					return
				}
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}
