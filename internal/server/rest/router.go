package rest

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/logging"
	"github.com/gorilla/mux"
)

// NewRouter builds the HTTP API.
func NewRouter(h *Handlers, v Validator, logger logging.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger(logger))

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	// public auth routes
	a := r.PathPrefix("/api/auth").Subrouter()
	a.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	a.HandleFunc("/verify", h.Verify).Methods(http.MethodGet)
	a.HandleFunc("/is-verified", h.IsVerified).Methods(http.MethodGet)
	a.HandleFunc("/resend-verification", h.ResendVerification).Methods(http.MethodGet)
	a.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	a.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)

	gate := SessionGate(v, logger)

	// gated auth routes
	ga := r.PathPrefix("/api/auth").Subrouter()
	ga.Use(gate)
	ga.HandleFunc("/validate-token", h.ValidateToken).Methods(http.MethodGet)
	ga.HandleFunc("/change-password", h.ChangePassword).Methods(http.MethodPost)

	u := r.PathPrefix("/api/users").Subrouter()
	u.Use(gate)
	u.HandleFunc("/me", h.Me).Methods(http.MethodGet)
	u.HandleFunc("/me", h.UpdateMe).Methods(http.MethodPatch)

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger logging.Logger) mux.MiddlewareFunc {
	logger = logger.With("module", "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}
