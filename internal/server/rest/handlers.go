package rest

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/dmitrijs2005/mindvault/internal/logging"
	"github.com/dmitrijs2005/mindvault/internal/server/auth"
	"github.com/dmitrijs2005/mindvault/internal/server/models"
)

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type ProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

type AccountResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}

type PrincipalResponse struct {
	AccountID string    `json:"accountId"`
	Email     string    `json:"email"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type VerifiedResponse struct {
	Verified bool `json:"verified"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

func toAccountResponse(a *models.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Verified:  a.Verified,
		CreatedAt: a.CreatedAt,
	}
}

// Handlers binds HTTP endpoints to the account service.
type Handlers struct {
	svc         AccountService
	logger      logging.Logger
	redirectURL string
}

func NewHandlers(svc AccountService, redirectURL string, logger logging.Logger) *Handlers {
	return &Handlers{svc: svc, redirectURL: redirectURL, logger: logger.With("module", "rest")}
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, publicMessage(status, err))
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	acc, err := h.svc.Register(r.Context(), req.Email, req.Password,
		models.Profile{FirstName: strings.TrimSpace(req.FirstName), LastName: strings.TrimSpace(req.LastName)})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(acc))
}

// Verify answers browsers (Accept: text/html) with a redirect and API
// clients with JSON.
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("token")
	if value == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	ok, err := h.svc.Verify(r.Context(), value)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "verification failed")
		return
	}
	if wantsHTML(r) && h.redirectURL != "" {
		http.Redirect(w, r, h.redirectURL, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, VerifiedResponse{Verified: true})
}

func (h *Handlers) IsVerified(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	ok, err := h.svc.IsVerified(r.Context(), email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifiedResponse{Verified: ok})
}

func (h *Handlers) ResendVerification(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	if err := h.svc.ResendVerification(r.Context(), email); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "verification email sent"})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrNotVerified) {
			writeJSON(w, http.StatusForbidden, errorResponse{
				Error:  common.ErrNotVerified.Error(),
				Resend: "/api/auth/resend-verification?email=" + url.QueryEscape(req.Email),
			})
			return
		}
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, TokenType: strings.TrimSpace(common.BearerPrefix)})
}

// Logout needs a bearer header but not a live token: logging out twice is fine.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r.Header.Get(common.AuthorizationHeaderName))
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthenticated)
		return
	}
	if err := h.svc.Logout(r.Context(), token); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ValidateToken(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, PrincipalResponse{
		AccountID: p.AccountID,
		Email:     p.Identity,
		Scopes:    p.Scopes,
		ExpiresAt: p.ExpiresAt,
	})
}

func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthenticated)
		return
	}
	var req ChangePasswordRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := h.svc.ChangeSecret(r.Context(), p.Identity, req.OldPassword, req.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "password changed"})
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthenticated)
		return
	}
	acc, err := h.svc.Profile(r.Context(), p.Identity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acc))
}

func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthenticated)
		return
	}
	var req ProfileRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	acc, err := h.svc.UpdateProfile(r.Context(), p.Identity, models.ProfilePatch{FirstName: req.FirstName, LastName: req.LastName})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acc))
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
