// Package rest exposes the account service over HTTP/JSON. Routing uses
// gorilla/mux; authenticated routes sit behind SessionGate.
package rest

import (
	"context"

	"github.com/dmitrijs2005/mindvault/internal/server/auth"
	"github.com/dmitrijs2005/mindvault/internal/server/models"
)

// Validator resolves a bearer token to a principal.
type Validator interface {
	Validate(ctx context.Context, value string) (*auth.Principal, error)
}

// AccountService is the part of services.AccountService the handlers use.
type AccountService interface {
	Validator
	Register(ctx context.Context, email, secret string, profile models.Profile) (*models.Account, error)
	Verify(ctx context.Context, value string) (bool, error)
	IsVerified(ctx context.Context, email string) (bool, error)
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, secret string) (string, error)
	Logout(ctx context.Context, value string) error
	ChangeSecret(ctx context.Context, email, oldSecret, newSecret string) error
	Profile(ctx context.Context, email string) (*models.Account, error)
	UpdateProfile(ctx context.Context, email string, patch models.ProfilePatch) (*models.Account, error)
}
