package client

import (
	"context"
	"time"
)

// Account is the profile returned by the server.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}

// Principal describes the session behind an access token.
type Principal struct {
	AccountID string    `json:"accountId"`
	Email     string    `json:"email"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Registration carries the fields of a new account.
type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// ProfilePatch updates only the non-nil names.
type ProfilePatch struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
}

type Client interface {
	Register(ctx context.Context, r Registration) (*Account, error)
	Verify(ctx context.Context, token string) error
	IsVerified(ctx context.Context, email string) (bool, error)
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context, token string) error
	ValidateToken(ctx context.Context, token string) (*Principal, error)
	ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error
	Me(ctx context.Context, token string) (*Account, error)
	UpdateMe(ctx context.Context, token string, patch ProfilePatch) (*Account, error)
	Ping(ctx context.Context) error
}
