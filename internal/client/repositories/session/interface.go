// Package session persists the CLI's login session in the local database so
// a token survives between runs.
package session

import (
	"context"
)

// Session is what the CLI remembers after a successful login.
type Session struct {
	Email string
	Token string
}

type Repository interface {
	// Load returns nil, nil when no session is stored.
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}
