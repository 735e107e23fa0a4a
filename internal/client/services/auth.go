// Package services contains application services for the MindVault CLI.
// AuthService drives the account endpoints and keeps the login session in
// the local database.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mindvault/internal/client/client"
	"github.com/dmitrijs2005/mindvault/internal/client/repositories/session"
)

// AuthService defines the account operations available from the CLI.
// Calls needing a session fail with client.ErrNotLoggedIn when none is
// stored; a session the server no longer accepts is forgotten.
type AuthService interface {
	Register(ctx context.Context, email string, password []byte, firstName, lastName string) error
	Verify(ctx context.Context, token string) error
	IsVerified(ctx context.Context, email string) (bool, error)
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email string, password []byte) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) (*client.Principal, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword []byte) error
	Profile(ctx context.Context) (*client.Account, error)
	UpdateProfile(ctx context.Context, patch client.ProfilePatch) (*client.Account, error)
	Current(ctx context.Context) (*session.Session, error)
	Ping(ctx context.Context) error
}

type authService struct {
	client   client.Client
	sessions session.Repository
}

func NewAuthService(c client.Client, sessions session.Repository) AuthService {
	return &authService{client: c, sessions: sessions}
}

func (a *authService) Register(ctx context.Context, email string, password []byte, firstName, lastName string) error {
	_, err := a.client.Register(ctx, client.Registration{
		Email:     email,
		Password:  string(password),
		FirstName: firstName,
		LastName:  lastName,
	})
	return err
}

func (a *authService) Verify(ctx context.Context, token string) error {
	return a.client.Verify(ctx, token)
}

func (a *authService) IsVerified(ctx context.Context, email string) (bool, error) {
	return a.client.IsVerified(ctx, email)
}

func (a *authService) ResendVerification(ctx context.Context, email string) error {
	return a.client.ResendVerification(ctx, email)
}

func (a *authService) Login(ctx context.Context, email string, password []byte) error {
	token, err := a.client.Login(ctx, email, string(password))
	if err != nil {
		return err
	}
	if err := a.sessions.Save(ctx, session.Session{Email: email, Token: token}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Logout revokes the token on the server and forgets it locally. The local
// session is dropped even if the server already forgot the token.
func (a *authService) Logout(ctx context.Context) error {
	s, err := a.current(ctx)
	if err != nil {
		return err
	}
	if err := a.client.Logout(ctx, s.Token); err != nil && !errors.Is(err, client.ErrUnauthorized) {
		return err
	}
	return a.sessions.Clear(ctx)
}

func (a *authService) Whoami(ctx context.Context) (*client.Principal, error) {
	s, err := a.current(ctx)
	if err != nil {
		return nil, err
	}
	p, err := a.client.ValidateToken(ctx, s.Token)
	return p, a.forgetIfRejected(ctx, err)
}

// ChangePassword ends the session on success: the server revokes every
// access token of the account.
func (a *authService) ChangePassword(ctx context.Context, oldPassword, newPassword []byte) error {
	s, err := a.current(ctx)
	if err != nil {
		return err
	}
	if err := a.client.ChangePassword(ctx, s.Token, string(oldPassword), string(newPassword)); err != nil {
		return a.forgetIfRejected(ctx, err)
	}
	return a.sessions.Clear(ctx)
}

func (a *authService) Profile(ctx context.Context) (*client.Account, error) {
	s, err := a.current(ctx)
	if err != nil {
		return nil, err
	}
	acc, err := a.client.Me(ctx, s.Token)
	return acc, a.forgetIfRejected(ctx, err)
}

func (a *authService) UpdateProfile(ctx context.Context, patch client.ProfilePatch) (*client.Account, error) {
	s, err := a.current(ctx)
	if err != nil {
		return nil, err
	}
	acc, err := a.client.UpdateMe(ctx, s.Token, patch)
	return acc, a.forgetIfRejected(ctx, err)
}

func (a *authService) Current(ctx context.Context) (*session.Session, error) {
	return a.sessions.Load(ctx)
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

func (a *authService) current(ctx context.Context) (*session.Session, error) {
	s, err := a.sessions.Load(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, client.ErrNotLoggedIn
	}
	return s, nil
}

// forgetIfRejected clears the stored session when the server answered 401.
// err is returned unchanged.
func (a *authService) forgetIfRejected(ctx context.Context, err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		_ = a.sessions.Clear(ctx)
	}
	return err
}
