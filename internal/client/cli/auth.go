package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mindvault/internal/client/client"
	"github.com/dmitrijs2005/mindvault/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// describe turns an API error into a line for the user.
func describe(err error) string {
	switch {
	case errors.Is(err, client.ErrNotLoggedIn):
		return "not logged in"
	case errors.Is(err, client.ErrNotVerified):
		return "account not verified; check your mail or use 'resend'"
	case errors.Is(err, client.ErrUnavailable):
		return "server unavailable, try again later"
	}
	var ae *client.APIError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}

func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	first, err := getSimpleText(a.reader, "First name (optional)", a.out)
	if err != nil {
		return err
	}
	last, err := getSimpleText(a.reader, "Last name (optional)", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.Register(ctx, email, password, first, last); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Registered. Follow the link in the verification email, or run 'verify <token>'.")
	return nil
}

func (a *App) Verify(ctx context.Context, token string) error {
	if err := a.authService.Verify(ctx, token); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Account verified.")
	return nil
}

func (a *App) Resend(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	if err := a.authService.ResendVerification(ctx, email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Verification email sent.")
	return nil
}

func (a *App) Status(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	ok, err := a.authService.IsVerified(ctx, email)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s verified: %t\n", email, ok)
	return nil
}

// Login prompts for credentials and stores the resulting session.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.Login(ctx, email, password); err != nil {
		return err
	}

	a.userName = email
	fmt.Fprintln(a.out, "Logged in.")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	a.userName = ""
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func (a *App) Whoami(ctx context.Context) error {
	p, err := a.authService.Whoami(ctx)
	if err != nil {
		a.syncLoginState(err)
		return err
	}
	fmt.Fprintf(a.out, "%s (scopes: %v, session expires %s)\n", p.Email, p.Scopes, p.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}

func (a *App) Profile(ctx context.Context) error {
	acc, err := a.authService.Profile(ctx)
	if err != nil {
		a.syncLoginState(err)
		return err
	}
	a.printAccount(acc)
	return nil
}

// Rename updates first and last name; an empty answer keeps the old value.
func (a *App) Rename(ctx context.Context) error {
	first, err := getSimpleText(a.reader, "First name (empty to keep)", a.out)
	if err != nil {
		return err
	}
	last, err := getSimpleText(a.reader, "Last name (empty to keep)", a.out)
	if err != nil {
		return err
	}

	var patch client.ProfilePatch
	if first != "" {
		patch.FirstName = &first
	}
	if last != "" {
		patch.LastName = &last
	}

	acc, err := a.authService.UpdateProfile(ctx, patch)
	if err != nil {
		a.syncLoginState(err)
		return err
	}
	a.printAccount(acc)
	return nil
}

// ChangePassword ends the session: every access token is revoked server side.
func (a *App) ChangePassword(ctx context.Context) error {
	oldPassword, err := getPassword("Current password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(oldPassword)

	newPassword, err := getPassword("New password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(newPassword)

	if err := a.authService.ChangePassword(ctx, oldPassword, newPassword); err != nil {
		a.syncLoginState(err)
		return err
	}

	a.userName = ""
	fmt.Fprintln(a.out, "Password changed. Please log in again.")
	return nil
}

// syncLoginState drops the prompt's user when the session is gone.
func (a *App) syncLoginState(err error) {
	if errors.Is(err, client.ErrUnauthorized) || errors.Is(err, client.ErrNotLoggedIn) {
		a.userName = ""
	}
}

func (a *App) printAccount(acc *client.Account) {
	fmt.Fprintf(a.out, "email:    %s\nname:     %s %s\nverified: %t\nsince:    %s\n",
		acc.Email, acc.FirstName, acc.LastName, acc.Verified, acc.CreatedAt.Local().Format("2006-01-02"))
}
