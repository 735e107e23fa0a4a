// Package services contains server-side business logic. This file implements
// AccountService, the token lifecycle manager: registration and email
// verification, login/logout with server-side access token records,
// per-request validation and secret rotation with revocation.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/dmitrijs2005/mindvault/internal/dbx"
	"github.com/dmitrijs2005/mindvault/internal/logging"
	"github.com/dmitrijs2005/mindvault/internal/server/auth"
	"github.com/dmitrijs2005/mindvault/internal/server/config"
	"github.com/dmitrijs2005/mindvault/internal/server/models"
	"github.com/dmitrijs2005/mindvault/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/mindvault/internal/server/repositories/repomanager"
)

const (
	// MaxNameLength bounds first and last name in runes.
	MaxNameLength = 50

	verificationTokenBytes = 32
	maxIssueAttempts       = 3
	verificationSubject    = "Verify your MindVault account"
)

// Notifier hands an email to the delivery pipeline without waiting for it.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// AccountService implements the account and token lifecycle.
type AccountService struct {
	db          dbx.DBTX
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	codec       *auth.Codec
	hasher      *auth.PasswordHasher
	notifier    Notifier
	logger      logging.Logger
	now         func() time.Time

	accessTTL       time.Duration
	verificationTTL time.Duration
	scopes          []string
	verifyURL       string
	resendOnLogin   bool
}

// Option customizes an AccountService.
type Option func(*AccountService)

// WithClock replaces time.Now. The codec keeps its own clock.
func WithClock(now func() time.Time) Option {
	return func(s *AccountService) { s.now = now }
}

// NewAccountService wires the service. db is used for single-statement
// reads, tx for every multi-step operation.
func NewAccountService(db dbx.DBTX, tx dbx.Transactor, m repomanager.RepositoryManager, codec *auth.Codec,
	notifier Notifier, cfg *config.Config, logger logging.Logger, opts ...Option) *AccountService {
	s := &AccountService{
		db:              db,
		tx:              tx,
		repomanager:     m,
		codec:           codec,
		hasher:          auth.NewPasswordHasher(cfg.BcryptCost),
		notifier:        notifier,
		logger:          logger.With("module", "accounts"),
		now:             time.Now,
		accessTTL:       cfg.AccessTokenValidityDuration,
		verificationTTL: cfg.VerificationTokenValidityDuration,
		scopes:          append([]string(nil), cfg.AccessTokenScopes...),
		verifyURL:       cfg.VerificationBaseURL,
		resendOnLogin:   cfg.ResendVerificationOnLogin,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an unverified account together with its first
// verification token and mails the verification link after commit.
func (s *AccountService) Register(ctx context.Context, email, secret string, profile models.Profile) (*models.Account, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if secret == "" {
		return nil, fmt.Errorf("%w: secret is required", common.ErrValidation)
	}
	if err := validateProfile(profile); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, err
	}

	var (
		account *models.Account
		value   string
	)
	err = s.withIssueRetry(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.Accounts(tx).Create(ctx, &models.Account{
			Email:      email,
			SecretHash: hash,
			FirstName:  profile.FirstName,
			LastName:   profile.LastName,
		})
		if err != nil {
			return err
		}
		v, err := s.insertVerificationToken(ctx, tx, created.ID)
		if err != nil {
			return err
		}
		account, value = created, v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "account registered", "account_id", account.ID)
	s.sendVerification(ctx, account.Email, value)
	return account, nil
}

// Verify consumes an email verification token. It reports false without an
// error when the token is no longer live, and true for an account that is
// already verified, so repeated clicks on the same link succeed.
func (s *AccountService) Verify(ctx context.Context, value string) (bool, error) {
	var verified bool
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		rec, err := s.repomanager.Tokens(tx).FindByValue(ctx, value)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrTokenNotFound
			}
			return err
		}
		if rec.Kind != models.TokenKindEmailVerification {
			return common.ErrTokenNotFound
		}

		owner, err := s.repomanager.Accounts(tx).FindByID(ctx, rec.AccountID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrTokenNotFound
			}
			return err
		}
		if owner.Verified {
			verified = true
			return nil
		}
		if !rec.Active(s.now()) {
			verified = false
			return nil
		}

		if err := s.repomanager.Accounts(tx).SetVerified(ctx, owner.ID); err != nil {
			return err
		}
		if err := s.repomanager.Tokens(tx).MarkExpired(ctx, rec.ID); err != nil {
			return err
		}
		verified = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return verified, nil
}

// ResendVerification issues an additional verification token. Earlier
// tokens stay valid until consumed or expired.
func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	account, err := s.findAccount(ctx, email)
	if err != nil {
		return err
	}
	if account.Verified {
		return common.ErrAlreadyVerified
	}
	return s.reissueVerification(ctx, account)
}

// IsVerified reports the verification state of the account.
func (s *AccountService) IsVerified(ctx context.Context, email string) (bool, error) {
	account, err := s.findAccount(ctx, normalizeEmail(email))
	if err != nil {
		return false, err
	}
	return account.Verified, nil
}

// Login checks verification first, then the secret, and returns a new
// access token. The account row is share-locked while the token is
// recorded so a concurrent ChangeSecret either sees the token or runs first.
func (s *AccountService) Login(ctx context.Context, email, secret string) (string, error) {
	email = normalizeEmail(email)
	account, err := s.findAccount(ctx, email)
	if err != nil {
		return "", err
	}
	if !account.Verified {
		if s.resendOnLogin {
			if err := s.reissueVerification(ctx, account); err != nil {
				s.logger.Warn(ctx, "resend verification on login", "account_id", account.ID, "error", err)
			}
		}
		return "", common.ErrNotVerified
	}

	var token string
	err = s.withIssueRetry(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		locked, err := s.repomanager.Accounts(tx).FindByEmailLocked(ctx, email, accounts.LockShare)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrAccountNotFound
			}
			return err
		}
		if !s.hasher.Verify(locked.SecretHash, secret) {
			return common.ErrInvalidCredentials
		}

		now := s.now()
		tokens := s.repomanager.Tokens(tx)
		n, err := tokens.DeleteCollectable(ctx, locked.ID, now)
		if err != nil {
			return err
		}
		if n > 0 {
			s.logger.Debug(ctx, "collected stale tokens", "account_id", locked.ID, "count", n)
		}

		value, err := s.codec.Issue(locked.Email, s.scopes, s.accessTTL)
		if err != nil {
			return fmt.Errorf("%w: issue token: %w", common.ErrorInternal, err)
		}
		if err := tokens.Insert(ctx, &models.TokenRecord{
			Value:     value,
			Kind:      models.TokenKindAccess,
			AccountID: locked.ID,
			ExpiresAt: now.Add(s.accessTTL),
		}); err != nil {
			return err
		}
		token = value
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			s.logger.Info(ctx, "login rejected", "account_id", account.ID)
		}
		return "", err
	}

	s.logger.Info(ctx, "login", "account_id", account.ID)
	return token, nil
}

// Logout deletes the token record. Unknown values are not an error.
func (s *AccountService) Logout(ctx context.Context, value string) error {
	deleted, err := s.repomanager.Tokens(s.db).DeleteByValue(ctx, value)
	if err != nil {
		return err
	}
	if deleted {
		s.logger.Debug(ctx, "logout")
	}
	return nil
}

// Validate resolves an access token to its principal with one read and no
// writes. The record decides liveness first; the signed claims supply the
// identity and scopes.
func (s *AccountService) Validate(ctx context.Context, value string) (*auth.Principal, error) {
	rec, err := s.repomanager.Tokens(s.db).FindByValue(ctx, value)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenNotFound
		}
		return nil, err
	}
	if rec.Kind != models.TokenKindAccess {
		return nil, common.ErrTokenNotFound
	}
	if rec.Expired || rec.Revoked {
		return nil, common.ErrTokenInactive
	}

	claims, err := s.codec.Parse(value)
	if err != nil {
		return nil, err
	}
	if s.codec.Expired(claims) || !rec.Active(s.now()) {
		return nil, common.ErrTokenInactive
	}

	return &auth.Principal{
		AccountID: rec.AccountID,
		Identity:  claims.Identity,
		Scopes:    claims.Scopes,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// ChangeSecret replaces the secret and revokes every access token of the
// account in the same transaction, under an exclusive lock on the account.
func (s *AccountService) ChangeSecret(ctx context.Context, email, oldSecret, newSecret string) error {
	email = normalizeEmail(email)
	if newSecret == "" {
		return fmt.Errorf("%w: new secret is required", common.ErrValidation)
	}
	newHash, err := s.hasher.Hash(newSecret)
	if err != nil {
		return err
	}

	var (
		accountID string
		revoked   int64
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		account, err := s.repomanager.Accounts(tx).FindByEmailLocked(ctx, email, accounts.LockUpdate)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrAccountNotFound
			}
			return err
		}
		if !s.hasher.Verify(account.SecretHash, oldSecret) {
			return common.ErrSecretMismatch
		}
		if err := s.repomanager.Accounts(tx).UpdateSecret(ctx, account.ID, newHash); err != nil {
			return err
		}
		n, err := s.repomanager.Tokens(tx).RevokeAllByOwner(ctx, account.ID, models.TokenKindAccess)
		if err != nil {
			return err
		}
		accountID, revoked = account.ID, n
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "secret changed", "account_id", accountID, "revoked_tokens", revoked)
	return nil
}

// Profile returns the editable display fields of the account.
func (s *AccountService) Profile(ctx context.Context, email string) (*models.Account, error) {
	return s.findAccount(ctx, normalizeEmail(email))
}

// UpdateProfile applies the non-nil fields of patch.
func (s *AccountService) UpdateProfile(ctx context.Context, email string, patch models.ProfilePatch) (*models.Account, error) {
	email = normalizeEmail(email)

	var updated *models.Account
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)
		account, err := repo.FindByEmailLocked(ctx, email, accounts.LockUpdate)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrAccountNotFound
			}
			return err
		}

		profile := models.Profile{FirstName: account.FirstName, LastName: account.LastName}
		if patch.FirstName != nil {
			profile.FirstName = strings.TrimSpace(*patch.FirstName)
		}
		if patch.LastName != nil {
			profile.LastName = strings.TrimSpace(*patch.LastName)
		}
		if err := validateProfile(profile); err != nil {
			return err
		}
		if err := repo.UpdateProfile(ctx, account.ID, profile); err != nil {
			return err
		}
		account.FirstName, account.LastName = profile.FirstName, profile.LastName
		updated = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// --- helpers below ---

func (s *AccountService) findAccount(ctx context.Context, email string) (*models.Account, error) {
	account, err := s.repomanager.Accounts(s.db).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (s *AccountService) reissueVerification(ctx context.Context, account *models.Account) error {
	var value string
	err := s.withIssueRetry(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		v, err := s.insertVerificationToken(ctx, tx, account.ID)
		value = v
		return err
	})
	if err != nil {
		return err
	}
	s.sendVerification(ctx, account.Email, value)
	return nil
}

func (s *AccountService) insertVerificationToken(ctx context.Context, tx dbx.DBTX, accountID string) (string, error) {
	value, err := common.MakeRandHexString(verificationTokenBytes)
	if err != nil {
		return "", fmt.Errorf("%w: random token: %w", common.ErrorInternal, err)
	}
	err = s.repomanager.Tokens(tx).Insert(ctx, &models.TokenRecord{
		Value:     value,
		Kind:      models.TokenKindEmailVerification,
		AccountID: accountID,
		ExpiresAt: s.now().Add(s.verificationTTL),
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

// withIssueRetry runs fn in a fresh transaction again when the token value
// it generated collided with an existing one.
func (s *AccountService) withIssueRetry(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	var err error
	for i := 0; i < maxIssueAttempts; i++ {
		err = s.tx.WithTx(ctx, fn)
		if !errors.Is(err, common.ErrTokenCollision) {
			return err
		}
		s.logger.Warn(ctx, "token value collision, retrying", "attempt", i+1)
	}
	return err
}

func (s *AccountService) sendVerification(ctx context.Context, email, value string) {
	if s.notifier == nil {
		return
	}
	body := fmt.Sprintf("Welcome to MindVault!\n\nConfirm your email address by opening this link:\n%s\n\nThe link is valid for %s.\n",
		s.verificationLink(value), s.verificationTTL)
	if err := s.notifier.Send(context.WithoutCancel(ctx), email, verificationSubject, body); err != nil {
		s.logger.Error(ctx, "enqueue verification email", "error", err)
	}
}

func (s *AccountService) verificationLink(value string) string {
	u, err := url.Parse(s.verifyURL)
	if err != nil {
		return s.verifyURL + "?token=" + url.QueryEscape(value)
	}
	q := u.Query()
	q.Set("token", value)
	u.RawQuery = q.Encode()
	return u.String()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email", common.ErrValidation)
	}
	return nil
}

func validateProfile(p models.Profile) error {
	if utf8.RuneCountInString(p.FirstName) > MaxNameLength || utf8.RuneCountInString(p.LastName) > MaxNameLength {
		return fmt.Errorf("%w: names are limited to %d characters", common.ErrValidation, MaxNameLength)
	}
	return nil
}
