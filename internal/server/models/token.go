package models

import "time"

// TokenKind distinguishes the purposes a token record can serve.
type TokenKind string

const (
	TokenKindEmailVerification TokenKind = "EMAIL_VERIFICATION"
	TokenKindAccess            TokenKind = "ACCESS"
)

// TokenRecord is a persisted token. It references its owning account by id
// only; the reverse direction is a store query (find all by owner).
type TokenRecord struct {
	ID        string
	Value     string
	Kind      TokenKind
	AccountID string
	Expired   bool
	Revoked   bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Active reports whether the record is neither flagged nor past its expiry.
func (t *TokenRecord) Active(now time.Time) bool {
	return !t.Expired && !t.Revoked && now.Before(t.ExpiresAt)
}

// Collectable reports whether login-time cleanup may delete the record.
func (t *TokenRecord) Collectable(now time.Time) bool {
	return !t.Active(now)
}
