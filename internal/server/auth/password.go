package auth

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mindvault/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and checks account secrets with bcrypt.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher with the given bcrypt cost. Values
// outside bcrypt's accepted range fall back to bcrypt.DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash returns the bcrypt hash of secret.
func (h *PasswordHasher) Hash(secret string) ([]byte, error) {
	b := []byte(secret)
	defer common.WipeByteArray(b)

	hash, err := bcrypt.GenerateFromPassword(b, h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: secret longer than 72 bytes", common.ErrValidation)
		}
		return nil, fmt.Errorf("hash secret: %w", err)
	}
	return hash, nil
}

// Verify reports whether secret matches hash.
func (h *PasswordHasher) Verify(hash []byte, secret string) bool {
	b := []byte(secret)
	defer common.WipeByteArray(b)

	return bcrypt.CompareHashAndPassword(hash, b) == nil
}
