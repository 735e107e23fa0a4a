// Package auth holds the stateless credential primitives: the signed access
// token codec, the secret hasher, and the request principal carried in
// contexts once a bearer token has been validated.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ClaimsVersion is the only claim schema Parse accepts.
const ClaimsVersion = 1

// Claims is the wire schema of an access token.
type Claims struct {
	jwt.RegisteredClaims
	Version int      `json:"ver"`
	Scopes  []string `json:"scopes"`
}

// TokenClaims is the decoded, typed content of a token.
type TokenClaims struct {
	ID        string
	Identity  string
	Scopes    []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec issues and parses HS256 access tokens with a key fixed at
// construction.
type Codec struct {
	key    []byte
	now    func() time.Time
	parser *jwt.Parser
}

// CodecOption customizes a Codec.
type CodecOption func(*Codec)

// WithClock replaces time.Now as the codec's time source.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

// NewCodec returns a Codec signing with key. The key must not be empty.
func NewCodec(key []byte, opts ...CodecOption) (*Codec, error) {
	if len(key) == 0 {
		return nil, errors.New("token codec: empty signing key")
	}
	c := &Codec{
		key: append([]byte(nil), key...),
		now: time.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Issue encodes identity and scopes into a token valid for ttl. Each token
// carries a random id, so two tokens for the same identity issued within
// the same second still differ.
func (c *Codec) Issue(identity string, scopes []string, ttl time.Duration) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Version: ClaimsVersion,
		Scopes:  scopes,
	})

	tokenString, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenString, nil
}

// Parse verifies the signature and the claim schema. Expiry is returned as
// data and never causes an error; any structural problem yields
// common.ErrMalformedToken.
func (c *Codec) Parse(tokenString string) (*TokenClaims, error) {
	claims := &Claims{}

	token, err := c.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedToken, err)
	}
	if !token.Valid {
		return nil, common.ErrMalformedToken
	}

	switch {
	case claims.Version != ClaimsVersion:
		return nil, fmt.Errorf("%w: unsupported claims version %d", common.ErrMalformedToken, claims.Version)
	case claims.Subject == "":
		return nil, fmt.Errorf("%w: missing subject", common.ErrMalformedToken)
	case claims.ExpiresAt == nil || claims.IssuedAt == nil:
		return nil, fmt.Errorf("%w: missing time claims", common.ErrMalformedToken)
	}

	return &TokenClaims{
		ID:        claims.ID,
		Identity:  claims.Subject,
		Scopes:    claims.Scopes,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// IsExpired reports whether the token's embedded expiry has been reached.
// Tokens that do not parse are reported as expired.
func (c *Codec) IsExpired(tokenString string) bool {
	claims, err := c.Parse(tokenString)
	if err != nil {
		return true
	}
	return c.Expired(claims)
}

// Expired reports whether already parsed claims are past their expiry.
func (c *Codec) Expired(claims *TokenClaims) bool {
	return !c.now().Before(claims.ExpiresAt)
}
