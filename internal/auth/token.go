package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes the two credential horizons. A token of one kind is
// never accepted where the other is expected.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Claims are the JWT claims carried by both access and refresh tokens.
type Claims struct {
	Kind TokenKind `json:"knd"`
	jwt.RegisteredClaims
}

// Codec creates and verifies signed, expiring tokens. It is pure and
// stateless: verification depends only on the secret and the clock, so any
// number of requests may call it concurrently without coordination.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec builds a Codec signing HS256 with the given secret.
func NewCodec(secret []byte, issuer string, accessTTL, refreshTTL time.Duration, now func() time.Time) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("auth: token TTLs must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &Codec{
		secret:     secret,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        now,
	}, nil
}

// Issue signs a token of the given kind for the principal id and returns it
// with its absolute expiry.
func (c *Codec) Issue(principalID string, kind TokenKind) (string, time.Time, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return "", time.Time{}, errors.New("auth: principal id is required")
	}
	ttl := c.accessTTL
	if kind == KindRefresh {
		ttl = c.refreshTTL
	}

	now := c.now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks signature integrity and expiry and returns the claims. It
// distinguishes expired from malformed/forged tokens; callers may treat the
// two identically for authorization but the split matters for diagnostics.
func (c *Codec) Verify(token string, kind TokenKind) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMalformed
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		options = append(options, jwt.WithIssuer(c.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenMalformed
		}
		return c.secret, nil
	}, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Kind != kind {
		return nil, ErrTokenMalformed
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}
