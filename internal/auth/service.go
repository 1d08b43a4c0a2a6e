package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 10
	defaultIssuer     = "cliptide"
)

// Service orchestrates session issuance, verification, and rotation on top of
// the token Codec and the Store.
type Service struct {
	store  Store
	codec  *Codec
	now    func() time.Time

	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithTokenSecret sets the HS256 signing secret. Required.
func WithTokenSecret(secret string) ServiceOption {
	return func(s *Service) error {
		if strings.TrimSpace(secret) == "" {
			return errors.New("auth: token secret is empty")
		}
		s.secret = []byte(secret)
		return nil
	}
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) error {
		if iss := strings.TrimSpace(issuer); iss != "" {
			s.issuer = iss
		}
		return nil
	}
}

// WithAccessTTL configures the short access horizon.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures the long refresh horizon.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs a Service. A token secret must be provided via
// WithTokenSecret.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	svc := &Service{
		store:      store,
		now:        time.Now,
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	codec, err := NewCodec(svc.secret, svc.issuer, svc.accessTTL, svc.refreshTTL, svc.now)
	if err != nil {
		return nil, err
	}
	svc.codec = codec
	return svc, nil
}

// RegisterInput is the payload for Register.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates an account record. The returned principal carries no
// secrets. No tokens are issued; callers log in separately.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Principal, error) {
	username := strings.TrimSpace(strings.ToLower(in.Username))
	email := strings.TrimSpace(strings.ToLower(in.Email))
	switch {
	case username == "" || email == "" || in.Password == "":
		return Principal{}, fmt.Errorf("%w: username, email and password are required", ErrInvalidInput)
	case len(username) > 64:
		return Principal{}, fmt.Errorf("%w: username too long", ErrInvalidInput)
	case len(in.Password) < 8:
		return Principal{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return Principal{}, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return Principal{}, err
	}
	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		return Principal{}, err
	}
	return user.principal(), nil
}

// Login resolves the credential proof to a principal and issues a fresh token
// pair, persisting the refresh value. The unknown-account and wrong-password
// cases come back as distinct sentinels for logs and metrics; the HTTP layer
// collapses them into one answer.
func (s *Service) Login(ctx context.Context, login, password string) (TokenPair, Principal, error) {
	login = strings.TrimSpace(strings.ToLower(login))
	if login == "" || password == "" {
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}
	user, err := s.store.Users(ctx).FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Principal{}, ErrAccountNotFound
		}
		return TokenPair{}, Principal{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}

	pair, err := s.mintPair(user.ID)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	if err := s.store.Credentials(ctx).Put(ctx, user.ID, pair.RefreshToken); err != nil {
		return TokenPair{}, Principal{}, err
	}
	return pair, user.principal(), nil
}

// Logout clears the stored refresh value. Idempotent: clearing an absent
// entry is not an error, and any later refresh attempt for the principal
// fails until the next login.
func (s *Service) Logout(ctx context.Context, principalID string) error {
	if strings.TrimSpace(principalID) == "" {
		return ErrUnauthorized
	}
	return s.store.Credentials(ctx).Clear(ctx, principalID)
}

// Refresh validates a presented refresh token and rotates it: the old value
// is atomically superseded and a brand-new pair is returned. Every failure
// mode (tampered, expired, superseded, logged out, unknown principal)
// surfaces as ErrInvalidRefreshToken; the wrapped cause is for logs only.
func (s *Service) Refresh(ctx context.Context, presented string) (TokenPair, Principal, error) {
	claims, err := s.codec.Verify(presented, KindRefresh)
	if err != nil {
		return TokenPair{}, Principal{}, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}
	user, err := s.store.Users(ctx).Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Principal{}, fmt.Errorf("%w: unknown principal", ErrInvalidRefreshToken)
		}
		return TokenPair{}, Principal{}, err
	}

	pair, err := s.mintPair(user.ID)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}

	// The compare-and-overwrite is the rotation point: of any number of
	// callers racing on the same stale token, at most one lands here with
	// swapped == true. Nothing was persisted for the losers.
	swapped, err := s.store.Credentials(ctx).Replace(ctx, user.ID, presented, pair.RefreshToken)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	if !swapped {
		return TokenPair{}, Principal{}, fmt.Errorf("%w: superseded or cleared", ErrInvalidRefreshToken)
	}
	return pair, user.principal(), nil
}

// Authenticate verifies an access token and resolves it to a principal. It
// never consults the credential store: access tokens are evaluated on
// signature and expiry alone.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	claims, err := s.codec.Verify(accessToken, KindAccess)
	if err != nil {
		return Principal{}, err
	}
	user, err := s.store.Users(ctx).Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrTokenMalformed
		}
		return Principal{}, err
	}
	return user.principal(), nil
}

// AccessTTL reports the configured access horizon. The HTTP layer uses it for
// cookie lifetimes.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL reports the configured refresh horizon.
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *Service) mintPair(principalID string) (TokenPair, error) {
	access, accessExp, err := s.codec.Issue(principalID, KindAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.codec.Issue(principalID, KindRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}
