package auth

import "context"

// Store describes persistence operations required by the session subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	Credentials(ctx context.Context) CredentialStore
}

// UserStore manages account records.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	// FindByLogin resolves a username or email to the account record.
	FindByLogin(ctx context.Context, login string) (*User, error)
}

// CredentialStore persists, per principal, the single currently valid refresh
// token value. A put or clear must be visible to the next get for the same
// principal once it returns.
type CredentialStore interface {
	// Put overwrites the stored value unconditionally.
	Put(ctx context.Context, principalID, refreshToken string) error
	// Get returns the stored value, or ErrNotFound when absent.
	Get(ctx context.Context, principalID string) (string, error)
	// Clear removes the stored value. Clearing an absent entry is not an error.
	Clear(ctx context.Context, principalID string) error
	// Replace atomically compares the stored value against presented and, on a
	// bit-identical match, overwrites it with next. It reports whether the
	// swap happened. Two racing rotations on the same stale token must see at
	// most one true.
	Replace(ctx context.Context, principalID, presented, next string) (bool, error)
}
