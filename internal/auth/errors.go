package auth

import "errors"

var (
	// ErrNotFound is returned by stores when a record is absent.
	ErrNotFound = errors.New("auth: not found")
	// ErrAlreadyExists is returned on duplicate username or email.
	ErrAlreadyExists = errors.New("auth: already exists")
	// ErrInvalidInput covers registration validation failures.
	ErrInvalidInput = errors.New("auth: invalid input")
	// ErrAccountNotFound means the login identifier matched no account.
	ErrAccountNotFound = errors.New("auth: account not found")
	// ErrInvalidCredentials means the password did not match the account.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrTokenMalformed covers forged, tampered, or unparseable tokens.
	ErrTokenMalformed = errors.New("auth: token malformed")
	// ErrTokenExpired means the token was valid but its horizon passed.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrInvalidRefreshToken uniformly covers tampered, superseded, and
	// logged-out refresh tokens. The cases are deliberately not distinguished
	// in responses; wrap with a cause for diagnostics only.
	ErrInvalidRefreshToken = errors.New("auth: invalid refresh token")
	// ErrUnauthorized is the required-mode gate rejection.
	ErrUnauthorized = errors.New("auth: unauthorized")
)
