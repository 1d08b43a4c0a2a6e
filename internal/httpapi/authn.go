package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"cliptide.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// requireAuth admits only requests carrying a valid access token. Missing,
// malformed, and expired tokens all answer 401; nothing distinguishes the
// cases on the wire beyond the message.
func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := accessTokenFromRequest(r)
		if err != nil {
			unauthorized(w, r, "missing bearer token")
			return
		}
		principal, err := a.sessions.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrTokenExpired), errors.Is(err, auth.ErrTokenMalformed):
				unauthorized(w, r, "invalid or expired access token")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}
		next(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
	}
}

// optionalAuth binds a principal when a valid access token is present and
// otherwise lets the request through anonymously. It never rejects: a public
// read must not start failing because the caller's token aged out.
func (a *API) optionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := accessTokenFromRequest(r)
		if err == nil {
			if principal, err := a.sessions.Authenticate(r.Context(), token); err == nil {
				r = r.WithContext(auth.ContextWithPrincipal(r.Context(), principal))
			}
		}
		next(w, r)
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="cliptide"`)
	writeError(w, r, http.StatusUnauthorized, msg)
}

// accessTokenFromRequest reads the Authorization header, falling back to the
// accessToken cookie the login handler sets for browser clients.
func accessTokenFromRequest(r *http.Request) (string, error) {
	if header := strings.TrimSpace(r.Header.Get(authHeader)); header != "" {
		return extractBearerToken(header)
	}
	if c, err := r.Cookie(accessCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", errors.New("missing bearer token")
}

func extractBearerToken(header string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
