package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"cliptide.org/internal/audit"
	"cliptide.org/internal/auth"
	"cliptide.org/internal/obs"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         auth.Principal `json:"user"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	principal, err := a.sessions.Register(r.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrAlreadyExists):
			writeError(w, r, http.StatusConflict, "username or email already taken")
		default:
			writeError(w, r, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "session.register", map[string]any{
		"user_id":  principal.ID,
		"username": principal.Username,
	})
	writeJSON(w, http.StatusCreated, principal)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pair, principal, err := a.sessions.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		switch {
		// Same wire answer for a wrong password and an unknown account.
		case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrAccountNotFound):
			obs.ObserveLogin("rejected")
			writeError(w, r, http.StatusBadRequest, "invalid credentials")
		default:
			obs.ObserveLogin("error")
			writeError(w, r, http.StatusInternalServerError, "login failed")
		}
		return
	}

	a.setSessionCookies(w, pair)
	obs.ObserveLogin("ok")
	_ = audit.LogEvent(r.Context(), "session.login", map[string]any{
		"user_id":  principal.ID,
		"username": principal.Username,
	})
	writeJSON(w, http.StatusOK, loginResponse{
		User:         principal,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	if err := a.sessions.Logout(r.Context(), principal.ID); err != nil {
		writeError(w, r, http.StatusInternalServerError, "logout failed")
		return
	}

	a.clearSessionCookies(w)
	_ = audit.LogEvent(r.Context(), "session.logout", nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	presented := a.refreshTokenFromRequest(w, r)
	if presented == "" {
		obs.ObserveRefresh("rejected")
		unauthorized(w, r, "missing refresh token")
		return
	}

	pair, principal, err := a.sessions.Refresh(r.Context(), presented)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			obs.ObserveRefresh("rejected")
			_ = audit.LogEvent(r.Context(), "session.refresh.rejected", nil)
			a.clearSessionCookies(w)
			unauthorized(w, r, "invalid refresh token")
			return
		}
		obs.ObserveRefresh("error")
		writeError(w, r, http.StatusInternalServerError, "refresh failed")
		return
	}

	a.setSessionCookies(w, pair)
	obs.ObserveRefresh("ok")
	_ = audit.LogEvent(r.Context(), "session.refresh", map[string]any{
		"user_id": principal.ID,
	})
	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (a *API) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, principal)
}

// refreshTokenFromRequest reads the rotation input from the cookie the
// previous login/refresh set, falling back to a JSON body for non-browser
// clients. The Authorization header is deliberately not consulted: it carries
// the access token, and the two must never be conflated.
func (a *API) refreshTokenFromRequest(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return ""
	}
	return strings.TrimSpace(req.RefreshToken)
}

func (a *API) setSessionCookies(w http.ResponseWriter, pair auth.TokenPair) {
	http.SetCookie(w, a.sessionCookie(accessCookieName, pair.AccessToken, a.sessions.AccessTTL()))
	http.SetCookie(w, a.sessionCookie(refreshCookieName, pair.RefreshToken, a.sessions.RefreshTTL()))
}

func (a *API) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, a.sessionCookie(accessCookieName, "", -time.Second))
	http.SetCookie(w, a.sessionCookie(refreshCookieName, "", -time.Second))
}

func (a *API) sessionCookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(ttl / time.Second),
		SameSite: http.SameSiteLaxMode,
	}
	if a.cfg.Env != "dev" {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}
