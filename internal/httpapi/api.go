// Package httpapi is the HTTP surface of the service: session endpoints,
// the video catalog, and the operational probes.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"cliptide.org/internal/auth"
	"cliptide.org/internal/obs"
	"cliptide.org/internal/video"
)

// ReadyProbe reports whether the service's dependencies are reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config carries the deploy-time knobs of the HTTP layer.
type Config struct {
	Version string
	// Env selects cookie attributes: "dev" keeps them http/lax so the
	// browser accepts them from localhost, anything else goes Secure.
	Env string
	// AllowedOrigins is the CORS allowlist for the browser client.
	AllowedOrigins []string
}

// API wires the session and catalog services onto an http.ServeMux.
type API struct {
	mux      *http.ServeMux
	sessions *auth.Service
	videos   *video.Service
	ready    ReadyProbe
	cfg      Config
}

func New(sessions *auth.Service, videos *video.Service, rp ReadyProbe, cfg Config) *API {
	a := &API{
		mux:      http.NewServeMux(),
		sessions: sessions,
		videos:   videos,
		ready:    rp,
		cfg:      cfg,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// session lifecycle
	a.mux.HandleFunc("/v1/users/register", a.handleRegister)
	a.mux.HandleFunc("/v1/users/login", a.handleLogin)
	a.mux.HandleFunc("/v1/users/logout", a.requireAuth(a.handleLogout))
	a.mux.HandleFunc("/v1/users/refresh-token", a.handleRefresh)
	a.mux.HandleFunc("/v1/users/current-user", a.requireAuth(a.handleCurrentUser))

	// catalog
	a.mux.HandleFunc("/v1/videos", a.optionalAuth(a.handleListVideos))
	a.mux.HandleFunc("/v1/videos/", a.optionalAuth(a.handleGetVideo))
	a.mux.HandleFunc("/v1/likes/toggle/", a.requireAuth(a.handleToggleLike))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(a.cfg.AllowedOrigins)(h)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}
