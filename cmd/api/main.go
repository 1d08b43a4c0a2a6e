package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"cliptide.org/internal/auth"
	"cliptide.org/internal/httpapi"
	"cliptide.org/internal/obs"
	"cliptide.org/internal/video"
)

var version = "0.3.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, envOr("CLIPTIDE_COMMIT", "unknown"))

	env := envOr("CLIPTIDE_ENV", "dev")
	secret := os.Getenv("CLIPTIDE_AUTH_SECRET")
	if secret == "" {
		if env != "dev" {
			obs.LogEvent("fatal", "CLIPTIDE_AUTH_SECRET is required outside dev", nil)
			os.Exit(1)
		}
		secret = "dev-only-insecure-secret"
	}

	// When no DSN is set the service runs entirely on in-memory stores,
	// which is enough for local development against the browser client.
	var (
		db         *sql.DB
		userStore  auth.Store
		videoStore video.Store
	)
	if dsn := os.Getenv("CLIPTIDE_PG_DSN"); dsn != "" {
		var err error
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			obs.LogEvent("fatal", "open db", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		userStore = auth.NewPGStore(db)
		videoStore = video.NewPGStore(db)
	} else {
		userStore = auth.NewInMemoryStore()
		videoStore = video.NewInMemoryStore()
	}

	sessions, err := auth.NewService(userStore, auth.WithTokenSecret(secret))
	if err != nil {
		obs.LogEvent("fatal", "init session service", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	catalog := video.NewService(videoStore)

	api := httpapi.New(sessions, catalog, httpapi.ReadyProbe{DB: db}, httpapi.Config{
		Version:        version,
		Env:            env,
		AllowedOrigins: splitOrigins(os.Getenv("CLIPTIDE_CORS_ORIGINS")),
	})

	srv := &http.Server{
		Addr:              envOr("CLIPTIDE_ADDR", ":8080"),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	obs.LogEvent("info", "starting cliptide-api", map[string]any{
		"version": version,
		"addr":    srv.Addr,
		"env":     env,
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obs.LogEvent("fatal", "listen", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	obs.LogEvent("info", "shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	obs.LogEvent("info", "stopped", nil)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return []string{"http://localhost:5173", "http://localhost:3000"}
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
