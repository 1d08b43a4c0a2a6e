package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeBackend simulates the session endpoints with full control over when a
// refresh succeeds, so the transport's coordination can be observed.
type fakeBackend struct {
	mu            sync.Mutex
	validToken    string
	refreshOK     bool
	refreshDelay  time.Duration
	refreshCalls  int
	protectedHits int
	alwaysReject  bool
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/users/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.refreshCalls++
		delay := b.refreshDelay
		ok := b.refreshOK
		b.mu.Unlock()

		time.Sleep(delay)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid refresh token"})
			return
		}
		b.mu.Lock()
		b.validToken = fmt.Sprintf("access-%d", b.refreshCalls)
		token := b.validToken
		b.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  token,
			"refresh_token": "rotated-refresh",
		})
	})
	mux.HandleFunc("/v1/users/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
	})
	mux.HandleFunc("/v1/protected", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.protectedHits++
		valid := "Bearer " + b.validToken
		reject := b.alwaysReject
		b.mu.Unlock()

		if reject || r.Header.Get("Authorization") != valid {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid or expired access token"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	return mux
}

func newFakeSession(t *testing.T, b *fakeBackend) (*Agent, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	a, err := New(srv.URL)
	require.NoError(t, err)
	a.SetTokens("stale-access", "held-refresh")
	return a, srv
}

func TestConcurrentExpiryTriggersOneRefresh(t *testing.T) {
	backend := &fakeBackend{validToken: "unknown", refreshOK: true, refreshDelay: 50 * time.Millisecond}
	a, _ := newFakeSession(t, backend)

	const callers = 6
	codes := make(chan int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := a.Request(context.Background(), http.MethodGet, "/v1/protected", nil)
			require.NoError(t, err)
			defer resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		require.Equal(t, http.StatusOK, code)
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Equal(t, 1, backend.refreshCalls, "every in-flight caller must share one refresh")
}

func TestFailedRefreshRejectsAllWaitersAndClearsSession(t *testing.T) {
	backend := &fakeBackend{validToken: "unknown", refreshOK: false, refreshDelay: 30 * time.Millisecond}
	a, _ := newFakeSession(t, backend)

	const callers = 5
	codes := make(chan int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := a.Request(context.Background(), http.MethodGet, "/v1/protected", nil)
			require.NoError(t, err)
			defer resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(codes)

	// Everybody surfaces the original rejection, nobody hangs.
	for code := range codes {
		require.Equal(t, http.StatusUnauthorized, code)
	}
	require.Equal(t, 1, backend.refreshCalls)
	require.Empty(t, a.AccessToken(), "a dead session must not keep its tokens")
}

func TestExemptPathsSurfaceTheirOwn401(t *testing.T) {
	backend := &fakeBackend{validToken: "unknown", refreshOK: true}
	a, _ := newFakeSession(t, backend)

	resp, err := a.Request(context.Background(), http.MethodPost, "/v1/users/login",
		map[string]string{"login": "alice", "password": "wrong"})
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Zero(t, backend.refreshCalls, "a failed login is not an expired session")
}

func TestReplaysExactlyOnce(t *testing.T) {
	backend := &fakeBackend{validToken: "unknown", refreshOK: true, alwaysReject: true}
	a, _ := newFakeSession(t, backend)

	resp, err := a.Request(context.Background(), http.MethodGet, "/v1/protected", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, 2, backend.protectedHits, "one original attempt plus one replay")
	require.Equal(t, 1, backend.refreshCalls)
}

func TestRefreshTimeoutBoundsParkedCallers(t *testing.T) {
	backend := &fakeBackend{validToken: "unknown", refreshOK: true, refreshDelay: 2 * time.Second}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	a, err := New(srv.URL, WithRefreshTimeout(100*time.Millisecond))
	require.NoError(t, err)
	a.SetTokens("stale-access", "held-refresh")

	start := time.Now()
	resp, err := a.Request(context.Background(), http.MethodGet, "/v1/protected", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	// The refresh exchange was cut off by its deadline, so the caller gets
	// the original 401 well before the backend's two-second stall ends.
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Less(t, time.Since(start), time.Second)
}
