package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cliptide.org/internal/auth"
	"cliptide.org/internal/httpapi"
	"cliptide.org/internal/video"
)

// startService runs the real HTTP API on in-memory stores with a controllable
// clock, so token expiry can be simulated end to end.
func startService(t *testing.T) (*Client, *time.Time, string) {
	t.Helper()
	current := time.Now().UTC()
	now := &current

	sessions, err := auth.NewService(auth.NewInMemoryStore(),
		auth.WithTokenSecret("test-secret"),
		auth.WithAccessTTL(15*time.Minute),
		auth.WithClock(func() time.Time { return *now }),
	)
	require.NoError(t, err)

	catalog := video.NewService(video.NewInMemoryStore())
	v := &video.Video{Title: "launch day", URL: "https://cdn.example.org/launch.mp4"}
	require.NoError(t, catalog.Publish(context.Background(), v))

	api := httpapi.New(sessions, catalog, httpapi.ReadyProbe{}, httpapi.Config{Version: "test", Env: "dev"})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	return client, now, v.ID
}

func TestClientSessionSurvivesAccessExpiry(t *testing.T) {
	client, now, videoID := startService(t)
	ctx := context.Background()

	_, err := client.Register(ctx, "alice", "alice@example.org", "correct horse")
	require.NoError(t, err)
	principal, err := client.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)
	require.Equal(t, "alice", principal.Username)

	res, err := client.ToggleLike(ctx, videoID)
	require.NoError(t, err)
	require.True(t, res.Liked)

	tokenBefore := client.Agent().AccessToken()

	// The access token ages out. The next protected call should refresh and
	// replay without the caller noticing.
	*now = now.Add(16 * time.Minute)
	res, err = client.ToggleLike(ctx, videoID)
	require.NoError(t, err)
	require.False(t, res.Liked, "second toggle removes the like")
	require.NotEqual(t, tokenBefore, client.Agent().AccessToken(), "expected a rotated access token")
}

func TestClientLogoutEndsSession(t *testing.T) {
	client, _, _ := startService(t)
	ctx := context.Background()

	_, err := client.Register(ctx, "alice", "alice@example.org", "correct horse")
	require.NoError(t, err)
	_, err = client.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)

	require.NoError(t, client.Logout(ctx))
	require.Empty(t, client.Agent().AccessToken())

	var apiErr *APIError
	_, err = client.CurrentUser(ctx)
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestClientLoginErrorIsTyped(t *testing.T) {
	client, _, _ := startService(t)

	_, err := client.Login(context.Background(), "nobody", "whatever!")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "invalid credentials", apiErr.Message)
}

func TestOptimisticToggleCommitsOnSuccess(t *testing.T) {
	client, _, videoID := startService(t)
	ctx := context.Background()

	_, err := client.Register(ctx, "alice", "alice@example.org", "correct horse")
	require.NoError(t, err)
	_, err = client.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)

	state := &LikeState{Liked: false, Likes: 0}
	require.NoError(t, client.ToggleLikeOptimistic(ctx, videoID, state))
	require.True(t, state.Liked)
	require.EqualValues(t, 1, state.Likes)
}

func TestOptimisticToggleRollsBackOnFailure(t *testing.T) {
	// A backend that always fails the toggle.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "toggle failed"})
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	client.Agent().SetTokens("access", "refresh")

	state := &LikeState{Liked: true, Likes: 7}
	err = client.ToggleLikeOptimistic(context.Background(), "vid-1", state)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.Status)
	require.True(t, state.Liked, "state must snap back after a failed toggle")
	require.EqualValues(t, 7, state.Likes)
}
