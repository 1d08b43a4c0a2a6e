package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"cliptide.org/internal/auth"
	"cliptide.org/internal/video"
)

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client is the typed SDK over the Agent transport.
type Client struct {
	agent *Agent
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	a, err := New(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{agent: a}, nil
}

// Agent exposes the underlying transport, mostly for tests.
func (c *Client) Agent() *Agent { return c.agent }

func (c *Client) Register(ctx context.Context, username, email, password string) (auth.Principal, error) {
	var principal auth.Principal
	err := c.call(ctx, http.MethodPost, "/v1/users/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &principal)
	return principal, err
}

// Login authenticates and installs the returned token pair on the transport.
func (c *Client) Login(ctx context.Context, login, password string) (auth.Principal, error) {
	var resp struct {
		User         auth.Principal `json:"user"`
		AccessToken  string         `json:"access_token"`
		RefreshToken string         `json:"refresh_token"`
	}
	err := c.call(ctx, http.MethodPost, "/v1/users/login", map[string]string{
		"login":    login,
		"password": password,
	}, &resp)
	if err != nil {
		return auth.Principal{}, err
	}
	c.agent.SetTokens(resp.AccessToken, resp.RefreshToken)
	return resp.User, nil
}

// Logout terminates the session server-side and drops the local pair. The
// local pair is dropped even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.call(ctx, http.MethodPost, "/v1/users/logout", nil, nil)
	c.agent.ClearTokens()
	return err
}

func (c *Client) CurrentUser(ctx context.Context) (auth.Principal, error) {
	var principal auth.Principal
	err := c.call(ctx, http.MethodGet, "/v1/users/current-user", nil, &principal)
	return principal, err
}

// Refresh rotates the session eagerly, outside the usual 401-driven path.
func (c *Client) Refresh(ctx context.Context) error {
	return c.agent.refresh(ctx)
}

func (c *Client) ListVideos(ctx context.Context) ([]video.Video, error) {
	var resp struct {
		Videos []video.Video `json:"videos"`
	}
	err := c.call(ctx, http.MethodGet, "/v1/videos", nil, &resp)
	return resp.Videos, err
}

func (c *Client) GetVideo(ctx context.Context, id string) (video.Video, error) {
	var v video.Video
	err := c.call(ctx, http.MethodGet, "/v1/videos/"+id, nil, &v)
	return v, err
}

func (c *Client) ToggleLike(ctx context.Context, videoID string) (video.LikeResult, error) {
	var res video.LikeResult
	err := c.call(ctx, http.MethodPost, "/v1/likes/toggle/"+videoID, nil, &res)
	return res, err
}

// LikeState is the caller-held view of a like button.
type LikeState struct {
	Liked bool
	Likes int64
}

// ToggleLikeOptimistic flips the local state immediately, then reconciles with
// the server's answer. On any failure the previous state is restored, so the
// UI snaps back instead of lying.
func (c *Client) ToggleLikeOptimistic(ctx context.Context, videoID string, state *LikeState) error {
	prev := *state
	if state.Liked {
		state.Liked = false
		state.Likes--
	} else {
		state.Liked = true
		state.Likes++
	}

	res, err := c.ToggleLike(ctx, videoID)
	if err != nil {
		*state = prev
		return err
	}
	state.Liked = res.Liked
	state.Likes = res.LikesCount
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.agent.Request(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		if payload.Error == "" {
			payload.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: payload.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
