// Package agent is the client-side session keeper: it carries the token pair,
// and when the server answers 401 it refreshes once and replays the request,
// no matter how many callers hit the expiry at the same time.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultRefreshTimeout = 15 * time.Second

// Paths whose 401s mean what they say. A rejected login must not trigger a
// refresh, and a rejected refresh must not trigger another one.
var refreshExempt = map[string]struct{}{
	"/v1/users/login":         {},
	"/v1/users/register":      {},
	"/v1/users/logout":        {},
	"/v1/users/refresh-token": {},
	"/v1/users/current-user":  {},
}

// Agent is a replaying HTTP transport bound to one session. Safe for
// concurrent use.
type Agent struct {
	base           *url.URL
	http           *http.Client
	refreshTimeout time.Duration

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	refreshing   bool
	waiters      []chan error
}

// Option configures an Agent.
type Option func(*Agent)

// WithHTTPClient swaps the underlying client. A cookie jar is attached if the
// given client has none.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Agent) {
		if c != nil {
			a.http = c
		}
	}
}

// WithRefreshTimeout bounds how long a parked request waits on a refresh.
func WithRefreshTimeout(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.refreshTimeout = d
		}
	}
}

func New(baseURL string, opts ...Option) (*Agent, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("agent: parse base url: %w", err)
	}
	a := &Agent{
		base:           base,
		refreshTimeout: defaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.http == nil {
		a.http = &http.Client{Timeout: 30 * time.Second}
	}
	if a.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("agent: cookie jar: %w", err)
		}
		a.http.Jar = jar
	}
	return a, nil
}

// SetTokens installs a session, e.g. after login.
func (a *Agent) SetTokens(access, refresh string) {
	a.mu.Lock()
	a.accessToken = access
	a.refreshToken = refresh
	a.mu.Unlock()
}

// ClearTokens drops the session.
func (a *Agent) ClearTokens() {
	a.SetTokens("", "")
}

// AccessToken returns the currently held access token, or "".
func (a *Agent) AccessToken() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accessToken
}

// Request builds and performs a JSON request against the service. On a 401
// from a non-exempt path the agent refreshes the session (one refresh per
// expiry, however many requests are in flight) and replays the request once.
func (a *Agent) Request(ctx context.Context, method, path string, body any) (*http.Response, error) {
	req, err := a.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := a.send(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if _, exempt := refreshExempt[req.URL.Path]; exempt {
		return resp, nil
	}

	if err := a.refresh(ctx); err != nil {
		// Refresh failed: the caller sees the original rejection.
		return resp, nil
	}

	// Session renewed; replay exactly once.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	retry, err := a.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	return a.send(retry)
}

func (a *Agent) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("agent: encode body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base.String()+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (a *Agent) send(req *http.Request) (*http.Response, error) {
	a.mu.Lock()
	token := a.accessToken
	a.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.http.Do(req)
}

// refresh is the single-flight rotation point. The first caller in performs
// the exchange; everyone else parks on a channel and shares its outcome, in
// arrival order.
func (a *Agent) refresh(ctx context.Context) error {
	a.mu.Lock()
	if a.refreshing {
		ch := make(chan error, 1)
		a.waiters = append(a.waiters, ch)
		a.mu.Unlock()
		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	a.refreshing = true
	a.mu.Unlock()

	err := a.doRefresh()

	a.mu.Lock()
	waiters := a.waiters
	a.waiters = nil
	a.refreshing = false
	a.mu.Unlock()
	for _, ch := range waiters {
		ch <- err
	}
	return err
}

func (a *Agent) doRefresh() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.refreshTimeout)
	defer cancel()

	a.mu.Lock()
	held := a.refreshToken
	a.mu.Unlock()

	var body any
	if held != "" {
		body = map[string]string{"refresh_token": held}
	} else {
		body = map[string]string{}
	}
	req, err := a.newRequest(ctx, http.MethodPost, "/v1/users/refresh-token", body)
	if err != nil {
		return err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("agent: refresh exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// The session is over; drop the stale pair so later requests fail
		// fast instead of replaying a dead token.
		a.ClearTokens()
		return fmt.Errorf("agent: refresh rejected with status %d", resp.StatusCode)
	}

	var rotated struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rotated); err != nil {
		return fmt.Errorf("agent: decode refresh response: %w", err)
	}
	if rotated.AccessToken == "" {
		return errors.New("agent: refresh response carried no access token")
	}
	a.SetTokens(rotated.AccessToken, rotated.RefreshToken)
	return nil
}
