package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                            "/",
		"/":                           "/",
		"/metrics":                    "/metrics",
		"/v1/videos":                  "/v1/videos",
		"/v1/videos/01J4K":            "/v1/videos/:id",
		"/v1/videos/01J4K?viewer=x":   "/v1/videos/:id",
		"/v1/likes/toggle/01J4K":      "/v1/likes/toggle/:id",
		"/v1/users/current-user":      "/v1/users/current-user",
		"/v1/users/refresh-token":     "/v1/users/refresh-token",
		"/v1/videos/01J4K/extra/deep": "/v1/videos/01J4K/extra/deep",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
