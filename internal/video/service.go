package video

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cliptide.org/internal/ids"
)

// ErrNotFound is returned when no video exists with the requested id.
var ErrNotFound = errors.New("video: not found")

// ErrInvalidInput is returned for payloads that fail validation.
var ErrInvalidInput = errors.New("video: invalid input")

// Service exposes the catalog read path and the per-viewer like toggle.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// List returns the catalog, newest first. viewerID may be empty; IsLiked is
// then false on every item.
func (s *Service) List(ctx context.Context, viewerID string) ([]Video, error) {
	return s.store.List(ctx, viewerID)
}

// Get returns a single video with IsLiked derived for the viewer.
func (s *Service) Get(ctx context.Context, id, viewerID string) (*Video, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	return s.store.Get(ctx, id, viewerID)
}

// Publish adds a clip to the catalog.
func (s *Service) Publish(ctx context.Context, v *Video) error {
	switch {
	case strings.TrimSpace(v.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case strings.TrimSpace(v.URL) == "":
		return fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	if v.ID == "" {
		v.ID = ids.New()
	}
	return s.store.Create(ctx, v)
}

// ToggleLike flips the viewer's like on the video and reports the resulting
// state. The caller must already be authenticated; viewerID is never empty
// here.
func (s *Service) ToggleLike(ctx context.Context, viewerID, videoID string) (LikeResult, error) {
	if strings.TrimSpace(videoID) == "" {
		return LikeResult{}, ErrNotFound
	}
	return s.store.ToggleLike(ctx, viewerID, videoID)
}
