package video

import "context"

// Store is the persistence surface for videos and per-viewer likes.
//
// viewerID may be empty on reads, which yields IsLiked == false everywhere.
// ToggleLike flips the (viewer, video) like edge and returns the resulting
// state together with the new count.
type Store interface {
	List(ctx context.Context, viewerID string) ([]Video, error)
	Get(ctx context.Context, id, viewerID string) (*Video, error)
	Create(ctx context.Context, v *Video) error
	ToggleLike(ctx context.Context, viewerID, videoID string) (LikeResult, error)
}
