package video

import "time"

// Video is a published clip. LikesCount is denormalized from the likes table;
// IsLiked is derived per viewer at read time and is always false for anonymous
// reads.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	LikesCount   int64     `json:"likes_count"`
	IsLiked      bool      `json:"is_liked"`
	CreatedAt    time.Time `json:"created_at"`
}

// LikeResult reports the outcome of a like toggle.
type LikeResult struct {
	VideoID    string `json:"video_id"`
	Liked      bool   `json:"liked"`
	LikesCount int64  `json:"likes_count"`
}
