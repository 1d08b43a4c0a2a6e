package video

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore implements Store with process-local maps. Used in tests and
// for running the API without a database.
type InMemoryStore struct {
	mu     sync.RWMutex
	videos map[string]Video
	likes  map[string]map[string]struct{} // videoID -> set of userIDs
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		videos: make(map[string]Video),
		likes:  make(map[string]map[string]struct{}),
	}
}

func (s *InMemoryStore) List(_ context.Context, viewerID string) ([]Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Video, 0, len(s.videos))
	for id, v := range s.videos {
		s.decorateLocked(&v, id, viewerID)
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *InMemoryStore) Get(_ context.Context, id, viewerID string) (*Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.decorateLocked(&v, id, viewerID)
	return &v, nil
}

func (s *InMemoryStore) Create(_ context.Context, v *Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	s.videos[v.ID] = *v
	return nil
}

func (s *InMemoryStore) ToggleLike(_ context.Context, viewerID, videoID string) (LikeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[videoID]; !ok {
		return LikeResult{}, ErrNotFound
	}
	set := s.likes[videoID]
	if set == nil {
		set = make(map[string]struct{})
		s.likes[videoID] = set
	}
	var liked bool
	if _, ok := set[viewerID]; ok {
		delete(set, viewerID)
	} else {
		set[viewerID] = struct{}{}
		liked = true
	}
	return LikeResult{VideoID: videoID, Liked: liked, LikesCount: int64(len(set))}, nil
}

func (s *InMemoryStore) decorateLocked(v *Video, id, viewerID string) {
	set := s.likes[id]
	v.LikesCount = int64(len(set))
	if viewerID != "" {
		_, v.IsLiked = set[viewerID]
	} else {
		v.IsLiked = false
	}
}
