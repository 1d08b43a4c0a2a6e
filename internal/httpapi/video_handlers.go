package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"cliptide.org/internal/audit"
	"cliptide.org/internal/auth"
	"cliptide.org/internal/video"
)

func (a *API) handleListVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	viewer, _ := auth.PrincipalFromContext(r.Context())
	videos, err := a.videos.List(r.Context(), viewer.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"videos": videos})
}

func (a *API) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id := pathTail(r.URL.Path, "/v1/videos/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "video not found")
		return
	}

	viewer, _ := auth.PrincipalFromContext(r.Context())
	v, err := a.videos.Get(r.Context(), id, viewer.ID)
	if err != nil {
		if errors.Is(err, video.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "video not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	id := pathTail(r.URL.Path, "/v1/likes/toggle/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "video not found")
		return
	}

	viewer, _ := auth.PrincipalFromContext(r.Context())
	res, err := a.videos.ToggleLike(r.Context(), viewer.ID, id)
	if err != nil {
		if errors.Is(err, video.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "video not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "toggle failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "video.like.toggled", map[string]any{
		"video_id": res.VideoID,
		"liked":    res.Liked,
	})
	writeJSON(w, http.StatusOK, res)
}

// pathTail returns the single segment after prefix, or "" when the path has
// extra segments or no tail at all.
func pathTail(path, prefix string) string {
	tail := strings.TrimPrefix(path, prefix)
	if tail == path || tail == "" || strings.Contains(tail, "/") {
		return ""
	}
	return tail
}
