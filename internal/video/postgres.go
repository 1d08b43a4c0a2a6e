package video

import (
	"context"
	"database/sql"
	"errors"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. Likes live in a dedicated table
// keyed (user_id, video_id); IsLiked and LikesCount are computed per query so
// reads never go stale.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const videoColumns = `
	v.id, v.title, v.description, v.url, v.thumbnail_url, v.created_at,
	(select count(*) from likes l where l.video_id = v.id) as likes_count,
	exists(select 1 from likes l where l.video_id = v.id and l.user_id = $1) as is_liked`

func (s *PGStore) List(ctx context.Context, viewerID string) ([]Video, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+videoColumns+` from videos v order by v.created_at desc`, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	videos := make([]Video, 0)
	for rows.Next() {
		var v Video
		if err := rows.Scan(&v.ID, &v.Title, &v.Description, &v.URL, &v.ThumbnailURL,
			&v.CreatedAt, &v.LikesCount, &v.IsLiked); err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (s *PGStore) Get(ctx context.Context, id, viewerID string) (*Video, error) {
	var v Video
	err := s.db.QueryRowContext(ctx,
		`select `+videoColumns+` from videos v where v.id = $2`, viewerID, id,
	).Scan(&v.ID, &v.Title, &v.Description, &v.URL, &v.ThumbnailURL,
		&v.CreatedAt, &v.LikesCount, &v.IsLiked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (s *PGStore) Create(ctx context.Context, v *Video) error {
	return s.db.QueryRowContext(ctx,
		`insert into videos(id, title, description, url, thumbnail_url)
		 values($1,$2,$3,$4,$5) returning created_at`,
		v.ID, v.Title, v.Description, v.URL, v.ThumbnailURL,
	).Scan(&v.CreatedAt)
}

func (s *PGStore) ToggleLike(ctx context.Context, viewerID, videoID string) (LikeResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return LikeResult{}, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`select exists(select 1 from videos where id=$1)`, videoID,
	).Scan(&exists); err != nil {
		return LikeResult{}, err
	}
	if !exists {
		return LikeResult{}, ErrNotFound
	}

	// Flip the edge: remove it if present, add it otherwise.
	res, err := tx.ExecContext(ctx,
		`delete from likes where user_id=$1 and video_id=$2`, viewerID, videoID)
	if err != nil {
		return LikeResult{}, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return LikeResult{}, err
	}
	liked := removed == 0
	if liked {
		if _, err := tx.ExecContext(ctx,
			`insert into likes(user_id, video_id) values($1,$2)`, viewerID, videoID); err != nil {
			return LikeResult{}, err
		}
	}

	var count int64
	if err := tx.QueryRowContext(ctx,
		`select count(*) from likes where video_id=$1`, videoID,
	).Scan(&count); err != nil {
		return LikeResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return LikeResult{}, err
	}
	return LikeResult{VideoID: videoID, Liked: liked, LikesCount: count}, nil
}
