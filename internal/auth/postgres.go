package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"cliptide.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. The refresh token slot lives on
// the user row, so the compare-and-overwrite in Replace rides on the
// database's per-row atomicity; no application-level lock is needed.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(context.Context) UserStore             { return &userStore{db: s.db} }
func (s *PGStore) Credentials(context.Context) CredentialStore { return &credentialStore{db: s.db} }

// User store ---------------------------------------------------------------

type userStore struct{ db *sql.DB }

const uniqueViolation = "23505"

func (s *userStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, username, email, password_hash) values($1,$2,$3,$4)`,
		u.ID, u.Username, u.Email, u.PasswordHash,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAlreadyExists
	}
	return err
}

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, username, email, password_hash, created_at, updated_at from users where id=$1`, id)
	return scanUser(row)
}

func (s *userStore) FindByLogin(ctx context.Context, login string) (*User, error) {
	login = strings.TrimSpace(strings.ToLower(login))
	row := s.db.QueryRowContext(ctx,
		`select id, username, email, password_hash, created_at, updated_at from users
		 where username=$1 or email=$1`, login)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Credential store ---------------------------------------------------------

type credentialStore struct{ db *sql.DB }

func (s *credentialStore) Put(ctx context.Context, principalID, refreshToken string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set refresh_token=$2, updated_at=now() where id=$1`,
		principalID, refreshToken,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *credentialStore) Get(ctx context.Context, principalID string) (string, error) {
	var stored sql.NullString
	err := s.db.QueryRowContext(ctx,
		`select refresh_token from users where id=$1`, principalID,
	).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	if !stored.Valid || stored.String == "" {
		return "", ErrNotFound
	}
	return stored.String, nil
}

func (s *credentialStore) Clear(ctx context.Context, principalID string) error {
	_, err := s.db.ExecContext(ctx,
		`update users set refresh_token=null, updated_at=now() where id=$1`,
		principalID,
	)
	return err
}

func (s *credentialStore) Replace(ctx context.Context, principalID, presented, next string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`update users set refresh_token=$3, updated_at=now() where id=$1 and refresh_token=$2`,
		principalID, presented, next,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
