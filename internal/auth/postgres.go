package auth

import (
	"context"
	"database/sql"
	"strings"

	"github.com/brice-akama/my-pdf-analytics-sub009/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(ctx context.Context) UserStore       { return &userStore{db: s.db} }
func (s *PGStore) Profiles(ctx context.Context) ProfileStore { return &profileStore{db: s.db} }

// User store ---------------------------------------------------------------
type userStore struct{ db *sql.DB }

func (s *userStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.WithPrefix("usr")
	}
	if u.Plan == "" {
		u.Plan = PlanFree
	}
	if u.Status == "" {
		u.Status = "active"
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, password_hash, plan, status) values($1,$2,$3,$4,$5)`,
		u.ID, u.Email, u.PasswordHash, u.Plan, u.Status,
	)
	return err
}

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, password_hash, plan, status, created_at, updated_at from users where id=$1`, id)
	return scanUser(row)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, password_hash, plan, status, created_at, updated_at from users where email=$1`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Plan, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Profile store ------------------------------------------------------------
type profileStore struct{ db *sql.DB }

func (s *profileStore) Upsert(ctx context.Context, p *Profile) error {
	if p.UserID == "" {
		return ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		insert into profiles(user_id, name, company, avatar_url, updated_at)
		values ($1,$2,$3,$4, now())
		on conflict (user_id) do update
		set name = excluded.name,
		    company = excluded.company,
		    avatar_url = excluded.avatar_url,
		    updated_at = now()
	`, p.UserID, p.Name, p.Company, p.AvatarURL)
	return err
}

func (s *profileStore) Find(ctx context.Context, userID string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`select user_id, name, company, avatar_url, updated_at from profiles where user_id=$1`, userID)
	var p Profile
	err := row.Scan(&p.UserID, &p.Name, &p.Company, &p.AvatarURL, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
