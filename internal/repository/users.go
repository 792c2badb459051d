package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/agora/internal/forum"
)

const userColumns = `id, email, display_name, password_hash, admin, avatars_count, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (forum.User, error) {
	var u forum.User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Admin, &u.AvatarsCount, &u.CreatedAt, &u.UpdatedAt)
	return u, wrapErr(err)
}

// CreateUser inserts a new user. Returns ErrDuplicate when the email is
// already registered.
func (q *Queries) CreateUser(ctx context.Context, u forum.User) (forum.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	_, err := q.db.Exec(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.DisplayName, u.PasswordHash, u.Admin, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return forum.User{}, wrapErr(err)
	}
	return u, nil
}

// GetUser loads a user by ID.
func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (forum.User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByEmail loads a user by email for login.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (forum.User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// UpdateUser persists profile fields.
func (q *Queries) UpdateUser(ctx context.Context, u forum.User) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE users SET email = $2, display_name = $3, password_hash = $4, admin = $5, updated_at = NOW()
		WHERE id = $1`,
		u.ID, u.Email, u.DisplayName, u.PasswordHash, u.Admin)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
