package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/agora/internal/forum"
)

const avatarColumns = `id, user_id, filename, attachment_key, content_type, size, created_at`

func scanAvatar(row interface{ Scan(dest ...any) error }) (forum.Avatar, error) {
	var a forum.Avatar
	err := row.Scan(&a.ID, &a.UserID, &a.Filename, &a.AttachmentKey, &a.ContentType, &a.Size, &a.CreatedAt)
	return a, wrapErr(err)
}

// GetAvatar loads an avatar by ID.
func (q *Queries) GetAvatar(ctx context.Context, id uuid.UUID) (forum.Avatar, error) {
	row := q.db.QueryRow(ctx, `SELECT `+avatarColumns+` FROM avatars WHERE id = $1`, id)
	return scanAvatar(row)
}

// GetAvatarByUser loads the user's current avatar, if any.
func (q *Queries) GetAvatarByUser(ctx context.Context, userID uuid.UUID) (forum.Avatar, error) {
	row := q.db.QueryRow(ctx, `SELECT `+avatarColumns+` FROM avatars WHERE user_id = $1`, userID)
	return scanAvatar(row)
}

// CreateAvatar inserts an avatar and bumps the owner's counter. Each user
// has at most one avatar; replace the old one first. Run inside a
// transaction. Filename is unique across all avatars; a collision surfaces
// as ErrDuplicate.
func (q *Queries) CreateAvatar(ctx context.Context, a forum.Avatar) (forum.Avatar, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	_, err := q.db.Exec(ctx, `
		INSERT INTO avatars (id, user_id, filename, attachment_key, content_type, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.UserID, a.Filename, a.AttachmentKey, a.ContentType, a.Size, a.CreatedAt)
	if err != nil {
		return forum.Avatar{}, wrapErr(err)
	}
	_, err = q.db.Exec(ctx, `
		UPDATE users SET avatars_count = avatars_count + 1, updated_at = NOW()
		WHERE id = $1`, a.UserID)
	if err != nil {
		return forum.Avatar{}, wrapErr(err)
	}
	return a, nil
}

// DeleteAvatar removes an avatar row and decrements the owner's counter,
// clamping at zero. Run inside a transaction.
func (q *Queries) DeleteAvatar(ctx context.Context, id uuid.UUID) error {
	var userID uuid.UUID
	err := q.db.QueryRow(ctx, `DELETE FROM avatars WHERE id = $1 RETURNING user_id`, id).
		Scan(&userID)
	if err != nil {
		return wrapErr(err)
	}
	_, err = q.db.Exec(ctx, `
		UPDATE users SET avatars_count = GREATEST(avatars_count - 1, 0), updated_at = NOW()
		WHERE id = $1`, userID)
	return wrapErr(err)
}

// AvatarFilenameTaken reports whether any avatar already uses the filename.
func (q *Queries) AvatarFilenameTaken(ctx context.Context, filename string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM avatars WHERE filename = $1)`, filename).
		Scan(&exists)
	return exists, wrapErr(err)
}
