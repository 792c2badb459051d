package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/agora/internal/forum"
)

const headerColumns = `id, user_id, description, votes, filename, attachment_key, content_type, size, created_at, updated_at`

func scanHeader(row interface{ Scan(dest ...any) error }) (forum.Header, error) {
	var h forum.Header
	err := row.Scan(&h.ID, &h.UserID, &h.Description, &h.Votes, &h.Filename,
		&h.AttachmentKey, &h.ContentType, &h.Size, &h.CreatedAt, &h.UpdatedAt)
	return h, wrapErr(err)
}

// ListHeaders returns all headers, highest-voted first. Ties break on
// creation time then id so the order is stable.
func (q *Queries) ListHeaders(ctx context.Context) ([]forum.Header, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+headerColumns+` FROM headers
		ORDER BY votes DESC, created_at, id`)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var out []forum.Header
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, wrapErr(rows.Err())
}

// GetHeader loads a single header.
func (q *Queries) GetHeader(ctx context.Context, id uuid.UUID) (forum.Header, error) {
	row := q.db.QueryRow(ctx, `SELECT `+headerColumns+` FROM headers WHERE id = $1`, id)
	return scanHeader(row)
}

// RandomHeader picks one header at random for display above a page. Returns
// ErrNotFound when no headers exist yet.
func (q *Queries) RandomHeader(ctx context.Context) (forum.Header, error) {
	row := q.db.QueryRow(ctx, `SELECT `+headerColumns+` FROM headers ORDER BY RANDOM() LIMIT 1`)
	return scanHeader(row)
}

// CreateHeader inserts a header. Filename is unique across all headers;
// a collision surfaces as ErrDuplicate.
func (q *Queries) CreateHeader(ctx context.Context, h forum.Header) (forum.Header, error) {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	now := time.Now()
	h.CreatedAt = now
	h.UpdatedAt = now
	_, err := q.db.Exec(ctx, `
		INSERT INTO headers (id, user_id, description, votes, filename, attachment_key, content_type, size, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		h.ID, h.UserID, h.Description, h.Votes, h.Filename, h.AttachmentKey, h.ContentType, h.Size, h.CreatedAt, h.UpdatedAt)
	if err != nil {
		return forum.Header{}, wrapErr(err)
	}
	return h, nil
}

// UpdateHeader persists the description.
func (q *Queries) UpdateHeader(ctx context.Context, id uuid.UUID, description string) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE headers SET description = $2, updated_at = NOW() WHERE id = $1`, id, description)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteHeader removes a header row.
func (q *Queries) DeleteHeader(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM headers WHERE id = $1`, id)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// VoteUp increments the header's vote count atomically and returns the new
// total.
func (q *Queries) VoteUp(ctx context.Context, id uuid.UUID) (int, error) {
	var votes int
	err := q.db.QueryRow(ctx, `
		UPDATE headers SET votes = votes + 1, updated_at = NOW()
		WHERE id = $1 RETURNING votes`, id).Scan(&votes)
	return votes, wrapErr(err)
}

// VoteDown decrements the header's vote count atomically, clamping at zero,
// and returns the new total. Decrementing a zero-vote header is a no-op.
func (q *Queries) VoteDown(ctx context.Context, id uuid.UUID) (int, error) {
	var votes int
	err := q.db.QueryRow(ctx, `
		UPDATE headers SET votes = GREATEST(votes - 1, 0), updated_at = NOW()
		WHERE id = $1 RETURNING votes`, id).Scan(&votes)
	return votes, wrapErr(err)
}
