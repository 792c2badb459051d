package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/agora/internal/forum"
)

// ListPosts returns a topic's posts oldest first, with authors.
func (q *Queries) ListPosts(ctx context.Context, topicID uuid.UUID) ([]forum.Post, error) {
	rows, err := q.db.Query(ctx, `
		SELECT p.id, p.topic_id, p.user_id, p.body, p.created_at, u.id, u.display_name, u.avatars_count
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.topic_id = $1
		ORDER BY p.created_at, p.id`, topicID)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var out []forum.Post
	for rows.Next() {
		var p forum.Post
		var u forum.User
		if err := rows.Scan(&p.ID, &p.TopicID, &p.UserID, &p.Body, &p.CreatedAt,
			&u.ID, &u.DisplayName, &u.AvatarsCount); err != nil {
			return nil, wrapErr(err)
		}
		p.Author = &u
		out = append(out, p)
	}
	return out, wrapErr(rows.Err())
}

// ListPosters returns the distinct users who posted in a topic, ordered by
// their first appearance.
func (q *Queries) ListPosters(ctx context.Context, topicID uuid.UUID) ([]forum.User, error) {
	rows, err := q.db.Query(ctx, `
		SELECT u.id, u.display_name, u.avatars_count
		FROM users u
		JOIN (
			SELECT user_id, MIN(created_at) AS first_post
			FROM posts WHERE topic_id = $1
			GROUP BY user_id
		) fp ON fp.user_id = u.id
		ORDER BY fp.first_post`, topicID)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var out []forum.User
	for rows.Next() {
		var u forum.User
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.AvatarsCount); err != nil {
			return nil, wrapErr(err)
		}
		out = append(out, u)
	}
	return out, wrapErr(rows.Err())
}

// CreatePost appends a reply and refreshes the topic's last-activity
// columns. Run it inside a transaction so the denormalized columns never
// drift from the post rows.
func (q *Queries) CreatePost(ctx context.Context, p forum.Post) (forum.Post, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()

	_, err := q.db.Exec(ctx, `
		INSERT INTO posts (id, topic_id, user_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.TopicID, p.UserID, p.Body, p.CreatedAt)
	if err != nil {
		return forum.Post{}, wrapErr(err)
	}

	tag, err := q.db.Exec(ctx, `
		UPDATE topics SET last_post_at = $2, last_poster_id = $3, updated_at = NOW()
		WHERE id = $1`, p.TopicID, p.CreatedAt, p.UserID)
	if err != nil {
		return forum.Post{}, wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return forum.Post{}, ErrNotFound
	}
	return p, nil
}

// DeletePost removes a single reply.
func (q *Queries) DeletePost(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPost loads a single post.
func (q *Queries) GetPost(ctx context.Context, id uuid.UUID) (forum.Post, error) {
	var p forum.Post
	err := q.db.QueryRow(ctx, `
		SELECT id, topic_id, user_id, body, created_at FROM posts WHERE id = $1`, id).
		Scan(&p.ID, &p.TopicID, &p.UserID, &p.Body, &p.CreatedAt)
	return p, wrapErr(err)
}
