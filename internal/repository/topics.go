package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/agora/internal/forum"
)

// TopicsPerPage is the page size for topic listings.
const TopicsPerPage = 20

const topicColumns = `t.id, t.forum_id, t.user_id, t.title, t.private, t.hits,
	t.last_post_at, t.last_poster_id, t.created_at, t.updated_at`

const listTopicsQuery = `
	SELECT ` + topicColumns + `,
		a.id, a.display_name,
		lp.id, lp.display_name
	FROM topics t
	JOIN users a ON a.id = t.user_id
	JOIN users lp ON lp.id = t.last_poster_id`

func (q *Queries) queryTopics(ctx context.Context, query string, args ...any) ([]forum.Topic, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var out []forum.Topic
	for rows.Next() {
		var t forum.Topic
		var author, lastPoster forum.User
		if err := rows.Scan(
			&t.ID, &t.ForumID, &t.UserID, &t.Title, &t.Private, &t.Hits,
			&t.LastPostAt, &t.LastPosterID, &t.CreatedAt, &t.UpdatedAt,
			&author.ID, &author.DisplayName,
			&lastPoster.ID, &lastPoster.DisplayName,
		); err != nil {
			return nil, wrapErr(err)
		}
		t.Author = &author
		t.LastPoster = &lastPoster
		out = append(out, t)
	}
	return out, wrapErr(rows.Err())
}

// ListAllTopics returns one page of topics across every forum ordered by
// most recent activity. Private topics are omitted unless includePrivate is
// set; ties on last_post_at break on id so pagination stays stable. Page is
// 1-based.
func (q *Queries) ListAllTopics(ctx context.Context, includePrivate bool, page int) ([]forum.Topic, error) {
	if page < 1 {
		page = 1
	}
	return q.queryTopics(ctx, listTopicsQuery+`
		WHERE (NOT t.private OR $1)
		ORDER BY t.last_post_at DESC, t.id
		LIMIT $2 OFFSET $3`,
		includePrivate, TopicsPerPage, (page-1)*TopicsPerPage)
}

// CountAllTopics returns the number of listable topics, for computing the
// page count.
func (q *Queries) CountAllTopics(ctx context.Context, includePrivate bool) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM topics WHERE (NOT private OR $1)`,
		includePrivate).Scan(&n)
	return n, wrapErr(err)
}

// ListTopics is ListAllTopics restricted to one forum.
func (q *Queries) ListTopics(ctx context.Context, forumID uuid.UUID, includePrivate bool, page int) ([]forum.Topic, error) {
	if page < 1 {
		page = 1
	}
	return q.queryTopics(ctx, listTopicsQuery+`
		WHERE t.forum_id = $1 AND (NOT t.private OR $2)
		ORDER BY t.last_post_at DESC, t.id
		LIMIT $3 OFFSET $4`,
		forumID, includePrivate, TopicsPerPage, (page-1)*TopicsPerPage)
}

// CountTopics returns the number of listable topics in a forum.
func (q *Queries) CountTopics(ctx context.Context, forumID uuid.UUID, includePrivate bool) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM topics
		WHERE forum_id = $1 AND (NOT private OR $2)`,
		forumID, includePrivate).Scan(&n)
	return n, wrapErr(err)
}

// GetTopic loads a single topic with its author.
func (q *Queries) GetTopic(ctx context.Context, id uuid.UUID) (forum.Topic, error) {
	var t forum.Topic
	var author forum.User
	err := q.db.QueryRow(ctx, `
		SELECT `+topicColumns+`, a.id, a.display_name
		FROM topics t
		JOIN users a ON a.id = t.user_id
		WHERE t.id = $1`, id).
		Scan(&t.ID, &t.ForumID, &t.UserID, &t.Title, &t.Private, &t.Hits,
			&t.LastPostAt, &t.LastPosterID, &t.CreatedAt, &t.UpdatedAt,
			&author.ID, &author.DisplayName)
	if err != nil {
		return forum.Topic{}, wrapErr(err)
	}
	t.Author = &author
	return t, nil
}

// CreateTopic inserts a topic together with its originating post. Run it
// inside a transaction so a topic can never exist without a first post.
func (q *Queries) CreateTopic(ctx context.Context, t forum.Topic, body string) (forum.Topic, forum.Post, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.LastPostAt = now
	t.LastPosterID = t.UserID

	_, err := q.db.Exec(ctx, `
		INSERT INTO topics (id, forum_id, user_id, title, private, last_post_at, last_poster_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.ForumID, t.UserID, t.Title, t.Private, t.LastPostAt, t.LastPosterID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return forum.Topic{}, forum.Post{}, wrapErr(err)
	}

	p := forum.Post{ID: uuid.New(), TopicID: t.ID, UserID: t.UserID, Body: body, CreatedAt: now}
	_, err = q.db.Exec(ctx, `
		INSERT INTO posts (id, topic_id, user_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.TopicID, p.UserID, p.Body, p.CreatedAt)
	if err != nil {
		return forum.Topic{}, forum.Post{}, wrapErr(err)
	}
	return t, p, nil
}

// UpdateTopic persists title and privacy changes.
func (q *Queries) UpdateTopic(ctx context.Context, id uuid.UUID, title string, private bool) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE topics SET title = $2, private = $3, updated_at = NOW()
		WHERE id = $1`, id, title, private)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTopic removes a topic; its posts go with it via cascade.
func (q *Queries) DeleteTopic(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM topics WHERE id = $1`, id)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementHits bumps the topic's view counter in a single statement so
// concurrent views never lose an increment. Returns the new count.
func (q *Queries) IncrementHits(ctx context.Context, id uuid.UUID) (int, error) {
	var hits int
	err := q.db.QueryRow(ctx, `
		UPDATE topics SET hits = hits + 1 WHERE id = $1 RETURNING hits`, id).
		Scan(&hits)
	return hits, wrapErr(err)
}
