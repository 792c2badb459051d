package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/agora/internal/database"
	"github.com/dmitrymomot/agora/internal/forum"
)

// InTx runs fn against a transaction-bound Queries. When already inside a
// transaction (or in tests with a fake DB) fn runs on the current handle.
func (q *Queries) InTx(ctx context.Context, fn func(q *Queries) error) error {
	pool, ok := q.db.(*pgxpool.Pool)
	if !ok {
		return fn(q)
	}
	return database.WithTx(ctx, pool, func(tx pgx.Tx) error {
		return fn(q.WithTx(tx))
	})
}

// CreateTopicWithPost creates a topic and its originating post atomically.
func (q *Queries) CreateTopicWithPost(ctx context.Context, t forum.Topic, body string) (forum.Topic, forum.Post, error) {
	var topic forum.Topic
	var post forum.Post
	err := q.InTx(ctx, func(q *Queries) error {
		var err error
		topic, post, err = q.CreateTopic(ctx, t, body)
		return err
	})
	if err != nil {
		return forum.Topic{}, forum.Post{}, err
	}
	return topic, post, nil
}

// Reply appends a post and updates the topic's last-activity columns
// atomically.
func (q *Queries) Reply(ctx context.Context, p forum.Post) (forum.Post, error) {
	var post forum.Post
	err := q.InTx(ctx, func(q *Queries) error {
		var err error
		post, err = q.CreatePost(ctx, p)
		return err
	})
	if err != nil {
		return forum.Post{}, err
	}
	return post, nil
}

// ReplaceAvatar swaps the user's avatar in one transaction: the previous
// row (if any) is removed before the new one is inserted, keeping the
// one-avatar-per-user rule and the counter consistent. The removed avatar
// is returned so callers can delete its file afterwards.
func (q *Queries) ReplaceAvatar(ctx context.Context, a forum.Avatar) (created forum.Avatar, removed *forum.Avatar, err error) {
	err = q.InTx(ctx, func(q *Queries) error {
		old, err := q.GetAvatarByUser(ctx, a.UserID)
		switch {
		case err == nil:
			if err := q.DeleteAvatar(ctx, old.ID); err != nil {
				return err
			}
			removed = &old
		case !errors.Is(err, ErrNotFound):
			return err
		}
		created, err = q.CreateAvatar(ctx, a)
		return err
	})
	if err != nil {
		return forum.Avatar{}, nil, err
	}
	return created, removed, nil
}
