package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/agora/internal/forum"
)

// ListCategories returns all categories ordered by position.
func (q *Queries) ListCategories(ctx context.Context) ([]forum.Category, error) {
	rows, err := q.db.Query(ctx, `SELECT id, name, position FROM categories ORDER BY position, name`)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var out []forum.Category
	for rows.Next() {
		var c forum.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Position); err != nil {
			return nil, wrapErr(err)
		}
		out = append(out, c)
	}
	return out, wrapErr(rows.Err())
}

// ListForums returns all forums ordered by position, for grouping under
// their categories on the home page.
func (q *Queries) ListForums(ctx context.Context) ([]forum.Forum, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, category_id, name, description, position
		FROM forums ORDER BY position, name`)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var out []forum.Forum
	for rows.Next() {
		var f forum.Forum
		if err := rows.Scan(&f.ID, &f.CategoryID, &f.Name, &f.Description, &f.Position); err != nil {
			return nil, wrapErr(err)
		}
		out = append(out, f)
	}
	return out, wrapErr(rows.Err())
}

// GetCategory loads a single category.
func (q *Queries) GetCategory(ctx context.Context, id uuid.UUID) (forum.Category, error) {
	var c forum.Category
	err := q.db.QueryRow(ctx, `SELECT id, name, position FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Position)
	return c, wrapErr(err)
}

// GetForum loads a single forum.
func (q *Queries) GetForum(ctx context.Context, id uuid.UUID) (forum.Forum, error) {
	var f forum.Forum
	err := q.db.QueryRow(ctx, `
		SELECT id, category_id, name, description, position
		FROM forums WHERE id = $1`, id).
		Scan(&f.ID, &f.CategoryID, &f.Name, &f.Description, &f.Position)
	return f, wrapErr(err)
}

// CreateCategory inserts a category. Used by seeding and admin tooling.
func (q *Queries) CreateCategory(ctx context.Context, c forum.Category) (forum.Category, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := q.db.Exec(ctx, `INSERT INTO categories (id, name, position) VALUES ($1, $2, $3)`,
		c.ID, c.Name, c.Position)
	if err != nil {
		return forum.Category{}, wrapErr(err)
	}
	return c, nil
}

// CreateForum inserts a forum under a category.
func (q *Queries) CreateForum(ctx context.Context, f forum.Forum) (forum.Forum, error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO forums (id, category_id, name, description, position)
		VALUES ($1, $2, $3, $4, $5)`,
		f.ID, f.CategoryID, f.Name, f.Description, f.Position)
	if err != nil {
		return forum.Forum{}, wrapErr(err)
	}
	return f, nil
}
