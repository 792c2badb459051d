package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/agora/internal/forum"
	"github.com/dmitrymomot/agora/internal/repository"
	"github.com/dmitrymomot/agora/internal/views"
	"github.com/dmitrymomot/agora/internal/web"
)

// ForumStore is the query surface of the browse pages.
type ForumStore interface {
	ListCategories(ctx context.Context) ([]forum.Category, error)
	ListForums(ctx context.Context) ([]forum.Forum, error)
	GetForum(ctx context.Context, id uuid.UUID) (forum.Forum, error)
	ListTopics(ctx context.Context, forumID uuid.UUID, includePrivate bool, page int) ([]forum.Topic, error)
	CountTopics(ctx context.Context, forumID uuid.UUID, includePrivate bool) (int, error)
}

// ForumHandler serves the home page and forum topic listings.
type ForumHandler struct {
	store   ForumStore
	headers HeaderPicker
	urls    URLResolver
}

func NewForumHandler(store ForumStore, headers HeaderPicker, urls URLResolver) *ForumHandler {
	return &ForumHandler{store: store, headers: headers, urls: urls}
}

func (h *ForumHandler) Routes(r web.Router) {
	r.GET("/", h.home)
	r.GET("/forums/{id}", h.show)
}

// categoryView groups a category with its forums for the home page.
type categoryView struct {
	forum.Category
	Forums []forum.Forum
}

func (h *ForumHandler) home(c *web.Context) error {
	categories, err := h.store.ListCategories(c.Context())
	if err != nil {
		return web.ErrInternal("could not load forums", web.WithError(err))
	}
	forums, err := h.store.ListForums(c.Context())
	if err != nil {
		return web.ErrInternal("could not load forums", web.WithError(err))
	}

	grouped := make([]categoryView, 0, len(categories))
	for _, cat := range categories {
		cv := categoryView{Category: cat}
		for _, f := range forums {
			if f.CategoryID == cat.ID {
				cv.Forums = append(cv.Forums, f)
			}
		}
		grouped = append(grouped, cv)
	}

	return c.Negotiate(http.StatusOK, "home",
		viewData(c, h.headers, h.urls, map[string]any{"Categories": grouped}),
		views.ForumsXML{Categories: categories, Forums: forums},
	)
}

func (h *ForumHandler) show(c *web.Context) error {
	id, err := c.ParamUUID("id")
	if err != nil {
		return err
	}

	f, err := h.store.GetForum(c.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return web.ErrNotFound("no such forum")
		}
		return web.ErrInternal("could not load forum", web.WithError(err))
	}

	includePrivate := c.Identity().IsLoggedIn()
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	topics, err := h.store.ListTopics(c.Context(), f.ID, includePrivate, page)
	if err != nil {
		return web.ErrInternal("could not load topics", web.WithError(err))
	}
	total, err := h.store.CountTopics(c.Context(), f.ID, includePrivate)
	if err != nil {
		return web.ErrInternal("could not load topics", web.WithError(err))
	}

	pageCount := (total + repository.TopicsPerPage - 1) / repository.TopicsPerPage
	if pageCount < 1 {
		pageCount = 1
	}

	return c.Negotiate(http.StatusOK, "forums/show",
		viewData(c, h.headers, h.urls, map[string]any{
			"Forum":     f,
			"Topics":    topics,
			"Page":      page,
			"PageCount": pageCount,
			"PrevPage":  page - 1,
			"NextPage":  page + 1,
		}),
		views.TopicsXML{Topics: topics},
	)
}
