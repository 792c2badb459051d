package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/agora/internal/forum"
	"github.com/dmitrymomot/agora/internal/repository"
	"github.com/dmitrymomot/agora/internal/requests"
	"github.com/dmitrymomot/agora/internal/validator"
	"github.com/dmitrymomot/agora/internal/views"
	"github.com/dmitrymomot/agora/internal/web"
)

// TopicStore is the query surface of the topic lifecycle.
type TopicStore interface {
	ListForums(ctx context.Context) ([]forum.Forum, error)
	GetForum(ctx context.Context, id uuid.UUID) (forum.Forum, error)
	GetCategory(ctx context.Context, id uuid.UUID) (forum.Category, error)
	ListAllTopics(ctx context.Context, includePrivate bool, page int) ([]forum.Topic, error)
	CountAllTopics(ctx context.Context, includePrivate bool) (int, error)
	GetTopic(ctx context.Context, id uuid.UUID) (forum.Topic, error)
	CreateTopicWithPost(ctx context.Context, t forum.Topic, body string) (forum.Topic, forum.Post, error)
	UpdateTopic(ctx context.Context, id uuid.UUID, title string, private bool) error
	DeleteTopic(ctx context.Context, id uuid.UUID) error
	IncrementHits(ctx context.Context, id uuid.UUID) (int, error)
	ListPosts(ctx context.Context, topicID uuid.UUID) ([]forum.Post, error)
	ListPosters(ctx context.Context, topicID uuid.UUID) ([]forum.User, error)
	Reply(ctx context.Context, p forum.Post) (forum.Post, error)
	DeletePost(ctx context.Context, id uuid.UUID) error
	GetPost(ctx context.Context, id uuid.UUID) (forum.Post, error)
}

// TopicHandler serves the topic lifecycle: the site-wide listing, show,
// create, edit, delete, and replies.
type TopicHandler struct {
	store   TopicStore
	headers HeaderPicker
	urls    URLResolver
}

func NewTopicHandler(store TopicStore, headers HeaderPicker, urls URLResolver) *TopicHandler {
	return &TopicHandler{store: store, headers: headers, urls: urls}
}

func (h *TopicHandler) Routes(r web.Router) {
	r.GET("/topics", h.list)
	r.GET("/topics/new", h.new, RequireUser())
	r.POST("/topics", h.create, RequireUser())
	r.GET("/topics/{id}", h.show)
	r.GET("/topics/{id}/edit", h.edit, RequireUser())

	// Browsers submit forms with POST; PUT and DELETE serve non-HTML
	// clients.
	r.POST("/topics/{id}", h.update, RequireUser())
	r.PUT("/topics/{id}", h.update, RequireUser())
	r.POST("/topics/{id}/delete", h.destroy, RequireUser())
	r.DELETE("/topics/{id}", h.destroy, RequireUser())

	r.POST("/topics/{id}/posts", h.reply, RequireUser())
	r.POST("/posts/{id}/delete", h.destroyPost, RequireUser())
	r.DELETE("/posts/{id}", h.destroyPost, RequireUser())

	// Pre-migration deep links still arrive at the old PHP path.
	r.GET("/viewtopic.php", h.legacyRedirect)
}

func (h *TopicHandler) list(c *web.Context) error {
	includePrivate := c.Identity().IsLoggedIn()
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	topics, err := h.store.ListAllTopics(c.Context(), includePrivate, page)
	if err != nil {
		return web.ErrInternal("could not load topics", web.WithError(err))
	}
	total, err := h.store.CountAllTopics(c.Context(), includePrivate)
	if err != nil {
		return web.ErrInternal("could not load topics", web.WithError(err))
	}

	pageCount := (total + repository.TopicsPerPage - 1) / repository.TopicsPerPage
	if pageCount < 1 {
		pageCount = 1
	}

	return c.Negotiate(http.StatusOK, "topics/index",
		viewData(c, h.headers, h.urls, map[string]any{
			"Topics":    topics,
			"Page":      page,
			"PageCount": pageCount,
			"PrevPage":  page - 1,
			"NextPage":  page + 1,
		}),
		views.TopicsXML{Topics: topics},
	)
}

func (h *TopicHandler) loadTopic(c *web.Context) (forum.Topic, error) {
	id, err := c.ParamUUID("id")
	if err != nil {
		return forum.Topic{}, err
	}
	t, err := h.store.GetTopic(c.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return forum.Topic{}, web.ErrNotFound("no such topic")
		}
		return forum.Topic{}, web.ErrInternal("could not load topic", web.WithError(err))
	}
	return t, nil
}

func (h *TopicHandler) show(c *web.Context) error {
	t, err := h.loadTopic(c)
	if err != nil {
		return err
	}

	// Private topics go to login rather than a bare 401, same as the
	// edit-protection redirect below.
	if !forum.CanView(c.Identity(), t) {
		return web.ErrUnauthorized("log in to view this topic", web.WithRedirect("/login"))
	}

	// A topic without a resolvable forum is as gone as a missing topic.
	f, err := h.store.GetForum(c.Context(), t.ForumID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return web.ErrNotFound("no such topic")
		}
		return web.ErrInternal("could not load forum", web.WithError(err))
	}
	cat, err := h.store.GetCategory(c.Context(), f.CategoryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return web.ErrNotFound("no such topic")
		}
		return web.ErrInternal("could not load category", web.WithError(err))
	}

	// Every successful view counts, including XML ones.
	hits, err := h.store.IncrementHits(c.Context(), t.ID)
	if err != nil {
		return web.ErrInternal("could not count the view", web.WithError(err))
	}
	t.Hits = hits

	posts, err := h.store.ListPosts(c.Context(), t.ID)
	if err != nil {
		return web.ErrInternal("could not load posts", web.WithError(err))
	}
	posters, err := h.store.ListPosters(c.Context(), t.ID)
	if err != nil {
		return web.ErrInternal("could not load posts", web.WithError(err))
	}

	return c.Negotiate(http.StatusOK, "topics/show",
		viewData(c, h.headers, h.urls, map[string]any{
			"Topic":    t,
			"Forum":    f,
			"Category": cat,
			"Posts":    posts,
			"Posters":  posters,
			"CanEdit":  forum.CanEdit(c.Identity(), t),
		}),
		views.TopicXML{Topic: t, Forum: f, Category: cat, Posts: posts, Posters: posters},
	)
}

// newForm loads the form's forum selector choices.
func (h *TopicHandler) newForm(c *web.Context, status int, page map[string]any) error {
	forums, err := h.store.ListForums(c.Context())
	if err != nil {
		return web.ErrInternal("could not load forums", web.WithError(err))
	}
	data := map[string]any{"Forums": forums}
	for k, v := range page {
		data[k] = v
	}
	return c.Render(status, "topics/new", viewData(c, h.headers, h.urls, data))
}

func (h *TopicHandler) new(c *web.Context) error {
	return h.newForm(c, http.StatusOK, map[string]any{
		"Selected": c.Query("forum"),
	})
}

func (h *TopicHandler) create(c *web.Context) error {
	var req requests.CreateTopicRequest
	if err := c.Bind(&req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		return h.newForm(c, http.StatusUnprocessableEntity, map[string]any{
			"Selected": req.ForumID,
			"Title":    req.Title,
			"Body":     req.Body,
			"Private":  req.Private,
			"Errors":   verrs,
		})
	}

	forumID, err := uuid.Parse(req.ForumID)
	if err != nil {
		return web.ErrBadRequest("bad forum id")
	}
	f, err := h.store.GetForum(c.Context(), forumID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return h.newForm(c, http.StatusUnprocessableEntity, map[string]any{
				"Selected": req.ForumID,
				"Title":    req.Title,
				"Body":     req.Body,
				"Private":  req.Private,
				"Errors":   validator.ValidationErrors{{Field: "forum_id", Message: "is unknown"}},
			})
		}
		return web.ErrInternal("could not load forum", web.WithError(err))
	}

	t, _, err := h.store.CreateTopicWithPost(c.Context(), forum.Topic{
		ForumID: f.ID,
		UserID:  c.Identity().ID,
		Title:   req.Title,
		Private: req.Private,
	}, req.Body)
	if err != nil {
		return web.ErrInternal("could not create topic", web.WithError(err))
	}

	return c.Redirect(http.StatusFound, "/topics/"+t.ID.String())
}

func (h *TopicHandler) edit(c *web.Context) error {
	t, err := h.loadTopic(c)
	if err != nil {
		return err
	}
	// Non-owners get bounced back to the topic rather than an error page.
	if !forum.CanEdit(c.Identity(), t) {
		return web.ErrForbidden("you cannot edit this topic", web.WithRedirect("/topics/"+t.ID.String()))
	}
	return c.Render(http.StatusOK, "topics/edit", viewData(c, h.headers, h.urls, map[string]any{
		"Topic": t,
	}))
}

func (h *TopicHandler) update(c *web.Context) error {
	t, err := h.loadTopic(c)
	if err != nil {
		return err
	}
	if !forum.CanEdit(c.Identity(), t) {
		return web.ErrForbidden("you cannot edit this topic", web.WithRedirect("/topics/"+t.ID.String()))
	}

	var req requests.UpdateTopicRequest
	if err := c.Bind(&req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		return c.Render(http.StatusUnprocessableEntity, "topics/edit", viewData(c, h.headers, h.urls, map[string]any{
			"Topic":  t,
			"Errors": verrs,
		}))
	}

	if err := h.store.UpdateTopic(c.Context(), t.ID, req.Title, req.Private); err != nil {
		return web.ErrInternal("could not update topic", web.WithError(err))
	}
	return c.Redirect(http.StatusFound, "/topics/"+t.ID.String())
}

func (h *TopicHandler) destroy(c *web.Context) error {
	t, err := h.loadTopic(c)
	if err != nil {
		return err
	}
	if !forum.CanEdit(c.Identity(), t) {
		return web.ErrForbidden("you cannot delete this topic", web.WithRedirect("/topics/"+t.ID.String()))
	}
	if err := h.store.DeleteTopic(c.Context(), t.ID); err != nil {
		return web.ErrInternal("could not delete topic", web.WithError(err))
	}
	return c.Redirect(http.StatusFound, "/topics")
}

func (h *TopicHandler) reply(c *web.Context) error {
	t, err := h.loadTopic(c)
	if err != nil {
		return err
	}
	if !forum.CanView(c.Identity(), t) {
		return web.ErrUnauthorized("log in to view this topic", web.WithRedirect("/login"))
	}

	var req requests.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	if _, err := h.store.Reply(c.Context(), forum.Post{
		TopicID: t.ID,
		UserID:  c.Identity().ID,
		Body:    req.Body,
	}); err != nil {
		return web.ErrInternal("could not post reply", web.WithError(err))
	}
	return c.Redirect(http.StatusFound, "/topics/"+t.ID.String())
}

func (h *TopicHandler) destroyPost(c *web.Context) error {
	id, err := c.ParamUUID("id")
	if err != nil {
		return err
	}
	p, err := h.store.GetPost(c.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return web.ErrNotFound("no such post")
		}
		return web.ErrInternal("could not load post", web.WithError(err))
	}
	if !forum.CanEdit(c.Identity(), p) {
		return web.ErrForbidden("you cannot delete this post", web.WithRedirect("/topics/"+p.TopicID.String()))
	}
	if err := h.store.DeletePost(c.Context(), p.ID); err != nil {
		return web.ErrInternal("could not delete post", web.WithError(err))
	}
	return c.Redirect(http.StatusFound, "/topics/"+p.TopicID.String())
}

// legacyRedirect maps /viewtopic.php?t=<id> to the topic's current URL with
// a permanent redirect so old bookmarks and crawlers update.
func (h *TopicHandler) legacyRedirect(c *web.Context) error {
	id, err := uuid.Parse(c.Query("t"))
	if err != nil {
		return web.ErrNotFound("no such topic")
	}
	return c.Redirect(http.StatusMovedPermanently, "/topics/"+id.String())
}
