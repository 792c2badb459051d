package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/dmitrymomot/agora/internal/attachment"
	"github.com/dmitrymomot/agora/internal/forum"
	"github.com/dmitrymomot/agora/internal/repository"
	"github.com/dmitrymomot/agora/internal/requests"
	"github.com/dmitrymomot/agora/internal/validator"
	"github.com/dmitrymomot/agora/internal/views"
	"github.com/dmitrymomot/agora/internal/web"
)

// MaxHeaderImageSize caps header uploads.
const MaxHeaderImageSize = 2 << 20

// HeaderStore is the query surface of the header pages.
type HeaderStore interface {
	ListHeaders(ctx context.Context) ([]forum.Header, error)
	GetHeader(ctx context.Context, id uuid.UUID) (forum.Header, error)
	RandomHeader(ctx context.Context) (forum.Header, error)
	CreateHeader(ctx context.Context, h forum.Header) (forum.Header, error)
	UpdateHeader(ctx context.Context, id uuid.UUID, description string) error
	DeleteHeader(ctx context.Context, id uuid.UUID) error
	VoteUp(ctx context.Context, id uuid.UUID) (int, error)
	VoteDown(ctx context.Context, id uuid.UUID) (int, error)
}

// HeaderHandler serves the votable page-header gallery.
type HeaderHandler struct {
	store HeaderStore
	files attachment.Store
}

func NewHeaderHandler(store HeaderStore, files attachment.Store) *HeaderHandler {
	return &HeaderHandler{store: store, files: files}
}

func (h *HeaderHandler) Routes(r web.Router) {
	r.GET("/headers", h.index)
	r.GET("/headers/{id}", h.show)
	// Unlike topics, anonymous callers are sent home rather than to the
	// login page.
	gate := RequireUserAt("/")

	r.GET("/headers/new", h.new, gate)
	r.POST("/headers", h.create, gate)
	r.GET("/headers/{id}/edit", h.edit, gate)

	// Browsers submit forms with POST; PUT and DELETE serve non-HTML
	// clients.
	r.POST("/headers/{id}", h.update, gate)
	r.PUT("/headers/{id}", h.update, gate)
	r.POST("/headers/{id}/delete", h.destroy, gate)
	r.DELETE("/headers/{id}", h.destroy, gate)
	r.POST("/headers/{id}/vote_up", h.voteUp, gate)
	r.PUT("/headers/{id}/vote_up", h.voteUp, gate)
	r.POST("/headers/{id}/vote_down", h.voteDown, gate)
	r.PUT("/headers/{id}/vote_down", h.voteDown, gate)
}

// headerView pairs a header with its public image URL for templates.
type headerView struct {
	Header forum.Header
	URL    string
}

func (h *HeaderHandler) index(c *web.Context) error {
	headers, err := h.store.ListHeaders(c.Context())
	if err != nil {
		return web.ErrInternal("could not load headers", web.WithError(err))
	}

	cards := make([]headerView, 0, len(headers))
	for _, hd := range headers {
		cards = append(cards, headerView{Header: hd, URL: h.files.URL(hd.AttachmentKey)})
	}

	return c.Negotiate(http.StatusOK, "headers/index",
		viewData(c, h.store, h.files, map[string]any{"Headers": cards}),
		views.HeadersXML{Headers: headers},
	)
}

func (h *HeaderHandler) loadHeader(c *web.Context) (forum.Header, error) {
	id, err := c.ParamUUID("id")
	if err != nil {
		return forum.Header{}, err
	}
	hd, err := h.store.GetHeader(c.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return forum.Header{}, web.ErrNotFound("no such header")
		}
		return forum.Header{}, web.ErrInternal("could not load header", web.WithError(err))
	}
	return hd, nil
}

func (h *HeaderHandler) show(c *web.Context) error {
	hd, err := h.loadHeader(c)
	if err != nil {
		return err
	}
	url := h.files.URL(hd.AttachmentKey)
	return c.Negotiate(http.StatusOK, "headers/show",
		viewData(c, h.store, h.files, map[string]any{
			"Header":  hd,
			"URL":     url,
			"CanEdit": forum.CanEdit(c.Identity(), hd),
		}),
		views.HeaderXML{Header: hd, URL: url},
	)
}

func (h *HeaderHandler) new(c *web.Context) error {
	return c.Render(http.StatusOK, "headers/new", viewData(c, h.store, h.files, nil))
}

func (h *HeaderHandler) create(c *web.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return err
	}

	var req requests.CreateHeaderRequest
	if err := c.Bind(&req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		return c.Render(http.StatusUnprocessableEntity, "headers/new", viewData(c, h.store, h.files, map[string]any{
			"Description": req.Description,
			"Errors":      verrs,
		}))
	}
	if file == nil {
		return c.Render(http.StatusUnprocessableEntity, "headers/new", viewData(c, h.store, h.files, map[string]any{
			"Description": req.Description,
			"Errors":      validator.ValidationErrors{{Field: "image", Message: "is required"}},
		}))
	}

	info, err := attachment.PutFile(c.Context(), h.files, file,
		attachment.WithPrefix("headers"),
		attachment.WithValidation(
			attachment.NotEmpty(),
			attachment.MaxSize(MaxHeaderImageSize),
			attachment.ImageOnly(),
		),
	)
	if err != nil {
		var fileErr *attachment.FileValidationError
		if errors.As(err, &fileErr) {
			return c.Render(http.StatusUnprocessableEntity, "headers/new", viewData(c, h.store, h.files, map[string]any{
				"Description": req.Description,
				"Errors":      validator.ValidationErrors{{Field: "image", Message: fileErr.Message}},
			}))
		}
		return web.ErrInternal("could not store image", web.WithError(err))
	}

	hd, err := h.store.CreateHeader(c.Context(), forum.Header{
		UserID:        c.Identity().ID,
		Description:   req.Description,
		Filename:      info.Filename,
		AttachmentKey: info.Key,
		ContentType:   info.ContentType,
		Size:          info.Size,
	})
	if err != nil {
		// The row failed, so the stored file is an orphan.
		if delErr := h.files.Delete(c.Context(), info.Key); delErr != nil {
			c.Logger().ErrorContext(c.Context(), "orphan file cleanup failed",
				slog.String("key", info.Key), slog.Any("error", delErr))
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return c.Render(http.StatusUnprocessableEntity, "headers/new", viewData(c, h.store, h.files, map[string]any{
				"Description": req.Description,
				"Errors":      validator.ValidationErrors{{Field: "image", Message: "has already been uploaded"}},
			}))
		}
		return web.ErrInternal("could not save header", web.WithError(err))
	}

	return c.Redirect(http.StatusFound, "/headers/"+hd.ID.String())
}

func (h *HeaderHandler) edit(c *web.Context) error {
	hd, err := h.loadHeader(c)
	if err != nil {
		return err
	}
	if !forum.CanEdit(c.Identity(), hd) {
		return web.ErrForbidden("you cannot edit this header", web.WithRedirect("/"))
	}
	return c.Render(http.StatusOK, "headers/edit", viewData(c, h.store, h.files, map[string]any{
		"Header": hd,
		"URL":    h.files.URL(hd.AttachmentKey),
	}))
}

func (h *HeaderHandler) update(c *web.Context) error {
	hd, err := h.loadHeader(c)
	if err != nil {
		return err
	}
	if !forum.CanEdit(c.Identity(), hd) {
		return web.ErrForbidden("you cannot edit this header", web.WithRedirect("/"))
	}

	var req requests.UpdateHeaderRequest
	if err := c.Bind(&req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		return c.Render(http.StatusUnprocessableEntity, "headers/edit", viewData(c, h.store, h.files, map[string]any{
			"Header": hd,
			"URL":    h.files.URL(hd.AttachmentKey),
			"Errors": verrs,
		}))
	}

	if err := h.store.UpdateHeader(c.Context(), hd.ID, req.Description); err != nil {
		return web.ErrInternal("could not update header", web.WithError(err))
	}
	return c.Redirect(http.StatusFound, "/headers/"+hd.ID.String())
}

func (h *HeaderHandler) destroy(c *web.Context) error {
	hd, err := h.loadHeader(c)
	if err != nil {
		return err
	}
	if !forum.CanEdit(c.Identity(), hd) {
		return web.ErrForbidden("you cannot delete this header", web.WithRedirect("/"))
	}

	if err := h.store.DeleteHeader(c.Context(), hd.ID); err != nil {
		return web.ErrInternal("could not delete header", web.WithError(err))
	}
	if err := h.files.Delete(c.Context(), hd.AttachmentKey); err != nil {
		c.Logger().ErrorContext(c.Context(), "header file delete failed",
			slog.String("key", hd.AttachmentKey), slog.Any("error", err))
	}
	return c.Redirect(http.StatusFound, "/headers")
}

// voted answers a vote. HTML clients go back to the gallery; XML clients
// get the updated count. X-Votes carries the count either way.
func (h *HeaderHandler) voted(c *web.Context, id uuid.UUID, votes int) error {
	c.Response().Header().Set("X-Votes", strconv.Itoa(votes))
	if c.WantsXML() {
		return c.XML(http.StatusOK, views.VotesXML{ID: id, Votes: votes})
	}
	return c.Redirect(http.StatusFound, "/headers")
}

func (h *HeaderHandler) voteUp(c *web.Context) error {
	hd, err := h.loadHeader(c)
	if err != nil {
		return err
	}
	votes, err := h.store.VoteUp(c.Context(), hd.ID)
	if err != nil {
		return web.ErrInternal("could not record vote", web.WithError(err))
	}
	return h.voted(c, hd.ID, votes)
}

func (h *HeaderHandler) voteDown(c *web.Context) error {
	hd, err := h.loadHeader(c)
	if err != nil {
		return err
	}
	votes, err := h.store.VoteDown(c.Context(), hd.ID)
	if err != nil {
		return web.ErrInternal("could not record vote", web.WithError(err))
	}
	return h.voted(c, hd.ID, votes)
}
