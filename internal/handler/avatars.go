package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/agora/internal/attachment"
	"github.com/dmitrymomot/agora/internal/forum"
	"github.com/dmitrymomot/agora/internal/repository"
	"github.com/dmitrymomot/agora/internal/validator"
	"github.com/dmitrymomot/agora/internal/web"
)

// MaxAvatarSize caps avatar uploads at 20 KB.
const MaxAvatarSize = 20 << 10

// AvatarStore is the query surface of the avatar page.
type AvatarStore interface {
	GetAvatarByUser(ctx context.Context, userID uuid.UUID) (forum.Avatar, error)
	ReplaceAvatar(ctx context.Context, a forum.Avatar) (forum.Avatar, *forum.Avatar, error)
	GetAvatar(ctx context.Context, id uuid.UUID) (forum.Avatar, error)
	DeleteAvatar(ctx context.Context, id uuid.UUID) error
}

// AvatarHandler lets a user manage their single avatar image.
type AvatarHandler struct {
	store   AvatarStore
	files   attachment.Store
	headers HeaderPicker
}

func NewAvatarHandler(store AvatarStore, files attachment.Store, headers HeaderPicker) *AvatarHandler {
	return &AvatarHandler{store: store, files: files, headers: headers}
}

func (h *AvatarHandler) Routes(r web.Router) {
	r.Group(func(r web.Router) {
		r.Use(RequireUser())
		r.GET("/avatar", h.show)
		r.POST("/avatar", h.upload)
		r.POST("/avatar/delete", h.destroy)
	})
}

func (h *AvatarHandler) page(c *web.Context, status int, errs validator.ValidationErrors) error {
	data := map[string]any{}
	if len(errs) > 0 {
		data["Errors"] = errs
	}
	a, err := h.store.GetAvatarByUser(c.Context(), c.Identity().ID)
	switch {
	case err == nil:
		data["Avatar"] = a
		data["URL"] = h.files.URL(a.AttachmentKey)
	case !errors.Is(err, repository.ErrNotFound):
		return web.ErrInternal("could not load avatar", web.WithError(err))
	}
	return c.Render(status, "avatars/edit", viewData(c, h.headers, h.files, data))
}

func (h *AvatarHandler) show(c *web.Context) error {
	return h.page(c, http.StatusOK, nil)
}

func (h *AvatarHandler) upload(c *web.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return err
	}
	if file == nil {
		return h.page(c, http.StatusUnprocessableEntity,
			validator.ValidationErrors{{Field: "image", Message: "is required"}})
	}

	info, err := attachment.PutFile(c.Context(), h.files, file,
		attachment.WithPrefix("avatars"),
		attachment.WithValidation(
			attachment.NotEmpty(),
			attachment.MaxSize(MaxAvatarSize),
			attachment.ImageOnly(),
		),
	)
	if err != nil {
		var fileErr *attachment.FileValidationError
		if errors.As(err, &fileErr) {
			return h.page(c, http.StatusUnprocessableEntity,
				validator.ValidationErrors{{Field: "image", Message: fileErr.Message}})
		}
		return web.ErrInternal("could not store avatar", web.WithError(err))
	}

	_, removed, err := h.store.ReplaceAvatar(c.Context(), forum.Avatar{
		UserID:        c.Identity().ID,
		Filename:      info.Filename,
		AttachmentKey: info.Key,
		ContentType:   info.ContentType,
		Size:          info.Size,
	})
	if err != nil {
		if delErr := h.files.Delete(c.Context(), info.Key); delErr != nil {
			c.Logger().ErrorContext(c.Context(), "orphan file cleanup failed",
				slog.String("key", info.Key), slog.Any("error", delErr))
		}
		return web.ErrInternal("could not save avatar", web.WithError(err))
	}
	if removed != nil {
		if err := h.files.Delete(c.Context(), removed.AttachmentKey); err != nil {
			c.Logger().ErrorContext(c.Context(), "old avatar delete failed",
				slog.String("key", removed.AttachmentKey), slog.Any("error", err))
		}
	}

	return c.Redirect(http.StatusFound, "/avatar")
}

func (h *AvatarHandler) destroy(c *web.Context) error {
	a, err := h.store.GetAvatarByUser(c.Context(), c.Identity().ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.Redirect(http.StatusFound, "/avatar")
		}
		return web.ErrInternal("could not load avatar", web.WithError(err))
	}
	if err := h.store.DeleteAvatar(c.Context(), a.ID); err != nil {
		return web.ErrInternal("could not delete avatar", web.WithError(err))
	}
	if err := h.files.Delete(c.Context(), a.AttachmentKey); err != nil {
		c.Logger().ErrorContext(c.Context(), "avatar file delete failed",
			slog.String("key", a.AttachmentKey), slog.Any("error", err))
	}
	return c.Redirect(http.StatusFound, "/avatar")
}
