// Package handler contains the HTTP handlers. Each handler declares its own
// routes and depends on a small store interface covering exactly the
// queries it runs, so tests swap in fakes.
package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/agora/internal/forum"
	"github.com/dmitrymomot/agora/internal/repository"
	"github.com/dmitrymomot/agora/internal/web"
)

// HeaderPicker supplies the random banner rendered above every page.
type HeaderPicker interface {
	RandomHeader(ctx context.Context) (forum.Header, error)
}

// URLResolver maps an attachment key to its public URL.
type URLResolver interface {
	URL(key string) string
}

// NotFound handles unmatched paths. The pre-migration URL surface was
// wide, so browsers land on the topic list; XML clients get a plain 404.
func NotFound() web.HandlerFunc {
	return func(c *web.Context) error {
		return web.ErrNotFound("page not found", web.WithRedirect("/topics"))
	}
}

// banner is the layout's page-top image.
type banner struct {
	URL         string
	Description string
}

// viewData assembles the fields every page template expects, then merges in
// the page's own. A missing banner is fine; the layout skips it.
func viewData(c *web.Context, headers HeaderPicker, urls URLResolver, page map[string]any) map[string]any {
	data := map[string]any{
		"Identity": c.Identity(),
	}
	if headers != nil {
		h, err := headers.RandomHeader(c.Context())
		if err == nil {
			data["Header"] = banner{URL: urls.URL(h.AttachmentKey), Description: h.Description}
		} else if !errors.Is(err, repository.ErrNotFound) {
			c.Logger().WarnContext(c.Context(), "random header lookup failed", slog.Any("error", err))
		}
	}
	for k, v := range page {
		data[k] = v
	}
	return data
}
