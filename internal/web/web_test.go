package web_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/agora/internal/logger"
	"github.com/dmitrymomot/agora/internal/validator"
	"github.com/dmitrymomot/agora/internal/web"
)

// stubRenderer records the template name instead of executing HTML.
type stubRenderer struct{}

func (stubRenderer) Render(w io.Writer, name string, data any) error {
	_, err := fmt.Fprintf(w, "template:%s", name)
	return err
}

func newApp(t *testing.T) *web.App {
	t.Helper()
	return web.NewApp(logger.NewNope(), stubRenderer{})
}

func get(app *web.App, target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func postForm(app *web.App, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func TestRouting(t *testing.T) {
	t.Parallel()

	app := newApp(t)
	app.Router().GET("/hello/{name}", func(c *web.Context) error {
		return c.String(http.StatusOK, "hi "+c.Param("name"))
	})

	rec := get(app, "/hello/world")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hi world", rec.Body.String())
}

func TestErrorHandling(t *testing.T) {
	t.Parallel()

	t.Run("http error renders error page", func(t *testing.T) {
		t.Parallel()
		app := newApp(t)
		app.Router().GET("/missing", func(c *web.Context) error {
			return web.ErrNotFound("no such thing")
		})

		rec := get(app, "/missing")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "template:errors/error", rec.Body.String())
	})

	t.Run("http error with redirect sends html clients away", func(t *testing.T) {
		t.Parallel()
		app := newApp(t)
		app.Router().GET("/private", func(c *web.Context) error {
			return web.ErrUnauthorized("log in", web.WithRedirect("/login"))
		})

		rec := get(app, "/private")
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("xml clients get the status code, not the redirect", func(t *testing.T) {
		t.Parallel()
		app := newApp(t)
		app.Router().GET("/private", func(c *web.Context) error {
			return web.ErrUnauthorized("log in", web.WithRedirect("/login"))
		})

		rec := get(app, "/private", "Accept", "application/xml")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "<error>")
	})

	t.Run("unknown error becomes 500 without detail leak", func(t *testing.T) {
		t.Parallel()
		app := newApp(t)
		app.Router().GET("/boom", func(c *web.Context) error {
			return fmt.Errorf("secret database password broke")
		})

		rec := get(app, "/boom")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret")
	})

	t.Run("validation errors render 422", func(t *testing.T) {
		t.Parallel()
		app := newApp(t)
		app.Router().GET("/form", func(c *web.Context) error {
			return validator.ValidationErrors{{Field: "title", Message: "is required"}}
		})

		rec := get(app, "/form")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "template:errors/validation", rec.Body.String())
	})
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	app := newApp(t)
	app.Router().GET("/panic", func(c *web.Context) error {
		panic("kaboom")
	}, web.Recover())

	rec := get(app, "/panic")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("generates an id", func(t *testing.T) {
		t.Parallel()
		app := newApp(t)
		var seen string
		app.Router().GET("/", func(c *web.Context) error {
			seen = c.RequestID()
			return c.NoContent(http.StatusNoContent)
		}, web.RequestID())

		rec := get(app, "/")
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})

	t.Run("keeps an upstream id", func(t *testing.T) {
		t.Parallel()
		app := newApp(t)
		app.Router().GET("/", func(c *web.Context) error {
			return c.NoContent(http.StatusNoContent)
		}, web.RequestID())

		rec := get(app, "/", "X-Request-ID", "upstream-123")
		assert.Equal(t, "upstream-123", rec.Header().Get("X-Request-ID"))
	})
}

func TestNegotiate(t *testing.T) {
	t.Parallel()

	type payload struct {
		Name string `xml:"name"`
	}

	app := newApp(t)
	app.Router().GET("/thing", func(c *web.Context) error {
		return c.Negotiate(http.StatusOK, "thing/show", nil, payload{Name: "x"})
	})

	t.Run("html by default", func(t *testing.T) {
		t.Parallel()
		rec := get(app, "/thing")
		assert.Equal(t, "template:thing/show", rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	})

	t.Run("xml on accept header", func(t *testing.T) {
		t.Parallel()
		rec := get(app, "/thing", "Accept", "application/xml")
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/xml")
		assert.Contains(t, rec.Body.String(), "<name>x</name>")
	})
}

func TestBind(t *testing.T) {
	t.Parallel()

	type input struct {
		Title   string `form:"title"   sanitize:"trim"  validate:"required;min:3;max:20"`
		Email   string `form:"email"   sanitize:"email" validate:"email"`
		Private bool   `form:"private"`
		Page    int    `form:"page"`
	}

	bindOn := func(t *testing.T, form url.Values) (input, error) {
		t.Helper()
		var got input
		var bindErr error
		app := newApp(t)
		app.Router().POST("/submit", func(c *web.Context) error {
			bindErr = c.Bind(&got)
			return c.NoContent(http.StatusNoContent)
		})
		postForm(app, "/submit", form)
		return got, bindErr
	}

	t.Run("binds and sanitizes", func(t *testing.T) {
		t.Parallel()
		got, err := bindOn(t, url.Values{
			"title":   {"  Hello world  "},
			"email":   {" User@Example.COM "},
			"private": {"on"},
			"page":    {"3"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Hello world", got.Title)
		assert.Equal(t, "user@example.com", got.Email)
		assert.True(t, got.Private)
		assert.Equal(t, 3, got.Page)
	})

	t.Run("unchecked checkbox is false", func(t *testing.T) {
		t.Parallel()
		got, err := bindOn(t, url.Values{"title": {"valid title"}})
		require.NoError(t, err)
		assert.False(t, got.Private)
	})

	t.Run("validation failures collect per field", func(t *testing.T) {
		t.Parallel()
		_, err := bindOn(t, url.Values{
			"title": {"ab"},
			"email": {"nope"},
		})
		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.True(t, verrs.Has("title"))
		assert.True(t, verrs.Has("email"))
	})

	t.Run("ignored extra fields", func(t *testing.T) {
		t.Parallel()
		got, err := bindOn(t, url.Values{
			"title": {"valid title"},
			"admin": {"true"},
		})
		require.NoError(t, err)
		assert.Equal(t, "valid title", got.Title)
	})
}
