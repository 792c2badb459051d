package web

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/agora/internal/forum"
	"github.com/dmitrymomot/agora/internal/session"
)

// Renderer renders a named HTML template to w.
type Renderer interface {
	Render(w io.Writer, name string, data any) error
}

// Context carries everything a handler needs for one request: the wrapped
// response writer, the request, the resolved session and identity, the
// logger, and the template renderer.
type Context struct {
	w        *ResponseWriter
	r        *http.Request
	log      *slog.Logger
	renderer Renderer
	sess     *session.Session
	ident    forum.Identity
}

func newContext(w http.ResponseWriter, r *http.Request, log *slog.Logger, renderer Renderer) *Context {
	rw, ok := w.(*ResponseWriter)
	if !ok {
		rw = NewResponseWriter(w)
	}
	return &Context{w: rw, r: r, log: log, renderer: renderer}
}

type contextKey struct{}

// contextFrom reuses the Context created earlier in the middleware chain so
// session and identity survive into the handler. The first caller creates
// it and threads it through the request context.
func contextFrom(w http.ResponseWriter, r *http.Request, a *App) *Context {
	if c, ok := r.Context().Value(contextKey{}).(*Context); ok {
		// Later chain links may carry an updated request (chi attaches
		// route params this way).
		c.r = r
		return c
	}
	c := newContext(w, r, a.log, a.renderer)
	c.r = r.WithContext(context.WithValue(r.Context(), contextKey{}, c))
	return c
}

// Request returns the underlying request.
func (c *Context) Request() *http.Request { return c.r }

// Response returns the wrapped response writer.
func (c *Context) Response() *ResponseWriter { return c.w }

// Context returns the request context.
func (c *Context) Context() context.Context { return c.r.Context() }

// Logger returns the request-scoped logger.
func (c *Context) Logger() *slog.Logger { return c.log }

// RequestID returns the tracking ID assigned by the RequestID middleware.
func (c *Context) RequestID() string {
	return RequestIDFrom(c.r.Context())
}

// Param returns a URL path parameter.
func (c *Context) Param(name string) string {
	return chi.URLParam(c.r, name)
}

// ParamUUID parses a URL path parameter as a UUID.
func (c *Context) ParamUUID(name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, ErrNotFound("page not found", WithError(err))
	}
	return id, nil
}

// Query returns a query-string parameter.
func (c *Context) Query(name string) string {
	return c.r.URL.Query().Get(name)
}

// QueryInt returns a query-string parameter as an int, or def when absent
// or malformed.
func (c *Context) QueryInt(name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// FormValue returns a form field from the request body.
func (c *Context) FormValue(name string) string {
	return c.r.PostFormValue(name)
}

// FormFile returns an uploaded file from a multipart form.
func (c *Context) FormFile(name string) (*multipart.FileHeader, error) {
	if err := c.r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, ErrBadRequest("invalid multipart form", WithError(err))
	}
	if c.r.MultipartForm == nil {
		return nil, ErrBadRequest("expected multipart form")
	}
	files := c.r.MultipartForm.File[name]
	if len(files) == 0 {
		return nil, nil
	}
	return files[0], nil
}

// Session returns the current session, or nil when none is loaded.
func (c *Context) Session() *session.Session { return c.sess }

// SetSession attaches a session to the context.
func (c *Context) SetSession(s *session.Session) { c.sess = s }

// Identity returns the resolved caller identity. The zero value means
// anonymous.
func (c *Context) Identity() forum.Identity { return c.ident }

// SetIdentity attaches the resolved identity.
func (c *Context) SetIdentity(ident forum.Identity) { c.ident = ident }

// Redirect sends an HTTP redirect.
func (c *Context) Redirect(code int, url string) error {
	http.Redirect(c.w, c.r, url, code)
	return nil
}

// NoContent sends a header-only response.
func (c *Context) NoContent(code int) error {
	c.w.WriteHeader(code)
	return nil
}

// String sends a plain-text response.
func (c *Context) String(code int, s string) error {
	c.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.w.WriteHeader(code)
	_, err := io.WriteString(c.w, s)
	return err
}

// JSON sends a JSON response.
func (c *Context) JSON(code int, v any) error {
	c.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	c.w.WriteHeader(code)
	return json.NewEncoder(c.w).Encode(v)
}

// XML sends an XML response with the standard XML header.
func (c *Context) XML(code int, v any) error {
	c.w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	c.w.WriteHeader(code)
	if _, err := io.WriteString(c.w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(c.w)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// Render sends the named HTML template.
func (c *Context) Render(code int, name string, data any) error {
	c.w.Header().Set("Content-Type", "text/html; charset=utf-8")
	c.w.WriteHeader(code)
	return c.renderer.Render(c.w, name, data)
}

// WantsXML reports whether the client asked for XML over HTML via the
// Accept header.
func (c *Context) WantsXML() bool {
	accept := c.r.Header.Get("Accept")
	return strings.Contains(accept, "application/xml") || strings.Contains(accept, "text/xml")
}

// Negotiate renders the named template for HTML clients and encodes data as
// XML for clients that prefer it.
func (c *Context) Negotiate(code int, name string, data any, xmlData any) error {
	if c.WantsXML() {
		return c.XML(code, xmlData)
	}
	return c.Render(code, name, data)
}

const maxMultipartMemory = 10 << 20 // bytes held in memory before spilling to disk
