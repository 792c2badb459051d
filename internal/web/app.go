package web

import (
	"encoding/xml"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/agora/internal/validator"
)

// App owns the router, the template renderer, and the error handler, and
// adapts HandlerFuncs to chi.
type App struct {
	mux          chi.Router
	log          *slog.Logger
	renderer     Renderer
	errorHandler ErrorHandler
}

// Option configures an App.
type Option func(*App)

// WithErrorHandler replaces the default error handler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(a *App) { a.errorHandler = h }
}

// NewApp builds an App around a fresh chi router.
func NewApp(log *slog.Logger, renderer Renderer, opts ...Option) *App {
	a := &App{
		mux:      chi.NewRouter(),
		log:      log,
		renderer: renderer,
	}
	a.errorHandler = a.defaultErrorHandler
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router returns the root router for route registration.
func (a *App) Router() Router {
	return &routerAdapter{router: a.mux, app: a}
}

// NotFound installs the handler invoked for unmatched paths. Root
// middleware still runs before it.
func (a *App) NotFound(h HandlerFunc) {
	a.mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		c := contextFrom(w, r, a)
		if err := h(c); err != nil {
			a.handleError(c, err)
		}
	})
}

// Register declares a handler's routes on the root router.
func (a *App) Register(handlers ...Handler) {
	r := a.Router()
	for _, h := range handlers {
		h.Routes(r)
	}
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *App) handleError(c *Context, err error) {
	if c.Response().Written() {
		c.Logger().ErrorContext(c.Context(), "error after response started", slog.Any("error", err))
		return
	}
	a.errorHandler(c, err)
}

// defaultErrorHandler maps errors to responses. Validation errors become
// 422, HTTPErrors keep their code (and may redirect HTML clients), and
// everything else is a 500 with the detail kept out of the response.
func (a *App) defaultErrorHandler(c *Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		if c.WantsXML() {
			_ = c.XML(http.StatusUnprocessableEntity, struct {
				XMLName xml.Name                    `xml:"errors"`
				Errors  []validator.ValidationError `xml:"error"`
			}{Errors: verrs})
			return
		}
		_ = c.Render(http.StatusUnprocessableEntity, "errors/validation", map[string]any{
			"Identity": c.Identity(),
			"Errors":   verrs,
		})
		return
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = ErrInternal("something went wrong", WithError(err))
	}
	if httpErr.RequestID == "" {
		httpErr.RequestID = c.RequestID()
	}

	if httpErr.Code >= http.StatusInternalServerError {
		c.Logger().ErrorContext(c.Context(), "request failed",
			slog.Int("status", httpErr.Code),
			slog.Any("error", err),
		)
	}

	if httpErr.RedirectTo != "" && !c.WantsXML() {
		_ = c.Redirect(http.StatusFound, httpErr.RedirectTo)
		return
	}
	if c.WantsXML() {
		_ = c.XML(httpErr.Code, struct {
			XMLName   xml.Name `xml:"error"`
			Status    int      `xml:"status"`
			Message   string   `xml:"message"`
			RequestID string   `xml:"request-id,omitempty"`
		}{Status: httpErr.Code, Message: httpErr.Message, RequestID: httpErr.RequestID})
		return
	}
	_ = c.Render(httpErr.Code, "errors/error", map[string]any{
		"Identity":  c.Identity(),
		"Status":    httpErr.Code,
		"Title":     httpErr.StatusText(),
		"Message":   httpErr.Message,
		"RequestID": httpErr.RequestID,
	})
}
