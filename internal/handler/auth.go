package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/agora/internal/forum"
	"github.com/dmitrymomot/agora/internal/repository"
	"github.com/dmitrymomot/agora/internal/requests"
	"github.com/dmitrymomot/agora/internal/session"
	"github.com/dmitrymomot/agora/internal/validator"
	"github.com/dmitrymomot/agora/internal/web"
)

// AuthStore is the user access the auth handler needs.
type AuthStore interface {
	GetUserByEmail(ctx context.Context, email string) (forum.User, error)
	CreateUser(ctx context.Context, u forum.User) (forum.User, error)
}

// AuthHandler serves login, logout, and signup.
type AuthHandler struct {
	store    AuthStore
	sessions *session.Manager
	headers  HeaderPicker
	urls     URLResolver
}

func NewAuthHandler(store AuthStore, sessions *session.Manager, headers HeaderPicker, urls URLResolver) *AuthHandler {
	return &AuthHandler{store: store, sessions: sessions, headers: headers, urls: urls}
}

func (h *AuthHandler) Routes(r web.Router) {
	r.GET("/login", h.showLogin)
	r.POST("/login", h.login)
	r.POST("/logout", h.logout)
	r.GET("/signup", h.showSignup)
	r.POST("/signup", h.signup)
}

func (h *AuthHandler) showLogin(c *web.Context) error {
	if c.Identity().IsLoggedIn() {
		return c.Redirect(http.StatusFound, "/")
	}
	return c.Render(http.StatusOK, "auth/login", viewData(c, h.headers, h.urls, nil))
}

func (h *AuthHandler) login(c *web.Context) error {
	var req requests.LoginRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	failed := func() error {
		return c.Render(http.StatusUnprocessableEntity, "auth/login", viewData(c, h.headers, h.urls, map[string]any{
			"Email": req.Email,
			"Flash": "Invalid email or password.",
		}))
	}

	user, err := h.store.GetUserByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return failed()
		}
		return web.ErrInternal("could not log in", web.WithError(err))
	}

	ok, err := user.PasswordMatches(req.Password)
	if err != nil {
		return web.ErrInternal("could not log in", web.WithError(err))
	}
	if !ok {
		return failed()
	}

	if err := h.sessions.Authenticate(c.Context(), c.Session(), user.ID); err != nil {
		return web.ErrInternal("could not log in", web.WithError(err))
	}

	c.Logger().InfoContext(c.Context(), "user logged in", slog.String("user_id", user.ID.String()))
	return c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandler) logout(c *web.Context) error {
	if sess := c.Session(); sess != nil {
		if err := h.sessions.Destroy(c.Context(), sess); err != nil && !errors.Is(err, session.ErrNotFound) {
			c.Logger().ErrorContext(c.Context(), "session destroy failed", slog.Any("error", err))
		}
		c.SetSession(nil)
	}
	c.SetIdentity(forum.Anonymous)
	h.sessions.ClearCookie(c.Response())
	return c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandler) showSignup(c *web.Context) error {
	if c.Identity().IsLoggedIn() {
		return c.Redirect(http.StatusFound, "/")
	}
	return c.Render(http.StatusOK, "auth/signup", viewData(c, h.headers, h.urls, nil))
}

func (h *AuthHandler) signup(c *web.Context) error {
	var req requests.SignupRequest
	if err := c.Bind(&req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		return c.Render(http.StatusUnprocessableEntity, "auth/signup", viewData(c, h.headers, h.urls, map[string]any{
			"DisplayName": req.DisplayName,
			"Email":       req.Email,
			"Errors":      verrs,
		}))
	}

	user := forum.User{Email: req.Email, DisplayName: req.DisplayName}
	if err := user.SetPassword(req.Password); err != nil {
		return web.ErrInternal("could not create account", web.WithError(err))
	}

	user, err := h.store.CreateUser(c.Context(), user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return c.Render(http.StatusUnprocessableEntity, "auth/signup", viewData(c, h.headers, h.urls, map[string]any{
				"DisplayName": req.DisplayName,
				"Email":       req.Email,
				"Flash":       "That email is already registered.",
			}))
		}
		return web.ErrInternal("could not create account", web.WithError(err))
	}

	if err := h.sessions.Authenticate(c.Context(), c.Session(), user.ID); err != nil {
		return web.ErrInternal("could not log in", web.WithError(err))
	}

	c.Logger().InfoContext(c.Context(), "user signed up", slog.String("user_id", user.ID.String()))
	return c.Redirect(http.StatusFound, "/")
}
