package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/agora/internal/forum"
	"github.com/dmitrymomot/agora/internal/session"
	"github.com/dmitrymomot/agora/internal/web"
)

// UserLoader loads users for identity resolution.
type UserLoader interface {
	GetUser(ctx context.Context, id uuid.UUID) (forum.User, error)
}

// Sessions loads the caller's session (creating one on first visit),
// resolves the identity from it, schedules the cookie for the response, and
// persists session changes after the handler runs.
func Sessions(m *session.Manager, users UserLoader) web.Middleware {
	return func(next web.HandlerFunc) web.HandlerFunc {
		return func(c *web.Context) error {
			ctx := c.Context()

			sess, err := m.Load(ctx, c.Request())
			if err != nil && !errors.Is(err, session.ErrNotFound) && !errors.Is(err, session.ErrExpired) {
				c.Logger().ErrorContext(ctx, "session load failed", slog.Any("error", err))
			}
			if sess == nil {
				sess, err = m.Create(ctx, c.Request())
				if err != nil {
					return web.ErrInternal("could not start a session", web.WithError(err))
				}
			}
			c.SetSession(sess)

			if sess.UserID != nil {
				u, err := users.GetUser(ctx, *sess.UserID)
				if err == nil {
					c.SetIdentity(forum.IdentityOf(u))
				} else {
					c.Logger().WarnContext(ctx, "session references unknown user",
						slog.String("user_id", sess.UserID.String()),
						slog.Any("error", err),
					)
				}
			}

			// The cookie (and the current token, which login rotates) goes
			// out with the first response byte.
			c.Response().OnBeforeWrite(func() {
				if s := c.Session(); s != nil {
					m.WriteCookie(c.Response(), s)
				}
			})

			handlerErr := next(c)

			if s := c.Session(); s != nil {
				if err := m.Save(ctx, s); err != nil && !errors.Is(err, session.ErrNotFound) {
					c.Logger().ErrorContext(ctx, "session save failed", slog.Any("error", err))
				}
			}
			return handlerErr
		}
	}
}

// RequireUser sends anonymous callers to the login page.
func RequireUser() web.Middleware {
	return requireUser("/login")
}

// RequireUserAt sends anonymous callers to target instead of the login
// page.
func RequireUserAt(target string) web.Middleware {
	return requireUser(target)
}

func requireUser(target string) web.Middleware {
	return func(next web.HandlerFunc) web.HandlerFunc {
		return func(c *web.Context) error {
			if c.Identity().IsAnonymous() {
				return web.ErrUnauthorized("log in to continue", web.WithRedirect(target))
			}
			return next(c)
		}
	}
}

// RequireAdmin rejects everyone but administrators.
func RequireAdmin() web.Middleware {
	return func(next web.HandlerFunc) web.HandlerFunc {
		return func(c *web.Context) error {
			if !c.Identity().Admin {
				return web.ErrForbidden("administrators only", web.WithRedirect("/"))
			}
			return next(c)
		}
	}
}
