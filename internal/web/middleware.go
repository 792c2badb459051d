package web

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/google/uuid"
)

// requestIDKey is the context key for the request ID.
type requestIDKey struct{}

// requestIDHeaders are checked in order for an upstream-assigned ID.
var requestIDHeaders = []string{"X-Request-ID", "X-Request-Id", "X-Correlation-ID"}

// RequestID assigns a unique ID to each request, preferring one supplied by
// an upstream proxy, and echoes it in the X-Request-ID response header.
func RequestID() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(c *Context) error {
			var reqID string
			for _, header := range requestIDHeaders {
				if v := c.Request().Header.Get(header); v != "" {
					reqID = v
					break
				}
			}
			if reqID == "" {
				reqID = uuid.NewString()
			}

			c.r = c.r.WithContext(context.WithValue(c.r.Context(), requestIDKey{}, reqID))
			c.Response().Header().Set("X-Request-ID", reqID)
			return next(c)
		}
	}
}

// RequestIDFrom extracts the request ID from a context, or "".
func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// RequestIDExtractor adds request_id to log entries made with the request
// context. Pass it to logger.New.
func RequestIDExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if v := RequestIDFrom(ctx); v != "" {
			return slog.String("request_id", v), true
		}
		return slog.Attr{}, false
	}
}

const recoverStackSize = 4096

// Recover converts panics into errors for the app's error handler, logging
// the panic with a stack trace.
func Recover() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(c *Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					stack := make([]byte, recoverStackSize)
					n := runtime.Stack(stack, false)
					c.Logger().ErrorContext(c.Context(), "panic recovered",
						slog.Any("panic", r),
						slog.String("stack", string(stack[:n])),
					)
					err = ErrInternal("something went wrong")
				}
			}()
			return next(c)
		}
	}
}

// RequestLogger logs one line per completed request with method, path,
// status, and duration.
func RequestLogger() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(c *Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status()
			if err != nil && !c.Response().Written() {
				if httpErr, ok := err.(*HTTPError); ok {
					status = httpErr.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			c.Logger().InfoContext(c.Context(), "request",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Request().URL.Path),
				slog.Int("status", status),
				slog.Int64("bytes", c.Response().Size()),
				slog.Duration("duration", time.Since(start)),
			)
			return err
		}
	}
}
