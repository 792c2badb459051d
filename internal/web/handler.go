// Package web is a thin layer over chi: handlers receive a Context and
// return an error, middleware wraps HandlerFuncs, and a single error
// handler turns returned errors into responses.
package web

// Handler declares routes on a router.
type Handler interface {
	Routes(r Router)
}

// HandlerFunc is the signature for route handlers. Returning a non-nil
// error hands control to the app's error handler.
type HandlerFunc func(c *Context) error

// Middleware wraps a HandlerFunc to add cross-cutting concerns. It can
// inspect the request, short-circuit, or wrap the response.
type Middleware func(next HandlerFunc) HandlerFunc

// ErrorHandler renders errors returned from handlers.
type ErrorHandler func(c *Context, err error)
