package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	defaultShutdownTimeout   = 10 * time.Second
	defaultReadTimeout       = 10 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultMaxHeaderBytes    = 1 << 20
)

// RunConfig holds configuration for running the HTTP server.
type RunConfig struct {
	Handler         http.Handler
	Address         string
	Logger          *slog.Logger
	ShutdownTimeout time.Duration
	ShutdownHooks   []func(context.Context) error
	BaseCtx         context.Context
}

func (cfg *RunConfig) fillDefaults() {
	if cfg.Address == "" {
		cfg.Address = ":8080"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.BaseCtx == nil {
		cfg.BaseCtx = context.Background()
	}
}

// Run serves cfg.Handler until SIGINT/SIGTERM or a listener error, then
// drains in-flight requests and runs the shutdown hooks in registration
// order. It returns whatever the serve loop or the drain produced.
func Run(cfg RunConfig) error {
	cfg.fillDefaults()

	server := &http.Server{
		Addr:              cfg.Address,
		Handler:           cfg.Handler,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		MaxHeaderBytes:    defaultMaxHeaderBytes,
	}

	ctx, cancel := signal.NotifyContext(cfg.BaseCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Listen first so the logged address reflects an ephemeral port.
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		cfg.Logger.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return drain(server, cfg)
}

// drain stops accepting requests, waits out in-flight ones, and then
// releases dependencies via the hooks.
func drain(server *http.Server, cfg RunConfig) error {
	cfg.Logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	errs := []error{server.Shutdown(ctx)}
	for _, hook := range cfg.ShutdownHooks {
		if err := hook(ctx); err != nil {
			errs = append(errs, err)
			cfg.Logger.Error("shutdown hook failed", slog.Any("error", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		cfg.Logger.Error("shutdown completed with errors")
		return err
	}
	cfg.Logger.Info("shutdown completed")
	return nil
}
