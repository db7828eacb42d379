package kit

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const defaultShutdownTimeout = 10 * time.Second

type serverOptions struct {
	shutdownTimeout time.Duration
	onShutdown      []func()
}

type ServerOption func(*serverOptions)

func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(o *serverOptions) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// OnShutdown registers fn to run when graceful shutdown begins, before
// in-flight requests are drained. Long-lived handlers such as event streams
// use it to end their responses.
func OnShutdown(fn func()) ServerOption {
	return func(o *serverOptions) { o.onShutdown = append(o.onShutdown, fn) }
}

// RunHTTPServer serves until SIGINT or SIGTERM and then shuts down gracefully.
func RunHTTPServer(addr string, h http.Handler, log *zap.Logger, opts ...ServerOption) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return Serve(ctx, addr, h, log, opts...)
}

// Serve runs the server until ctx is done or the listener fails.
func Serve(ctx context.Context, addr string, h http.Handler, log *zap.Logger, opts ...ServerOption) error {
	o := serverOptions{shutdownTimeout: defaultShutdownTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	for _, fn := range o.onShutdown {
		srv.RegisterOnShutdown(fn)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal", zap.Error(context.Cause(ctx)))
	case err := <-errCh:
		return err
	}

	sctx, cancel := context.WithTimeout(context.Background(), o.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
