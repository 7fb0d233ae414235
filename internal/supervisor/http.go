package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Server is the part of *http.Server the service drives.
type Server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService runs a server until its context ends, then shuts it down
// gracefully.
type HTTPService struct {
	server          Server
	shutdownTimeout time.Duration
}

func NewHTTPService(server Server, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

func (h *HTTPService) String() string { return "http-server" }

func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}
