// Package graceful runs an http.Server that drains in-flight requests on
// context cancellation.
package graceful

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Server owns an http.Server and shuts it down when the run context ends.
type Server struct {
	srv     *http.Server
	log     *slog.Logger
	timeout time.Duration
}

func NewServer(log *slog.Logger, srv *http.Server, shutdownTimeout time.Duration) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{srv: srv, log: log, timeout: shutdownTimeout}
}

// ListenAndServe serves until ctx is canceled, then drains within the
// configured timeout. The listen error is returned if serving failed before
// shutdown was requested.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}

	serveErr := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", slog.String("addr", s.srv.Addr))
		serveErr <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.log.Error("http server failed", slog.Any("error", err))
		return err
	case <-ctx.Done():
	}

	s.log.Info("draining http server", slog.Duration("timeout", s.timeout))

	drainCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.srv.Shutdown(drainCtx); err != nil {
		s.log.Error("http server shutdown failed", slog.Any("error", err))
		return err
	}

	<-serveErr
	return nil
}
