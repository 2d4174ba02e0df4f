// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"syscall"

	"github.com/thejerf/suture/v4"

	"github.com/fufel/trailmap/internal/config"
	"github.com/fufel/trailmap/internal/logging"
)

// Server runs the HTTP listener as a supervised service. When the
// configured port is taken and fallback is enabled, successive ports are
// tried; any other bind failure, or exhausting the attempts, terminates the
// supervision tree (the service does not start, it does not crash-loop).
type Server struct {
	cfg      config.ServerConfig
	handler  http.Handler
	onListen func(port int)
}

// NewServer creates the HTTP server service. onListen, if non-nil, receives
// the actually bound port.
func NewServer(cfg config.ServerConfig, handler http.Handler, onListen func(port int)) *Server {
	return &Server{cfg: cfg, handler: handler, onListen: onListen}
}

// Serve implements suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	ln, port, err := s.listen()
	if err != nil {
		logging.Error().Err(err).Msg("failed to bind HTTP listener")
		return fmt.Errorf("bind listener: %w: %w", err, suture.ErrTerminateSupervisorTree)
	}

	if s.onListen != nil {
		s.onListen(port)
	}
	logging.Info().Str("addr", ln.Addr().String()).Msg("HTTP listener up")

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.Timeout,
		ReadTimeout:       s.cfg.Timeout,
		WriteTimeout:      s.cfg.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *Server) String() string { return "http-server" }

// listen binds the first free port starting at the configured one. Only an
// address-in-use error moves on to the next port.
func (s *Server) listen() (net.Listener, int, error) {
	attempts := 1
	if s.cfg.PortFallback {
		attempts += s.cfg.PortFallbackAttempts
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		port := s.cfg.Port + i
		if port > 65535 {
			break
		}
		addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			if i > 0 {
				logging.Warn().
					Int("configured_port", s.cfg.Port).
					Int("bound_port", port).
					Msg("configured port taken, fell back")
			}
			return ln, port, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, 0, err
		}
		lastErr = err
	}
	return nil, 0, fmt.Errorf("no free port in %d attempt(s) from %d: %w", attempts, s.cfg.Port, lastErr)
}
