// Package api provides the HTTP and gRPC servers that expose backtests,
// bars, symbol profiles and strategies.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"google.golang.org/grpc"

	"bandtest/internal/config"
)

// Server is the main API server that hosts HTTP and gRPC endpoints.
type Server struct {
	httpAddr string
	grpcAddr string
	http     *http.Server
	grpc     *grpc.Server
	log      *slog.Logger
}

// NewServer creates a new Server listening on the addresses in cfg. A zero
// GRPCPort disables the gRPC listener.
func NewServer(cfg config.Server, h *Handlers, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		httpAddr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		http: &http.Server{
			Handler:           h.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
	if cfg.GRPCPort != 0 {
		s.grpcAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.GRPCPort))
		s.grpc = grpc.NewServer()
		NewGRPCServer(h).RegisterGRPC(s.grpc)
	}
	return s
}

// ListenAndServe starts the HTTP and gRPC listeners and blocks until the
// context is cancelled or a listener fails. It shuts both servers down
// before returning.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpAddr, err)
	}
	var grpcLis net.Listener
	if s.grpc != nil {
		grpcLis, err = net.Listen("tcp", s.grpcAddr)
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("listening on %s: %w", s.grpcAddr, err)
		}
	}
	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve serves on already-open listeners. grpcLis may be nil.
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	errCh := make(chan error, 2)

	go func() {
		s.log.Info("HTTP server listening", "addr", httpLis.Addr().String())
		if err := s.http.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	if grpcLis != nil && s.grpc != nil {
		go func() {
			s.log.Info("gRPC server listening", "addr", grpcLis.Addr().String())
			if err := s.grpc.Serve(grpcLis); err != nil {
				errCh <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		s.log.Error("server error", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

// Shutdown performs a graceful shutdown of the HTTP and gRPC servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down")
	if s.grpc != nil {
		done := make(chan struct{})
		go func() {
			s.grpc.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			s.grpc.Stop()
		}
	}
	return s.http.Shutdown(ctx)
}
