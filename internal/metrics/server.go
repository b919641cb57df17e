package metrics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const baseURLV1 = "/api/v1"

// Server exposes Prometheus metrics over HTTP with graceful shutdown.
// It serves GET /api/v1/metrics (Prometheus exposition, DefaultGatherer)
// and GET /api/v1/health (simple liveness probe).
type Server struct {
	addr   string
	server *http.Server
}

// NewServer creates a metrics HTTP server that will listen on addr
// ("host:port", e.g. "127.0.0.1:8080").
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle(baseURLV1+"/metrics", promhttp.Handler())
	mux.HandleFunc(baseURLV1+"/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Printf("metrics: health handler write error: %v", err)
		}
	})

	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start begins serving HTTP requests and blocks until the server is shut
// down or fails. A graceful shutdown via Shutdown is not reported as an
// error.
func (s *Server) Start() error {
	if s.server == nil {
		return errors.New("metrics server not initialized")
	}

	log.Printf("metrics: starting HTTP server on %s", s.addr)

	if err := validateAddress(s.addr); err != nil {
		return fmt.Errorf("metrics: invalid address %q: %w", s.addr, err)
	}

	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: HTTP server error: %w", err)
	}

	log.Println("metrics: HTTP server stopped")
	return nil
}

// Shutdown gracefully stops the HTTP server, allowing active connections to
// complete within the context's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics: shutdown error: %w", err)
	}
	return nil
}

// validateAddress checks that addr is a resolvable host:port before binding.
func validateAddress(addr string) error {
	if addr == "" {
		return errors.New("empty address")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid host:port format: %w", err)
	}
	if port == "" {
		return errors.New("port is required")
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil {
		return nil
	}
	if _, err := net.LookupHost(host); err != nil {
		return fmt.Errorf("cannot resolve host %q: %w", host, err)
	}
	return nil
}
