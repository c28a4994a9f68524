package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wraps an HTTP server exposing Prometheus metrics.
// Nothing starts automatically; call Start to run it and Stop to shut it down.
type Server struct {
	server *http.Server
}

// Start binds addr and serves the default Prometheus registry at /metrics.
// The listener is bound before returning so address errors surface to the caller.
func Start(addr string) (*Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()

	return &Server{server: srv}, nil
}

// Stop gracefully shuts down the metrics server with a timeout.
func (s *Server) Stop() error {
	if s == nil || s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
