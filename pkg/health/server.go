// pkg/health/server.go
package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/opd-ai/go-rigid/pkg/logging"
)

// Probe paths served by Server
const (
	LivePath  = "/health/live"
	ReadyPath = "/health/ready"
)

// Server serves the liveness and readiness probes of a HealthChecker.
type Server struct {
	checker *HealthChecker
	limiter *RateLimiter
	logger  *logging.Logger
	srv     *http.Server
	ln      net.Listener
}

// NewServer creates a probe server on addr. probesPerMinute limits requests
// per remote host; 0 disables the limit.
func NewServer(addr string, checker *HealthChecker, probesPerMinute int, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		checker: checker,
		limiter: NewRateLimiter(probesPerMinute, time.Minute),
		logger:  logger,
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the probe routes wrapped in the rate limiter.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(LivePath, s.checker.LivenessHandler)
	mux.HandleFunc(ReadyPath, s.checker.ReadinessHandler)
	return s.limit(mux)
}

func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.limiter.Allow(host) {
			s.logger.Warn(r.Context(), "health probe rate limited",
				"remote", host,
				"path", r.URL.Path,
			)
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return logging.WrapError(err, "listen on %s", s.srv.Addr)
	}
	s.ln = ln
	s.logger.Info(context.Background(), "health server listening", "addr", ln.Addr().String())
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(context.Background(), "health server stopped", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
