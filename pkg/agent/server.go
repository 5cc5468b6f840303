// Package agent exposes hardware status and commands over HTTP, with optional mutual TLS.
package agent

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mscrnt/thermalctl/pkg/db"
	"github.com/mscrnt/thermalctl/pkg/hardware"
	"github.com/mscrnt/thermalctl/pkg/logger"
)

// Hardware is the command surface the agent serves
type Hardware interface {
	Available() bool
	Status() hardware.Status
	Execute(name, arg string) hardware.CommandResult
}

// Recorder stores executed commands
type Recorder interface {
	RecordCommand(source, command, arg string, ok bool, message string) (*db.Run, error)
}

// Server represents the agent server
type Server struct {
	config     Config
	hw         Hardware
	history    Recorder
	httpServer *http.Server
	logger     *logger.Logger
}

// NewServer creates a new agent server. history may be nil.
func NewServer(cfg Config, hw Hardware, history Recorder, log *logger.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log = logger.OrDefault(log).With("agent")
	if cfg.LogFile != "" {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		log.SetOutput(logFile)
	}

	server := &Server{
		config:  cfg,
		hw:      hw,
		history: history,
		logger:  log,
	}

	tlsConfig, err := cfg.LoadTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS config: %w", err)
	}

	server.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server.Handler(),
		TLSConfig:    tlsConfig,
		ErrorLog:     log.Std(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return server, nil
}

// Handler returns the routed handler with request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.loggingMiddleware(healthHandler))
	mux.HandleFunc("/status", s.loggingMiddleware(s.statusHandler))
	for path, route := range commandRoutes {
		mux.HandleFunc(path, s.loggingMiddleware(s.commandHandler(route)))
	}
	return mux
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln
func (s *Server) Serve(ln net.Listener) error {
	if s.config.TLSEnabled() {
		s.logger.Infof("serving on %s with mTLS", ln.Addr())
		// Certificates are already loaded in the TLS config
		err := s.httpServer.ServeTLS(ln, "", "")
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	s.logger.Infof("serving on %s without TLS", ln.Addr())
	err := s.httpServer.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infof("shutting down")
	return s.httpServer.Shutdown(ctx)
}

// loggingMiddleware logs incoming requests
func (s *Server) loggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientCert := "none"
		if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
			clientCert = r.TLS.PeerCertificates[0].Subject.CommonName
		}

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(wrapped, r)

		s.logger.Infof("%s %s %d %s client=%s duration=%s",
			r.Method,
			r.URL.Path,
			wrapped.statusCode,
			r.RemoteAddr,
			clientCert,
			time.Since(start),
		)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// healthHandler returns server health status
func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK\n")
}
