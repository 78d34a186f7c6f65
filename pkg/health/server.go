// Package health serves liveness, readiness, last-check status and metrics
// endpoints while logcheck runs in watch mode.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/supporttools/logcheck/pkg/check"
	"github.com/supporttools/logcheck/pkg/logger"
)

// Server provides the HTTP endpoints.
type Server struct {
	config     *Config
	httpServer *http.Server
	listener   net.Listener
	mu         sync.RWMutex
	started    bool
	healthy    bool
	ready      bool
	last       *LastCheck
	lastUpdate time.Time
	startTime  time.Time
}

// Config contains configuration for the server.
type Config struct {
	// ListenAddress is host:port (default :9807).
	ListenAddress string

	// MetricsHandler is mounted on /metrics when set.
	MetricsHandler http.Handler

	// Version is reported by /status.
	Version string

	// ReadTimeout for HTTP requests
	ReadTimeout time.Duration

	// WriteTimeout for HTTP responses
	WriteTimeout time.Duration
}

// LastCheck summarizes the most recent check.
type LastCheck struct {
	Verdict    string `json:"verdict"`
	ExitCode   int    `json:"exitCode"`
	Line       string `json:"line"`
	Target     string `json:"target,omitempty"`
	TotalLines int    `json:"totalLines"`
	Matches    int    `json:"matches"`
	Classified int    `json:"classified"`
	Offset     int64  `json:"offset"`
	Duration   string `json:"duration"`
	Error      string `json:"error,omitempty"`
}

// HealthResponse represents the JSON response for /healthz.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

// ReadinessResponse represents the JSON response for /ready.
type ReadinessResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
}

// StatusResponse represents the JSON response for /status.
type StatusResponse struct {
	Healthy    bool              `json:"healthy"`
	Ready      bool              `json:"ready"`
	Uptime     string            `json:"uptime"`
	LastUpdate time.Time         `json:"lastUpdate"`
	LastCheck  *LastCheck        `json:"lastCheck,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// NewServer creates a server with the given configuration.
func NewServer(config *Config) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if config.ListenAddress == "" {
		config.ListenAddress = ":9807"
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 5 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 10 * time.Second
	}

	return &Server{
		config:    config,
		healthy:   true,
		startTime: time.Now(),
	}, nil
}

// Handler returns the endpoint mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/status", s.handleStatus)
	if s.config.MetricsHandler != nil {
		mux.Handle("/metrics", s.config.MetricsHandler)
	}
	return mux
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("health server already started")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	log := logger.ForComponent("health")
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("health server failed")
		}
	}()

	s.started = true
	log.WithField("address", ln.Addr().String()).Info("health server started")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown health server: %w", err)
	}

	s.started = false
	logger.ForComponent("health").Info("health server stopped")
	return nil
}

// UpdateOutcome records a finished check. The server is ready once the
// first check has completed.
func (s *Server) UpdateOutcome(out check.Outcome) {
	last := &LastCheck{
		Verdict:  out.Verdict.String(),
		ExitCode: out.ExitCode(),
		Line:     out.String(),
		Duration: out.Duration.String(),
	}
	if out.Result != nil {
		last.Target = out.Result.Target
		last.TotalLines = out.Result.TotalLines
		last.Matches = out.Result.MatchCount
		last.Classified = out.Result.ClassifiedCount
		last.Offset = out.Result.Offset
	}
	if out.Err != nil {
		last.Error = out.Err.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = last
	s.lastUpdate = time.Now()
	s.ready = true
}

// SetHealthy sets the overall health status.
func (s *Server) SetHealthy(healthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = healthy
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	}

	status := http.StatusOK
	if !s.healthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	response := ReadinessResponse{
		Ready:     s.ready,
		Timestamp: time.Now(),
		Message:   "Ready",
	}

	status := http.StatusOK
	if !s.ready {
		response.Message = "Not ready: no check completed yet"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	response := StatusResponse{
		Healthy:    s.healthy,
		Ready:      s.ready,
		Uptime:     time.Since(s.startTime).Round(time.Second).String(),
		LastUpdate: s.lastUpdate,
		LastCheck:  s.last,
		Metadata: map[string]string{
			"version":    s.config.Version,
			"started_at": s.startTime.Format(time.RFC3339),
		},
	}
	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.ForComponent("health").WithError(err).Debug("failed to encode response")
	}
}
