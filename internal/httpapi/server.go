// Package httpapi serves the published readings and bridge health over HTTP.
package httpapi

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/bft-labs/serialbridge/internal/domain"
	"github.com/bft-labs/serialbridge/internal/ports"
	"github.com/bft-labs/serialbridge/pkg/log"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "serialbridge"

// DefaultCORSOrigin allows any origin, matching a browser dashboard served from elsewhere.
const DefaultCORSOrigin = "*"

// Source supplies the data served by the API.
// Implementations must be safe for concurrent use.
type Source interface {
	Snapshot() domain.Snapshot
	Ingestion() IngestionStatus
}

// IngestionStatus describes the serial side of the bridge for health reporting.
type IngestionStatus struct {
	State     string
	Port      string
	BaudRate  int
	LastError string
	Since     time.Time
}

// PortLister enumerates serial ports. ports.PortOpener satisfies it.
type PortLister interface {
	List() ([]ports.PortInfo, error)
}

// Config contains HTTP surface settings.
type Config struct {
	// CORSOrigin is sent as Access-Control-Allow-Origin. Empty disables the header.
	CORSOrigin string

	ReadHeaderTimeout time.Duration
}

// Server is the query service.
type Server struct {
	source    Source
	lister    PortLister
	cors      string
	logger    log.Logger
	startedAt time.Time
	now       func() time.Time

	handler           http.Handler
	readHeaderTimeout time.Duration
}

// New creates a query service. lister may be nil, in which case /api/ports
// reports an error.
func New(source Source, lister PortLister, cfg Config, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}

	s := &Server{
		source:    source,
		lister:    lister,
		cors:      cfg.CORSOrigin,
		logger:    logger,
		startedAt: time.Now(),
		now:       time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/current", s.getOnly(s.handleCurrent))
	mux.HandleFunc("/api/last_changed", s.getOnly(s.handleLastChanged))
	mux.HandleFunc("/api/health", s.getOnly(s.handleHealth))
	mux.HandleFunc("/api/ports", s.getOnly(s.handlePorts))
	mux.HandleFunc("/metrics", s.getOnly(s.handleMetrics))

	s.handler = s.logRequests(s.withCORS(mux))
	s.readHeaderTimeout = cfg.ReadHeaderTimeout
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// HTTPServer returns a new http.Server serving the API.
// An http.Server cannot be reused after Shutdown, so every run gets its own.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.readHeaderTimeout,
	}
}

// Serve runs srv on l and returns nil once srv has been shut down.
func (s *Server) Serve(srv *http.Server, l net.Listener) error {
	s.logger.Info("http api listening", log.String("addr", l.Addr().String()))
	err := srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}
		h(w, r)
	}
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	if s.cors == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.cors)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			log.String("method", r.Method),
			log.String("path", r.URL.Path),
			log.Int("status", rec.status),
			log.Duration("duration", time.Since(start)),
		)
	})
}
