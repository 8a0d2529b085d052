package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bft-labs/serialbridge/internal/domain"
	"github.com/bft-labs/serialbridge/internal/metrics"
	"github.com/bft-labs/serialbridge/internal/ports"
	"github.com/bft-labs/serialbridge/pkg/log"
)

const noDataMessage = "no data yet"

// ReadingResponse is the body of /api/current and /api/last_changed.
// Value and Timestamp are null until the slot has been written.
type ReadingResponse struct {
	Available  bool       `json:"available"`
	Value      *string    `json:"value"`
	Timestamp  *time.Time `json:"timestamp"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`
	Seq        uint64     `json:"seq,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// HealthResponse is the body of /api/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Ingestion string    `json:"ingestion"`
	Port      string    `json:"port"`
	Baud      int       `json:"baud"`
	LastError string    `json:"last_error,omitempty"`
	Frames    uint64    `json:"frames"`
	Changes   uint64    `json:"changes"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newReadingResponse(slot domain.Slot) ReadingResponse {
	if !slot.Present {
		return ReadingResponse{Message: noDataMessage}
	}
	value := slot.Frame.Text
	updated := slot.UpdatedAt
	received := slot.Frame.ReceivedAt
	return ReadingResponse{
		Available:  true,
		Value:      &value,
		Timestamp:  &updated,
		ReceivedAt: &received,
		Seq:        slot.Seq,
	}
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newReadingResponse(s.source.Snapshot().Current))
}

func (s *Server) handleLastChanged(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newReadingResponse(s.source.Snapshot().LastChanged))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Snapshot()
	ing := s.source.Ingestion()
	now := s.now()

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   ServiceName,
		Ingestion: ing.State,
		Port:      ing.Port,
		Baud:      ing.BaudRate,
		LastError: ing.LastError,
		Frames:    snap.Published,
		Changes:   snap.Changes,
		Uptime:    now.Sub(s.startedAt).Round(time.Second).String(),
		Timestamp: now,
	})
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	if s.lister == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "port enumeration unavailable"})
		return
	}
	list, err := s.lister.List()
	if err != nil {
		s.logger.Warn("list serial ports", log.Err(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if list == nil {
		list = []ports.PortInfo{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	metrics.WritePrometheus(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
