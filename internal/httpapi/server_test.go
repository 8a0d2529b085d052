package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/serialbridge/internal/domain"
	"github.com/bft-labs/serialbridge/internal/metrics"
	"github.com/bft-labs/serialbridge/internal/ports"
)

type fakeSource struct {
	mu   sync.Mutex
	snap domain.Snapshot
	ing  IngestionStatus
}

func (f *fakeSource) Snapshot() domain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource) Ingestion() IngestionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ing
}

type fakeLister struct {
	list []ports.PortInfo
	err  error
}

func (f fakeLister) List() ([]ports.PortInfo, error) { return f.list, f.err }

func slotAt(text string, seq uint64, at time.Time) domain.Slot {
	return domain.Slot{
		Frame:     domain.Frame{Text: text, ReceivedAt: at},
		Present:   true,
		UpdatedAt: at,
		Seq:       seq,
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestReadings_NoDataYet(t *testing.T) {
	s := New(&fakeSource{}, nil, Config{CORSOrigin: DefaultCORSOrigin}, nil)

	for _, path := range []string{"/api/current", "/api/last_changed"} {
		rec := get(t, s.Handler(), path)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", path, rec.Code)
		}

		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: decode: %v", path, err)
		}
		if body["available"] != false || body["value"] != nil || body["timestamp"] != nil {
			t.Errorf("%s: body = %v, want unavailable with null value and timestamp", path, body)
		}
		if body["message"] != noDataMessage {
			t.Errorf("%s: message = %v", path, body["message"])
		}
	}
}

func TestReadings_CurrentAndLastChanged(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t3 := t1.Add(4 * time.Second)
	src := &fakeSource{snap: domain.Snapshot{
		Current:     slotAt("+00120k", 3, t3),
		LastChanged: slotAt("+00118k", 1, t1),
		Published:   3,
		Changes:     1,
	}}
	s := New(src, nil, Config{}, nil)

	tests := []struct {
		path      string
		wantValue string
		wantSeq   uint64
		wantTime  time.Time
	}{
		{"/api/current", "+00120k", 3, t3},
		{"/api/last_changed", "+00118k", 1, t1},
	}
	for _, tt := range tests {
		rec := get(t, s.Handler(), tt.path)

		var body ReadingResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: decode: %v", tt.path, err)
		}
		if !body.Available || body.Value == nil || *body.Value != tt.wantValue {
			t.Errorf("%s: value = %v, want %q", tt.path, body.Value, tt.wantValue)
		}
		if body.Seq != tt.wantSeq {
			t.Errorf("%s: seq = %d, want %d", tt.path, body.Seq, tt.wantSeq)
		}
		if body.Timestamp == nil || !body.Timestamp.Equal(tt.wantTime) {
			t.Errorf("%s: timestamp = %v, want %v", tt.path, body.Timestamp, tt.wantTime)
		}
		if got := rec.Header().Get("Content-Type"); got != "application/json" {
			t.Errorf("%s: Content-Type = %q", tt.path, got)
		}
	}
}

func TestHealth_ReportsRecovering(t *testing.T) {
	src := &fakeSource{
		snap: domain.Snapshot{Published: 7, Changes: 2},
		ing: IngestionStatus{
			State:     "Recovering",
			Port:      "/dev/ttyUSB0",
			BaudRate:  9600,
			LastError: "serialbridge: connection error: device absent",
		},
	}
	s := New(src, nil, Config{}, nil)

	rec := get(t, s.Handler(), "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Service != ServiceName {
		t.Errorf("status/service = %q/%q", body.Status, body.Service)
	}
	if body.Ingestion != "Recovering" || body.Port != "/dev/ttyUSB0" || body.Baud != 9600 {
		t.Errorf("ingestion fields = %+v", body)
	}
	if !strings.Contains(body.LastError, "device absent") {
		t.Errorf("last_error = %q", body.LastError)
	}
	if body.Frames != 7 || body.Changes != 2 {
		t.Errorf("frames/changes = %d/%d, want 7/2", body.Frames, body.Changes)
	}
}

func TestPorts(t *testing.T) {
	tests := []struct {
		name       string
		lister     PortLister
		wantStatus int
		wantBody   string
	}{
		{
			name:       "lists ports",
			lister:     fakeLister{list: []ports.PortInfo{{Name: "COM3", IsUSB: true, VID: "067B", PID: "2303"}}},
			wantStatus: http.StatusOK,
			wantBody:   `"name":"COM3"`,
		},
		{
			name:       "empty list is an empty array",
			lister:     fakeLister{},
			wantStatus: http.StatusOK,
			wantBody:   `[]`,
		},
		{
			name:       "enumeration error",
			lister:     fakeLister{err: errors.New("permission denied")},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `permission denied`,
		},
		{
			name:       "no lister",
			lister:     nil,
			wantStatus: http.StatusInternalServerError,
			wantBody:   `unavailable`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&fakeSource{}, tt.lister, Config{}, nil)
			rec := get(t, s.Handler(), "/api/ports")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want it to contain %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := New(&fakeSource{}, nil, Config{CORSOrigin: DefaultCORSOrigin}, nil)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(method, "/api/current", strings.NewReader("{}")))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: status = %d, want 405", method, rec.Code)
		}
		if rec.Header().Get("Allow") != http.MethodGet {
			t.Errorf("%s: Allow = %q", method, rec.Header().Get("Allow"))
		}
	}
}

func TestCORSHeader(t *testing.T) {
	tests := []struct {
		origin string
		want   string
	}{
		{DefaultCORSOrigin, "*"},
		{"https://dashboard.example", "https://dashboard.example"},
		{"", ""},
	}
	for _, tt := range tests {
		s := New(&fakeSource{}, nil, Config{CORSOrigin: tt.origin}, nil)
		rec := get(t, s.Handler(), "/api/health")
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %q: header = %q, want %q", tt.origin, got, tt.want)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.FramePublished(true)

	s := New(&fakeSource{}, nil, Config{}, nil)
	rec := get(t, s.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "serialbridge_frames_published_total") {
		t.Error("metrics output missing serialbridge_frames_published_total")
	}
}

func TestUnknownPath(t *testing.T) {
	s := New(&fakeSource{}, nil, Config{}, nil)
	if rec := get(t, s.Handler(), "/api/unknown"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServe_RealListenerAndShutdown(t *testing.T) {
	src := &fakeSource{snap: domain.Snapshot{Current: slotAt("7", 1, time.Now())}}
	s := New(src, nil, Config{}, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := s.HTTPServer()
	done := make(chan error, 1)
	go func() { done <- s.Serve(srv, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/current")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `"value":"7"`) {
		t.Errorf("body = %s", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v, want nil after shutdown", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve() did not return after shutdown")
	}
}
