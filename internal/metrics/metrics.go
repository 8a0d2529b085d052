// Package metrics holds the process-wide ingestion counters exposed at /metrics.
package metrics

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

var (
	bytesRead        = metrics.NewCounter("serialbridge_bytes_read_total")        //nolint:gochecknoglobals
	framesPublished  = metrics.NewCounter("serialbridge_frames_published_total")  //nolint:gochecknoglobals
	framesChanged    = metrics.NewCounter("serialbridge_frames_changed_total")    //nolint:gochecknoglobals
	framesDropped    = metrics.NewCounter("serialbridge_frames_dropped_total")    //nolint:gochecknoglobals
	decodeErrors     = metrics.NewCounter("serialbridge_decode_errors_total")     //nolint:gochecknoglobals
	connectAttempts  = metrics.NewCounter("serialbridge_connect_attempts_total")  //nolint:gochecknoglobals
	connectionErrors = metrics.NewCounter("serialbridge_connection_errors_total") //nolint:gochecknoglobals
)

// AddBytesRead counts n bytes received from the serial port; n <= 0 is ignored.
func AddBytesRead(n int) {
	if n > 0 {
		bytesRead.Add(n)
	}
}

// FramePublished counts a publish and, if changed, a change.
func FramePublished(changed bool) {
	framesPublished.Inc()
	if changed {
		framesChanged.Inc()
	}
}

// FrameDropped counts a frame discarded because it matched no pattern.
func FrameDropped() { framesDropped.Inc() }

// DecodeError counts a frame discarded because it was not valid UTF-8.
func DecodeError() { decodeErrors.Inc() }

// ConnectAttempt counts a call to open the serial port.
func ConnectAttempt() { connectAttempts.Inc() }

// ConnectionError counts a failed open or a read error on an open port.
func ConnectionError() { connectionErrors.Inc() }

// WritePrometheus writes all counters plus Go runtime metrics in Prometheus text format.
func WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w, true)
}
