package ports

import "time"

// SerialPort is an open connection to the device.
// Read must return (0, nil) when ReadTimeout elapses without data so that
// callers regain control at a bounded interval.
type SerialPort interface {
	Read(p []byte) (int, error)
	Close() error
}

// OpenRequest describes the port to open.
type OpenRequest struct {
	Name        string
	BaudRate    int
	ReadTimeout time.Duration
}

// PortInfo describes a serial port found on the host.
type PortInfo struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// PortOpener opens serial ports and lists the ones present.
type PortOpener interface {
	Open(req OpenRequest) (SerialPort, error)
	List() ([]PortInfo, error)
}
