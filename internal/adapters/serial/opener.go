// Package serial adapts go.bug.st/serial to ports.PortOpener.
package serial

import (
	"fmt"
	"sort"
	"strings"

	bugserial "go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/bft-labs/serialbridge/internal/ports"
)

// Opener opens real serial ports with 8N1 framing.
type Opener struct {
	DataBits int
	Parity   bugserial.Parity
	StopBits bugserial.StopBits
}

// NewOpener returns an Opener configured for 8 data bits, no parity, one stop bit.
func NewOpener() *Opener {
	return &Opener{
		DataBits: 8,
		Parity:   bugserial.NoParity,
		StopBits: bugserial.OneStopBit,
	}
}

// Open opens req.Name and applies req.ReadTimeout so reads return periodically.
func (o *Opener) Open(req ports.OpenRequest) (ports.SerialPort, error) {
	mode := &bugserial.Mode{
		BaudRate: req.BaudRate,
		DataBits: o.DataBits,
		Parity:   o.Parity,
		StopBits: o.StopBits,
	}

	port, err := bugserial.Open(req.Name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", req.Name, err)
	}

	if req.ReadTimeout > 0 {
		if err := port.SetReadTimeout(req.ReadTimeout); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", req.Name, err)
		}
	}

	// Drop whatever the OS buffered before we attached.
	_ = port.ResetInputBuffer()

	return port, nil
}

// List enumerates serial ports with USB details when the platform provides them.
func (o *Opener) List() ([]ports.PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		names, listErr := bugserial.GetPortsList()
		if listErr != nil {
			return nil, fmt.Errorf("list serial ports: %w", listErr)
		}
		out := make([]ports.PortInfo, 0, len(names))
		for _, n := range names {
			out = append(out, ports.PortInfo{Name: n})
		}
		return sortPorts(out), nil
	}

	out := make([]ports.PortInfo, 0, len(details))
	for _, d := range details {
		if d == nil {
			continue
		}
		out = append(out, ports.PortInfo{
			Name:         d.Name,
			Description:  strings.TrimSpace(d.Product),
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
		})
	}
	return sortPorts(out), nil
}

func sortPorts(in []ports.PortInfo) []ports.PortInfo {
	sort.Slice(in, func(i, j int) bool { return in[i].Name < in[j].Name })
	return in
}

var _ ports.PortOpener = (*Opener)(nil)
