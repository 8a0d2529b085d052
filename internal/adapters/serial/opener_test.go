package serial

import (
	"testing"

	bugserial "go.bug.st/serial"

	"github.com/bft-labs/serialbridge/internal/ports"
)

func TestNewOpener(t *testing.T) {
	o := NewOpener()
	if o.DataBits != 8 || o.Parity != bugserial.NoParity || o.StopBits != bugserial.OneStopBit {
		t.Errorf("NewOpener() = %+v, want 8N1", o)
	}
}

func TestOpen_MissingDevice(t *testing.T) {
	_, err := NewOpener().Open(ports.OpenRequest{Name: "/dev/serialbridge-does-not-exist", BaudRate: 9600})
	if err == nil {
		t.Fatal("Open() succeeded on a missing device")
	}
}

func TestSortPorts(t *testing.T) {
	got := sortPorts([]ports.PortInfo{{Name: "COM3"}, {Name: "COM10"}, {Name: "/dev/ttyS0"}})
	want := []string{"/dev/ttyS0", "COM10", "COM3"}
	for i, p := range got {
		if p.Name != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, p.Name, want[i])
		}
	}
}
