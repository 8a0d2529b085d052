// Package console prints bridge activity to a terminal.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/bft-labs/serialbridge/pkg/serialbridge"
)

const timeLayout = "15:04:05.000"

// Printer shows the latest frame on a single line that is overwritten in
// place, and prints ingestion state changes on lines of their own.
type Printer struct {
	serialbridge.BaseEventHandler

	mu       sync.Mutex
	w        io.Writer
	lineOpen bool

	timeStyle    lipgloss.Style
	valueStyle   lipgloss.Style
	changedStyle lipgloss.Style
	okStyle      lipgloss.Style
	warnStyle    lipgloss.Style
	errStyle     lipgloss.Style
}

// NewPrinter creates a printer writing to w.
// Colors are used only when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:            w,
		timeStyle:    r.NewStyle().Foreground(lipgloss.Color("#666666")),
		valueStyle:   r.NewStyle(),
		changedStyle: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981")),
		okStyle:      r.NewStyle().Foreground(lipgloss.Color("#10B981")),
		warnStyle:    r.NewStyle().Foreground(lipgloss.Color("#FBBF24")),
		errStyle:     r.NewStyle().Foreground(lipgloss.Color("#EF4444")),
	}
}

// OnFrame overwrites the status line with the new reading.
func (p *Printer) OnFrame(event serialbridge.FrameEvent) {
	style := p.valueStyle
	if event.Changed {
		style = p.changedStyle
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\r%s %s\033[K",
		p.timeStyle.Render("["+event.Reading.ReceivedAt.Format(timeLayout)+"]"),
		style.Render(event.Reading.Value),
	)
	p.lineOpen = true
}

// OnIngestionStateChange prints a notice for connection changes.
func (p *Printer) OnIngestionStateChange(event serialbridge.IngestionStateEvent) {
	var msg string
	switch event.Current {
	case serialbridge.IngestionConnected:
		msg = p.okStyle.Render("connected")
	case serialbridge.IngestionRecovering:
		if event.Previous == serialbridge.IngestionRecovering {
			return
		}
		msg = p.warnStyle.Render("waiting for device: " + event.Reason)
	case serialbridge.IngestionStopped:
		msg = "serial reader stopped"
	default:
		return
	}
	p.notice(msg)
}

// OnDecodeError prints a notice for a discarded frame.
func (p *Printer) OnDecodeError(event serialbridge.DecodeErrorEvent) {
	p.notice(p.errStyle.Render("discarded frame: " + event.Error.Error()))
}

func (p *Printer) notice(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lineOpen {
		fmt.Fprintln(p.w)
		p.lineOpen = false
	}
	fmt.Fprintln(p.w, msg)
}
