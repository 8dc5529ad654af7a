package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/ks888/fetctl/events"
	"github.com/ks888/fetctl/status"
)

type styles struct {
	section lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	event   lipgloss.Style
	err     lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{section: plain, label: plain, value: plain, event: plain, err: plain}
	}
	return styles{
		section: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(7)).Background(lipgloss.ANSIColor(4)),
		label:   lipgloss.NewStyle().Foreground(lipgloss.ANSIColor(6)).Width(16),
		value:   lipgloss.NewStyle().Bold(true),
		event:   lipgloss.NewStyle().Foreground(lipgloss.ANSIColor(3)),
		err:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(7)).Background(lipgloss.ANSIColor(1)),
	}
}

// printer writes the report. The event listener and the main goroutine share it.
type printer struct {
	mu     sync.Mutex
	w      io.Writer
	styles styles
}

func newPrinter(w io.Writer, color bool) *printer {
	return &printer{w: w, styles: newStyles(color)}
}

func (p *printer) section(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.styles.section.Render(" "+title+" "))
}

func (p *printer) field(label, format string, v ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "  %-16s %s\n", p.styles.label.Render(label), p.styles.value.Render(fmt.Sprintf(format, v...)))
}

func (p *printer) event(ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintln(p.w, p.styles.event.Render(fmt.Sprintf("event %v", ev)))
	return err
}

func (p *printer) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.styles.err.Render(fmt.Sprintf("error %d", status.CodeOf(err))), err)
}
