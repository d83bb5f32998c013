package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title  lipgloss.Style
	prompt lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
	warn   lipgloss.Style
	help   lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:  NewBold(t).MarginBottom(1),
		prompt: NewBold(t),
		ok:     NewBold(s),
		err:    NewBold(e),
		warn:   NewStyle(w),
		help:   NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// successPrefixes open the replies of commands that went through.
var successPrefixes = []string{"Playing", "Paused.", "Resumed.", "Skipped.", "Devices:", "Session is", "Commands:"}

// paint colors a reply by how it reads: success, a soft warning, or a failure.
func (p *Palette) paint(reply string) string {
	switch {
	case strings.Contains(reply, "low-confidence"):
		return p.warn.Render(reply)
	case hasAnyPrefix(reply, successPrefixes):
		return p.ok.Render(reply)
	case strings.HasPrefix(reply, "No devices are open"):
		return p.warn.Render(reply)
	default:
		return p.err.Render(reply)
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
