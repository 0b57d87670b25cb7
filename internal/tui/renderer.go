package tui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Renderer renders assistant markdown for the terminal with glamour.
type Renderer struct {
	style string

	mu   sync.Mutex
	term *glamour.TermRenderer
}

const defaultGlamourStyle = "dark"

// NewRenderer creates a renderer wrapping at width columns. An empty style selects "dark". Standard
// styles are used rather than auto detection, which queries the terminal and leaks into the input.
func NewRenderer(style string, width int) (*Renderer, error) {
	if style == "" {
		style = defaultGlamourStyle
	}
	r := &Renderer{style: style}
	if err := r.SetWidth(width); err != nil {
		return nil, err
	}
	return r, nil
}

// SetWidth rebuilds the renderer for a new terminal width.
func (r *Renderer) SetWidth(width int) error {
	if width < 20 {
		width = 20
	}
	term, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	r.mu.Lock()
	r.term = term
	r.mu.Unlock()
	return nil
}

func (r *Renderer) Render(text string) (string, error) {
	r.mu.Lock()
	term := r.term
	r.mu.Unlock()

	out, err := term.Render(text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}
