package console

import (
	"strings"
	"sync"

	"github.com/MegaGrindStone/argus-console/internal/models"
)

// PersonaReactor applies persona changes to the theme. It keeps no history: each call is a function of
// the latest event only.
type PersonaReactor struct {
	mu sync.Mutex

	view     ThemeView
	controls []string
	onChange func(name string)
}

// NewPersonaReactor creates a reactor highlighting the controls of personas. onChange, if not nil, is
// called with the new persona name after the theme is updated.
func NewPersonaReactor(view ThemeView, personas []models.Persona, onChange func(name string)) *PersonaReactor {
	controls := make([]string, 0, len(personas))
	for _, p := range personas {
		if p.Control != "" {
			controls = append(controls, p.Control)
		}
	}

	return &PersonaReactor{
		view:     view,
		controls: controls,
		onChange: onChange,
	}
}

// OnPersonaChange themes the console for the persona called name. color may be any form accepted by
// models.ParseColor; invalid colors fall back to models.DefaultColor. It returns the normalized color and
// the highlighted control, which is empty when name matches none.
func (r *PersonaReactor) OnPersonaChange(name string, color any) (models.Color, string) {
	c := models.NormalizeColor(color)
	control := r.controlFor(name)

	r.mu.Lock()
	r.view.SetThemeToken(c)
	r.view.HighlightControl(control, r.controls)
	r.mu.Unlock()

	if r.onChange != nil {
		r.onChange(name)
	}
	return c, control
}

// OnThemeColor only updates the theme token.
func (r *PersonaReactor) OnThemeColor(color any) models.Color {
	c := models.NormalizeColor(color)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.view.SetThemeToken(c)
	return c
}

func (r *PersonaReactor) controlFor(name string) string {
	key := controlKey(name)
	if key == "" {
		return ""
	}
	for _, c := range r.controls {
		if strings.EqualFold(c, key) {
			return c
		}
	}
	return ""
}

// controlKey is the first word of a persona name, skipping a leading "The".
func controlKey(name string) string {
	fields := strings.Fields(name)
	if len(fields) > 1 && strings.EqualFold(fields[0], "the") {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
