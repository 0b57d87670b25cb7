package handlers

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/argus-console/internal/console"
)

type personaButton struct {
	Key     string
	Name    string
	Control string
	Color   string
	Active  bool
}

type senseToggle struct {
	Name   string
	Online bool
}

type homePageData struct {
	Personas []personaButton
	Senses   []senseToggle
	Bars     []barState
	Messages []message

	Theme   string
	Image   string
	Live    bool
	Status  string
	Gesture string
	Mic     bool

	CodeCSS template.CSS
}

// HandleHome renders the console page with the current state of the conversation, so a tab opened
// mid-session shows what the other tabs show.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	state := m.view.snapshot()

	personas := m.console.Personas()
	buttons := make([]personaButton, len(personas))
	for i, p := range personas {
		buttons[i] = personaButton{
			Key:     p.Key,
			Name:    p.Name,
			Control: p.Control,
			Color:   p.Color.Hex,
			Active:  p.Control == state.Active && state.Active != "",
		}
	}

	senses := make([]senseToggle, len(console.Senses))
	for i, s := range console.Senses {
		senses[i] = senseToggle{Name: string(s), Online: state.Senses[s]}
	}

	bars := []barState{{Name: console.BarCPU}, {Name: console.BarRAM}}
	for i := range bars {
		if b, ok := state.Bars[bars[i].Name]; ok {
			bars[i] = b
		}
	}

	theme := state.Theme.Hex
	if theme == "" && len(personas) > 0 {
		theme = personas[0].Color.Hex
	}

	data := homePageData{
		Personas: buttons,
		Senses:   senses,
		Bars:     bars,
		Messages: state.Messages,
		Theme:    theme,
		Image:    state.Image,
		Live:     state.Live,
		Status:   state.Status,
		Gesture:  state.Gesture,
		Mic:      state.Mic,
		CodeCSS:  m.codeCSS,
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to render home page", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}
