// Package tui is the terminal console: a bubbletea program drawing the same controller and reactors the
// web console uses.
package tui

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/MegaGrindStone/argus-console/internal/console"
	"github.com/MegaGrindStone/argus-console/internal/models"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Actions are the user actions the terminal console can trigger.
type Actions interface {
	SendMessage(ctx context.Context, text string) error
	SwitchPersona(ctx context.Context, key string) error
	ToggleSense(ctx context.Context, sense console.Sense, on bool) error
	SendFeedback(turnID string, score int) error
}

// ErrNoRatableTurn is returned by the feedback commands when no finalized turn can be rated.
var ErrNoRatableTurn = errors.New("no answer to rate")

const actionTimeout = 10 * time.Second

type entry struct {
	id      string
	role    models.Role
	text    string
	typing  bool
	final   bool
	ratable bool
	rated   bool
}

type actionErrMsg struct {
	err error
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	messageStyle = lipgloss.NewStyle().PaddingLeft(2)
)

// Model is the bubbletea model of the terminal console.
type Model struct {
	actions  Actions
	personas []models.Persona
	renderer *Renderer

	input    textinput.Model
	viewport viewport.Model
	bars     map[string]progress.Model
	loads    map[string]float64
	warnings map[string]bool

	entries []entry
	index   map[string]int
	// lastFinal is the newest finalized assistant turn, the target of /+1 and /-1.
	lastFinal string

	theme   models.Color
	active  string
	status  string
	gesture string
	senses  map[console.Sense]bool
	live    bool
	errText string

	width, height int
}

// NewModel creates the terminal model. renderer may be nil when markdown is rendered elsewhere; it is
// only resized here.
func NewModel(actions Actions, personas []models.Persona, renderer *Renderer) Model {
	ti := textinput.New()
	ti.Placeholder = "Fale com o Argus... (/help)"
	ti.Prompt = "┃ "
	ti.Focus()

	vp := viewport.New(80, 20)

	theme := models.DefaultColor
	if len(personas) > 0 {
		theme = personas[0].Color
	}

	m := Model{
		actions:  actions,
		personas: personas,
		renderer: renderer,
		input:    ti,
		viewport: vp,
		bars:     map[string]progress.Model{},
		loads:    map[string]float64{},
		warnings: map[string]bool{},
		index:    map[string]int{},
		senses:   map[console.Sense]bool{},
		theme:    theme,
		width:    80,
	}
	m.restyleBars()
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			v := m.input.Value()
			m.input.Reset()
			m.errText = ""
			return m, m.command(v)
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = msg.Width - 4
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - m.headerHeight() - 3
		if m.viewport.Height < 1 {
			m.viewport.Height = 1
		}
		if m.renderer != nil {
			if err := m.renderer.SetWidth(msg.Width - 4); err != nil {
				m.errText = err.Error()
			}
		}
		m.restyleBars()
		m.refresh()

	case appendMsg:
		m.entries = append(m.entries, entry{
			id:    msg.msg.ID,
			role:  msg.msg.Role,
			text:  plainText(msg.msg.Content),
			final: true,
		})
		m.index[msg.msg.ID] = len(m.entries) - 1
		m.refresh()
	case placeholderMsg:
		m.entries = append(m.entries, entry{id: msg.id, role: models.RoleAssistant, typing: true})
		m.index[msg.id] = len(m.entries) - 1
		m.refresh()
	case placeholderUpdateMsg:
		if e := m.entry(msg.id); e != nil && !e.final {
			e.text, e.typing = msg.text, msg.typing
			m.refresh()
		}
	case finalizeMsg:
		if e := m.entry(msg.id); e != nil {
			e.text, e.typing, e.final = msg.content, false, true
			e.ratable = msg.fb.TurnID != ""
			if e.ratable {
				m.lastFinal = msg.id
			}
			m.refresh()
		}
	case feedbackDisabledMsg:
		if e := m.entry(msg.id); e != nil {
			e.rated = true
			m.refresh()
		}
	case scrollMsg:
		m.viewport.GotoBottom()
	case themeMsg:
		m.theme = msg.color
		m.restyleBars()
	case highlightMsg:
		m.active = msg.active
	case barMsg:
		m.loads[msg.name] = msg.percent
		m.warnings[msg.name] = msg.warning
	case imageMsg:
		m.live = msg.live
	case statusMsg:
		m.status = msg.text
	case gestureMsg:
		m.gesture = msg.text
	case senseMsg:
		m.senses[msg.sense] = msg.online
	case micMsg:
		// The terminal has no microphone.
	case actionErrMsg:
		m.errText = msg.err.Error()
	}

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) entry(id string) *entry {
	i, ok := m.index[id]
	if !ok {
		return nil
	}
	return &m.entries[i]
}

// command turns an input line into an action. Actions run as commands so the console, which pushes view
// updates back into the program, never runs on the event loop.
func (m Model) command(line string) tea.Cmd {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit":
		return tea.Quit
	case "/help":
		return func() tea.Msg {
			return statusMsg{text: "/brain <key> · /vision|/ears|/voice on|off · /+1 · /-1 · /tasks · /quit"}
		}
	case "/brain":
		if len(fields) != 2 {
			return actionErr(errors.New("usage: /brain <key>"))
		}
		return m.run(func(ctx context.Context) error {
			return m.actions.SwitchPersona(ctx, strings.ToLower(fields[1]))
		})
	case "/+1", "/-1":
		score := 1
		if fields[0] == "/-1" {
			score = -1
		}
		turnID := m.lastFinal
		if turnID == "" {
			return actionErr(ErrNoRatableTurn)
		}
		return m.run(func(context.Context) error {
			return m.actions.SendFeedback(turnID, score)
		})
	}

	if sense, ok := console.ParseSense(strings.TrimPrefix(strings.ToLower(fields[0]), "/")); ok && strings.HasPrefix(fields[0], "/") {
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			return actionErr(fmt.Errorf("usage: /%s on|off", sense))
		}
		on := fields[1] == "on"
		return m.run(func(ctx context.Context) error {
			return m.actions.ToggleSense(ctx, sense, on)
		})
	}

	return m.run(func(ctx context.Context) error {
		return m.actions.SendMessage(ctx, line)
	})
}

func (m Model) run(action func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		if err := action(ctx); err != nil {
			return actionErrMsg{err: err}
		}
		return nil
	}
}

func actionErr(err error) tea.Cmd {
	return func() tea.Msg { return actionErrMsg{err: err} }
}

func (m *Model) restyleBars() {
	width := m.width/2 - 12
	if width < 10 {
		width = 10
	}
	for _, name := range []string{console.BarCPU, console.BarRAM} {
		m.bars[name] = progress.New(
			progress.WithSolidFill(m.theme.Hex),
			progress.WithWidth(width),
			progress.WithoutPercentage(),
		)
	}
}

func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom()

	var sb strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(m.renderEntry(e))
	}
	m.viewport.SetContent(sb.String())

	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) renderEntry(e entry) string {
	switch e.role {
	case models.RoleUser:
		return userStyle.Render("você") + "\n" + messageStyle.Render(e.text)
	case models.RoleSystem:
		return errorStyle.Render(e.text)
	}

	name := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Hex)).Bold(true).Render("argus")
	body := e.text
	if !e.final {
		if e.typing {
			body = mutedStyle.Render("digitando")
		}
		return name + "\n" + messageStyle.Render(body+"▍")
	}

	if !e.ratable {
		return name + "\n" + body
	}
	hint := mutedStyle.Render("/+1 · /-1")
	if e.rated {
		hint = mutedStyle.Render("avaliado")
	}
	return name + "\n" + body + "\n" + hint
}

func (m Model) headerHeight() int {
	return 4
}

func (m Model) View() string {
	accent := lipgloss.Color(m.theme.Hex)

	var personas []string
	for _, p := range m.personas {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Color.Hex)).Padding(0, 1)
		if p.Control == m.active {
			style = style.Reverse(true)
		}
		personas = append(personas, style.Render(p.Control))
	}
	title := titleStyle.Foreground(accent).Render("ARGUS")
	header := lipgloss.JoinHorizontal(lipgloss.Center, append([]string{title}, personas...)...)

	var senses []string
	for _, s := range console.Senses {
		mark := "○"
		if m.senses[s] {
			mark = "●"
		}
		senses = append(senses, mark+" "+string(s))
	}
	feed := "NO SIGNAL"
	if m.live {
		feed = "LIVE"
	}
	senseLine := mutedStyle.Render(strings.Join(senses, "  ") + "  · camera: " + feed)
	if m.gesture != "" {
		senseLine += "  " + lipgloss.NewStyle().Foreground(accent).Render(m.gesture)
	}

	var bars []string
	for _, name := range []string{console.BarCPU, console.BarRAM} {
		label := fmt.Sprintf("%s %3.0f%%", strings.ToUpper(name), m.loads[name])
		if m.warnings[name] {
			label = warningStyle.Render(label)
		}
		bars = append(bars, label+" "+m.bars[name].ViewAs(m.loads[name]/100))
	}
	barLine := strings.Join(bars, "   ")

	status := mutedStyle.Render(m.status)
	if m.errText != "" {
		status = errorStyle.Render(m.errText)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		senseLine,
		barLine,
		"",
		m.viewport.View(),
		status,
		m.input.View(),
	)
}

// plainText turns the escaped markup of a user or system message back into terminal text.
func plainText(content string) string {
	return html.UnescapeString(strings.ReplaceAll(content, "<br>", "\n"))
}
