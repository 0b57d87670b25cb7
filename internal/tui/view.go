package tui

import (
	"sync"

	"github.com/MegaGrindStone/argus-console/internal/console"
	"github.com/MegaGrindStone/argus-console/internal/models"
	tea "github.com/charmbracelet/bubbletea"
)

type (
	appendMsg struct {
		msg models.Message
	}
	placeholderMsg struct {
		id string
	}
	placeholderUpdateMsg struct {
		id     string
		text   string
		typing bool
	}
	finalizeMsg struct {
		id      string
		content string
		fb      models.Feedback
	}
	feedbackDisabledMsg struct {
		id string
	}
	scrollMsg    struct{}
	themeMsg     struct{ color models.Color }
	highlightMsg struct{ active string }
	barMsg       struct {
		name    string
		percent float64
		warning bool
	}
	imageMsg   struct{ live bool }
	statusMsg  struct{ text string }
	gestureMsg struct{ text string }
	senseMsg   struct {
		sense  console.Sense
		online bool
	}
	micMsg struct{ available bool }
)

// View implements console.View by turning every update into a tea.Msg. Updates are queued and delivered
// in order by a single pump, so the console never blocks on the program's event loop.
type View struct {
	mu     sync.Mutex
	queue  []tea.Msg
	signal chan struct{}
}

// NewView creates a view. Updates sent before Run starts are kept until then.
func NewView() *View {
	return &View{signal: make(chan struct{}, 1)}
}

// Run delivers queued updates to send until done is closed. send is usually tea.Program.Send.
func (v *View) Run(send func(tea.Msg), done <-chan struct{}) {
	for {
		v.mu.Lock()
		batch := v.queue
		v.queue = nil
		v.mu.Unlock()

		for _, msg := range batch {
			send(msg)
		}

		select {
		case <-done:
			return
		case <-v.signal:
		}
	}
}

func (v *View) push(msg tea.Msg) {
	v.mu.Lock()
	v.queue = append(v.queue, msg)
	v.mu.Unlock()

	select {
	case v.signal <- struct{}{}:
	default:
	}
}

func (v *View) AppendMessage(msg models.Message) { v.push(appendMsg{msg: msg}) }
func (v *View) StartPlaceholder(id string)       { v.push(placeholderMsg{id: id}) }

func (v *View) UpdatePlaceholder(id, text string, typing bool) {
	v.push(placeholderUpdateMsg{id: id, text: text, typing: typing})
}

func (v *View) FinalizeMessage(id, content string, fb models.Feedback) {
	v.push(finalizeMsg{id: id, content: content, fb: fb})
}

func (v *View) DisableFeedback(id string)    { v.push(feedbackDisabledMsg{id: id}) }
func (v *View) ScrollToBottom()              { v.push(scrollMsg{}) }
func (v *View) SetThemeToken(c models.Color) { v.push(themeMsg{color: c}) }
func (v *View) HighlightControl(active string, _ []string) {
	v.push(highlightMsg{active: active})
}

func (v *View) SetBar(name string, percent float64, warning bool) {
	v.push(barMsg{name: name, percent: percent, warning: warning})
}

// SetImage only tracks whether the feed is live; a terminal cannot show the frame.
func (v *View) SetImage(_ string, live bool)          { v.push(imageMsg{live: live}) }
func (v *View) SetStatus(text string)                 { v.push(statusMsg{text: text}) }
func (v *View) SetGesture(text string)                { v.push(gestureMsg{text: text}) }
func (v *View) SetSense(sense console.Sense, on bool) { v.push(senseMsg{sense: sense, online: on}) }
func (v *View) SetMic(available bool)                 { v.push(micMsg{available: available}) }
