package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MegaGrindStone/argus-console/internal/console"
	"github.com/MegaGrindStone/argus-console/internal/models"
	"github.com/tmaxmax/go-sse"
)

// message is the template view of one chat entry.
type message struct {
	ID        string
	Role      string
	Content   template.HTML
	Text      string
	Timestamp time.Time

	StreamingState string
	Typing         bool

	Feedback         bool
	FeedbackDisabled bool
}

type barState struct {
	Name    string
	Percent float64
	Warning bool
}

// sseView implements console.View by rendering partial templates and publishing them to every connected
// browser. It also keeps the last state of the page so a freshly opened tab starts where the others are.
type sseView struct {
	sseSrv    *sse.Server
	templates *template.Template
	logger    *slog.Logger

	mu       sync.Mutex
	order    []string
	messages map[string]message
	theme    models.Color
	active   string
	bars     map[string]barState
	image    string
	live     bool
	status   string
	gesture  string
	senses   map[console.Sense]bool
	mic      bool
}

// maxHistory bounds the messages a new tab receives.
const maxHistory = 200

// SSE event types for real-time updates.
const (
	messageSSEType = "message"
	scrollSSEType  = "scroll"
	themeSSEType   = "theme"
	personaSSEType = "persona"
	barSSEType     = "bar"
	frameSSEType   = "frame"
	statusSSEType  = "status"
	gestureSSEType = "gesture"
	senseSSEType   = "sense"
	micSSEType     = "mic"
	speakSSEType   = "speak"
	listenSSEType  = "listen"
	closeSSEType   = "closeConnection"
)

func (v *sseView) AppendMessage(msg models.Message) {
	state := string(msg.StreamingState)
	if state == "" {
		state = string(models.StreamingStateEnded)
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.upsertLocked(message{
		ID:   msg.ID,
		Role: string(msg.Role),
		// Message content is escaped or sanitized before it reaches the view.
		Content:        template.HTML(msg.Content), //nolint:gosec
		Timestamp:      ts,
		StreamingState: state,
	})
}

func (v *sseView) StartPlaceholder(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.upsertLocked(message{
		ID:             id,
		Role:           string(models.RoleAssistant),
		Timestamp:      time.Now(),
		StreamingState: string(models.StreamingStateLoading),
		Typing:         true,
	})
}

func (v *sseView) UpdatePlaceholder(id, text string, typing bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	msg, ok := v.messages[id]
	if !ok {
		return
	}
	msg.Text = text
	msg.Typing = typing
	msg.StreamingState = string(models.StreamingStateStreaming)
	v.upsertLocked(msg)
}

func (v *sseView) FinalizeMessage(id, content string, fb models.Feedback) {
	v.mu.Lock()
	defer v.mu.Unlock()
	msg, ok := v.messages[id]
	if !ok {
		return
	}
	msg.Text = ""
	msg.Typing = false
	msg.Content = template.HTML(content) //nolint:gosec
	msg.StreamingState = string(models.StreamingStateEnded)
	msg.Feedback = fb.TurnID != ""
	v.upsertLocked(msg)
}

func (v *sseView) DisableFeedback(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	msg, ok := v.messages[id]
	if !ok {
		return
	}
	msg.FeedbackDisabled = true
	v.upsertLocked(msg)
}

func (v *sseView) ScrollToBottom() {
	v.publish(scrollSSEType, "bottom")
}

func (v *sseView) SetThemeToken(c models.Color) {
	v.mu.Lock()
	v.theme = c
	v.mu.Unlock()
	v.publish(themeSSEType, c.Hex)
}

func (v *sseView) HighlightControl(active string, _ []string) {
	v.mu.Lock()
	v.active = active
	v.mu.Unlock()
	v.publishJSON(personaSSEType, map[string]string{"active": active})
}

func (v *sseView) SetBar(name string, percent float64, warning bool) {
	b := barState{Name: name, Percent: percent, Warning: warning}
	v.mu.Lock()
	if v.bars == nil {
		v.bars = map[string]barState{}
	}
	v.bars[name] = b
	v.mu.Unlock()
	v.publishJSON(barSSEType, map[string]any{"name": name, "percent": percent, "warning": warning})
}

func (v *sseView) SetImage(image string, live bool) {
	v.mu.Lock()
	v.image, v.live = image, live
	v.mu.Unlock()
	v.publishJSON(frameSSEType, map[string]any{"image": image, "live": live})
}

func (v *sseView) SetStatus(text string) {
	v.mu.Lock()
	v.status = text
	v.mu.Unlock()
	v.publishJSON(statusSSEType, map[string]string{"text": text})
}

func (v *sseView) SetGesture(text string) {
	v.mu.Lock()
	v.gesture = text
	v.mu.Unlock()
	v.publishJSON(gestureSSEType, map[string]string{"text": text})
}

func (v *sseView) SetSense(sense console.Sense, online bool) {
	v.mu.Lock()
	if v.senses == nil {
		v.senses = map[console.Sense]bool{}
	}
	v.senses[sense] = online
	v.mu.Unlock()
	v.publishJSON(senseSSEType, map[string]any{"sense": sense, "online": online})
}

func (v *sseView) SetMic(available bool) {
	v.mu.Lock()
	v.mic = available
	v.mu.Unlock()
	v.publishJSON(micSSEType, map[string]bool{"available": available})
}

// upsertLocked stores msg and publishes its fragment. Browsers replace an element with the same id or
// append a new one.
func (v *sseView) upsertLocked(msg message) {
	if v.messages == nil {
		v.messages = map[string]message{}
	}
	if _, ok := v.messages[msg.ID]; !ok {
		v.order = append(v.order, msg.ID)
		if len(v.order) > maxHistory {
			delete(v.messages, v.order[0])
			v.order = v.order[1:]
		}
	}
	v.messages[msg.ID] = msg

	var sb strings.Builder
	if err := v.templates.ExecuteTemplate(&sb, "message", msg); err != nil {
		v.logger.Error("Failed to render message",
			slog.String("messageID", msg.ID),
			slog.String(errLoggerKey, err.Error()))
		return
	}
	v.publish(messageSSEType, sb.String())
}

func (v *sseView) publishJSON(typ string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		v.logger.Error("Failed to marshal event",
			slog.String("type", typ),
			slog.String(errLoggerKey, err.Error()))
		return
	}
	v.publish(typ, string(b))
}

func (v *sseView) publish(typ string, data string) {
	msg := sse.Message{Type: sse.Type(typ)}
	msg.AppendData(data)
	if err := v.sseSrv.Publish(&msg); err != nil {
		v.logger.Error("Failed to publish event",
			slog.String("type", typ),
			slog.String(errLoggerKey, err.Error()))
	}
}

// pageState is a snapshot of everything the page shows.
type pageState struct {
	Messages []message
	Theme    models.Color
	Active   string
	Bars     map[string]barState
	Image    string
	Live     bool
	Status   string
	Gesture  string
	Senses   map[console.Sense]bool
	Mic      bool
}

func (v *sseView) snapshot() pageState {
	v.mu.Lock()
	defer v.mu.Unlock()

	msgs := make([]message, 0, len(v.order))
	for _, id := range v.order {
		msgs = append(msgs, v.messages[id])
	}
	bars := make(map[string]barState, len(v.bars))
	for k, b := range v.bars {
		bars[k] = b
	}
	senses := make(map[console.Sense]bool, len(v.senses))
	for k, s := range v.senses {
		senses[k] = s
	}

	return pageState{
		Messages: msgs,
		Theme:    v.theme,
		Active:   v.active,
		Bars:     bars,
		Image:    v.image,
		Live:     v.live,
		Status:   v.status,
		Gesture:  v.gesture,
		Senses:   senses,
		Mic:      v.mic,
	}
}

// maxUtterance bounds how long a speaking report is trusted when the browser never reports the end.
const maxUtterance = time.Minute

// sseSynth bridges the browser's speech engines. The browser reports its voices, whether it is speaking
// and whether recognition exists. The last report wins when several tabs are open.
type sseSynth struct {
	view *sseView

	mu          sync.Mutex
	speaking    bool
	since       time.Time
	voices      []models.Voice
	recognition bool
}

func newSSESynth(view *sseView) *sseSynth {
	return &sseSynth{view: view}
}

func (s *sseSynth) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking && time.Since(s.since) < maxUtterance
}

func (s *sseSynth) Voices() []models.Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Voice(nil), s.voices...)
}

func (s *sseSynth) Speak(u models.Utterance) {
	// Speaking starts now, before the browser confirms it, so a second reply arriving meanwhile is dropped.
	s.mu.Lock()
	s.speaking = true
	s.since = time.Now()
	s.mu.Unlock()

	s.view.publishJSON(speakSSEType, map[string]any{
		"text":  u.Text,
		"voice": u.Voice,
		"lang":  u.Lang,
		"rate":  u.Rate,
		"pitch": u.Pitch,
	})
}

func (s *sseSynth) Supported() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recognition
}

func (s *sseSynth) Start() error {
	s.view.publish(listenSSEType, "start")
	return nil
}

func (s *sseSynth) report(speaking bool, voices []models.Voice, recognition bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = speaking
	s.since = time.Now()
	if voices != nil {
		s.voices = voices
	}
	s.recognition = recognition
}
