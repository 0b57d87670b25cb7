package console_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/MegaGrindStone/argus-console/internal/console"
	"github.com/MegaGrindStone/argus-console/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type placeholder struct {
	text    string
	typing  bool
	final   bool
	content string
	fb      models.Feedback

	feedbackDisabled bool
	// renders counts how many times content was produced for this node.
	renders int
}

type bar struct {
	percent float64
	warning bool
}

type fakeView struct {
	mu sync.Mutex

	messages     []models.Message
	order        []string
	placeholders map[string]*placeholder
	// history records every text the placeholder displayed, in order.
	history map[string][]string
	scrolls int

	theme       models.Color
	highlighted string
	cleared     []string

	bars      map[string]bar
	image     string
	live      bool
	status    string
	gesture   string
	senses    map[console.Sense]bool
	micShown  bool
	micCalled bool
}

func newFakeView() *fakeView {
	return &fakeView{
		placeholders: map[string]*placeholder{},
		history:      map[string][]string{},
		bars:         map[string]bar{},
		senses:       map[console.Sense]bool{},
	}
}

func (v *fakeView) AppendMessage(msg models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messages = append(v.messages, msg)
}

func (v *fakeView) StartPlaceholder(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.order = append(v.order, id)
	v.placeholders[id] = &placeholder{typing: true}
}

func (v *fakeView) UpdatePlaceholder(id, text string, typing bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.placeholders[id]
	if !ok {
		return
	}
	p.text = text
	p.typing = typing
	v.history[id] = append(v.history[id], text)
}

func (v *fakeView) FinalizeMessage(id, content string, fb models.Feedback) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.placeholders[id]
	if !ok {
		return
	}
	p.final = true
	p.typing = false
	p.content = content
	p.fb = fb
	p.renders++
}

func (v *fakeView) DisableFeedback(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if p, ok := v.placeholders[id]; ok {
		p.feedbackDisabled = true
	}
}

func (v *fakeView) ScrollToBottom() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scrolls++
}

func (v *fakeView) SetThemeToken(c models.Color) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.theme = c
}

func (v *fakeView) HighlightControl(active string, all []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.highlighted = active
	v.cleared = v.cleared[:0]
	for _, c := range all {
		if c != active {
			v.cleared = append(v.cleared, c)
		}
	}
}

func (v *fakeView) SetBar(name string, percent float64, warning bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bars[name] = bar{percent: percent, warning: warning}
}

func (v *fakeView) SetImage(image string, live bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.image = image
	v.live = live
}

func (v *fakeView) SetStatus(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status = text
}

func (v *fakeView) SetGesture(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gesture = text
}

func (v *fakeView) SetSense(sense console.Sense, online bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.senses[sense] = online
}

func (v *fakeView) SetMic(available bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.micShown = available
	v.micCalled = true
}

func (v *fakeView) only(t interface{ Fatalf(string, ...any) }) *placeholder {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.order) != 1 {
		t.Fatalf("want exactly one placeholder, got %d", len(v.order))
	}
	return v.placeholders[v.order[0]]
}

// plainRenderer wraps text so tests can tell rendered from raw content.
type plainRenderer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *plainRenderer) Render(text string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, text)
	if r.err != nil {
		return "", r.err
	}
	return "<p>" + text + "</p>", nil
}

type fakeReporter struct {
	mu      sync.Mutex
	reports []models.Feedback
	err     error
	// block, when set, holds every report until it is closed.
	block chan struct{}
}

func (r *fakeReporter) ReportFeedback(_ context.Context, fb models.Feedback) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, fb)
	return r.err
}

func (r *fakeReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

type emitted struct {
	event   string
	payload string
}

// fakeTransport records emits and lets tests deliver inbound events synchronously.
type fakeTransport struct {
	mu       sync.Mutex
	handlers map[string][]func(json.RawMessage)
	emits    []emitted
	err      error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: map[string][]func(json.RawMessage){}}
}

func (t *fakeTransport) On(event string, handler func(json.RawMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[event] = append(t.handlers[event], handler)
}

func (t *fakeTransport) Emit(_ context.Context, event string, payload any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	t.emits = append(t.emits, emitted{event: event, payload: string(b)})
	return nil
}

func (t *fakeTransport) deliver(event, payload string) {
	t.mu.Lock()
	handlers := t.handlers[event]
	t.mu.Unlock()

	var data json.RawMessage
	if payload != "" {
		data = json.RawMessage(payload)
	}
	for _, h := range handlers {
		h(data)
	}
}

var errOffline = errors.New("offline")

type fakeSynth struct {
	mu       sync.Mutex
	speaking bool
	voices   []models.Voice
	spoken   []models.Utterance
}

func (s *fakeSynth) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

func (s *fakeSynth) Voices() []models.Voice {
	return s.voices
}

func (s *fakeSynth) Speak(u models.Utterance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, u)
}

type fakeRecognizer struct {
	supported bool
	starts    int
}

func (r *fakeRecognizer) Supported() bool { return r.supported }

func (r *fakeRecognizer) Start() error {
	r.starts++
	return nil
}
