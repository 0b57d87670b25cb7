// Package console holds the client-side logic of the Argus console: the streaming render controller,
// the persona, telemetry and voice reactors, and the wiring between them and the backend channel. It
// draws through the View interfaces, so the same logic serves the web and the terminal consoles.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MegaGrindStone/argus-console/internal/models"
	"github.com/google/uuid"
)

// Transport is the persistent bidirectional channel to the backend.
type Transport interface {
	On(event string, handler func(json.RawMessage))
	Emit(ctx context.Context, event string, payload any) error
}

// Sense is a backend capability that can be switched on and off from the console.
type Sense string

const (
	SenseVision Sense = "vision"
	SenseEars   Sense = "ears"
	SenseVoice  Sense = "voice"
)

// Senses lists every Sense.
var Senses = []Sense{SenseVision, SenseEars, SenseVoice}

// ParseSense returns the Sense named s.
func ParseSense(s string) (Sense, bool) {
	for _, sense := range Senses {
		if string(sense) == s {
			return sense, true
		}
	}
	return "", false
}

// Options tunes a Console. The zero value is usable.
type Options struct {
	Personas         []models.Persona
	WarningThreshold float64
	Voice            VoiceConfig

	// TaskCommands are literal inputs that ask the backend for pending tasks instead of chatting.
	TaskCommands []string
	// TaskKeywords additionally ask for pending tasks when a chat message contains one of them.
	TaskKeywords []string
	// GestureMarker routes status messages containing it to the gesture widget.
	GestureMarker string

	Synthesizer Synthesizer
	Recognizer  Recognizer
}

// Console binds backend events to the controller and reactors, and exposes the user's actions.
type Console struct {
	transport Transport
	view      View
	opts      Options

	controller *Controller
	personas   *PersonaReactor
	stats      *StatsReactor
	frames     *FrameReactor
	voice      *Voice

	personaKeys map[string]models.Persona

	logger *slog.Logger
}

type personaPayload struct {
	Name  string `json:"name"`
	Color any    `json:"color"`
}

type chunkPayload struct {
	Chunk string `json:"chunk"`
}

type streamEndPayload struct {
	FullText string `json:"full_text"`
}

type responsePayload struct {
	Text string `json:"text"`
}

type statusPayload struct {
	Msg   string `json:"msg"`
	Color any    `json:"color"`
}

type statsPayload struct {
	CPU float64 `json:"cpu"`
	RAM float64 `json:"ram"`
}

type framePayload struct {
	Image string `json:"image"`
}

type sensePayload struct {
	Status string `json:"status"`
}

type messagePayload struct {
	Message string `json:"message"`
}

type brainSwitchPayload struct {
	BrainKey string `json:"brain_key"`
}

type togglePayload struct {
	Action string `json:"action"`
}

const (
	errLoggerKey = "err"

	emitTimeout = 10 * time.Second

	// DefaultGestureMarker prefixes the vision events the backend relays as status updates.
	DefaultGestureMarker = "👁️"

	connectionErrorText = "Connection error."
)

// ErrUnknownPersona is returned when a persona switch names a key that is not configured.
var ErrUnknownPersona = errors.New("unknown persona")

// DefaultTaskCommands and DefaultTaskKeywords are used when Options leaves them empty.
var (
	DefaultTaskCommands = []string{"/tasks", "/tarefas"}
	DefaultTaskKeywords = []string{"pendências", "pendencias", "minhas tarefas"}
)

// New creates a console. Call Bind before the transport starts delivering events.
func New(
	transport Transport,
	view View,
	renderer Renderer,
	reporter FeedbackReporter,
	opts Options,
	logger *slog.Logger,
) *Console {
	if len(opts.Personas) == 0 {
		opts.Personas = models.DefaultPersonas()
	}
	if opts.Voice.Locale == "" && len(opts.Voice.Priority) == 0 {
		opts.Voice = DefaultVoiceConfig()
	}
	if len(opts.TaskCommands) == 0 {
		opts.TaskCommands = DefaultTaskCommands
	}
	if len(opts.TaskKeywords) == 0 {
		opts.TaskKeywords = DefaultTaskKeywords
	}
	if opts.GestureMarker == "" {
		opts.GestureMarker = DefaultGestureMarker
	}

	c := &Console{
		transport:   transport,
		view:        view,
		opts:        opts,
		personaKeys: make(map[string]models.Persona, len(opts.Personas)),
		logger:      logger.With(slog.String("module", "console")),
	}
	for _, p := range opts.Personas {
		c.personaKeys[p.Key] = p
	}

	c.controller = NewController(view, renderer, reporter, logger)
	c.personas = NewPersonaReactor(view, opts.Personas, c.setPersona)
	c.stats = NewStatsReactor(view, opts.WarningThreshold)
	c.frames = NewFrameReactor(view)
	c.voice = NewVoice(opts.Synthesizer, opts.Recognizer, opts.Voice, func(text string) {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()

		if err := c.SendMessage(ctx, text); err != nil {
			c.logger.Error("Failed to submit transcript", slog.String(errLoggerKey, err.Error()))
		}
	})
	c.controller.SetSpeaker(func(text string) { c.voice.Speak(text) })

	view.SetMic(c.voice.RecognitionSupported())

	return c
}

// setPersona attributes new turns to the persona called name. The backend reports display names but
// files rewards under persona keys.
func (c *Console) setPersona(name string) {
	c.controller.SetPersona(c.personaKey(name))
}

// personaKey maps a persona name to its configured key. Unknown names are kept as they are.
func (c *Console) personaKey(name string) string {
	control := controlKey(name)
	for _, p := range c.opts.Personas {
		switch {
		case strings.EqualFold(p.Name, name), strings.EqualFold(p.Key, name):
			return p.Key
		case p.Control != "" && strings.EqualFold(p.Control, control):
			return p.Key
		}
	}
	return name
}

// Controller returns the streaming render controller.
func (c *Console) Controller() *Controller {
	return c.controller
}

// Voice returns the voice bridge.
func (c *Console) Voice() *Voice {
	return c.voice
}

// Personas returns the configured personas.
func (c *Console) Personas() []models.Persona {
	return c.opts.Personas
}

// Bind registers a handler on the transport for every inbound event.
func (c *Console) Bind() {
	t := c.transport

	t.On("connect", func(json.RawMessage) {
		c.view.SetStatus("Connected.")
	})
	t.On("disconnect", func(json.RawMessage) {
		c.view.SetStatus("Disconnected.")
	})

	t.On("brain_change", func(data json.RawMessage) {
		var p personaPayload
		c.decode("brain_change", data, &p)
		c.personas.OnPersonaChange(p.Name, p.Color)
	})

	t.On("ai_stream_start", func(json.RawMessage) {
		c.controller.OnStreamStart()
	})
	t.On("ai_stream", func(data json.RawMessage) {
		var p chunkPayload
		if c.decode("ai_stream", data, &p) {
			c.controller.OnStreamChunk(p.Chunk)
		}
	})
	t.On("ai_stream_end", func(data json.RawMessage) {
		var p streamEndPayload
		c.decode("ai_stream_end", data, &p)
		c.controller.OnStreamEnd(p.FullText)
	})
	t.On("ai_response", func(data json.RawMessage) {
		var p responsePayload
		if c.decode("ai_response", data, &p) {
			c.controller.OnResponse(p.Text)
		}
	})

	t.On("status_update", func(data json.RawMessage) {
		var p statusPayload
		c.decode("status_update", data, &p)
		c.onStatus(p)
	})
	t.On("system_stats", func(data json.RawMessage) {
		var p statsPayload
		c.decode("system_stats", data, &p)
		c.stats.OnStats(models.SystemStats{CPU: p.CPU, RAM: p.RAM})
	})
	t.On("video_stream", func(data json.RawMessage) {
		var p framePayload
		c.decode("video_stream", data, &p)
		c.frames.OnFrame(p.Image)
	})

	for _, sense := range Senses {
		event := string(sense) + "_status"
		t.On(event, func(data json.RawMessage) {
			var p sensePayload
			c.decode(event, data, &p)
			c.view.SetSense(sense, p.Status == "online")
		})
	}

	t.On("mirror_user_message", func(data json.RawMessage) {
		var p messagePayload
		if c.decode("mirror_user_message", data, &p) && p.Message != "" {
			c.appendUser(p.Message)
			c.controller.Submit(p.Message)
		}
	})
}

// decode unmarshals an event payload into v. A missing payload leaves v untouched; a malformed one is
// logged and reported as false, leaving v at its zero value.
func (c *Console) decode(event string, data json.RawMessage, v any) bool {
	if len(data) == 0 {
		return true
	}
	if err := json.Unmarshal(data, v); err != nil {
		c.logger.Warn("Malformed event payload",
			slog.String("event", event),
			slog.String("payload", string(data)),
			slog.String(errLoggerKey, err.Error()))
		return false
	}
	return true
}

func (c *Console) onStatus(p statusPayload) {
	if p.Msg != "" {
		c.view.SetStatus(p.Msg)
		if strings.Contains(p.Msg, c.opts.GestureMarker) {
			c.view.SetGesture(p.Msg)
		}
	}
	if p.Color != nil {
		c.personas.OnThemeColor(p.Color)
	}
}

func (c *Console) appendUser(text string) {
	c.view.AppendMessage(models.Message{
		ID:             uuid.New().String(),
		Role:           models.RoleUser,
		Content:        models.UserContent(text),
		Timestamp:      time.Now(),
		StreamingState: models.StreamingStateEnded,
	})
	c.view.ScrollToBottom()
}

func (c *Console) connectionError(err error) {
	c.logger.Error("Transport failure", slog.String(errLoggerKey, err.Error()))
	c.view.AppendMessage(models.Message{
		ID:             uuid.New().String(),
		Role:           models.RoleSystem,
		Content:        connectionErrorText,
		Timestamp:      time.Now(),
		StreamingState: models.StreamingStateEnded,
	})
	c.view.ScrollToBottom()
}

func (c *Console) emit(ctx context.Context, event string, payload any) error {
	if err := c.transport.Emit(ctx, event, payload); err != nil {
		c.connectionError(err)
		return fmt.Errorf("failed to emit %s: %w", event, err)
	}
	return nil
}

// SendMessage shows text as a user message and sends it to the backend. Task commands are sent as
// check_tasks only; a message mentioning a task keyword is sent and followed by check_tasks. Blank input
// is ignored.
func (c *Console) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.appendUser(text)

	if c.isTaskCommand(text) {
		return c.emit(ctx, "check_tasks", struct{}{})
	}

	c.controller.Submit(text)
	if err := c.emit(ctx, "user_message", messagePayload{Message: text}); err != nil {
		return err
	}

	if c.mentionsTasks(text) {
		return c.emit(ctx, "check_tasks", struct{}{})
	}
	return nil
}

func (c *Console) isTaskCommand(text string) bool {
	for _, cmd := range c.opts.TaskCommands {
		if strings.EqualFold(text, cmd) {
			return true
		}
	}
	return false
}

func (c *Console) mentionsTasks(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range c.opts.TaskKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// SwitchPersona asks the backend to switch to the persona with the given key. The theme changes when the
// backend confirms with brain_change.
func (c *Console) SwitchPersona(ctx context.Context, key string) error {
	if _, ok := c.personaKeys[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPersona, key)
	}
	return c.emit(ctx, "manual_brain_switch", brainSwitchPayload{BrainKey: key})
}

// ToggleSense asks the backend to start or stop a sense. The toggle changes when the backend confirms
// with the sense's status event.
func (c *Console) ToggleSense(ctx context.Context, sense Sense, on bool) error {
	action := "stop"
	if on {
		action = "start"
	}
	return c.emit(ctx, "toggle_"+string(sense), togglePayload{Action: action})
}

// SendFeedback rates a finalized turn. See Controller.SendFeedback.
func (c *Console) SendFeedback(turnID string, score int) error {
	return c.controller.SendFeedback(turnID, score)
}

// Wait blocks until background feedback reports have finished.
func (c *Console) Wait() {
	c.controller.Wait()
}
