package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MegaGrindStone/argus-console/internal/models"
	"github.com/google/uuid"
)

// Renderer converts the complete text of a turn into view content.
type Renderer interface {
	Render(text string) (string, error)
}

// FeedbackReporter delivers a reward signal to the backend.
type FeedbackReporter interface {
	ReportFeedback(ctx context.Context, fb models.Feedback) error
}

// Phase is the lifecycle stage of a Turn.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseStreaming
	PhaseFinalized
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseStreaming:
		return "streaming"
	case PhaseFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Turn is one assistant response cycle, from stream start to finalization.
type Turn struct {
	ID      string
	Query   string
	Persona string
	Phase   Phase

	text         strings.Builder
	final        string
	feedbackSent bool
}

var (
	// ErrInvalidScore is returned by SendFeedback for scores other than +1 and -1.
	ErrInvalidScore = errors.New("feedback score must be +1 or -1")
	// ErrUnknownTurn is returned by SendFeedback for ids that do not name a finalized, non-empty turn.
	ErrUnknownTurn = errors.New("unknown or unfinished turn")
	// ErrFeedbackSent is returned by SendFeedback when the turn has already been rated.
	ErrFeedbackSent = errors.New("feedback already sent")
)

const feedbackTimeout = 10 * time.Second

// maxTurns bounds how many finalized turns stay ratable.
const maxTurns = 200

// Controller turns the stream start/chunk/end event sequence into one message per turn. At most one
// turn streams at a time. Markdown is rendered once, when the turn ends, never on partial text.
type Controller struct {
	mu sync.Mutex

	view     MessageView
	renderer Renderer
	reporter FeedbackReporter
	speak    func(text string)

	current      *Turn
	turns        map[string]*Turn
	finished     []string
	pendingQuery string
	persona      string

	reports sync.WaitGroup

	logger *slog.Logger
}

// NewController creates a controller drawing on view.
func NewController(view MessageView, renderer Renderer, reporter FeedbackReporter, logger *slog.Logger) *Controller {
	return &Controller{
		view:     view,
		renderer: renderer,
		reporter: reporter,
		turns:    make(map[string]*Turn),
		logger:   logger.With(slog.String("module", "controller")),
	}
}

// SetSpeaker installs a hook called with the final text of every turn.
func (c *Controller) SetSpeaker(speak func(text string)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.speak = speak
}

// Submit records the user input that the next turn answers.
func (c *Controller) Submit(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pendingQuery = query
}

// SetPersona records the persona that new turns are attributed to.
func (c *Controller) SetPersona(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.persona = name
}

// Detach drops the view. Later steps still update turn state but draw nothing.
func (c *Controller) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.view = NopView{}
}

// OnStreamStart opens a new turn. A turn that is still streaming is finalized first with the text it has
// accumulated.
func (c *Controller) OnStreamStart() {
	c.mu.Lock()
	spoken := c.startLocked()
	speak := c.speak
	c.mu.Unlock()

	if speak != nil && spoken != "" {
		speak(spoken)
	}
}

// startLocked opens a turn and returns the final text of the turn it closed, if any.
func (c *Controller) startLocked() string {
	var spoken string
	if c.current != nil {
		c.logger.Warn("Stream started while another turn was streaming",
			slog.String("turnID", c.current.ID))
		spoken = c.finalizeLocked("")
	}

	t := &Turn{
		ID:      uuid.New().String(),
		Query:   c.pendingQuery,
		Persona: c.persona,
		Phase:   PhaseStreaming,
	}
	c.pendingQuery = ""
	c.current = t
	c.turns[t.ID] = t

	c.view.StartPlaceholder(t.ID)
	c.view.ScrollToBottom()
	return spoken
}

// OnStreamChunk appends chunk to the streaming turn. Without one it does nothing.
func (c *Controller) OnStreamChunk(chunk string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.current
	if t == nil {
		c.logger.Debug("Dropping chunk without a streaming turn", slog.Int("length", len(chunk)))
		return
	}

	t.text.WriteString(chunk)
	text := t.text.String()
	c.view.UpdatePlaceholder(t.ID, text, text == "")
	c.view.ScrollToBottom()
}

// OnStreamEnd finalizes the streaming turn. The locally accumulated text takes precedence; fullText is
// only used when no chunk carried any text. Without a streaming turn it does nothing.
func (c *Controller) OnStreamEnd(fullText string) {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		c.logger.Debug("Dropping stream end without a streaming turn")
		return
	}
	spoken := c.finalizeLocked(fullText)
	speak := c.speak
	c.mu.Unlock()

	if speak != nil && spoken != "" {
		speak(spoken)
	}
}

// OnResponse shows a reply that arrived in one piece. When a turn is streaming the reply completes that
// turn, which is how the backend reports a failure after announcing a stream; otherwise it becomes a
// complete turn of its own.
func (c *Controller) OnResponse(text string) {
	c.mu.Lock()
	if c.current == nil {
		c.startLocked()
	}
	if c.current.text.Len() > 0 && text != "" {
		c.current.text.WriteString("\n\n")
	}
	c.current.text.WriteString(text)
	spoken := c.finalizeLocked("")
	speak := c.speak
	c.mu.Unlock()

	if speak != nil && spoken != "" {
		speak(spoken)
	}
}

func (c *Controller) finalizeLocked(fullText string) string {
	t := c.current
	c.current = nil

	text := t.text.String()
	if text == "" {
		text = fullText
	}
	t.Phase = PhaseFinalized

	content, err := c.renderer.Render(text)
	if err != nil {
		c.logger.Error("Failed to render turn",
			slog.String("turnID", t.ID),
			slog.String(errLoggerKey, err.Error()))
		content = "<p>" + models.UserContent(text) + "</p>"
	}

	// An empty answer has nothing to rate, so it is finalized without a feedback binding.
	var fb models.Feedback
	if text != "" {
		fb = models.Feedback{
			TurnID:   t.ID,
			Persona:  t.Persona,
			Query:    t.Query,
			Response: text,
		}
	}
	c.view.FinalizeMessage(t.ID, content, fb)
	c.view.ScrollToBottom()

	t.final = text
	c.retireLocked(t.ID)
	return text
}

// retireLocked remembers id as finalized and forgets the oldest finalized turns beyond maxTurns.
func (c *Controller) retireLocked(id string) {
	c.finished = append(c.finished, id)
	for len(c.finished) > maxTurns {
		delete(c.turns, c.finished[0])
		c.finished = c.finished[1:]
	}
}

// Streaming reports whether a turn is currently streaming.
func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current != nil
}

// Phase returns the phase of the turn with the given id, or PhaseEmpty if there is none.
func (c *Controller) Phase(turnID string) Phase {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.turns[turnID]
	if !ok {
		return PhaseEmpty
	}
	return t.Phase
}

// SendFeedback reports a +1/-1 score for a finalized turn. Both controls are disabled before the report
// is sent, and only the first call per turn reports; the report itself runs in the background and its
// failures are logged, never returned.
func (c *Controller) SendFeedback(turnID string, score int) error {
	if score != 1 && score != -1 {
		return ErrInvalidScore
	}

	c.mu.Lock()
	t, ok := c.turns[turnID]
	if !ok || t.Phase != PhaseFinalized || t.final == "" {
		c.mu.Unlock()
		return ErrUnknownTurn
	}
	if t.feedbackSent {
		c.mu.Unlock()
		return ErrFeedbackSent
	}
	t.feedbackSent = true
	c.view.DisableFeedback(t.ID)

	fb := models.Feedback{
		TurnID:   t.ID,
		Persona:  t.Persona,
		Query:    t.Query,
		Response: t.final,
		Score:    score,
	}
	c.mu.Unlock()

	c.reports.Add(1)
	go func() {
		defer c.reports.Done()

		ctx, cancel := context.WithTimeout(context.Background(), feedbackTimeout)
		defer cancel()

		if err := c.reporter.ReportFeedback(ctx, fb); err != nil {
			c.logger.Error("Failed to report feedback",
				slog.String("turnID", fb.TurnID),
				slog.Int("score", fb.Score),
				slog.String(errLoggerKey, err.Error()))
		}
	}()

	return nil
}

// Wait blocks until every feedback report started by SendFeedback has finished.
func (c *Controller) Wait() {
	c.reports.Wait()
}
