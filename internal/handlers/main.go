package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	argusconsole "github.com/MegaGrindStone/argus-console"
	"github.com/MegaGrindStone/argus-console/internal/console"
	"github.com/MegaGrindStone/argus-console/internal/models"
	"github.com/tmaxmax/go-sse"
)

// Renderer converts assistant markdown into HTML and provides the stylesheet its code blocks need.
type Renderer interface {
	console.Renderer
	CSS() (string, error)
}

// Backend defines the HTTP side of the Argus backend: the feedback reward signal and the task and note
// stores. Every operation only reports success or failure.
type Backend interface {
	console.FeedbackReporter

	AddTask(ctx context.Context, task models.Task) error
	DeleteTask(ctx context.Context, id string) error
	CompleteTask(ctx context.Context, id string) error
	AddNote(ctx context.Context, note models.Note) error
}

// Main handles the web console: it serves the page, turns form posts into console actions, and pushes
// every view update to the connected browsers over server-sent events.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	view    *sseView
	synth   *sseSynth
	console *console.Console
	backend Backend

	codeCSS template.CSS

	logger *slog.Logger
}

const errLoggerKey = "err"

// NewMain creates the web console on top of transport. It parses the embedded templates, builds the SSE
// view, and binds the console's event handlers on transport, so it must be called before the transport
// connects.
func NewMain(
	transport console.Transport,
	renderer Renderer,
	backend Backend,
	opts console.Options,
	logger *slog.Logger,
) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		argusconsole.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	css, err := renderer.CSS()
	if err != nil {
		return Main{}, fmt.Errorf("failed to generate code stylesheet: %w", err)
	}

	logger = logger.With(slog.String("module", "handlers"))

	sseSrv := &sse.Server{
		OnSession: func(s *sse.Session) (sse.Subscription, bool) {
			// Every browser sees the same console, so all clients share the default topic
			return sse.Subscription{
				Client:      s,
				LastEventID: s.LastEventID,
				Topics:      []string{sse.DefaultTopic},
			}, true
		},
	}

	view := &sseView{
		sseSrv:    sseSrv,
		templates: tmpl,
		logger:    logger,
	}
	synth := newSSESynth(view)

	opts.Synthesizer = synth
	opts.Recognizer = synth

	c := console.New(transport, view, renderer, backend, opts, logger)
	c.Bind()

	return Main{
		sseSrv:    sseSrv,
		templates: tmpl,
		view:      view,
		synth:     synth,
		console:   c,
		backend:   backend,
		// The stylesheet is generated by chroma, not user input.
		codeCSS: template.CSS(css),
		logger:  logger,
	}, nil
}

// HandleSSE streams view updates to a browser.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// Shutdown gracefully terminates the Main instance's SSE server. It broadcasts a close message to all
// connected clients and waits up to 5 seconds for connections to terminate, and for pending feedback
// reports to finish. After the timeout, any remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type(closeSSEType)}
	// An SSE event needs a data field to be dispatched
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	reported := make(chan struct{})
	go func() {
		m.console.Wait()
		close(reported)
	}()
	select {
	case <-reported:
	case <-ctx.Done():
		m.logger.Warn("Feedback reports still pending at shutdown")
	}

	return m.sseSrv.Shutdown(ctx)
}
