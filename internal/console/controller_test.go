package console_test

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MegaGrindStone/argus-console/internal/console"
	"github.com/MegaGrindStone/argus-console/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController() (*console.Controller, *fakeView, *plainRenderer, *fakeReporter) {
	view := newFakeView()
	renderer := &plainRenderer{}
	reporter := &fakeReporter{}
	return console.NewController(view, renderer, reporter, discardLogger()), view, renderer, reporter
}

func TestControllerHelloWorld(t *testing.T) {
	c, view, renderer, _ := newTestController()

	c.Submit("greet me")
	c.OnStreamStart()
	c.OnStreamChunk("Hello")
	c.OnStreamChunk(" world")
	c.OnStreamEnd("")

	p := view.only(t)
	assert.True(t, p.final)
	assert.Equal(t, "<p>Hello world</p>", p.content)
	assert.Equal(t, []string{"Hello world"}, renderer.calls)
	assert.Equal(t, "greet me", p.fb.Query)
	assert.Equal(t, "Hello world", p.fb.Response)
	assert.False(t, c.Streaming())
}

func TestControllerConcatenatesChunksInOrder(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
	}{
		{name: "no chunks", chunks: nil},
		{name: "single", chunks: []string{"abc"}},
		{name: "empty chunks interleaved", chunks: []string{"", "a", "", "b", ""}},
		{name: "duplicates are kept", chunks: []string{"na", "na", "na"}},
		{name: "unicode", chunks: []string{"olá ", "👁️", " mundo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, view, _, _ := newTestController()

			c.OnStreamStart()
			for _, chunk := range tt.chunks {
				c.OnStreamChunk(chunk)
			}
			c.OnStreamEnd("")

			p := view.only(t)
			assert.Equal(t, strings.Join(tt.chunks, ""), p.fb.Response)
		})
	}
}

func TestControllerTypingMarkerClearsOnFirstText(t *testing.T) {
	c, view, _, _ := newTestController()

	c.OnStreamStart()
	p := view.only(t)
	assert.True(t, p.typing)

	c.OnStreamChunk("")
	assert.True(t, p.typing)

	c.OnStreamChunk("Hi")
	assert.False(t, p.typing)
	assert.Equal(t, "Hi", p.text)
}

func TestControllerChunkWithoutStart(t *testing.T) {
	c, view, renderer, _ := newTestController()

	assert.NotPanics(t, func() {
		c.OnStreamChunk("orphan")
		c.OnStreamEnd("orphan")
	})
	assert.Empty(t, view.order)
	assert.Empty(t, renderer.calls)
	assert.False(t, c.Streaming())

	// A later turn is unaffected by the dropped chunk.
	c.OnStreamStart()
	c.OnStreamChunk("fresh")
	c.OnStreamEnd("")
	assert.Equal(t, "fresh", view.only(t).fb.Response)
}

func TestControllerFullTextPrecedence(t *testing.T) {
	t.Run("local text wins", func(t *testing.T) {
		c, view, _, _ := newTestController()
		c.OnStreamStart()
		c.OnStreamChunk("streamed")
		c.OnStreamEnd("server")
		assert.Equal(t, "streamed", view.only(t).fb.Response)
	})

	t.Run("server text used when nothing streamed", func(t *testing.T) {
		c, view, _, _ := newTestController()
		c.OnStreamStart()
		c.OnStreamEnd("server")
		assert.Equal(t, "server", view.only(t).fb.Response)
	})
}

func TestControllerRendersMarkdownOnlyAtEnd(t *testing.T) {
	view := newFakeView()
	c := console.NewController(view, models.NewMarkdownRenderer(""), &fakeReporter{}, discardLogger())

	c.OnStreamStart()
	c.OnStreamChunk("**bo")
	c.OnStreamChunk("ld**")

	p := view.only(t)
	assert.False(t, p.final)
	for _, shown := range view.history[view.order[0]] {
		assert.NotContains(t, shown, "<strong>")
	}

	c.OnStreamEnd("")
	assert.Contains(t, p.content, "<strong>bold</strong>")
	assert.NotContains(t, p.content, "**")
	assert.Equal(t, 1, p.renders)
}

func TestControllerRenderFailureFallsBackToText(t *testing.T) {
	view := newFakeView()
	renderer := &plainRenderer{err: errors.New("boom")}
	c := console.NewController(view, renderer, &fakeReporter{}, discardLogger())

	c.OnStreamStart()
	c.OnStreamChunk("a < b")
	c.OnStreamEnd("")

	assert.Equal(t, "<p>a &lt; b</p>", view.only(t).content)
}

func TestControllerStartWhileStreamingFinalizesPrevious(t *testing.T) {
	c, view, renderer, _ := newTestController()

	c.OnStreamStart()
	c.OnStreamChunk("first")
	c.OnStreamStart()
	c.OnStreamChunk("second")
	c.OnStreamEnd("")

	require.Len(t, view.order, 2)
	first := view.placeholders[view.order[0]]
	second := view.placeholders[view.order[1]]
	assert.True(t, first.final)
	assert.Equal(t, "first", first.fb.Response)
	assert.Equal(t, "second", second.fb.Response)
	assert.Equal(t, []string{"first", "second"}, renderer.calls)
	assert.Equal(t, console.PhaseFinalized, c.Phase(view.order[0]))
	assert.Equal(t, console.PhaseFinalized, c.Phase(view.order[1]))
}

func TestControllerQueryCapturedOnce(t *testing.T) {
	c, view, _, _ := newTestController()

	c.Submit("first question")
	c.OnStreamStart()
	c.Submit("second question")
	c.OnStreamChunk("answer")
	c.OnStreamEnd("")

	assert.Equal(t, "first question", view.placeholders[view.order[0]].fb.Query)

	c.OnStreamStart()
	c.OnStreamEnd("ok")
	assert.Equal(t, "second question", view.placeholders[view.order[1]].fb.Query)
}

func TestControllerResponseIsCompleteTurn(t *testing.T) {
	c, view, _, _ := newTestController()

	c.OnResponse("Erro: timeout")

	p := view.only(t)
	assert.True(t, p.final)
	assert.Equal(t, "<p>Erro: timeout</p>", p.content)
	assert.False(t, c.Streaming())
}

func TestControllerResponseCompletesStreamingTurn(t *testing.T) {
	c, view, renderer, _ := newTestController()

	c.Submit("abrir planilha")
	c.OnStreamStart()
	c.OnResponse("Erro: boom")

	p := view.only(t)
	assert.True(t, p.final)
	assert.Equal(t, "<p>Erro: boom</p>", p.content)
	assert.Equal(t, "Erro: boom", p.fb.Response)
	assert.Equal(t, "abrir planilha", p.fb.Query)
	assert.Equal(t, []string{"Erro: boom"}, renderer.calls)
	assert.False(t, c.Streaming())

	c.OnResponse("depois")
	assert.Len(t, view.order, 2, "a response without a streaming turn opens its own")

	c.OnStreamStart()
	c.OnStreamChunk("Parcial")
	c.OnResponse("Erro: boom")
	require.Len(t, view.order, 3)
	assert.Equal(t, "Parcial\n\nErro: boom", view.placeholders[view.order[2]].fb.Response)
}

func TestControllerEmptyTurnHasNoFeedback(t *testing.T) {
	c, view, _, reporter := newTestController()

	c.Submit("oi")
	c.OnStreamStart()
	c.OnStreamEnd("")

	p := view.only(t)
	assert.True(t, p.final)
	assert.Equal(t, models.Feedback{}, p.fb)
	assert.ErrorIs(t, c.SendFeedback(view.order[0], 1), console.ErrUnknownTurn)
	c.Wait()
	assert.Zero(t, reporter.count())
}

func TestControllerForgetsOldTurns(t *testing.T) {
	c, view, _, _ := newTestController()

	for i := 0; i <= console.MaxTurns; i++ {
		c.OnResponse("ok")
	}

	require.Len(t, view.order, console.MaxTurns+1)
	oldest, newest := view.order[0], view.order[len(view.order)-1]
	assert.Equal(t, console.PhaseEmpty, c.Phase(oldest))
	assert.ErrorIs(t, c.SendFeedback(oldest, 1), console.ErrUnknownTurn)
	assert.Equal(t, console.PhaseFinalized, c.Phase(newest))
	require.NoError(t, c.SendFeedback(newest, 1))
	c.Wait()
}

func TestControllerSendFeedbackOnce(t *testing.T) {
	c, view, _, reporter := newTestController()
	reporter.block = make(chan struct{})

	c.SetPersona("The Operator")
	c.Submit("abrir planilha")
	c.OnStreamStart()
	c.OnStreamChunk("Feito.")
	c.OnStreamEnd("")
	id := view.order[0]

	require.NoError(t, c.SendFeedback(id, 1))
	// The controls are disabled before the report completes.
	assert.True(t, view.placeholders[id].feedbackDisabled)
	assert.ErrorIs(t, c.SendFeedback(id, -1), console.ErrFeedbackSent)

	close(reporter.block)
	c.Wait()

	require.Equal(t, 1, reporter.count())
	assert.Equal(t, models.Feedback{
		TurnID:   id,
		Persona:  "The Operator",
		Query:    "abrir planilha",
		Response: "Feito.",
		Score:    1,
	}, reporter.reports[0])
}

func TestControllerSendFeedbackConcurrentClicks(t *testing.T) {
	c, view, _, reporter := newTestController()

	c.OnStreamStart()
	c.OnStreamChunk("ok")
	c.OnStreamEnd("")
	id := view.order[0]

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.SendFeedback(id, 1)
		}()
	}
	wg.Wait()
	c.Wait()

	assert.Equal(t, 1, reporter.count())
}

func TestControllerSendFeedbackErrors(t *testing.T) {
	c, view, _, reporter := newTestController()

	assert.ErrorIs(t, c.SendFeedback("missing", 1), console.ErrUnknownTurn)

	c.OnStreamStart()
	id := view.order[0]
	assert.ErrorIs(t, c.SendFeedback(id, 1), console.ErrUnknownTurn, "streaming turns cannot be rated")

	c.OnStreamEnd("done")
	assert.ErrorIs(t, c.SendFeedback(id, 0), console.ErrInvalidScore)
	assert.ErrorIs(t, c.SendFeedback(id, 2), console.ErrInvalidScore)

	reporter.err = errors.New("backend down")
	require.NoError(t, c.SendFeedback(id, -1), "report failures are swallowed")
	c.Wait()
	assert.True(t, view.placeholders[id].feedbackDisabled)
}

func TestControllerDetachedViewIsNoop(t *testing.T) {
	c, view, _, _ := newTestController()
	c.Detach()

	assert.NotPanics(t, func() {
		c.OnStreamStart()
		c.OnStreamChunk("x")
		c.OnStreamEnd("")
	})
	assert.Empty(t, view.order)
	assert.False(t, c.Streaming())
}

func TestControllerSpeaksFinalText(t *testing.T) {
	c, _, _, _ := newTestController()

	spoken := make(chan string, 1)
	c.SetSpeaker(func(text string) { spoken <- text })

	c.OnStreamStart()
	c.OnStreamChunk("Olá")
	c.OnStreamEnd("")

	select {
	case got := <-spoken:
		assert.Equal(t, "Olá", got)
	case <-time.After(time.Second):
		t.Fatal("speaker was not called")
	}
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "empty", console.PhaseEmpty.String())
	assert.Equal(t, "streaming", console.PhaseStreaming.String())
	assert.Equal(t, "finalized", console.PhaseFinalized.String())
}
