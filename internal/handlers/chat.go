package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/MegaGrindStone/argus-console/internal/console"
)

// HandleMessages sends the "message" form field to the backend. The user bubble, the assistant reply and
// any connection error reach the page over SSE, so a successful request has no body.
func (m Main) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := r.FormValue("message")
	if msg == "" {
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	if err := m.console.SendMessage(r.Context(), msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleFeedback rates a finalized assistant message. It expects "turn_id" and "score" (+1 or -1) form
// fields. The report to the backend runs in the background; its controls are disabled immediately.
func (m Main) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	turnID := r.FormValue("turn_id")
	score, err := strconv.Atoi(r.FormValue("score"))
	if turnID == "" || err != nil {
		http.Error(w, "turn_id and a numeric score are required", http.StatusBadRequest)
		return
	}

	err = m.console.SendFeedback(turnID, score)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, console.ErrInvalidScore):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, console.ErrUnknownTurn):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, console.ErrFeedbackSent):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		m.logger.Error("Failed to send feedback",
			slog.String("turnID", turnID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandlePersonas asks the backend to switch to the persona in the "brain" form field.
func (m Main) HandlePersonas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	err := m.console.SwitchPersona(r.Context(), r.FormValue("brain"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, console.ErrUnknownPersona):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

// HandleToggle asks the backend to start or stop the sense named in the path. The "action" form field is
// either "start" or "stop".
func (m Main) HandleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sense, ok := console.ParseSense(r.PathValue("sense"))
	if !ok {
		http.Error(w, "Unknown sense", http.StatusNotFound)
		return
	}

	var on bool
	switch r.FormValue("action") {
	case "start":
		on = true
	case "stop":
	default:
		http.Error(w, "action must be start or stop", http.StatusBadRequest)
		return
	}

	if err := m.console.ToggleSense(r.Context(), sense, on); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
