package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/MegaGrindStone/argus-console/internal/console"
	"github.com/MegaGrindStone/argus-console/internal/models"
)

// HandleVoiceListen turns speech output on and asks the browser to start recognizing one utterance.
func (m Main) HandleVoiceListen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := m.console.Voice().Listen(); err != nil {
		if errors.Is(err, console.ErrRecognitionUnsupported) {
			http.Error(w, err.Error(), http.StatusNotImplemented)
			return
		}
		m.logger.Error("Failed to start recognition", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleVoiceTranscript submits the "transcript" form field as if it had been typed.
func (m Main) HandleVoiceTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.console.Voice().OnTranscript(r.FormValue("transcript"))
	w.WriteHeader(http.StatusNoContent)
}

// HandleVoiceState records what the browser reports about its speech engines: "speaking" and
// "recognition" are booleans, "voices" is an optional JSON array of {name, lang}.
func (m Main) HandleVoiceState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	speaking, _ := strconv.ParseBool(r.FormValue("speaking"))
	recognition, _ := strconv.ParseBool(r.FormValue("recognition"))

	var voices []models.Voice
	if raw := r.FormValue("voices"); raw != "" {
		var vs []struct {
			Name string `json:"name"`
			Lang string `json:"lang"`
		}
		if err := json.Unmarshal([]byte(raw), &vs); err != nil {
			http.Error(w, "voices must be a JSON array", http.StatusBadRequest)
			return
		}
		voices = make([]models.Voice, len(vs))
		for i, v := range vs {
			voices[i] = models.Voice{Name: v.Name, Lang: v.Lang}
		}
	}

	wasSupported := m.synth.Supported()
	m.synth.report(speaking, voices, recognition)
	if wasSupported != recognition {
		m.view.SetMic(recognition)
	}

	w.WriteHeader(http.StatusNoContent)
}
