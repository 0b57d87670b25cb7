package console

import (
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/MegaGrindStone/argus-console/internal/models"
)

// Synthesizer plays speech on the console's surface.
type Synthesizer interface {
	Speaking() bool
	Voices() []models.Voice
	Speak(u models.Utterance)
}

// Recognizer runs single-shot speech recognition. The transcript is delivered through
// Voice.OnTranscript.
type Recognizer interface {
	Supported() bool
	Start() error
}

// ErrRecognitionUnsupported is returned by Voice.Listen when the surface cannot recognize speech.
var ErrRecognitionUnsupported = errors.New("speech recognition is not supported")

// VoiceConfig selects how replies are spoken.
type VoiceConfig struct {
	// Locale is the BCP 47 tag of the spoken language, e.g. "pt-BR".
	Locale string
	// Priority lists voice name fragments, best first. Voices matching none of them are only used if
	// they speak Locale.
	Priority []string
	Rate     float64
	Pitch    float64
}

// DefaultVoiceConfig returns the settings the Argus console ships with.
func DefaultVoiceConfig() VoiceConfig {
	return VoiceConfig{
		Locale:   "pt-BR",
		Priority: []string{"Google Português", "Microsoft"},
		Rate:     1.2,
		Pitch:    1,
	}
}

// Voice bridges speech synthesis and recognition. A single flag gates synthesis, and at most one
// utterance is in flight: requests made while speaking are dropped, not queued.
type Voice struct {
	mu      sync.Mutex
	enabled bool

	synth  Synthesizer
	recog  Recognizer
	cfg    VoiceConfig
	submit func(text string)
}

// NewVoice creates a disabled bridge. Nil synth or recog disable the matching direction. submit receives
// recognized transcripts.
func NewVoice(synth Synthesizer, recog Recognizer, cfg VoiceConfig, submit func(text string)) *Voice {
	return &Voice{
		synth:  synth,
		recog:  recog,
		cfg:    cfg,
		submit: submit,
	}
}

// SetEnabled turns synthesis on or off.
func (v *Voice) SetEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.enabled = enabled
}

// Enabled reports whether synthesis is on.
func (v *Voice) Enabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.enabled
}

// Speak says text, stripped of markdown. It reports whether an utterance was started.
func (v *Voice) Speak(text string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.enabled || v.synth == nil || v.synth.Speaking() {
		return false
	}

	clean := SpeechText(text)
	if clean == "" {
		return false
	}

	u := models.Utterance{
		Text:  clean,
		Lang:  v.cfg.Locale,
		Rate:  v.cfg.Rate,
		Pitch: v.cfg.Pitch,
	}
	if voice, ok := SelectVoice(v.synth.Voices(), v.cfg); ok {
		u.Voice = voice.Name
	}
	v.synth.Speak(u)
	return true
}

// RecognitionSupported reports whether Listen can work.
func (v *Voice) RecognitionSupported() bool {
	return v.recog != nil && v.recog.Supported()
}

// Listen starts one recognition pass. Using the microphone also turns spoken replies on.
func (v *Voice) Listen() error {
	if !v.RecognitionSupported() {
		return ErrRecognitionUnsupported
	}
	v.SetEnabled(true)
	return v.recog.Start()
}

// OnTranscript submits a recognized transcript as if it had been typed.
func (v *Voice) OnTranscript(text string) {
	text = strings.TrimSpace(text)
	if text == "" || v.submit == nil {
		return
	}
	v.submit(text)
}

// SelectVoice picks the first voice matching cfg.Priority, in priority order, falling back to any voice
// for cfg.Locale.
func SelectVoice(voices []models.Voice, cfg VoiceConfig) (models.Voice, bool) {
	for _, fragment := range cfg.Priority {
		for _, voice := range voices {
			if strings.Contains(voice.Name, fragment) {
				return voice, true
			}
		}
	}
	if cfg.Locale == "" {
		return models.Voice{}, false
	}
	for _, voice := range voices {
		if strings.Contains(voice.Lang, cfg.Locale) {
			return voice, true
		}
	}
	return models.Voice{}, false
}

var (
	markdownMarks = regexp.MustCompile("[*#`_]")
	bracketed     = regexp.MustCompile(`\[.*?\]`)
	parenthesized = regexp.MustCompile(`\(.*?\)`)
	spaces        = regexp.MustCompile(`\s+`)
)

// SpeechText strips markdown punctuation, link texts and parenthesized urls so text reads naturally.
func SpeechText(text string) string {
	text = markdownMarks.ReplaceAllString(text, "")
	text = bracketed.ReplaceAllString(text, "")
	text = parenthesized.ReplaceAllString(text, "")
	return strings.TrimSpace(spaces.ReplaceAllString(text, " "))
}
