package console

import "github.com/MegaGrindStone/argus-console/internal/models"

// MessageView is the part of the surface that shows the chat history. Implementations must treat a
// missing target (an unknown id, a torn-down page) as a no-op.
type MessageView interface {
	// AppendMessage adds a complete message, such as a user message or an inline error.
	AppendMessage(msg models.Message)
	// StartPlaceholder inserts an empty assistant message showing the typing marker.
	StartPlaceholder(id string)
	// UpdatePlaceholder replaces the placeholder's raw text. typing reports whether the marker is shown.
	UpdatePlaceholder(id, text string, typing bool)
	// FinalizeMessage replaces the placeholder with rendered content and attaches the feedback pair.
	FinalizeMessage(id, content string, fb models.Feedback)
	// DisableFeedback disables both feedback controls of a message.
	DisableFeedback(id string)
	ScrollToBottom()
}

// ThemeView shows the active persona.
type ThemeView interface {
	SetThemeToken(c models.Color)
	// HighlightControl highlights active and clears every other control in all. An empty active clears
	// them all.
	HighlightControl(active string, all []string)
}

// TelemetryView shows the host load bars and the camera feed.
type TelemetryView interface {
	SetBar(name string, percent float64, warning bool)
	// SetImage shows a base64 JPEG frame when live is true, otherwise the "no signal" placeholder.
	SetImage(image string, live bool)
}

// StatusView shows status lines and sense toggles.
type StatusView interface {
	SetStatus(text string)
	SetGesture(text string)
	SetSense(sense Sense, online bool)
	// SetMic shows or hides the speech recognition control.
	SetMic(available bool)
}

// View is everything the console draws on.
type View interface {
	MessageView
	ThemeView
	TelemetryView
	StatusView
}

// NopView discards every update.
type NopView struct{}

func (NopView) AppendMessage(models.Message)                    {}
func (NopView) StartPlaceholder(string)                         {}
func (NopView) UpdatePlaceholder(string, string, bool)          {}
func (NopView) FinalizeMessage(string, string, models.Feedback) {}
func (NopView) DisableFeedback(string)                          {}
func (NopView) ScrollToBottom()                                 {}
func (NopView) SetThemeToken(models.Color)                      {}
func (NopView) HighlightControl(string, []string)               {}
func (NopView) SetBar(string, float64, bool)                    {}
func (NopView) SetImage(string, bool)                           {}
func (NopView) SetStatus(string)                                {}
func (NopView) SetGesture(string)                               {}
func (NopView) SetSense(Sense, bool)                            {}
func (NopView) SetMic(bool)                                     {}
