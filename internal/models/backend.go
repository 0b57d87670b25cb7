package models

// Task is a to-do item stored by the backend.
type Task struct {
	Description string
	Priority    string
	Group       string
	Deadline    string
}

// Note is a titled snippet stored by the backend. Category usually names the snippet's language.
type Note struct {
	Title    string
	Content  string
	Category string
}

// SystemStats is the host load reported by the backend, in percent.
type SystemStats struct {
	CPU float64
	RAM float64
}

// Voice describes a speech synthesis voice available on the surface that plays the audio.
type Voice struct {
	Name string
	Lang string
}

// Utterance is a single speech synthesis request.
type Utterance struct {
	Text  string
	Voice string
	Lang  string
	Rate  float64
	Pitch float64
}

// DefaultGroup is the task group used when none is provided.
const DefaultGroup = "Geral"
