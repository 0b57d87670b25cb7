package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/argus-console/internal/models"
)

// HandleTasks adds a task from the "description", "priority", "group" and "deadline" form fields.
func (m Main) HandleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	task := models.Task{
		Description: r.FormValue("description"),
		Priority:    r.FormValue("priority"),
		Group:       r.FormValue("group"),
		Deadline:    r.FormValue("deadline"),
	}
	if task.Description == "" {
		http.Error(w, "Description is required", http.StatusBadRequest)
		return
	}

	m.backendAction(w, r, "Tarefa adicionada.", func(ctx context.Context) error {
		return m.backend.AddTask(ctx, task)
	})
}

// HandleTaskDelete deletes the task named in the path.
func (m Main) HandleTaskDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	m.backendAction(w, r, "Tarefa removida.", func(ctx context.Context) error {
		return m.backend.DeleteTask(ctx, id)
	})
}

// HandleTaskComplete marks the task named in the path as done.
func (m Main) HandleTaskComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	m.backendAction(w, r, "Tarefa concluída.", func(ctx context.Context) error {
		return m.backend.CompleteTask(ctx, id)
	})
}

// HandleNotes adds a note from the "title", "content" and "category" form fields.
func (m Main) HandleNotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	note := models.Note{
		Title:    r.FormValue("title"),
		Content:  r.FormValue("content"),
		Category: r.FormValue("category"),
	}
	if note.Title == "" && note.Content == "" {
		http.Error(w, "Title or content is required", http.StatusBadRequest)
		return
	}

	m.backendAction(w, r, "Nota salva.", func(ctx context.Context) error {
		return m.backend.AddNote(ctx, note)
	})
}

// backendAction runs a backend call and posts its outcome as a status line instead of reloading the page.
func (m Main) backendAction(w http.ResponseWriter, r *http.Request, done string, call func(context.Context) error) {
	if err := call(r.Context()); err != nil {
		m.logger.Error("Backend request failed",
			slog.String("path", r.URL.Path),
			slog.String(errLoggerKey, err.Error()))
		m.view.SetStatus("Erro: " + err.Error())
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	m.view.SetStatus(done)
	w.WriteHeader(http.StatusNoContent)
}
