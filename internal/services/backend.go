package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MegaGrindStone/argus-console/internal/models"
)

// Backend is a client for the Argus backend's HTTP endpoints. Every call is a JSON POST whose only
// meaningful answer is the status code.
type Backend struct {
	baseURL string

	client *http.Client

	logger *slog.Logger
}

type rewardRequest struct {
	Brain    string `json:"brain"`
	Query    string `json:"query"`
	Response string `json:"response"`
	Score    int    `json:"score"`
}

type taskRequest struct {
	Description string `json:"descricao"`
	Priority    string `json:"prioridade"`
	Group       string `json:"grupo"`
	Deadline    string `json:"prazo"`
}

type taskIDRequest struct {
	ID any `json:"id"`
}

type noteRequest struct {
	Title    string `json:"titulo"`
	Content  string `json:"conteudo"`
	Category string `json:"categoria"`
}

const (
	errLoggerKey = "err"

	backendTimeout = 15 * time.Second
)

// NewBackend creates a client for the backend served at baseURL.
func NewBackend(baseURL string, logger *slog.Logger) Backend {
	return Backend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: backendTimeout},
		logger:  logger.With(slog.String("module", "backend")),
	}
}

// ReportFeedback records a reward signal for a persona's response.
func (b Backend) ReportFeedback(ctx context.Context, fb models.Feedback) error {
	return b.post(ctx, "/api/reward", rewardRequest{
		Brain:    fb.Persona,
		Query:    fb.Query,
		Response: fb.Response,
		Score:    fb.Score,
	})
}

// AddTask stores a new task. An empty group is stored as models.DefaultGroup.
func (b Backend) AddTask(ctx context.Context, task models.Task) error {
	group := strings.TrimSpace(task.Group)
	if group == "" {
		group = models.DefaultGroup
	}
	return b.post(ctx, "/api/add_task", taskRequest{
		Description: task.Description,
		Priority:    task.Priority,
		Group:       group,
		Deadline:    task.Deadline,
	})
}

// DeleteTask removes the task with the given id.
func (b Backend) DeleteTask(ctx context.Context, id string) error {
	return b.post(ctx, "/api/delete_task", taskIDRequest{ID: taskID(id)})
}

// CompleteTask marks the task with the given id as done.
func (b Backend) CompleteTask(ctx context.Context, id string) error {
	return b.post(ctx, "/api/complete_task", taskIDRequest{ID: taskID(id)})
}

// AddNote stores a snippet.
func (b Backend) AddNote(ctx context.Context, note models.Note) error {
	return b.post(ctx, "/api/add_note", noteRequest{
		Title:    note.Title,
		Content:  note.Content,
		Category: note.Category,
	})
}

// taskID sends numeric ids as JSON numbers, since the backend keys tasks by integer row id.
func taskID(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

func (b Backend) post(ctx context.Context, path string, body any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("error marshaling request: %w", err)
	}

	b.logger.Debug("Request Body", slog.String("path", path), slog.String("body", string(jsonBody)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
