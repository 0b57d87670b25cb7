package services_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MegaGrindStone/argus-console/internal/models"
	"github.com/MegaGrindStone/argus-console/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	path string
	body map[string]any
}

func recordingBackend(t *testing.T, status int) (*httptest.Server, *[]recordedRequest) {
	t.Helper()

	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		body := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		reqs = append(reqs, recordedRequest{path: r.URL.Path, body: body})
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	return srv, &reqs
}

func TestBackendRequests(t *testing.T) {
	srv, reqs := recordingBackend(t, http.StatusOK)
	defer srv.Close()

	b := services.NewBackend(srv.URL+"/", discardLogger())
	ctx := context.Background()

	require.NoError(t, b.ReportFeedback(ctx, models.Feedback{
		Persona:  "The Operator",
		Query:    "abrir planilha",
		Response: "Feito.",
		Score:    1,
	}))
	require.NoError(t, b.AddTask(ctx, models.Task{Description: "Revisar KPI", Priority: "Alta"}))
	require.NoError(t, b.DeleteTask(ctx, "7"))
	require.NoError(t, b.CompleteTask(ctx, "abc"))
	require.NoError(t, b.AddNote(ctx, models.Note{Title: "join", Content: "SELECT 1", Category: "sql"}))

	require.Len(t, *reqs, 5)

	want := []recordedRequest{
		{path: "/api/reward", body: map[string]any{
			"brain": "The Operator", "query": "abrir planilha", "response": "Feito.", "score": float64(1),
		}},
		{path: "/api/add_task", body: map[string]any{
			"descricao": "Revisar KPI", "prioridade": "Alta", "grupo": models.DefaultGroup, "prazo": "",
		}},
		{path: "/api/delete_task", body: map[string]any{"id": float64(7)}},
		{path: "/api/complete_task", body: map[string]any{"id": "abc"}},
		{path: "/api/add_note", body: map[string]any{
			"titulo": "join", "conteudo": "SELECT 1", "categoria": "sql",
		}},
	}
	assert.Equal(t, want, *reqs)
}

func TestBackendUnexpectedStatus(t *testing.T) {
	srv, _ := recordingBackend(t, http.StatusInternalServerError)
	defer srv.Close()

	b := services.NewBackend(srv.URL, discardLogger())
	err := b.DeleteTask(context.Background(), "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
