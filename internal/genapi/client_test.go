package genapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/recapbot/recapbot/internal/types"
)

func TestGenerateSubmitPollDownload(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/tasks":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "long post", body["text"])
			require.Equal(t, "alice", body["author"])
			json.NewEncoder(w).Encode(map[string]string{"task_id": "task-1", "status": "pending"})
		case r.Method == http.MethodGet && r.URL.Path == "/tasks/task-1":
			polls++
			status := "running"
			if polls >= 2 {
				status = "done"
			}
			json.NewEncoder(w).Encode(map[string]string{"task_id": "task-1", "status": status})
		case r.Method == http.MethodGet && r.URL.Path == "/tasks/task-1/artifact":
			w.Write([]byte("png-bytes"))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "key", 5*time.Millisecond, time.Second)
	result, err := c.Generate(context.Background(), types.Candidate{
		ID: "t1", Text: "long post", AuthorHandle: "alice",
	})
	require.NoError(t, err)
	require.Equal(t, "task-1", result.TaskID)
	require.Equal(t, []byte("png-bytes"), result.Artifact)
	require.GreaterOrEqual(t, polls, 2)
	require.Positive(t, result.Duration)
}

func TestGenerateTaskFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(map[string]string{"task_id": "task-1", "status": "pending"})
		default:
			json.NewEncoder(w).Encode(map[string]string{
				"task_id": "task-1", "status": "failed", "error": "template crashed",
			})
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "key", 5*time.Millisecond, time.Second)
	_, err := c.Generate(context.Background(), types.Candidate{ID: "t1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "template crashed")
}

func TestGenerateTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(map[string]string{"task_id": "task-1", "status": "pending"})
		default:
			// Never finishes.
			json.NewEncoder(w).Encode(map[string]string{"task_id": "task-1", "status": "running"})
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "key", 5*time.Millisecond, 50*time.Millisecond)
	_, err := c.Generate(context.Background(), types.Candidate{ID: "t1"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
