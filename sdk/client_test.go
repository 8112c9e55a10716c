package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Redeliver(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.EscapedPath(), r.URL.RawQuery
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"taskId":"t-1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	id, err := c.Redeliver(context.Background(), "g1", "")
	require.NoError(t, err)
	assert.Equal(t, "t-1", id)
	assert.Equal(t, "/api/v1/events/deadLetter/groups/g1", gotPath)
	assert.Equal(t, "action=reDeliver", gotQuery)
}

func TestClient_ReprocessEscapesRepositoryPath(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.EscapedPath(), r.Method
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"taskId":"t-2"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).ReprocessMailRepository(context.Background(), "var/mail/error", "spool")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/api/v1/mailRepositories/var%2Fmail%2Ferror/mails", gotPath)
}

func TestClient_AwaitTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tasks/abc/await", r.URL.Path)
		assert.Equal(t, "30s", r.URL.Query().Get("timeout"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":                "completed",
			"taskId":                "abc",
			"type":                  "FullReIndexing",
			"additionalInformation": map[string]any{"successfullyReprocessedMailCount": 3},
			"submitDate":            time.Now().UTC(),
		})
	}))
	defer srv.Close()

	task, err := NewClient(srv.URL).AwaitTask(context.Background(), "abc", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "completed", task.Status)
	assert.JSONEq(t, `{"successfullyReprocessedMailCount":3}`, string(task.AdditionalInformation))
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"任务不存在","details":"task not found"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetTask(context.Background(), "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "task not found", apiErr.Details)
}

func TestClient_CancelTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	assert.NoError(t, NewClient(srv.URL).CancelTask(context.Background(), "abc"))
}
