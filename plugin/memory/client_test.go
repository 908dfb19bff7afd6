package memory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_AddAndSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/v1/memories":
			require.Equal(t, http.MethodPost, r.Method)
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "U1", body["user_id"])
			assert.Equal(t, CategoryReminderActive, body["category"])
			json.NewEncoder(w).Encode(map[string]string{"id": "mem-1"})
		case "/v1/memories/search":
			require.Equal(t, http.MethodPost, r.Method)
			json.NewEncoder(w).Encode(map[string]any{
				"entries": []map[string]any{
					{"id": "mem-1", "user_id": "U1", "text": "Reminder: call dentist", "category": CategoryReminderActive},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "secret"})
	ctx := context.Background()

	id, err := client.Add(ctx, "U1", "Reminder: call dentist", CategoryReminderActive, map[string]any{"reminder_id": 1})
	require.NoError(t, err)
	assert.Equal(t, "mem-1", id)

	entries, err := client.Search(ctx, "U1", "dentist", CategoryReminderActive, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "mem-1", entries[0].ID)
}

func TestClient_DeleteMissingIsOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL})
	assert.NoError(t, client.Delete(context.Background(), "gone"))
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL})
	_, err := client.GetAll(context.Background(), "U1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
