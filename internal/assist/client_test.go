package assist

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

func TestClient_Reply(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(generateResponse{Response: "  Renewals take 5 business days.  "})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-model", time.Second)
	reply, err := c.Reply(context.Background(), "room", "How long does renewal take?", "en")
	require.NoError(t, err)

	assert.Equal(t, "Renewals take 5 business days.", reply)
	assert.Equal(t, "test-model", got.Model)
	assert.False(t, got.Stream)
	assert.Contains(t, got.Prompt, "How long does renewal take?")
	assert.Contains(t, got.Prompt, "Reply in language: en")
}

func TestClient_ReplyOmitsLanguageHintWhenEmpty(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(generateResponse{Response: "ok"})
	}))
	defer srv.Close()

	c := New(srv.URL, "m", time.Second)
	_, err := c.Reply(context.Background(), "room", "hi", "")
	require.NoError(t, err)
	assert.NotContains(t, got.Prompt, "Reply in language")
}

func TestClient_ReplyAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "missing", time.Second)
	_, err := c.Reply(context.Background(), "room", "hi", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestClient_ReplyHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := New(srv.URL, "m", time.Minute)
	_, err := c.Reply(ctx, "room", "hi", "")
	require.Error(t, err)
}

func TestClient_TrailingSlashTrimmed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		json.NewEncoder(w).Encode(generateResponse{Response: "ok"})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "m", time.Second)
	_, err := c.Reply(context.Background(), "room", "hi", "")
	require.NoError(t, err)
}
