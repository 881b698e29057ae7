package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"voice-agent-go/internal/config"
	"voice-agent-go/internal/logger"
	"voice-agent-go/internal/types"
)

func newClient(url string) *Client {
	return New(config.Config{APIBaseURL: url, HTTPTimeout: 200 * time.Millisecond}, logger.NewWithOutput(io.Discard))
}

func TestEscalateCreatesHelpRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/help-requests", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "+15550101", body["caller_phone"])
		assert.Equal(t, "Alice", body["caller_name"])
		assert.Equal(t, "Do you accept cryptocurrency?", body["question"])
		assert.Equal(t, "asked about payment", body["context"])
		assert.Equal(t, "room-1", body["room_name"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"request":{"id":"hr-42","status":"pending"}}`))
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	defer c.Close()
	name, room := "Alice", "room-1"
	id, ok := c.Escalate(context.Background(), types.CreateHelpRequest{
		CallerPhone: "+15550101",
		CallerName:  &name,
		Question:    "Do you accept cryptocurrency?",
		Context:     "asked about payment",
		RoomName:    &room,
	})
	assert.True(t, ok)
	assert.Equal(t, "hr-42", id)
}

func TestEscalateFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"missing id": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"request":{}}`))
		},
		"malformed": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			c := newClient(srv.URL)
			defer c.Close()
			id, ok := c.Escalate(context.Background(), types.CreateHelpRequest{CallerPhone: "+1", Question: "q"})
			assert.False(t, ok)
			assert.Empty(t, id)
		})
	}
}

func TestEscalateDoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	defer c.Close()
	_, ok := c.Escalate(context.Background(), types.CreateHelpRequest{CallerPhone: "+1", Question: "q"})
	assert.False(t, ok)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestEscalateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newClient(url)
	defer c.Close()
	_, ok := c.Escalate(context.Background(), types.CreateHelpRequest{CallerPhone: "+1", Question: "q"})
	assert.False(t, ok)
}

func TestEscalateFailureLogsError(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	c := New(config.Config{APIBaseURL: srv.URL, HTTPTimeout: 200 * time.Millisecond}, logger.NewWithOutput(&buf))
	defer c.Close()
	_, ok := c.Escalate(context.Background(), types.CreateHelpRequest{CallerPhone: "+1", Question: "q"})
	assert.False(t, ok)

	var found bool
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var line map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &line))
		if line["msg"] != "error creating help request" {
			continue
		}
		found = true
		assert.NotEmpty(t, line["error"])
		assert.Equal(t, "+1", line["caller_phone"])
	}
	assert.True(t, found)
}
