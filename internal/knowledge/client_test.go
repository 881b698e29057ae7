package knowledge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"voice-agent-go/internal/config"
	"voice-agent-go/internal/logger"
	"voice-agent-go/internal/types"
)

type fakeKB struct {
	mu        sync.Mutex
	entries   []types.KnowledgeEntry
	usage     []string
	searches  int
	patchCode int
}

func (f *fakeKB) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/knowledge", r.URL.Path)
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			f.searches++
			q := r.URL.Query().Get("q")
			var out []types.KnowledgeEntry
			for _, e := range f.entries {
				if e.Question == q {
					out = append(out, e)
				}
			}
			_ = json.NewEncoder(w).Encode(types.KnowledgeSearchResponse{Entries: out})
		case http.MethodPatch:
			var body types.UsageRequest
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.usage = append(f.usage, body.ID)
			if f.patchCode != 0 {
				w.WriteHeader(f.patchCode)
				return
			}
			_, _ = w.Write([]byte(`{"success":true}`))
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	}
}

func newClient(url string, timeout time.Duration) *Client {
	return New(config.Config{APIBaseURL: url, HTTPTimeout: timeout}, logger.NewWithOutput(io.Discard))
}

func TestSearchFoundRecordsUsageOnce(t *testing.T) {
	kb := &fakeKB{entries: []types.KnowledgeEntry{
		{ID: "k1", Question: "What are your business hours?", Answer: "We are open 9am to 5pm, Monday to Friday."},
		{ID: "k2", Question: "What are your business hours?", Answer: "older answer"},
	}}
	srv := httptest.NewServer(kb.handler(t))
	defer srv.Close()

	c := newClient(srv.URL, time.Second)
	answer, found := c.Search(context.Background(), "What are your business hours?")
	require.NoError(t, c.Close())

	assert.True(t, found)
	assert.Equal(t, "We are open 9am to 5pm, Monday to Friday.", answer)
	kb.mu.Lock()
	defer kb.mu.Unlock()
	assert.Equal(t, []string{"k1"}, kb.usage)
}

func TestSearchNoMatchSkipsUsage(t *testing.T) {
	kb := &fakeKB{entries: []types.KnowledgeEntry{{ID: "k1", Question: "hours", Answer: "9-5"}}}
	srv := httptest.NewServer(kb.handler(t))
	defer srv.Close()

	c := newClient(srv.URL, time.Second)
	answer, found := c.Search(context.Background(), "Do you accept cryptocurrency?")
	require.NoError(t, c.Close())

	assert.False(t, found)
	assert.Empty(t, answer)
	assert.Empty(t, kb.usage)
}

func TestSearchUsageFailureIgnored(t *testing.T) {
	kb := &fakeKB{
		entries:   []types.KnowledgeEntry{{ID: "k1", Question: "hours", Answer: "9-5"}},
		patchCode: http.StatusInternalServerError,
	}
	srv := httptest.NewServer(kb.handler(t))
	defer srv.Close()

	c := newClient(srv.URL, time.Second)
	answer, found := c.Search(context.Background(), "hours")
	require.NoError(t, c.Close())

	assert.True(t, found)
	assert.Equal(t, "9-5", answer)
	assert.Equal(t, []string{"k1"}, kb.usage)
}

func TestSearchFailuresMapToNotFound(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"client error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad", http.StatusBadRequest)
		},
		"malformed": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"entries":`))
		},
		"entry without id": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"entries":[{"answer":"x"}]}`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			c := newClient(srv.URL, 300*time.Millisecond)
			defer c.Close()
			answer, found := c.Search(context.Background(), "hours")
			assert.False(t, found)
			assert.Empty(t, answer)
		})
	}
}

func TestSearchTimeoutMapsToNotFound(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newClient(srv.URL, 100*time.Millisecond)
	defer c.Close()

	start := time.Now()
	_, found := c.Search(context.Background(), "hours")
	assert.False(t, found)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestSearchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newClient(url, 200*time.Millisecond)
	defer c.Close()
	_, found := c.Search(context.Background(), "hours")
	assert.False(t, found)
}
