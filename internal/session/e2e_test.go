package session

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"voice-agent-go/internal/agent"
	"voice-agent-go/internal/agent/scripted"
	"voice-agent-go/internal/calllog"
	"voice-agent-go/internal/config"
	"voice-agent-go/internal/escalation"
	"voice-agent-go/internal/knowledge"
	"voice-agent-go/internal/logger"
	"voice-agent-go/internal/mockapi"
	"voice-agent-go/internal/room"
	"voice-agent-go/internal/seed"
	"voice-agent-go/internal/types"
)

type callScript struct {
	md        map[string]string
	questions []string
}

// runCall runs one session against cfg.APIBaseURL with the real HTTP
// clients, and returns what the agent said.
func runCall(t *testing.T, cfg config.Config, c callScript) (*Result, []string) {
	t.Helper()
	log := logger.NewWithOutput(io.Discard)
	rm := room.NewMemory("call-e2e", c.md)
	speaker := &recordSpeaker{}

	lines := make(chan string, len(c.questions))
	for _, q := range c.questions {
		lines <- q
	}
	close(lines)
	build := scripted.New(lines, speaker, log)

	orch, err := New(cfg, Deps{
		Room: rm,
		Agents: func(opts agent.Options) (agent.Agent, error) {
			a, err := build(opts)
			if err == nil {
				go func() {
					<-a.(*scripted.Agent).Done()
					rm.Hangup()
				}()
			}
			return a, err
		},
		Pipeline:   DefaultPipeline(),
		Knowledge:  knowledge.New(cfg, log),
		Escalation: escalation.New(cfg, log),
		CallLog:    calllog.New(cfg, log),
	}, log)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := orch.Run(ctx)
	require.NoError(t, err)
	return res, speaker.Said()
}

func testConfig(baseURL string) config.Config {
	return config.Config{
		APIBaseURL:   baseURL,
		HTTPTimeout:  2 * time.Second,
		PollInterval: 5 * time.Millisecond,
		LogTimeout:   2 * time.Second,
		Persona:      config.DefaultPersona(),
	}
}

func TestEndToEndEscalateThenLearn(t *testing.T) {
	store := mockapi.NewStore(nil)
	store.Seed(seed.DefaultKnowledge(), nil)
	srv := httptest.NewServer(mockapi.NewServer(store, logger.NewWithOutput(io.Discard)).Handler())
	defer srv.Close()
	cfg := testConfig(srv.URL + mockapi.Prefix)

	res, said := runCall(t, cfg, callScript{
		md:        map[string]string{"caller_phone": "+15550102", "caller_name": "Bob"},
		questions: []string{"What are your business hours?", "Do you accept cryptocurrency?"},
	})

	assert.True(t, res.Logged)
	assert.Contains(t, said, "TechFlow Solutions support is available 24/7.")
	assert.Contains(t, said, EscalatedMessage)

	pending := store.ListHelpRequests(types.StatusPending)
	require.Len(t, pending, 1)
	req := pending[0]
	assert.Equal(t, "Do you accept cryptocurrency?", req.Question)
	assert.Equal(t, "+15550102", req.CallerPhone)
	require.NotNil(t, req.RoomName)
	assert.Equal(t, "call-e2e", *req.RoomName)

	hours := store.SearchKnowledge("What are your business hours?")
	require.Len(t, hours, 1)
	assert.Equal(t, 1, hours[0].UsageCount)

	logs := store.ListCallLogs(mockapi.DefaultLogLimit)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Escalated)
	require.NotNil(t, logs[0].HelpRequestID)
	assert.Equal(t, req.ID, *logs[0].HelpRequestID)
	require.NotNil(t, logs[0].ConversationSummary)
	assert.Equal(t, "Call with 2 questions asked", *logs[0].ConversationSummary)

	// The supervisor answers and the next caller gets it from the knowledge base.
	_, learned, err := store.Respond(req.ID, "Not at this time, we accept cards and bank transfer.", true)
	require.NoError(t, err)
	require.NotNil(t, learned)

	res, said = runCall(t, cfg, callScript{questions: []string{"Do you accept cryptocurrency?"}})
	assert.False(t, res.Call.Escalated)
	assert.Contains(t, said, "Not at this time, we accept cards and bank transfer.")
	assert.Len(t, store.ListCallLogs(mockapi.DefaultLogLimit), 2)
}

func TestEndToEndKnowledgeTimeoutEscalates(t *testing.T) {
	store := mockapi.NewStore(nil)
	store.Seed(seed.DefaultKnowledge(), nil)
	api := mockapi.NewServer(store, logger.NewWithOutput(io.Discard)).Handler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == mockapi.Prefix+"/knowledge" {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		api.ServeHTTP(w, r)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL + mockapi.Prefix)
	cfg.HTTPTimeout = 100 * time.Millisecond

	res, said := runCall(t, cfg, callScript{questions: []string{"What are your business hours?"}})

	assert.Contains(t, said, EscalatedMessage)
	assert.True(t, res.Call.Escalated)
	assert.Equal(t, 1, res.Call.QuestionsAsked)
	assert.Len(t, store.ListHelpRequests(types.StatusPending), 1)
	assert.Len(t, store.ListCallLogs(mockapi.DefaultLogLimit), 1)
}

func TestEndToEndAPIDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + mockapi.Prefix
	srv.Close()

	cfg := testConfig(base)
	cfg.HTTPTimeout = 200 * time.Millisecond

	res, said := runCall(t, cfg, callScript{questions: []string{"Anything?"}})

	assert.Contains(t, said, EscalationFailedMessage)
	assert.False(t, res.Call.Escalated)
	assert.False(t, res.Logged)
	assert.Equal(t, StateLogged, res.State)
}

func TestEndToEndHangupDuringEscalation(t *testing.T) {
	store := mockapi.NewStore(nil)
	api := mockapi.NewServer(store, logger.NewWithOutput(io.Discard)).Handler()
	rm := room.NewMemory("call-e2e", map[string]string{"caller_phone": "+15550103"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == mockapi.Prefix+"/help-requests" {
			// The caller leaves while the help desk is still answering.
			rm.Hangup()
			time.Sleep(300 * time.Millisecond)
		}
		api.ServeHTTP(w, r)
	}))
	defer srv.Close()
	cfg := testConfig(srv.URL + mockapi.Prefix)
	log := logger.NewWithOutput(io.Discard)

	// The line source stays open: only the hangup ends this call.
	lines := make(chan string, 1)
	lines <- "Do you accept cryptocurrency?"
	orch, err := New(cfg, Deps{
		Room:       rm,
		Agents:     scripted.New(lines, &recordSpeaker{}, log),
		Pipeline:   DefaultPipeline(),
		Knowledge:  knowledge.New(cfg, log),
		Escalation: escalation.New(cfg, log),
		CallLog:    calllog.New(cfg, log),
	}, log)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := orch.Run(ctx)
	require.NoError(t, err)

	reqs := store.ListHelpRequests("")
	require.Len(t, reqs, 1)
	assert.True(t, res.Call.Escalated)
	require.NotNil(t, res.Call.HelpRequestID)
	assert.Equal(t, reqs[0].ID, *res.Call.HelpRequestID)

	logs := store.ListCallLogs(mockapi.DefaultLogLimit)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Escalated)
	require.NotNil(t, logs[0].HelpRequestID)
	assert.Equal(t, reqs[0].ID, *logs[0].HelpRequestID)
}
