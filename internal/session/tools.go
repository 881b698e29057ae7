package session

import (
	"context"
	"time"

	"voice-agent-go/internal/agent"
	"voice-agent-go/internal/logger"
	"voice-agent-go/internal/types"
)

// Caller-facing replies of escalate_to_supervisor.
const (
	EscalatedMessage        = "I've sent your request to a senior specialist. They will join the call shortly to assist you further. Please hold on a moment."
	EscalationFailedMessage = "I'm having trouble reaching a supervisor right now. Could you please call back in a few minutes?"
)

// CallContext is the per-call handle the tools act on.
type CallContext struct {
	SessionID string
	RoomName  string
	Meta      *types.CallMetadata
}

// detach runs a tool call on a context that session teardown does not
// cancel. The call is bounded by timeout instead.
func detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

type knowledgeTool struct {
	call    *CallContext
	kb      KnowledgeSearcher
	timeout time.Duration
	log     *logger.Logger
}

func (t *knowledgeTool) Name() string { return agent.ToolCheckKnowledge }

func (t *knowledgeTool) Description() string {
	return "Search the knowledge base for an answer to the customer's question"
}

func (t *knowledgeTool) Params() []agent.Param {
	return []agent.Param{{Name: "question", Description: "the caller's question", Required: true}}
}

// Call counts the lookup whatever its outcome, then answers or returns the
// not-found signal.
func (t *knowledgeTool) Call(ctx context.Context, args map[string]string) (string, error) {
	question := args["question"]
	n := t.call.Meta.RecordQuestion()
	t.log.WithField("question", question).WithField("questions_asked", n).Info("checking knowledge base")

	ctx, cancel := detach(ctx, t.timeout)
	defer cancel()
	answer, found := t.kb.Search(ctx, question)
	if !found {
		t.log.Info("no answer found in knowledge base - escalating")
		return agent.NotFoundSignal, nil
	}
	return answer, nil
}

type escalationTool struct {
	call    *CallContext
	esc     Escalator
	timeout time.Duration
	log     *logger.Logger
}

func (t *escalationTool) Name() string { return agent.ToolEscalate }

func (t *escalationTool) Description() string {
	return "Escalate a question to the human supervisor when the AI doesn't know the answer"
}

func (t *escalationTool) Params() []agent.Param {
	return []agent.Param{
		{Name: "question", Description: "the unanswered question", Required: true},
		{Name: "context", Description: "short summary of the conversation so far"},
	}
}

// Call never fails: both outcomes are spoken to the caller. A request in
// flight when the caller hangs up still completes and is recorded.
func (t *escalationTool) Call(ctx context.Context, args map[string]string) (string, error) {
	question := args["question"]
	t.log.WithField("question", question).Info("escalating question")

	ctx, cancel := detach(ctx, t.timeout)
	defer cancel()

	phone, name := t.call.Meta.Caller()
	roomName := t.call.RoomName
	id, ok := t.esc.Escalate(ctx, types.CreateHelpRequest{
		CallerPhone: phone,
		CallerName:  name,
		Question:    question,
		Context:     args["context"],
		RoomName:    &roomName,
	})
	if !ok {
		return EscalationFailedMessage, nil
	}
	if !t.call.Meta.RecordEscalation(id) {
		t.log.WithField("help_request_id", id).Warn("call already escalated, keeping the first help request id")
	}
	return EscalatedMessage, nil
}
