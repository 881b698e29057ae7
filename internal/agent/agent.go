// Package agent describes the conversational agent the call session drives:
// a speech pipeline plus a language model that can call named tools.
package agent

import (
	"context"
	"errors"

	"voice-agent-go/internal/room"
)

// VAD, STT, LLM and TTS are the pipeline stages. Their internals live in the
// speech stack; the session only wires them into an agent.
type VAD interface{ Name() string }
type STT interface{ Name() string }
type LLM interface{ Name() string }
type TTS interface{ Name() string }

// Agent is a started conversation bound to a room.
type Agent interface {
	Start(ctx context.Context, r room.Room) error
	// Say speaks text to the caller outside of the normal turn loop.
	Say(ctx context.Context, text string) error
	Close() error
}

// Options is everything needed to build an agent.
type Options struct {
	VAD          VAD
	STT          STT
	LLM          LLM
	TTS          TTS
	Instructions string
	Tools        *Registry
}

func (o Options) Validate() error {
	if o.Instructions == "" {
		return errors.New("agent instructions are required")
	}
	if o.Tools == nil {
		return errors.New("agent tools are required")
	}
	return nil
}

// Factory builds an agent. The session calls it once the room is connected.
type Factory func(Options) (Agent, error)

// Component is a named pipeline stage, used where the concrete engine is
// configured outside this process.
type Component string

func (c Component) Name() string { return string(c) }

// Tool names the session registers and the model is instructed to use.
const (
	ToolCheckKnowledge = "check_knowledge_base"
	ToolEscalate       = "escalate_to_supervisor"
)

// NotFoundSignal is what check_knowledge_base returns when it has no answer.
// It tells the model to escalate instead of guessing.
const NotFoundSignal = "NOT_FOUND: the knowledge base has no answer to this question. Escalate it to a supervisor."
