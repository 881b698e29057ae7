// Package scripted is a deterministic stand-in for the language model turn
// loop. Every caller utterance is looked up in the knowledge base and
// escalated when nothing is found, one tool call at a time.
package scripted

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"voice-agent-go/internal/agent"
	"voice-agent-go/internal/logger"
	"voice-agent-go/internal/room"
)

const apology = "Sorry, I ran into a problem looking that up. Could you repeat the question?"

// Speaker delivers agent speech to the caller.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

// WriterSpeaker prints speech, one utterance per line.
type WriterSpeaker struct {
	W      io.Writer
	Prefix string
}

func (s WriterSpeaker) Say(_ context.Context, text string) error {
	_, err := fmt.Fprintf(s.W, "%s%s\n", s.Prefix, text)
	return err
}

type Turn struct {
	Speaker string    `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

type Agent struct {
	opts    agent.Options
	lines   <-chan string
	speaker Speaker
	log     *logger.Logger

	mu         sync.Mutex
	transcript []Turn
	started    bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// New returns a Factory producing agents that read caller utterances from
// lines and speak through speaker.
func New(lines <-chan string, speaker Speaker, log *logger.Logger) agent.Factory {
	return func(opts agent.Options) (agent.Agent, error) {
		if err := opts.Validate(); err != nil {
			return nil, err
		}
		for _, name := range []string{agent.ToolCheckKnowledge, agent.ToolEscalate} {
			if _, ok := opts.Tools.Lookup(name); !ok {
				return nil, fmt.Errorf("scripted agent needs tool %q", name)
			}
		}
		return &Agent{
			opts:    opts,
			lines:   lines,
			speaker: speaker,
			log:     log.Component("scripted-agent"),
			done:    make(chan struct{}),
		}, nil
	}
}

func (a *Agent) Start(ctx context.Context, r room.Room) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return fmt.Errorf("agent already started")
	}
	a.started = true

	ctx, a.cancel = context.WithCancel(ctx)
	a.log.WithField("room", r.Name()).WithField("tools", a.opts.Tools.Names()).Info("agent started")
	go a.loop(ctx)
	return nil
}

// Done is closed once the utterance source is exhausted or the agent stops.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

func (a *Agent) loop(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-a.lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			a.record("caller", line)
			// A turn that has started runs to completion even if Close
			// is called meanwhile.
			a.respond(context.WithoutCancel(ctx), line)
		}
	}
}

func (a *Agent) respond(ctx context.Context, question string) {
	reply, err := a.opts.Tools.Invoke(ctx, agent.ToolCheckKnowledge, map[string]string{"question": question})
	if err == nil && reply == agent.NotFoundSignal {
		reply, err = a.opts.Tools.Invoke(ctx, agent.ToolEscalate, map[string]string{
			"question": question,
			"context":  a.priorQuestions(),
		})
	}
	if err != nil {
		a.log.WithError(err).Warn("tool call failed")
		reply = apology
	}
	if err := a.Say(ctx, reply); err != nil {
		a.log.WithError(err).Warn("failed to speak reply")
	}
}

// priorQuestions summarizes what the caller said before the current question.
func (a *Agent) priorQuestions() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var parts []string
	for _, t := range a.transcript {
		if t.Speaker == "caller" {
			parts = append(parts, t.Text)
		}
	}
	if len(parts) > 0 {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 {
		return ""
	}
	return "Caller previously asked: " + strings.Join(parts, "; ")
}

func (a *Agent) Say(ctx context.Context, text string) error {
	a.record("agent", text)
	return a.speaker.Say(ctx, text)
}

func (a *Agent) record(speaker, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transcript = append(a.transcript, Turn{Speaker: speaker, Text: text, At: time.Now()})
}

// Transcript returns a copy of everything said so far.
func (a *Agent) Transcript() []Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Turn(nil), a.transcript...)
}

// Close stops the agent from taking new turns and waits for the turn in
// progress, if any, to finish.
func (a *Agent) Close() error {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
		<-a.done
	}
	return nil
}
