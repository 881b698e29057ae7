// Package session runs one support call from room connect to call log.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"voice-agent-go/internal/agent"
	"voice-agent-go/internal/config"
	"voice-agent-go/internal/logger"
	"voice-agent-go/internal/room"
	"voice-agent-go/internal/types"
)

// ErrAlreadyRun is returned when Run is called on a finished session.
var ErrAlreadyRun = errors.New("session already run")

// KnowledgeSearcher answers caller questions from the knowledge base.
type KnowledgeSearcher interface {
	Search(ctx context.Context, question string) (answer string, found bool)
	Close() error
}

// Escalator files a help request for a human supervisor.
type Escalator interface {
	Escalate(ctx context.Context, req types.CreateHelpRequest) (requestID string, ok bool)
	Close() error
}

// CallLogger records the outcome of a finished call.
type CallLogger interface {
	Log(ctx context.Context, rec types.CreateCallLog) bool
	Close() error
}

// Pipeline names the speech stages handed to the agent factory.
type Pipeline struct {
	VAD agent.VAD
	STT agent.STT
	LLM agent.LLM
	TTS agent.TTS
}

// DefaultPipeline is the production speech stack.
func DefaultPipeline() Pipeline {
	return Pipeline{
		VAD: agent.Component("silero"),
		STT: agent.Component("deepgram"),
		LLM: agent.Component("openai:gpt-4"),
		TTS: agent.Component("openai-tts:alloy"),
	}
}

// Deps are the collaborators of one session. The session owns the three
// clients and closes them when it ends.
type Deps struct {
	Room       room.Room
	Agents     agent.Factory
	Pipeline   Pipeline
	Knowledge  KnowledgeSearcher
	Escalation Escalator
	CallLog    CallLogger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

func (d Deps) validate() error {
	switch {
	case d.Room == nil:
		return errors.New("session: room is required")
	case d.Agents == nil:
		return errors.New("session: agent factory is required")
	case d.Knowledge == nil || d.Escalation == nil || d.CallLog == nil:
		return errors.New("session: knowledge, escalation and call log clients are required")
	}
	return nil
}

// Result is what a finished session reports.
type Result struct {
	SessionID string
	RoomName  string
	State     State
	Connected bool
	Call      types.CallSnapshot
	Duration  time.Duration
	Summary   string
	// Logged is false when the call log could not be written.
	Logged bool
}

// DurationSeconds is the whole-second duration sent to the call log.
func (r *Result) DurationSeconds() int {
	return int(r.Duration / time.Second)
}

// Orchestrator runs a single call session through its states.
type Orchestrator struct {
	cfg  config.Config
	deps Deps
	log  *logger.Logger
	id   string

	mu    sync.Mutex
	state State
	ran   bool
}

// New validates deps and prepares a session; Run starts it.
func New(cfg config.Config, deps Deps, log *logger.Logger) (*Orchestrator, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = config.DefaultPollInterval
	}
	if cfg.LogTimeout <= 0 {
		cfg.LogTimeout = config.DefaultLogTimeout
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = config.DefaultHTTPTimeout
	}
	id := uuid.NewString()
	return &Orchestrator{
		cfg:  cfg,
		deps: deps,
		log:  log.Component("session").WithSession(id, deps.Room.Name()),
		id:   id,
	}, nil
}

// ID is the session id attached to every log line.
func (o *Orchestrator) ID() string { return o.id }

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	prev := o.state
	o.state = s
	o.mu.Unlock()
	o.log.WithFields(logrus.Fields{"from": prev.String(), "to": s.String()}).Debug("session state")
}

// Run drives the call to completion. It returns once the room has
// disconnected and the call log has been attempted. Cancelling ctx ends the
// call early; the call log is still written.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	o.mu.Lock()
	if o.ran {
		o.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	o.ran = true
	o.mu.Unlock()

	defer o.closeClients()

	start := o.deps.Clock()
	call := &CallContext{
		SessionID: o.id,
		RoomName:  o.deps.Room.Name(),
		Meta:      types.NewCallMetadata(start, o.deps.Room.Metadata()),
	}
	phone, _ := call.Meta.Caller()
	o.log.WithField("caller_phone", phone).Info("call started")

	res := &Result{SessionID: o.id, RoomName: call.RoomName}

	o.setState(StateConnecting)
	if err := o.deps.Room.Connect(ctx, true); err != nil {
		o.log.WithError(err).Error("failed to connect to room")
	} else {
		res.Connected = true
		// Some transports only learn the room name from the connect handshake.
		call.RoomName = o.deps.Room.Name()
		res.RoomName = call.RoomName
		o.log = o.log.WithSession(o.id, call.RoomName)
		if call.Meta.AdoptCaller(o.deps.Room.Metadata()) {
			phone, _ := call.Meta.Caller()
			o.log.WithField("caller_phone", phone).Info("caller identified after connect")
		}
		o.setState(StateActive)
		o.active(ctx, call)
	}

	o.setState(StateEnding)
	res.Duration = o.deps.Clock().Sub(start)
	res.Call = call.Meta.Snapshot()
	res.Summary = fmt.Sprintf("Call with %d questions asked", res.Call.QuestionsAsked)
	o.log.WithFields(logrus.Fields{
		"duration_sec":    res.DurationSeconds(),
		"questions_asked": res.Call.QuestionsAsked,
		"escalated":       res.Call.Escalated,
	}).Info("call ended")

	res.Logged = o.logCall(ctx, res)
	o.setState(StateLogged)
	res.State = StateLogged
	return res, nil
}

// active runs the agent until the room leaves the connected state.
func (o *Orchestrator) active(ctx context.Context, call *CallContext) {
	a, err := o.startAgent(ctx, call)
	if err != nil {
		o.log.WithError(err).Error("failed to start agent")
	} else {
		defer func() {
			if err := a.Close(); err != nil {
				o.log.WithError(err).Warn("failed to close agent")
			}
		}()
		if err := a.Say(ctx, o.cfg.Persona.Greeting); err != nil {
			o.log.WithError(err).Warn("failed to greet caller")
		}
	}
	o.monitor(ctx)

	if err := o.deps.Room.Disconnect(); err != nil {
		o.log.WithError(err).Debug("room disconnect")
	}
}

func (o *Orchestrator) startAgent(ctx context.Context, call *CallContext) (agent.Agent, error) {
	tools, err := agent.NewRegistry(
		&knowledgeTool{call: call, kb: o.deps.Knowledge, timeout: o.cfg.HTTPTimeout, log: o.log},
		&escalationTool{call: call, esc: o.deps.Escalation, timeout: o.cfg.HTTPTimeout, log: o.log},
	)
	if err != nil {
		return nil, err
	}
	a, err := o.deps.Agents(agent.Options{
		VAD:          o.deps.Pipeline.VAD,
		STT:          o.deps.Pipeline.STT,
		LLM:          o.deps.Pipeline.LLM,
		TTS:          o.deps.Pipeline.TTS,
		Instructions: o.cfg.Persona.Instructions,
		Tools:        tools,
	})
	if err != nil {
		return nil, fmt.Errorf("build agent: %w", err)
	}
	if err := a.Start(ctx, o.deps.Room); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("start agent: %w", err)
	}
	return a, nil
}

// monitor polls the room until it is no longer connected or ctx is done.
func (o *Orchestrator) monitor(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if s := o.deps.Room.ConnectionState(); s != room.Connected {
			o.log.WithField("room_state", s.String()).Info("room no longer connected")
			return
		}
		select {
		case <-ctx.Done():
			o.log.Info("session cancelled")
			return
		case <-ticker.C:
		}
	}
}

// logCall writes the call log exactly once. It outlives ctx so a cancelled
// session is still recorded.
func (o *Orchestrator) logCall(ctx context.Context, res *Result) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.LogTimeout)
	defer cancel()
	return o.deps.CallLog.Log(ctx, types.CreateCallLog{
		CallerPhone:         res.Call.CallerPhone,
		CallerName:          res.Call.CallerName,
		CallDuration:        res.DurationSeconds(),
		ConversationSummary: res.Summary,
		Escalated:           res.Call.Escalated,
		HelpRequestID:       res.Call.HelpRequestID,
	})
}

func (o *Orchestrator) closeClients() {
	for name, c := range map[string]interface{ Close() error }{
		"knowledge":  o.deps.Knowledge,
		"escalation": o.deps.Escalation,
		"calllog":    o.deps.CallLog,
	} {
		if err := c.Close(); err != nil {
			o.log.WithError(err).WithField("client", name).Warn("failed to close client")
		}
	}
}
