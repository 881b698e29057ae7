// Package room abstracts the real-time call transport: a named room with
// caller metadata and a connection state the session can poll.
package room

import (
	"context"
	"sync"
)

type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Reconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

type Room interface {
	Name() string
	// Metadata is the caller metadata attached to the room; it may be empty.
	Metadata() map[string]string
	Connect(ctx context.Context, autoSubscribe bool) error
	ConnectionState() ConnectionState
	Disconnect() error
}

// Memory is an in-process room. The console binary drives it from stdin and
// tests drive it directly.
type Memory struct {
	mu         sync.Mutex
	name       string
	metadata   map[string]string
	state      ConnectionState
	connectErr error
	subscribed bool
}

func NewMemory(name string, metadata map[string]string) *Memory {
	return &Memory{name: name, metadata: metadata}
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) Metadata() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.metadata))
	for k, v := range m.metadata {
		out[k] = v
	}
	return out
}

// FailConnect makes the next Connect return err.
func (m *Memory) FailConnect(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

func (m *Memory) Connect(ctx context.Context, autoSubscribe bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		m.state = Disconnected
		return m.connectErr
	}
	m.state = Connected
	m.subscribed = autoSubscribe
	return nil
}

func (m *Memory) ConnectionState() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Memory) SetState(s ConnectionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

// Hangup simulates the caller leaving.
func (m *Memory) Hangup() {
	m.SetState(Disconnected)
}

func (m *Memory) Disconnect() error {
	m.Hangup()
	return nil
}

func (m *Memory) AutoSubscribed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribed
}
