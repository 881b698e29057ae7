// Package wsroom connects to a call room over a WebSocket signaling channel.
//
// Frames are JSON text messages. The server opens with a "room" frame carrying
// the room name and caller metadata, then streams "transcript" frames with
// caller speech and finally "hangup". The agent sends "join" once and "say"
// for every utterance it wants spoken.
package wsroom

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"voice-agent-go/internal/logger"
	"voice-agent-go/internal/room"
)

const (
	defaultConnectTimeout = 15 * time.Second
	writeTimeout          = 5 * time.Second
)

const (
	FrameRoom       = "room"
	FrameTranscript = "transcript"
	FrameHangup     = "hangup"
	FrameJoin       = "join"
	FrameSay        = "say"
)

// Frame is one signaling message in either direction.
type Frame struct {
	Type          string          `json:"type"`
	Name          string          `json:"name,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	Text          string          `json:"text,omitempty"`
	AutoSubscribe bool            `json:"auto_subscribe,omitempty"`
}

type Room struct {
	url    string
	header http.Header
	log    *logger.Logger

	mu       sync.Mutex
	writeMu  sync.Mutex
	conn     *websocket.Conn
	name     string
	metadata map[string]string
	state    room.ConnectionState

	transcripts chan string
	done        chan struct{}
}

var _ room.Room = (*Room)(nil)

// New prepares a room for rawURL; nothing is dialed until Connect. The room
// name defaults to the last path segment of the URL.
func New(rawURL string, header http.Header, log *logger.Logger) (*Room, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse room url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("room url must be ws:// or wss://, got %q", u.Scheme)
	}
	return &Room{
		url:         rawURL,
		header:      header,
		log:         log.Component("wsroom"),
		name:        path.Base(u.Path),
		metadata:    map[string]string{},
		transcripts: make(chan string, 64),
		done:        make(chan struct{}),
	}, nil
}

func (r *Room) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

func (r *Room) Metadata() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.metadata))
	for k, v := range r.metadata {
		out[k] = v
	}
	return out
}

func (r *Room) ConnectionState() room.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Room) setState(s room.ConnectionState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Transcripts yields caller speech until the room disconnects.
func (r *Room) Transcripts() <-chan string {
	return r.transcripts
}

// Connect dials the room, announces the agent and waits for the room frame.
func (r *Room) Connect(ctx context.Context, autoSubscribe bool) error {
	r.mu.Lock()
	if r.conn != nil {
		r.mu.Unlock()
		return fmt.Errorf("room already connected")
	}
	r.state = room.Connecting
	r.mu.Unlock()

	dialCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, defaultConnectTimeout)
		defer cancel()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, r.url, r.header)
	if err != nil {
		r.setState(room.Disconnected)
		if resp != nil {
			return fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial: %w", err)
	}

	if err := conn.WriteJSON(Frame{Type: FrameJoin, AutoSubscribe: autoSubscribe}); err != nil {
		_ = conn.Close()
		r.setState(room.Disconnected)
		return fmt.Errorf("send join: %w", err)
	}

	deadline, _ := dialCtx.Deadline()
	_ = conn.SetReadDeadline(deadline)
	var hello Frame
	if err := conn.ReadJSON(&hello); err != nil {
		_ = conn.Close()
		r.setState(room.Disconnected)
		return fmt.Errorf("read room frame: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	if hello.Type != FrameRoom {
		_ = conn.Close()
		r.setState(room.Disconnected)
		return fmt.Errorf("unexpected first frame %q", hello.Type)
	}

	md, err := decodeMetadata(hello.Metadata)
	if err != nil {
		// metadata is optional; the session falls back to an unknown caller
		r.log.WithError(err).Warn("ignoring malformed room metadata")
	}

	r.mu.Lock()
	r.conn = conn
	if hello.Name != "" {
		r.name = hello.Name
	}
	if md != nil {
		r.metadata = md
	}
	r.state = room.Connected
	r.mu.Unlock()

	r.log.WithField("room", r.Name()).Info("connected to room")
	go r.readLoop(conn)
	return nil
}

func (r *Room) readLoop(conn *websocket.Conn) {
	defer close(r.done)
	defer close(r.transcripts)
	defer r.setState(room.Disconnected)

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.log.WithError(err).Info("room connection closed")
			}
			return
		}
		switch f.Type {
		case FrameTranscript:
			if f.Text == "" {
				continue
			}
			select {
			case r.transcripts <- f.Text:
			default:
				r.log.WithField("text", f.Text).Warn("transcript dropped, agent is behind")
			}
		case FrameHangup:
			r.log.Info("caller hung up")
			_ = conn.Close()
			return
		}
	}
}

// Say sends text to be spoken to the caller.
func (r *Room) Say(ctx context.Context, text string) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("room not connected")
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	return conn.WriteJSON(Frame{Type: FrameSay, Text: text})
}

func (r *Room) Disconnect() error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return nil
	}

	r.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
	r.writeMu.Unlock()
	err := conn.Close()

	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	r.setState(room.Disconnected)
	return err
}

// decodeMetadata accepts either a JSON object or a string holding one, the
// way room metadata is usually stored by transports.
func decodeMetadata(raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil, nil
		}
		raw = json.RawMessage(s)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decode room metadata: %w", err)
	}
	out := make(map[string]string, len(generic))
	for k, v := range generic {
		switch tv := v.(type) {
		case string:
			out[k] = tv
		case nil:
		default:
			out[k] = fmt.Sprint(tv)
		}
	}
	return out, nil
}
