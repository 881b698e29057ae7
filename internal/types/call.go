package types

import (
	"sync"
	"time"
)

// UnknownCaller is the caller phone used when the room carries no metadata.
const UnknownCaller = "+1-555-UNKNOWN"

// CallMetadata is the per-call bookkeeping read once at teardown to build the
// call log. Escalated is true exactly when HelpRequestID is set.
type CallMetadata struct {
	mu sync.Mutex

	CallerPhone    string
	CallerName     *string
	CallStart      time.Time
	QuestionsAsked int
	Escalated      bool
	HelpRequestID  *string
}

func NewCallMetadata(start time.Time, md map[string]string) *CallMetadata {
	m := &CallMetadata{CallerPhone: UnknownCaller, CallStart: start}
	if phone := md["caller_phone"]; phone != "" {
		m.CallerPhone = phone
	}
	if name := md["caller_name"]; name != "" {
		m.CallerName = &name
	}
	return m
}

// RecordQuestion counts one knowledge lookup and returns the new total.
func (m *CallMetadata) RecordQuestion() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QuestionsAsked++
	return m.QuestionsAsked
}

// RecordEscalation stores the first successful help request id. Later calls
// leave the recorded id untouched and report false.
func (m *CallMetadata) RecordEscalation(requestID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Escalated {
		return false
	}
	m.Escalated = true
	m.HelpRequestID = &requestID
	return true
}

// Caller returns the caller identity used for help requests.
func (m *CallMetadata) Caller() (string, *string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallerPhone, m.CallerName
}

// CallSnapshot is an immutable copy of CallMetadata.
type CallSnapshot struct {
	CallerPhone    string    `json:"caller_phone"`
	CallerName     *string   `json:"caller_name"`
	CallStart      time.Time `json:"call_start"`
	QuestionsAsked int       `json:"questions_asked"`
	Escalated      bool      `json:"escalated"`
	HelpRequestID  *string   `json:"help_request_id"`
}

func (m *CallMetadata) Snapshot() CallSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return CallSnapshot{
		CallerPhone:    m.CallerPhone,
		CallerName:     m.CallerName,
		CallStart:      m.CallStart,
		QuestionsAsked: m.QuestionsAsked,
		Escalated:      m.Escalated,
		HelpRequestID:  m.HelpRequestID,
	}
}

// AdoptCaller fills in caller identity from md when none was known at call
// start. It reports whether anything changed.
func (m *CallMetadata) AdoptCaller(md map[string]string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CallerPhone != UnknownCaller || m.CallerName != nil {
		return false
	}
	changed := false
	if phone := md["caller_phone"]; phone != "" {
		m.CallerPhone = phone
		changed = true
	}
	if name := md["caller_name"]; name != "" {
		m.CallerName = &name
		changed = true
	}
	return changed
}
