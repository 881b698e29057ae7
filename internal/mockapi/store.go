// Package mockapi is an in-memory stand-in for the remote support service:
// knowledge base, help requests and call logs behind the same HTTP routes
// the agent talks to.
package mockapi

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"voice-agent-go/internal/types"
)

var ErrNotFound = errors.New("not found")

const (
	searchLimit     = 5
	DefaultLogLimit = 50
	// PendingTimeout is how long a help request may wait for a supervisor.
	PendingTimeout = 30 * time.Minute
)

type Store struct {
	mu        sync.Mutex
	now       func() time.Time
	knowledge []types.KnowledgeEntry
	requests  []types.HelpRequest
	logs      []types.CallLog
}

// NewStore returns an empty store. now defaults to time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{now: now}
}

// SearchKnowledge matches q case-insensitively against questions and answers.
// Most used entries come first.
func (s *Store) SearchKnowledge(q string) []types.KnowledgeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	q = strings.ToLower(strings.TrimSpace(q))
	var out []types.KnowledgeEntry
	for _, e := range s.knowledge {
		if strings.Contains(strings.ToLower(e.Question), q) || strings.Contains(strings.ToLower(e.Answer), q) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UsageCount > out[j].UsageCount })
	if len(out) > searchLimit {
		out = out[:searchLimit]
	}
	return out
}

// ListKnowledge returns every entry, newest first.
func (s *Store) ListKnowledge() []types.KnowledgeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return newestFirst(s.knowledge, func(e types.KnowledgeEntry) time.Time { return e.CreatedAt })
}

func (s *Store) AddKnowledge(question, answer string, source types.KnowledgeSource, helpRequestID *string) types.KnowledgeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addKnowledgeLocked(question, answer, source, helpRequestID)
}

func (s *Store) addKnowledgeLocked(question, answer string, source types.KnowledgeSource, helpRequestID *string) types.KnowledgeEntry {
	now := s.now()
	e := types.KnowledgeEntry{
		ID:            uuid.NewString(),
		Question:      strings.TrimSpace(question),
		Answer:        strings.TrimSpace(answer),
		Source:        source,
		HelpRequestID: helpRequestID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.knowledge = append(s.knowledge, e)
	return e
}

func (s *Store) IncrementUsage(id string) (types.KnowledgeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.knowledge {
		if s.knowledge[i].ID == id {
			s.knowledge[i].UsageCount++
			s.knowledge[i].UpdatedAt = s.now()
			return s.knowledge[i], nil
		}
	}
	return types.KnowledgeEntry{}, ErrNotFound
}

func (s *Store) DeleteKnowledge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.knowledge {
		if s.knowledge[i].ID == id {
			s.knowledge = append(s.knowledge[:i], s.knowledge[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// ListHelpRequests returns requests newest first, filtered by status when
// status is non-empty.
func (s *Store) ListHelpRequests(status types.HelpRequestStatus) []types.HelpRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.HelpRequest
	for _, r := range s.requests {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return newestFirst(out, func(r types.HelpRequest) time.Time { return r.CreatedAt })
}

func (s *Store) CreateHelpRequest(in types.CreateHelpRequest) types.HelpRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := types.HelpRequest{
		ID:          uuid.NewString(),
		CallerPhone: in.CallerPhone,
		CallerName:  in.CallerName,
		Question:    in.Question,
		RoomName:    in.RoomName,
		Status:      types.StatusPending,
		CreatedAt:   s.now(),
	}
	if in.Context != "" {
		c := in.Context
		r.Context = &c
	}
	s.requests = append(s.requests, r)
	return r
}

// PutHelpRequest stores r as is, assigning an id and creation time when
// missing. Used for seeding.
func (s *Store) PutHelpRequest(r types.HelpRequest) types.HelpRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	if r.Status == "" {
		r.Status = types.StatusPending
	}
	s.requests = append(s.requests, r)
	return r
}

func (s *Store) DeleteHelpRequest(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.requests {
		if s.requests[i].ID == id {
			s.requests = append(s.requests[:i], s.requests[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Respond resolves a help request with the supervisor's answer and, when
// learn is set, adds the answer to the knowledge base.
func (s *Store) Respond(id, answer string, learn bool) (types.HelpRequest, *types.KnowledgeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.requests {
		r := &s.requests[i]
		if r.ID != id {
			continue
		}
		now := s.now()
		r.Status = types.StatusResolved
		r.SupervisorAnswer = &answer
		r.ResolvedAt = &now
		if !learn {
			return *r, nil, nil
		}
		reqID := r.ID
		e := s.addKnowledgeLocked(r.Question, answer, types.SourceSupervisor, &reqID)
		return *r, &e, nil
	}
	return types.HelpRequest{}, nil, ErrNotFound
}

// TimeoutPending marks pending requests older than maxAge as timed out and
// returns their ids.
func (s *Store) TimeoutPending(maxAge time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	threshold := now.Add(-maxAge)
	var ids []string
	for i := range s.requests {
		r := &s.requests[i]
		if r.Status == types.StatusPending && r.CreatedAt.Before(threshold) {
			r.Status = types.StatusTimeout
			r.TimeoutAt = &now
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// ListCallLogs returns at most limit logs, newest first.
func (s *Store) ListCallLogs(limit int) []types.CallLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := newestFirst(s.logs, func(l types.CallLog) time.Time { return l.CreatedAt })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) AddCallLog(in types.CreateCallLog) types.CallLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	duration := in.CallDuration
	l := types.CallLog{
		ID:            uuid.NewString(),
		CallerPhone:   in.CallerPhone,
		CallerName:    in.CallerName,
		CallDuration:  &duration,
		Escalated:     in.Escalated,
		HelpRequestID: in.HelpRequestID,
		CreatedAt:     s.now(),
	}
	if in.ConversationSummary != "" {
		summary := in.ConversationSummary
		l.ConversationSummary = &summary
	}
	s.logs = append(s.logs, l)
	return l
}

// newestFirst copies in, latest created first. Equal timestamps keep the
// latest insertion first.
func newestFirst[T any](in []T, createdAt func(T) time.Time) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	sort.SliceStable(out, func(i, j int) bool { return createdAt(out[i]).After(createdAt(out[j])) })
	return out
}

// Seed loads initial knowledge and help requests.
func (s *Store) Seed(knowledge []types.CreateKnowledge, requests []types.HelpRequest) {
	for _, k := range knowledge {
		s.AddKnowledge(k.Question, k.Answer, types.SourceInitial, nil)
	}
	for _, r := range requests {
		s.PutHelpRequest(r)
	}
}
