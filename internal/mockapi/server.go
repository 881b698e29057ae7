package mockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"voice-agent-go/internal/logger"
	"voice-agent-go/internal/types"
)

// Prefix is where the API is mounted, matching the default API_BASE_URL.
const Prefix = "/api"

type Server struct {
	store    *Store
	log      *logger.Logger
	validate *validator.Validate
}

func NewServer(store *Store, log *logger.Logger) *Server {
	return &Server{store: store, log: log.Component("mockapi"), validate: validator.New()}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})

	mux.HandleFunc("GET "+Prefix+"/knowledge", s.listKnowledge)
	mux.HandleFunc("POST "+Prefix+"/knowledge", s.createKnowledge)
	mux.HandleFunc("PATCH "+Prefix+"/knowledge", s.useKnowledge)
	mux.HandleFunc("DELETE "+Prefix+"/knowledge", s.deleteKnowledge)

	mux.HandleFunc("GET "+Prefix+"/help-requests", s.listHelpRequests)
	mux.HandleFunc("POST "+Prefix+"/help-requests", s.createHelpRequest)
	mux.HandleFunc("DELETE "+Prefix+"/help-requests/{id}", s.deleteHelpRequest)
	mux.HandleFunc("POST "+Prefix+"/help-requests/respond", s.respondHelpRequest)
	mux.HandleFunc("POST "+Prefix+"/help-requests/timeout", s.timeoutHelpRequests)

	mux.HandleFunc("GET "+Prefix+"/call-logs", s.listCallLogs)
	mux.HandleFunc("POST "+Prefix+"/call-logs", s.createCallLog)

	return mux
}

type errorBody struct {
	Error string `json:"error"`
}

type successBody struct {
	Success bool `json:"success"`
}

func (s *Server) writeJSON(w http.ResponseWriter, reqLog *logrus.Entry, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		reqLog.WithError(err).Error("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, reqLog *logrus.Entry, status int, msg string) {
	reqLog.WithField("status", status).Warn(msg)
	s.writeJSON(w, reqLog, status, errorBody{Error: msg})
}

// decode reads a JSON body into v and runs struct validation.
func (s *Server) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return s.validate.Struct(v)
}

func (s *Server) listKnowledge(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "knowledge.list")
	var entries []types.KnowledgeEntry
	if q := r.URL.Query().Get("q"); q != "" {
		entries = s.store.SearchKnowledge(q)
		reqLog.WithField("q", q).WithField("matches", len(entries)).Info("knowledge search")
	} else {
		entries = s.store.ListKnowledge()
	}
	if entries == nil {
		entries = []types.KnowledgeEntry{}
	}
	s.writeJSON(w, reqLog, http.StatusOK, types.KnowledgeSearchResponse{Entries: entries})
}

func (s *Server) createKnowledge(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "knowledge.create")
	var in types.CreateKnowledge
	if err := s.decode(r, &in); err != nil {
		s.writeError(w, reqLog, http.StatusBadRequest, "Question and answer are required")
		return
	}
	e := s.store.AddKnowledge(in.Question, in.Answer, types.SourceManual, nil)
	reqLog.WithField("question", e.Question).Info("new knowledge entry added")
	s.writeJSON(w, reqLog, http.StatusCreated, map[string]any{"entry": e})
}

func (s *Server) useKnowledge(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "knowledge.usage")
	var in types.UsageRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.ID == "" {
		s.writeError(w, reqLog, http.StatusBadRequest, "Entry ID is required")
		return
	}
	if _, err := s.store.IncrementUsage(in.ID); err != nil {
		s.writeError(w, reqLog, statusFor(err), "Failed to update usage count")
		return
	}
	s.writeJSON(w, reqLog, http.StatusOK, successBody{Success: true})
}

func (s *Server) deleteKnowledge(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "knowledge.delete")
	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeError(w, reqLog, http.StatusBadRequest, "Entry ID is required")
		return
	}
	if err := s.store.DeleteKnowledge(id); err != nil {
		s.writeError(w, reqLog, statusFor(err), "Failed to delete knowledge entry")
		return
	}
	s.writeJSON(w, reqLog, http.StatusOK, successBody{Success: true})
}

func (s *Server) listHelpRequests(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "help_requests.list")
	reqs := s.store.ListHelpRequests(types.HelpRequestStatus(r.URL.Query().Get("status")))
	if reqs == nil {
		reqs = []types.HelpRequest{}
	}
	s.writeJSON(w, reqLog, http.StatusOK, map[string]any{"requests": reqs})
}

func (s *Server) createHelpRequest(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "help_requests.create")
	var in types.CreateHelpRequest
	if err := s.decode(r, &in); err != nil {
		s.writeError(w, reqLog, http.StatusBadRequest, "caller_phone and question are required")
		return
	}
	req := s.store.CreateHelpRequest(in)

	who := in.CallerPhone
	if in.CallerName != nil && *in.CallerName != "" {
		who = *in.CallerName
	}
	reqLog.WithFields(logrus.Fields{
		"request_id": req.ID,
		"from":       who,
		"question":   req.Question,
	}).Info("SUPERVISOR NOTIFICATION: new help request")

	s.writeJSON(w, reqLog, http.StatusCreated, map[string]any{"request": req})
}

func (s *Server) deleteHelpRequest(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "help_requests.delete")
	if err := s.store.DeleteHelpRequest(r.PathValue("id")); err != nil {
		s.writeError(w, reqLog, statusFor(err), "Failed to delete help request")
		return
	}
	s.writeJSON(w, reqLog, http.StatusOK, successBody{Success: true})
}

func (s *Server) respondHelpRequest(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "help_requests.respond")
	var in types.RespondHelpRequest
	if err := s.decode(r, &in); err != nil {
		s.writeError(w, reqLog, http.StatusBadRequest, "Request ID and answer are required")
		return
	}
	req, entry, err := s.store.Respond(in.ID, in.Answer, in.AddToKnowledge)
	if err != nil {
		s.writeError(w, reqLog, statusFor(err), "Help request not found")
		return
	}
	reqLog.WithField("request_id", req.ID).WithField("learned", entry != nil).Info("request resolved by supervisor")
	s.writeJSON(w, reqLog, http.StatusOK, map[string]any{
		"success":        true,
		"request":        req,
		"knowledgeEntry": entry,
	})
}

type timeoutBody struct {
	Message string   `json:"message"`
	Count   int      `json:"count"`
	IDs     []string `json:"ids,omitempty"`
}

func (s *Server) timeoutHelpRequests(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "help_requests.timeout")
	ids := s.store.TimeoutPending(PendingTimeout)
	if len(ids) == 0 {
		s.writeJSON(w, reqLog, http.StatusOK, timeoutBody{Message: "No requests to timeout"})
		return
	}
	reqLog.WithField("count", len(ids)).Info("timed out requests")
	s.writeJSON(w, reqLog, http.StatusOK, timeoutBody{Message: "Requests timed out", Count: len(ids), IDs: ids})
}

func (s *Server) listCallLogs(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "call_logs.list")
	limit := DefaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, reqLog, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	logs := s.store.ListCallLogs(limit)
	if logs == nil {
		logs = []types.CallLog{}
	}
	s.writeJSON(w, reqLog, http.StatusOK, map[string]any{"logs": logs})
}

func (s *Server) createCallLog(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "call_logs.create")
	var in types.CreateCallLog
	if err := s.decode(r, &in); err != nil {
		s.writeError(w, reqLog, http.StatusBadRequest, "caller_phone is required")
		return
	}
	l := s.store.AddCallLog(in)
	reqLog.WithField("caller_phone", l.CallerPhone).Info("call log created")
	s.writeJSON(w, reqLog, http.StatusCreated, map[string]any{"log": l})
}

func statusFor(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
