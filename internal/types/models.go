package types

import "time"

type KnowledgeSource string

const (
	SourceSupervisor KnowledgeSource = "supervisor"
	SourceManual     KnowledgeSource = "manual"
	SourceInitial    KnowledgeSource = "initial"
)

type KnowledgeEntry struct {
	ID            string          `json:"id"`
	Question      string          `json:"question"`
	Answer        string          `json:"answer"`
	Source        KnowledgeSource `json:"source,omitempty"`
	HelpRequestID *string         `json:"help_request_id,omitempty"`
	UsageCount    int             `json:"usage_count"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type HelpRequestStatus string

const (
	StatusPending  HelpRequestStatus = "pending"
	StatusResolved HelpRequestStatus = "resolved"
	StatusTimeout  HelpRequestStatus = "timeout"
)

type HelpRequest struct {
	ID               string            `json:"id"`
	CallerPhone      string            `json:"caller_phone"`
	CallerName       *string           `json:"caller_name"`
	Question         string            `json:"question"`
	Context          *string           `json:"context"`
	RoomName         *string           `json:"room_name"`
	Status           HelpRequestStatus `json:"status"`
	SupervisorAnswer *string           `json:"supervisor_answer"`
	CreatedAt        time.Time         `json:"created_at"`
	ResolvedAt       *time.Time        `json:"resolved_at"`
	TimeoutAt        *time.Time        `json:"timeout_at"`
}

type CallLog struct {
	ID                  string    `json:"id"`
	CallerPhone         string    `json:"caller_phone"`
	CallerName          *string   `json:"caller_name"`
	CallDuration        *int      `json:"call_duration"`
	ConversationSummary *string   `json:"conversation_summary"`
	Escalated           bool      `json:"escalated"`
	HelpRequestID       *string   `json:"help_request_id"`
	CreatedAt           time.Time `json:"created_at"`
}

// --------------------------------------------
// Wire payloads exchanged with the remote API
// --------------------------------------------

type KnowledgeSearchResponse struct {
	Entries []KnowledgeEntry `json:"entries"`
}

type UsageRequest struct {
	ID string `json:"id"`
}

type CreateKnowledge struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
}

type CreateHelpRequest struct {
	CallerPhone string  `json:"caller_phone" validate:"required"`
	CallerName  *string `json:"caller_name"`
	Question    string  `json:"question" validate:"required"`
	Context     string  `json:"context"`
	RoomName    *string `json:"room_name"`
}

type CreateHelpRequestResponse struct {
	Request struct {
		ID string `json:"id"`
	} `json:"request"`
}

type RespondHelpRequest struct {
	ID             string `json:"id" validate:"required"`
	Answer         string `json:"answer" validate:"required"`
	AddToKnowledge bool   `json:"addToKnowledge"`
}

type CreateCallLog struct {
	CallerPhone         string  `json:"caller_phone" validate:"required"`
	CallerName          *string `json:"caller_name"`
	CallDuration        int     `json:"call_duration"`
	ConversationSummary string  `json:"conversation_summary"`
	Escalated           bool    `json:"escalated"`
	HelpRequestID       *string `json:"help_request_id"`
}
