package session

import (
	"time"

	"prompttable/internal/backend"
	"prompttable/internal/plan"
)

// Role is the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Fixed message texts.
const (
	StoppedText    = "Generation stopped by user."
	FailedText     = "Something went wrong while generating a response. Please try again."
	PlanFailedText = "Something went wrong while generating a plan. Please try again."
	RefiningText   = "Applying visual refinements..."
)

// Message is one transcript entry.
type Message struct {
	ID        string         `json:"id" yaml:"id"`
	Role      Role           `json:"role" yaml:"role"`
	Text      string         `json:"text" yaml:"text"`
	Image     *backend.Image `json:"image,omitempty" yaml:"image,omitempty"`
	Plan      *plan.Plan     `json:"plan,omitempty" yaml:"plan,omitempty"`
	Failed    bool           `json:"failed,omitempty" yaml:"failed,omitempty"`
	Stopped   bool           `json:"stopped,omitempty" yaml:"stopped,omitempty"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
}

// State is the request lifecycle state of a Builder.
type State int32

const (
	StateIdle State = iota
	StateSending
	StateAwaitingResponse
	StateAborted
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateAwaitingResponse:
		return "awaiting-response"
	case StateAborted:
		return "aborted"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is how a turn ended from the caller's point of view.
type Outcome string

const (
	// OutcomeCompleted: the assistant reply was appended.
	OutcomeCompleted Outcome = "completed"
	// OutcomeFailed: a generic failure message was appended.
	OutcomeFailed Outcome = "failed"
	// OutcomeStopped: the user stopped the turn.
	OutcomeStopped Outcome = "stopped"
	// OutcomeSuperseded: a newer turn or a reset replaced this one. Nothing
	// was appended on its behalf.
	OutcomeSuperseded Outcome = "superseded"
)

// TurnResult reports the end of a turn. Message is the message appended for
// the turn's end, nil when superseded.
type TurnResult struct {
	Outcome Outcome
	Message *Message
}

// EventKind identifies a Builder notification.
type EventKind int

const (
	EventState EventKind = iota
	EventMessage
	EventReset
)

// Event is delivered to subscribers after every state change and transcript
// append.
type Event struct {
	Kind    EventKind
	State   State
	Message *Message
}
