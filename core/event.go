package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventKind classifies an Event produced by the agent loop.
type EventKind string

const (
	// EventAssistant carries a model reply.
	EventAssistant EventKind = "assistant"
	// EventDirective announces a parsed directive before it is executed.
	EventDirective EventKind = "directive"
	// EventToolResult carries the tool result message appended to the conversation.
	EventToolResult EventKind = "tool_result"
	// EventError reports a backend failure; it is always the last event.
	EventError EventKind = "error"
)

// Wire roles used by the streaming transport.
const (
	WireRoleAssistant = "assistant"
	WireRoleToolCall  = "tool_call"
)

// Event is one incremental step of an agent loop run. After emission it
// should be treated as immutable.
//
// On the wire an Event is either {role, content} or, for EventError,
// {error, details}. Directive announcements and tool results share the
// "tool_call" role; Kind distinguishes them in process.
type Event struct {
	ID             string
	ConversationID string
	Kind           EventKind
	Content        string
	Directive      *Directive
	Error          string
	Details        string
	Timestamp      time.Time
}

func newEvent(kind EventKind) Event {
	return Event{
		ID:        NewID(),
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}
}

// NewAssistantEvent creates the event for a model reply.
func NewAssistantEvent(content string) Event {
	e := newEvent(EventAssistant)
	e.Content = content
	return e
}

// NewDirectiveEvent creates the announcement event for a parsed directive.
func NewDirectiveEvent(d Directive) Event {
	e := newEvent(EventDirective)
	e.Content = "Tool call: " + d.String()
	e.Directive = &d
	return e
}

// NewToolResultEvent creates the event carrying a tool result message.
func NewToolResultEvent(m Message) Event {
	e := newEvent(EventToolResult)
	e.Content = m.Content
	return e
}

// NewErrorEvent creates a terminal error event.
func NewErrorEvent(msg, details string) Event {
	e := newEvent(EventError)
	e.Error = msg
	e.Details = details
	return e
}

// IsError reports whether the event is a terminal error.
func (e Event) IsError() bool { return e.Kind == EventError }

// Role returns the wire role of the event, or "" for error events.
func (e Event) Role() string {
	switch e.Kind {
	case EventAssistant:
		return WireRoleAssistant
	case EventDirective, EventToolResult:
		return WireRoleToolCall
	default:
		return ""
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireError struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// MarshalJSON encodes the wire shape of the event.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.IsError() {
		return json.Marshal(wireError{Error: e.Error, Details: e.Details})
	}
	return json.Marshal(wireMessage{Role: e.Role(), Content: e.Content})
}

// NewID generates a new unique identifier for events and conversations.
func NewID() string { return uuid.NewString() }
