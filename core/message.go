package core

import "strings"

// Role identifies the author of a Message.
type Role string

const (
	// RoleSystem is the single preamble message placed first in a conversation.
	RoleSystem Role = "system"
	// RoleUser marks caller input and tool results fed back to the model.
	RoleUser Role = "user"
	// RoleAssistant marks model replies.
	RoleAssistant Role = "assistant"
)

// ToolResultPrefix prefixes every user message that carries a tool result.
const ToolResultPrefix = "Tool result: "

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message is a single role/content pair of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolResultMessage wraps a tool result as the user message the model sees.
func NewToolResultMessage(result string) Message {
	return NewUserMessage(ToolResultPrefix + result)
}

// IsToolResult reports whether m carries a tool result.
func (m Message) IsToolResult() bool {
	return m.Role == RoleUser && strings.HasPrefix(m.Content, ToolResultPrefix)
}

// Conversation is the append-only message sequence driven by one loop run.
// Messages are never edited or removed once added. A Conversation is not safe
// for concurrent use; it is owned by exactly one loop.
type Conversation struct {
	messages []Message
}

// NewConversation copies msgs into a fresh Conversation.
func NewConversation(msgs []Message) *Conversation {
	c := &Conversation{messages: make([]Message, 0, len(msgs)+4)}
	c.messages = append(c.messages, msgs...)
	return c
}

// Append adds m to the end of the conversation.
func (c *Conversation) Append(m Message) { c.messages = append(c.messages, m) }

// Len returns the number of messages.
func (c *Conversation) Len() int { return len(c.messages) }

// Last returns the most recent message and false when the conversation is empty.
func (c *Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// Messages returns a snapshot copy safe to hand to a model backend.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}
