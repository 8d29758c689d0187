package testutil

import (
	"strings"

	"github.com/hupe1980/toolrelay/core"
	"github.com/hupe1980/toolrelay/directive"
)

// ReplyBuilder provides a fluent helper for constructing model reply text.
// Example:
//
//	reply := NewReplyBuilder().Text("Let me look.").Call("list-directory", map[string]string{"path": "."}).Build()
//
// Calls are rendered inside a fenced block exactly as the system preamble
// instructs the model to write them.
type ReplyBuilder struct {
	parser *directive.Parser
	parts  []string
}

// NewReplyBuilder creates a builder using the default sentinels.
func NewReplyBuilder() *ReplyBuilder { return &ReplyBuilder{parser: directive.NewParser()} }

// Markers switches to custom sentinels (chainable).
func (b *ReplyBuilder) Markers(start, end string) *ReplyBuilder {
	b.parser = directive.NewParser(func(o *directive.Options) {
		o.StartMarker = start
		o.EndMarker = end
	})
	return b
}

// Text appends free text (chainable).
func (b *ReplyBuilder) Text(t string) *ReplyBuilder {
	b.parts = append(b.parts, t)
	return b
}

// Call appends a fenced directive (chainable).
func (b *ReplyBuilder) Call(name string, input map[string]string) *ReplyBuilder {
	b.parts = append(b.parts, "```\n"+b.parser.Format(core.NewDirective(name, input))+"\n```")
	return b
}

// Raw appends body between the sentinels without validation (chainable).
// Use it to produce malformed directives.
func (b *ReplyBuilder) Raw(body string) *ReplyBuilder {
	b.parts = append(b.parts, b.parser.StartMarker()+"\n"+body+"\n"+b.parser.EndMarker())
	return b
}

// Build returns the reply text.
func (b *ReplyBuilder) Build() string { return strings.Join(b.parts, "\n") }

// CallReply is shorthand for a reply containing only one directive.
func CallReply(name string, input map[string]string) string {
	return NewReplyBuilder().Call(name, input).Build()
}
