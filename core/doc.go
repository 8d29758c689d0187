// Package core provides the foundational domain types shared by every other
// package in toolrelay:
//
//   - Message / Role (the units of a conversation sent to the model)
//   - Conversation (the append-only sequence owned by one agent loop run)
//   - Directive (a tool invocation parsed out of assistant text)
//   - Event (one incremental step of the loop as streamed to the caller)
//
// The package deliberately carries no behavior beyond construction helpers
// and wire encoding so that parsing, tool execution and transport can evolve
// independently.
package core
