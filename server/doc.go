// Package server exposes the agent loop over HTTP.
//
// POST /api/chat accepts {messages, temperature?, max_output_tokens?} and
// answers with newline-delimited JSON, one object per loop event, flushed as
// soon as the event is produced:
//
//	{"role":"assistant","content":"..."}
//	{"role":"tool_call","content":"Tool call: {...}"}
//	{"role":"tool_call","content":"Tool result: ..."}
//	{"error":"Model inference failed.","details":"Request id: ..."}
//
// Malformed request bodies are rejected with 400 and {"error": "..."} before
// any streaming starts.
package server
