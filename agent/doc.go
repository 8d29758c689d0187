// Package agent implements the tool-calling agent loop.
//
// A Loop drives one conversation against a model backend. Each turn it calls
// the model, parses the reply for a directive, executes at most one tool and
// feeds the result back as a user message. Every step is published on the
// event channel returned by Run as soon as it happens, so a transport can
// forward it without waiting for the loop to finish.
//
// Per turn the events are always ordered:
//
//	assistant reply -> directive announcement (optional) -> tool result (optional)
//
// The loop ends when a reply carries no directive, when the backend fails
// (one error event), when the optional turn cap is reached, or when the
// context is cancelled.
package agent
