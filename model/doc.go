// Package model defines the provider-agnostic abstraction the agent loop uses
// to call a chat-completion style backend.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize backend failures into BackendError (status, code, message, request id)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel, ScriptedModel)
//
// Providers (openai, anthropic, gollm) live in sub-packages so higher layers
// remain decoupled from vendor SDKs.
package model
