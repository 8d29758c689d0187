// Package logging provides a minimal logging interface and slog adapters.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// that the agent loop, the tool registry and the HTTP transport use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping *slog.Logger
//   - NewSlogLogger building json, text or colorized (tint) handlers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "pretty", false)
//	loop := agent.NewLoop(model, registry, func(o *agent.Options) { o.Logger = logger })
package logging
