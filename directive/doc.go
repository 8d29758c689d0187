// Package directive extracts tool invocations embedded in model output.
//
// A directive is a JSON object with a "name" and an optional "input" mapping,
// placed between a start and an end sentinel:
//
//	[[qwen-tool-start]]
//	{"name": "list-directory", "input": {"path": "."}}
//	[[qwen-tool-end]]
//
// Parse never returns an error value to the caller; instead it produces a
// tagged Result (Found, NotFound or Malformed) which the agent loop matches
// on explicitly. Text surrounding the sentinels (including markdown fences)
// is ignored.
package directive
