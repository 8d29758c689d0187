// Package testutil contains helpers used across tests to script model
// replies and to drain and inspect agent loop events. Not intended for
// production usage.
package testutil
