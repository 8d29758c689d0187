package testutil

import (
	"testing"
	"time"

	"github.com/hupe1980/toolrelay/core"
)

// DefaultTimeout bounds CollectEvents.
const DefaultTimeout = 5 * time.Second

// CollectEvents drains ch until it is closed. The test fails if that takes
// longer than DefaultTimeout.
func CollectEvents(t testing.TB, ch <-chan core.Event) []core.Event {
	t.Helper()

	timer := time.NewTimer(DefaultTimeout)
	defer timer.Stop()

	var out []core.Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timer.C:
			t.Fatalf("event channel not closed after %s (%d events received)", DefaultTimeout, len(out))
			return out
		}
	}
}

// Kinds returns the kind of every event in order.
func Kinds(events []core.Event) []core.EventKind {
	kinds := make([]core.EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	return kinds
}

// Contents returns the content of every event in order.
func Contents(events []core.Event) []string {
	contents := make([]string, len(events))
	for i, ev := range events {
		contents[i] = ev.Content
	}
	return contents
}
