package events

import (
	"context"
	"sort"
	"strings"
)

// DefaultEventName is the name of SSE events sent without an event field.
const DefaultEventName = "message"

type Event struct {
	Name string
	ID   string
	Data string
}

type Listener func(Event)

// Source is a live connection delivering named events.
//
// Listeners added before Start see every event. Remove functions may be
// called from inside a listener.
type Source interface {
	AddListener(name string, fn Listener) (remove func())
	OnError(fn func(error)) (remove func())
	Start()
	Close() error
}

// Dialer opens one Source for a scope and a set of event names.
type Dialer interface {
	Open(ctx context.Context, scope string, names []string) (Source, error)
}

type DialerFunc func(ctx context.Context, scope string, names []string) (Source, error)

func (f DialerFunc) Open(ctx context.Context, scope string, names []string) (Source, error) {
	return f(ctx, scope, names)
}

// normalizeNames sorts names and drops empties and duplicates.
func normalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := map[string]bool{}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Key identifies the shared connection for scope and names. The order of
// names does not matter.
func Key(scope string, names []string) string {
	return scope + "|" + strings.Join(normalizeNames(names), ",")
}
