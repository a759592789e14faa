package trigger

import (
	"strings"

	"github.com/filings-ops/notebook-deployer/internal/constants"
)

// EventType identifies how a run was started
type EventType string

const (
	// EventPush is a git push delivered by the hosting platform
	EventPush EventType = "push"

	// EventDispatch is a manual run with an operator-supplied environment input
	EventDispatch EventType = "workflow_dispatch"
)

// Event is the trigger context for a single run. It is transient: produced
// by the caller, consumed once, never persisted.
type Event struct {
	Type        EventType
	Repository  string   // owner/name identity of the source repository
	Ref         string   // git ref for push events (e.g. refs/heads/master)
	Paths       []string // files touched by a push event
	Environment string   // free-text environment input for dispatch events
}

// MatchesRepository reports whether the event originates from the guarded
// repository. The comparison is an exact string match on owner/name.
func (e Event) MatchesRepository(guard string) bool {
	return guard != "" && e.Repository == guard
}

// TouchesPath reports whether any changed path falls under the watched
// prefix. Dispatch events are not path-filtered and always pass.
func (e Event) TouchesPath(prefix string) bool {
	if e.Type != EventPush {
		return true
	}
	if prefix == "" {
		return true
	}
	for _, p := range e.Paths {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// ResolveEnvironment derives the environment tag for a run:
//
//  1. a non-empty dispatch input wins, verbatim (after trimming)
//  2. a push to the master ref resolves to "dev"
//  3. anything else leaves the tag empty
//
// The empty case is deliberately unguarded: the tag is forwarded to the
// deploy action as-is, matching the source pipeline's behavior.
func ResolveEnvironment(e Event) string {
	if e.Type == EventDispatch {
		if env := strings.TrimSpace(e.Environment); env != "" {
			return env
		}
	}
	if e.Type == EventPush && e.Ref == constants.MasterRef {
		return constants.DefaultEnvironment
	}
	return ""
}
