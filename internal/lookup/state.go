// Package lookup names the outcome of a single remote lookup, shared by the
// author resolver and the ban checker: idle, loading, then one of
// resolved, absent or errored.
package lookup

import "fmt"

// State is one step of a single lookup.
type State int

const (
	Idle State = iota
	Loading
	Resolved
	Absent
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Resolved:
		return "resolved"
	case Absent:
		return "absent"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transition is expected.
func (s State) Terminal() bool {
	return s == Resolved || s == Absent || s == Errored
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
