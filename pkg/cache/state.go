package cache

// State is the lifecycle position of a key
type State int

const (
	// StateAbsent means nothing is stored and nothing is loading
	StateAbsent State = iota
	// StateLoading means a first fetch is in flight
	StateLoading
	StateFresh
	StateStale
	// StateRefetching means a value is stored and a revalidation is in flight
	StateRefetching
	// StateError means the last fetch failed; a previous value may still be readable
	StateError
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateLoading:
		return "loading"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateRefetching:
		return "refetching"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
