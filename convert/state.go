package convert

// State is a step of a conversion.
type State int

const (
	StateUnknown State = iota
	StateResolve
	StateSchemaLoad
	StateValidateChunking
	StateChunked
	StateDirect
	StateDone
	StateFailed
)

func StateFromString(s string) State {
	switch s {
	case StateResolve.String():
		return StateResolve
	case StateSchemaLoad.String():
		return StateSchemaLoad
	case StateValidateChunking.String():
		return StateValidateChunking

	case StateChunked.String():
		return StateChunked
	case StateDirect.String():
		return StateDirect

	case StateDone.String():
		return StateDone
	case StateFailed.String():
		return StateFailed

	default:
		return StateUnknown
	}
}

func (s State) String() string {
	switch s {
	case StateResolve:
		return "resolve"
	case StateSchemaLoad:
		return "schema_load"
	case StateValidateChunking:
		return "validate_chunking"

	case StateChunked:
		return "chunked"
	case StateDirect:
		return "direct"

	case StateDone:
		return "done"
	case StateFailed:
		return "failed"

	default:
		return "unknown"
	}
}
