package iface

// This file tracks interface operational state (administrative up/down
// vs. carrier presence) as a pure transition-table state machine, the
// same shape internal/bfd/fsm.go uses for the BFD session FSM: no side
// effects, no Interface dependency, trivially testable against a table.

// OpState is an interface's operational state, distinct from its Flags
// (which record the requested administrative state).
type OpState uint8

const (
	// OpDown: administratively down.
	OpDown OpState = iota

	// OpTesting: administratively up but not yet up: waiting for carrier
	// (after admin-up or carrier loss) or for DAD to complete.
	OpTesting

	// OpUp: administratively up and carrier present.
	OpUp
)

// String returns the human-readable name of the state.
func (s OpState) String() string {
	switch s {
	case OpDown:
		return "Down"
	case OpTesting:
		return "Testing"
	case OpUp:
		return "Up"
	default:
		return "Unknown"
	}
}

// OpEvent is an interface operational-state event.
type OpEvent uint8

const (
	EventAdminUp OpEvent = iota
	EventAdminDown
	EventCarrierUp
	EventCarrierDown
	EventDADComplete
)

// String returns the human-readable name of the event.
func (e OpEvent) String() string {
	switch e {
	case EventAdminUp:
		return "AdminUp"
	case EventAdminDown:
		return "AdminDown"
	case EventCarrierUp:
		return "CarrierUp"
	case EventCarrierDown:
		return "CarrierDown"
	case EventDADComplete:
		return "DADComplete"
	default:
		return "Unknown"
	}
}

type opStateEvent struct {
	state OpState
	event OpEvent
}

//nolint:gochecknoglobals // transition table is intentionally package-level.
var opFSMTable = map[opStateEvent]OpState{
	{OpDown, EventAdminUp}:      OpTesting,
	{OpTesting, EventCarrierUp}: OpUp,
	{OpTesting, EventAdminDown}: OpDown,
	{OpUp, EventAdminDown}:      OpDown,
	{OpUp, EventCarrierDown}:    OpTesting,
	{OpTesting, EventDADComplete}: OpUp,
}

// Apply returns the next state for (state, event), and whether the event
// produced a transition. Unlisted pairs are silently ignored (event
// dropped), the same "event ignored" convention internal/bfd/fsm.go
// documents.
func Apply(state OpState, event OpEvent) (next OpState, changed bool) {
	next, ok := opFSMTable[opStateEvent{state, event}]
	if !ok {
		return state, false
	}
	return next, next != state
}
