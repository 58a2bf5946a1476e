package state

// TickPhase is where a lockstep tick currently stands
type TickPhase int

const (
	AwaitingLocalInput TickPhase = iota
	Sent
	AwaitingRemote
	Advanced
)

// String returns the string representation of the tick phase
func (p TickPhase) String() string {
	switch p {
	case AwaitingLocalInput:
		return "AwaitingLocalInput"
	case Sent:
		return "Sent"
	case AwaitingRemote:
		return "AwaitingRemote"
	case Advanced:
		return "Advanced"
	default:
		return "Unknown"
	}
}

// Next returns the phase that follows p. Advanced wraps to the next tick.
func (p TickPhase) Next() TickPhase {
	if p >= Advanced || p < AwaitingLocalInput {
		return AwaitingLocalInput
	}
	return p + 1
}
