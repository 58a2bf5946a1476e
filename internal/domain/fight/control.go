package fight

import "fmt"

// FlagCount is the number of flags in a ControlState on the wire
const FlagCount = 3

// ControlState captures one player's controls on a single frame
type ControlState struct {
	MoveLeft  bool
	MoveRight bool
	Attack    bool
}

// Neutral is the control state with nothing pressed
var Neutral = ControlState{}

// Flags returns the flags in wire order: move-left, move-right, attack.
func (c ControlState) Flags() []bool {
	return []bool{c.MoveLeft, c.MoveRight, c.Attack}
}

// ControlStateFromFlags rebuilds a ControlState from flags in wire order.
func ControlStateFromFlags(flags []bool) (ControlState, error) {
	if len(flags) != FlagCount {
		return ControlState{}, fmt.Errorf("control state needs %d flags, got %d", FlagCount, len(flags))
	}
	return ControlState{
		MoveLeft:  flags[0],
		MoveRight: flags[1],
		Attack:    flags[2],
	}, nil
}

// IsNeutral reports whether no control is pressed
func (c ControlState) IsNeutral() bool {
	return c == Neutral
}

// String returns a compact summary such as "L-A"
func (c ControlState) String() string {
	b := []byte("---")
	if c.MoveLeft {
		b[0] = 'L'
	}
	if c.MoveRight {
		b[1] = 'R'
	}
	if c.Attack {
		b[2] = 'A'
	}
	return string(b)
}
