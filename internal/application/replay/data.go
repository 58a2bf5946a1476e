package replay

import "github.com/younwookim/fightsquares/internal/domain/fight"

// FormatVersion is written into every replay file
const FormatVersion = "2.0"

// FrameInput records both players' controls for a single frame
type FrameInput struct {
	F  int  `json:"f"`            // Frame number
	L1 bool `json:"l1,omitempty"` // P1 MoveLeft
	R1 bool `json:"r1,omitempty"` // P1 MoveRight
	A1 bool `json:"a1,omitempty"` // P1 Attack
	L2 bool `json:"l2,omitempty"` // P2 MoveLeft
	R2 bool `json:"r2,omitempty"` // P2 MoveRight
	A2 bool `json:"a2,omitempty"` // P2 Attack
}

// NewFrameInput packs one frame's controls
func NewFrameInput(frame int, p1, p2 fight.ControlState) FrameInput {
	return FrameInput{
		F:  frame,
		L1: p1.MoveLeft,
		R1: p1.MoveRight,
		A1: p1.Attack,
		L2: p2.MoveLeft,
		R2: p2.MoveRight,
		A2: p2.Attack,
	}
}

// Controls unpacks the frame's controls in player order
func (fi FrameInput) Controls() (p1, p2 fight.ControlState) {
	p1 = fight.ControlState{MoveLeft: fi.L1, MoveRight: fi.R1, Attack: fi.A1}
	p2 = fight.ControlState{MoveLeft: fi.L2, MoveRight: fi.R2, Attack: fi.A2}
	return p1, p2
}

// ReplayData contains all data needed to replay a match. Frames start at 1;
// frame 0 is the initial state.
type ReplayData struct {
	Version   string          `json:"version"`
	MatchID   string          `json:"matchId"`
	Mode      string          `json:"mode"`
	Player    fight.Player    `json:"player"` // seat of the peer that recorded
	StartTime string          `json:"startTime"`
	Frames    []FrameInput    `json:"frames"`
	Final     *fight.SimState `json:"final,omitempty"` // recorded state after the last frame
}
