package fight

import "fmt"

// SimState is a snapshot of the match on one frame.
// Integer fields only: resimulation on another machine must reproduce it bit for bit.
type SimState struct {
	P1X           int `json:"p1x"`
	P1HP          int `json:"p1hp"`
	P1AttackFrame int `json:"p1atk"` // 0 when no attack is in progress
	P2X           int `json:"p2x"`
	P2HP          int `json:"p2hp"`
	P2AttackFrame int `json:"p2atk"`
}

// NewSimState returns the state both peers start from
func NewSimState() SimState {
	return SimState{
		P1X:  P1SpawnX,
		P1HP: MaxHP,
		P2X:  P2SpawnX,
		P2HP: MaxHP,
	}
}

// Winner returns the player left standing, or PlayerNone while both have health.
// A double knockout also reports PlayerNone.
func (s SimState) Winner() Player {
	switch {
	case s.P1HP <= 0 && s.P2HP <= 0:
		return PlayerNone
	case s.P2HP <= 0:
		return Player1
	case s.P1HP <= 0:
		return Player2
	default:
		return PlayerNone
	}
}

// String returns a readable summary
func (s SimState) String() string {
	return fmt.Sprintf("p1{x:%d hp:%d atk:%d} p2{x:%d hp:%d atk:%d}",
		s.P1X, s.P1HP, s.P1AttackFrame, s.P2X, s.P2HP, s.P2AttackFrame)
}
