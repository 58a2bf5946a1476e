package fight

// Player identifies a seat in the match. Player 1 hosts, player 2 joins.
type Player int

const (
	PlayerNone Player = iota
	Player1
	Player2
)

// Valid reports whether p is player 1 or player 2
func (p Player) Valid() bool {
	return p == Player1 || p == Player2
}

// Opponent returns the other seat
func (p Player) Opponent() Player {
	switch p {
	case Player1:
		return Player2
	case Player2:
		return Player1
	default:
		return PlayerNone
	}
}

// Order arranges a local and a remote input by player number.
// The transition function always takes player 1's input first.
func (p Player) Order(local, remote ControlState) (p1, p2 ControlState) {
	if p == Player2 {
		return remote, local
	}
	return local, remote
}

// String returns the string representation of the player
func (p Player) String() string {
	switch p {
	case Player1:
		return "P1"
	case Player2:
		return "P2"
	default:
		return "none"
	}
}
