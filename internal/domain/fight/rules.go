// Package fight holds the deterministic rules of Fighting Squares: two squares
// on a line, each able to walk and swing a slow sword.
package fight

// Arena and fighter constants. Units are pixels and frames.
const (
	ArenaWidth  = 800
	ArenaHeight = 400
	PlayerSize  = 50
	PlayerSpeed = 10

	AttackFrames = 60
	AttackRange  = 50
	AttackDamage = 5

	MaxHP    = 100
	P1SpawnX = 100
	P2SpawnX = 700
)

// TransitionFunc computes the next state from the previous one and both
// players' inputs, player 1 first. Implementations must be pure.
type TransitionFunc func(s SimState, p1, p2 ControlState) SimState

var _ TransitionFunc = Step

// Step advances the match by one frame.
//
// Player 1 moves and resolves its attack before player 2 moves, so a finishing
// player 1 swing sees player 2's position from the previous frame. Both peers
// must apply the same order.
func Step(s SimState, p1, p2 ControlState) SimState {
	next := s

	next.P1X = move(next.P1X, p1)
	switch {
	case s.P1AttackFrame == 0:
		if p1.Attack {
			next.P1AttackFrame++
		}
	case s.P1AttackFrame < AttackFrames:
		next.P1AttackFrame++
	default:
		// Swing completes: player 1 faces right, hits anything ahead within reach
		if inReach(next.P1X, next.P2X) {
			next.P2HP -= AttackDamage
		}
		next.P1AttackFrame = 0
	}

	next.P2X = move(next.P2X, p2)
	switch {
	case s.P2AttackFrame == 0:
		if p2.Attack {
			next.P2AttackFrame++
		}
	case s.P2AttackFrame < AttackFrames:
		next.P2AttackFrame++
	default:
		// Player 2 faces left
		if inReach(next.P1X, next.P2X) {
			next.P1HP -= AttackDamage
		}
		next.P2AttackFrame = 0
	}

	return next
}

// move applies horizontal input. Pressing both directions cancels out.
func move(x int, c ControlState) int {
	const half = PlayerSize / 2
	switch {
	case c.MoveLeft && !c.MoveRight:
		x -= PlayerSpeed
		if x < half {
			x = half
		}
	case c.MoveRight && !c.MoveLeft:
		x += PlayerSpeed
		if x > ArenaWidth-half {
			x = ArenaWidth - half
		}
	}
	return x
}

// inReach reports whether player 2 stands ahead of player 1 within sword reach
func inReach(p1X, p2X int) bool {
	d := p2X - p1X
	return d >= 0 && d <= AttackRange+PlayerSize/2
}
