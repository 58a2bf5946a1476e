// Package input captures the local player's controls once per tick.
package input

import (
	"sync"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/younwookim/fightsquares/internal/domain/fight"
)

// KeyState reports whether a key is held
type KeyState interface {
	IsKeyPressed(key ebiten.Key) bool
}

type ebitenKeys struct{}

func (ebitenKeys) IsKeyPressed(key ebiten.Key) bool {
	return ebiten.IsKeyPressed(key)
}

// Bindings maps each control to the keys that trigger it
type Bindings struct {
	Left   []ebiten.Key
	Right  []ebiten.Key
	Attack []ebiten.Key
}

// DefaultBindings uses A/D to move and S to attack, with the arrow keys as
// an alternative
var DefaultBindings = Bindings{
	Left:   []ebiten.Key{ebiten.KeyA, ebiten.KeyArrowLeft},
	Right:  []ebiten.Key{ebiten.KeyD, ebiten.KeyArrowRight},
	Attack: []ebiten.Key{ebiten.KeyS, ebiten.KeyArrowDown},
}

// Player1Keys and Player2Keys split one keyboard between two local players
var (
	Player1Keys = Bindings{
		Left:   []ebiten.Key{ebiten.KeyA},
		Right:  []ebiten.Key{ebiten.KeyD},
		Attack: []ebiten.Key{ebiten.KeyS},
	}
	Player2Keys = Bindings{
		Left:   []ebiten.Key{ebiten.KeyJ},
		Right:  []ebiten.Key{ebiten.KeyL},
		Attack: []ebiten.Key{ebiten.KeyK},
	}
)

// Keyboard reads held keys. CaptureLocalInput must run on the ebiten update
// goroutine.
type Keyboard struct {
	keys     KeyState
	bindings Bindings
}

// NewKeyboard creates a keyboard source reading ebiten's key state
func NewKeyboard(bindings Bindings) *Keyboard {
	return NewKeyboardFrom(ebitenKeys{}, bindings)
}

// NewKeyboardFrom creates a keyboard source over any key state
func NewKeyboardFrom(keys KeyState, bindings Bindings) *Keyboard {
	return &Keyboard{keys: keys, bindings: bindings}
}

// CaptureLocalInput returns the held controls
func (k *Keyboard) CaptureLocalInput() fight.ControlState {
	return fight.ControlState{
		MoveLeft:  k.anyPressed(k.bindings.Left),
		MoveRight: k.anyPressed(k.bindings.Right),
		Attack:    k.anyPressed(k.bindings.Attack),
	}
}

func (k *Keyboard) anyPressed(keys []ebiten.Key) bool {
	for _, key := range keys {
		if k.keys.IsKeyPressed(key) {
			return true
		}
	}
	return false
}

// Idle always reports neutral controls
type Idle struct{}

// CaptureLocalInput returns fight.Neutral
func (Idle) CaptureLocalInput() fight.ControlState {
	return fight.Neutral
}

// Scripted plays back a fixed sequence of controls, one per call, then
// repeats the last entry. An empty script behaves like Idle.
type Scripted struct {
	mu    sync.Mutex
	steps []fight.ControlState
	next  int
}

// NewScripted creates a scripted source
func NewScripted(steps ...fight.ControlState) *Scripted {
	return &Scripted{steps: steps}
}

// CaptureLocalInput returns the next scripted controls
func (s *Scripted) CaptureLocalInput() fight.ControlState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.steps) == 0 {
		return fight.Neutral
	}
	i := min(s.next, len(s.steps)-1)
	s.next++
	return s.steps[i]
}

// Calls returns how many times the source was polled
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Walk returns one round of moving toward the opponent for frames ticks,
// followed by an attack and period-1 idle ticks. NewCycle repeats it.
func Walk(player fight.Player, frames, period int) []fight.ControlState {
	toward := fight.ControlState{MoveRight: true}
	if player == fight.Player2 {
		toward = fight.ControlState{MoveLeft: true}
	}
	steps := make([]fight.ControlState, 0, frames+period)
	for range frames {
		steps = append(steps, toward)
	}
	for i := range period {
		steps = append(steps, fight.ControlState{Attack: i == 0})
	}
	return steps
}

// Cycle repeats a script forever instead of holding its last entry
type Cycle struct {
	*Scripted
}

// NewCycle creates a repeating script
func NewCycle(steps ...fight.ControlState) Cycle {
	return Cycle{NewScripted(steps...)}
}

// CaptureLocalInput returns the next controls, wrapping around
func (c Cycle) CaptureLocalInput() fight.ControlState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.steps) == 0 {
		return fight.Neutral
	}
	in := c.steps[c.next%len(c.steps)]
	c.next++
	return in
}
