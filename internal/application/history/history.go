// Package history keeps the frame-indexed timeline of inputs and simulated
// states that both synchronization strategies read and repair.
//
// Frame 0 is a seed: neutral inputs and the initial state. For every simulated
// frame i >= 1 the timeline keeps
//
//	State[i] == transition(State[i-1], Order(Local[i], Remote[i]))
//
// An in-place correction of frame k breaks that for k and later frames until
// ResimulateFrom repairs the suffix.
package history

import (
	"errors"
	"fmt"
	"sync"

	"github.com/younwookim/fightsquares/internal/domain/fight"
)

var (
	// ErrIndexOutOfRange is matched by every IndexError
	ErrIndexOutOfRange = errors.New("frame index out of range")
	// ErrSeedFrame is returned when asked to recompute frame 0
	ErrSeedFrame = errors.New("seed frame has no predecessor")
	// ErrNotSimulated is returned when a frame's predecessor has no state yet
	ErrNotSimulated = errors.New("frame not simulated")
)

// IndexError reports an access outside the timeline
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("frame %d out of range [0,%d)", e.Index, e.Len)
}

// Is lets errors.Is match ErrIndexOutOfRange
func (e *IndexError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}

// FrameRecord is the history entry for one frame
type FrameRecord struct {
	Local     fight.ControlState
	Remote    fight.ControlState
	State     fight.SimState
	Simulated bool // State is meaningful only when set
}

// Resimulation summarizes one ResimulateFrom call
type Resimulation struct {
	From       int
	Upper      int // exclusive bound after clamping to the history length
	Recomputed int // transitions evaluated
	Changed    int // stored states that were overwritten
	StoppedAt  int // frame where the short-circuit fired, -1 if it ran to Upper
}

// ShortCircuited reports whether resimulation stopped on an unchanged state
func (r Resimulation) ShortCircuited() bool {
	return r.StoppedAt >= 0
}

// Timeline is the unlocked view of the history, handed out by History.Update.
// It must not be retained after the callback returns.
type Timeline struct {
	player  fight.Player
	records []FrameRecord
}

// Len returns the number of frames, seed included
func (t *Timeline) Len() int {
	return len(t.records)
}

// Get returns a copy of frame i
func (t *Timeline) Get(i int) (FrameRecord, error) {
	if i < 0 || i >= len(t.records) {
		return FrameRecord{}, &IndexError{Index: i, Len: len(t.records)}
	}
	return t.records[i], nil
}

// Last returns the newest frame and its index
func (t *Timeline) Last() (FrameRecord, int) {
	i := len(t.records) - 1
	return t.records[i], i
}

// Append adds rec at the next index and returns that index
func (t *Timeline) Append(rec FrameRecord) int {
	t.records = append(t.records, rec)
	return len(t.records) - 1
}

// SetLocal overwrites the local input of frame i
func (t *Timeline) SetLocal(i int, in fight.ControlState) error {
	if i < 0 || i >= len(t.records) {
		return &IndexError{Index: i, Len: len(t.records)}
	}
	t.records[i].Local = in
	return nil
}

// CorrectRemoteInput overwrites the remote input of frame i when it differs
// from the stored one and reports whether it did.
func (t *Timeline) CorrectRemoteInput(i int, in fight.ControlState) (bool, error) {
	if i < 0 || i >= len(t.records) {
		return false, &IndexError{Index: i, Len: len(t.records)}
	}
	if t.records[i].Remote == in {
		return false, nil
	}
	t.records[i].Remote = in
	return true, nil
}

// Simulate computes and stores the state of frame i from frame i-1
func (t *Timeline) Simulate(i int, fn fight.TransitionFunc) (fight.SimState, error) {
	next, err := t.step(i, fn)
	if err != nil {
		return fight.SimState{}, err
	}
	t.records[i].State = next
	t.records[i].Simulated = true
	return next, nil
}

// ResimulateFrom recomputes frames from..upper-1 after a correction at from.
//
// It stops at the first frame whose recomputed state equals the stored one.
// That relies on fn being pure and on SimState holding everything the next
// frame reads, attack progress included; a transition that kept hidden state
// (a pending hit outside SimState) would make the stop unsafe.
func (t *Timeline) ResimulateFrom(from int, fn fight.TransitionFunc, upper int) (Resimulation, error) {
	res := Resimulation{From: from, StoppedAt: -1}
	if from < 1 {
		return res, ErrSeedFrame
	}
	if upper > len(t.records) {
		upper = len(t.records)
	}
	res.Upper = upper
	if from >= upper {
		return res, nil
	}

	for j := from; j < upper; j++ {
		next, err := t.step(j, fn)
		if err != nil {
			return res, err
		}
		res.Recomputed++
		rec := &t.records[j]
		if rec.Simulated && rec.State == next {
			res.StoppedAt = j
			break
		}
		rec.State = next
		rec.Simulated = true
		res.Changed++
	}
	return res, nil
}

// Records returns a copy of every frame
func (t *Timeline) Records() []FrameRecord {
	out := make([]FrameRecord, len(t.records))
	copy(out, t.records)
	return out
}

func (t *Timeline) step(i int, fn fight.TransitionFunc) (fight.SimState, error) {
	if i < 1 {
		return fight.SimState{}, ErrSeedFrame
	}
	if i >= len(t.records) {
		return fight.SimState{}, &IndexError{Index: i, Len: len(t.records)}
	}
	prev := t.records[i-1]
	if !prev.Simulated {
		return fight.SimState{}, fmt.Errorf("frame %d: %w", i-1, ErrNotSimulated)
	}
	rec := t.records[i]
	p1, p2 := t.player.Order(rec.Local, rec.Remote)
	return fn(prev.State, p1, p2), nil
}

// History guards a Timeline with one mutex. Every method holds the lock for
// the whole operation; Update holds it across a caller's multi-step sequence.
// Callers must not block on network I/O while holding it.
type History struct {
	mu sync.Mutex
	tl Timeline
}

// New creates a history for the given local seat, seeded with frame 0
func New(player fight.Player, initial fight.SimState) *History {
	h := &History{tl: Timeline{player: player}}
	h.tl.records = append(h.tl.records, FrameRecord{
		Local:     fight.Neutral,
		Remote:    fight.Neutral,
		State:     initial,
		Simulated: true,
	})
	return h
}

// Player returns the local seat used to order inputs
func (h *History) Player() fight.Player {
	return h.tl.player
}

// Update runs fn with exclusive access to the timeline
func (h *History) Update(fn func(*Timeline) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(&h.tl)
}

// Len returns the number of frames, seed included
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tl.Len()
}

// Append adds rec at the next index and returns that index
func (h *History) Append(rec FrameRecord) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tl.Append(rec)
}

// Get returns a copy of frame i
func (h *History) Get(i int) (FrameRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tl.Get(i)
}

// CorrectRemoteInput overwrites frame i's remote input if it changed
func (h *History) CorrectRemoteInput(i int, in fight.ControlState) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tl.CorrectRemoteInput(i, in)
}

// ResimulateFrom recomputes frames from..upper-1, see Timeline.ResimulateFrom
func (h *History) ResimulateFrom(from int, fn fight.TransitionFunc, upper int) (Resimulation, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tl.ResimulateFrom(from, fn, upper)
}

// Snapshot returns a copy of every frame
func (h *History) Snapshot() []FrameRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tl.Records()
}
