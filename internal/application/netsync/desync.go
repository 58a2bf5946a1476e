package netsync

import (
	"slices"
	"sync"

	"github.com/younwookim/fightsquares/internal/domain/fight"
)

// DesyncEvent describes a remote input for a frame the local tick has not
// reached yet
type DesyncEvent struct {
	LocalFrame  int
	RemoteFrame int
	Ahead       int // RemoteFrame - LocalFrame
	Control     fight.ControlState
}

// DesyncPolicy decides what happens to early remote input. HandleDesync runs on
// the receiver goroutine with the history lock held, so it must not block.
// Take returns a held input for frame, if the policy kept one, and forgets it;
// the tick calls it under the same lock before recording a new frame.
type DesyncPolicy interface {
	HandleDesync(ev DesyncEvent)
	Take(frame int) (fight.ControlState, bool)
}

type dropEarlyInput struct{}

func (dropEarlyInput) HandleDesync(DesyncEvent) {}

func (dropEarlyInput) Take(int) (fight.ControlState, bool) {
	return fight.ControlState{}, false
}

// DropEarlyInput discards early input. The event is still logged and counted
// by the synchronizer.
var DropEarlyInput DesyncPolicy = dropEarlyInput{}

// HoldEarlyInput keeps a bounded number of early inputs, one per frame, and
// hands each back when the local tick reaches its frame. When full, the input
// furthest ahead is dropped first.
type HoldEarlyInput struct {
	mu    sync.Mutex
	limit int
	held  map[int]fight.ControlState
}

// NewHoldEarlyInput creates a policy holding up to limit inputs. limit < 1 is
// treated as 1.
func NewHoldEarlyInput(limit int) *HoldEarlyInput {
	if limit < 1 {
		limit = 1
	}
	return &HoldEarlyInput{
		limit: limit,
		held:  make(map[int]fight.ControlState, limit),
	}
}

// HandleDesync stores ev's input for later
func (p *HoldEarlyInput) HandleDesync(ev DesyncEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.held[ev.RemoteFrame] = ev.Control
	for len(p.held) > p.limit {
		delete(p.held, p.furthest())
	}
}

// Take returns and forgets the input held for frame
func (p *HoldEarlyInput) Take(frame int) (fight.ControlState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	in, ok := p.held[frame]
	if ok {
		delete(p.held, frame)
	}
	// anything older can never be used
	for f := range p.held {
		if f < frame {
			delete(p.held, f)
		}
	}
	return in, ok
}

// Held returns the frames currently held, in order
func (p *HoldEarlyInput) Held() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	frames := make([]int, 0, len(p.held))
	for f := range p.held {
		frames = append(frames, f)
	}
	slices.Sort(frames)
	return frames
}

func (p *HoldEarlyInput) furthest() int {
	top := -1
	for f := range p.held {
		if f > top {
			top = f
		}
	}
	return top
}

type observedPolicy struct {
	DesyncPolicy
	notify func(DesyncEvent)
}

func (p observedPolicy) HandleDesync(ev DesyncEvent) {
	p.DesyncPolicy.HandleDesync(ev)
	p.notify(ev)
}

// ObserveDesync returns policy with notify called after every event. notify
// runs under the history lock like HandleDesync and must not block.
func ObserveDesync(policy DesyncPolicy, notify func(DesyncEvent)) DesyncPolicy {
	if policy == nil {
		policy = DropEarlyInput
	}
	if notify == nil {
		return policy
	}
	return observedPolicy{DesyncPolicy: policy, notify: notify}
}
