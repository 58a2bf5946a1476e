package netsync

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younwookim/fightsquares/internal/domain/fight"
	"github.com/younwookim/fightsquares/internal/infrastructure/wire"
)

// recordingPolicy keeps every desync event it sees
type recordingPolicy struct {
	events []DesyncEvent
	takes  []int
}

func (p *recordingPolicy) HandleDesync(ev DesyncEvent) {
	p.events = append(p.events, ev)
}

func (p *recordingPolicy) Take(frame int) (fight.ControlState, bool) {
	p.takes = append(p.takes, frame)
	return fight.ControlState{}, false
}

// newAttachedRollback builds a rollback peer with no receiver, so tests can
// feed OnMessage directly
func newAttachedRollback(t *testing.T, role fight.Player, cfg Config) (*Rollback, *capture) {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	if cfg.Input == nil {
		cfg.Input = &script{}
	}
	r, err := NewRollback(cfg)
	require.NoError(t, err)

	out := &capture{}
	require.NoError(t, r.attach(role, out))
	return r, out
}

func advance(t *testing.T, r *Rollback, ticks int) []Frame {
	t.Helper()
	frames := make([]Frame, 0, ticks)
	for i := 0; i < ticks; i++ {
		f, err := r.AdvanceTick()
		require.NoError(t, err)
		frames = append(frames, f)
	}
	return frames
}

func TestNewRollback_RequiresInput(t *testing.T) {
	_, err := NewRollback(Config{})
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestRollback_NotStarted(t *testing.T) {
	r, err := NewRollback(Config{Input: &script{}, Logger: quietLogger()})
	require.NoError(t, err)

	_, err = r.AdvanceTick()
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, r.Wait(), ErrNotStarted)
	assert.Nil(t, r.History())
	assert.Equal(t, 0, r.CurrentFrame())
	assert.NotPanics(t, func() { r.OnMessage(wire.Message{Frame: 1, Sender: fight.Player2}) })
}

func TestRollback_StartErrors(t *testing.T) {
	r, _ := newAttachedRollback(t, fight.Player1, Config{})
	assert.ErrorIs(t, r.attach(fight.Player1, &capture{}), ErrAlreadyStarted)

	other, err := NewRollback(Config{Input: &script{}})
	require.NoError(t, err)
	assert.ErrorIs(t, other.attach(fight.Player(7), &capture{}), ErrInvalidRole)
}

func TestRollback_AdvanceWithoutRemote(t *testing.T) {
	right := fight.ControlState{MoveRight: true}
	r, out := newAttachedRollback(t, fight.Player1, Config{
		Input: &script{inputs: []fight.ControlState{right, right, right}},
	})

	frames := advance(t, r, 3)

	// rendered one frame behind the tick
	assert.Equal(t, []int{0, 1, 2}, []int{frames[0].Number, frames[1].Number, frames[2].Number})
	assert.Equal(t, fight.NewSimState(), frames[0].State)
	assert.Equal(t, 4, r.CurrentFrame())
	assert.Equal(t, 4, r.History().Len())

	for i := 1; i <= 3; i++ {
		rec, err := r.History().Get(i)
		require.NoError(t, err)
		assert.Equal(t, right, rec.Local)
		assert.Equal(t, fight.Neutral, rec.Remote, "remote carried forward from the seed")
		assert.True(t, rec.Simulated)
	}
	assert.Equal(t, fight.NewSimState().P1X+3*fight.PlayerSpeed, r.History().Snapshot()[3].State.P1X)

	assert.Equal(t,
		"FS1|1|[false,true,false]|\nFS1|2|[false,true,false]|\nFS1|3|[false,true,false]|\n",
		out.String(),
	)
}

func TestRollback_RenderDelay(t *testing.T) {
	tests := []struct {
		name  string
		delay int
		want  []int
	}{
		{name: "default", delay: 0, want: []int{0, 1, 2, 3}},
		{name: "disabled", delay: -1, want: []int{1, 2, 3, 4}},
		{name: "three frames", delay: 3, want: []int{0, 0, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newAttachedRollback(t, fight.Player1, Config{RenderDelay: tt.delay})
			frames := advance(t, r, 4)

			got := make([]int, len(frames))
			for i, f := range frames {
				got[i] = f.Number
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRollback_RemoteForCurrentFrame(t *testing.T) {
	attack := fight.ControlState{Attack: true}
	left := fight.ControlState{MoveLeft: true}
	r, _ := newAttachedRollback(t, fight.Player1, Config{
		Input: &script{inputs: []fight.ControlState{left}},
	})

	// arrives before the local tick reaches frame 1
	r.OnMessage(wire.Message{Frame: 1, Sender: fight.Player2, Control: attack})
	require.Equal(t, 2, r.History().Len())
	rec, err := r.History().Get(1)
	require.NoError(t, err)
	assert.False(t, rec.Simulated)

	advance(t, r, 1)

	rec, err = r.History().Get(1)
	require.NoError(t, err)
	assert.Equal(t, left, rec.Local, "tick overwrites the placeholder")
	assert.Equal(t, attack, rec.Remote)
	assert.True(t, rec.Simulated)
	assert.Equal(t, 2, r.History().Len())
	assertConsistent(t, r.History())
}

func TestRollback_LateInputResimulates(t *testing.T) {
	local := cycleInputs(20, 0)
	remote := cycleInputs(20, 3)

	r, _ := newAttachedRollback(t, fight.Player1, Config{
		Input: &script{inputs: local},
	})
	advance(t, r, 20)

	// every remote input arrives late, out of order
	for _, f := range []int{5, 1, 2, 20, 3, 4} {
		r.OnMessage(wire.Message{Frame: f, Sender: fight.Player2, Control: remote[f-1]})
		assertConsistent(t, r.History())
	}
	for f := 6; f < 20; f++ {
		r.OnMessage(wire.Message{Frame: f, Sender: fight.Player2, Control: remote[f-1]})
	}

	want := replayOffline(local, remote)
	records := r.History().Snapshot()
	require.Len(t, records, 21)
	for i, rec := range records {
		assert.Equal(t, want[i], rec.State, "frame %d", i)
	}
}

func TestRollback_LateInputUnchanged(t *testing.T) {
	r, _ := newAttachedRollback(t, fight.Player1, Config{})
	advance(t, r, 5)
	before := r.History().Snapshot()

	// matches the carried-forward prediction
	r.OnMessage(wire.Message{Frame: 2, Sender: fight.Player2, Control: fight.Neutral})

	assert.Equal(t, before, r.History().Snapshot())
}

func TestRollback_LateInputPlayerTwo(t *testing.T) {
	r, _ := newAttachedRollback(t, fight.Player2, Config{})
	advance(t, r, 3)

	// remote is P1 here
	r.OnMessage(wire.Message{Frame: 1, Sender: fight.Player1, Control: fight.ControlState{MoveRight: true}})

	rec, err := r.History().Get(3)
	require.NoError(t, err)
	assert.Equal(t, fight.P1SpawnX+fight.PlayerSpeed, rec.State.P1X, "frames 2 and 3 rebuilt on the corrected frame 1")
	assert.Equal(t, fight.P2SpawnX, rec.State.P2X)
	assertConsistent(t, r.History())
}

func TestRollback_DropsEchoAndSeed(t *testing.T) {
	r, _ := newAttachedRollback(t, fight.Player1, Config{})
	advance(t, r, 2)
	before := r.History().Snapshot()

	r.OnMessage(wire.Message{Frame: 1, Sender: fight.Player1, Control: fight.ControlState{Attack: true}})
	r.OnMessage(wire.Message{Frame: 0, Sender: fight.Player2, Control: fight.ControlState{Attack: true}})

	assert.Equal(t, before, r.History().Snapshot())
}

func TestRollback_RemoteAheadRaisesDesync(t *testing.T) {
	policy := &recordingPolicy{}
	r, _ := newAttachedRollback(t, fight.Player1, Config{Desync: policy})
	advance(t, r, 2)

	attack := fight.ControlState{Attack: true}
	r.OnMessage(wire.Message{Frame: 6, Sender: fight.Player2, Control: attack})

	require.Len(t, policy.events, 1)
	assert.Equal(t, DesyncEvent{LocalFrame: 3, RemoteFrame: 6, Ahead: 3, Control: attack}, policy.events[0])
	assert.Equal(t, 3, r.History().Len(), "early input does not touch history")
	assert.Equal(t, []int{1, 2}, policy.takes)
}

func TestRollback_DefaultPolicyDropsEarlyInput(t *testing.T) {
	r, _ := newAttachedRollback(t, fight.Player1, Config{})
	attack := fight.ControlState{Attack: true}
	r.OnMessage(wire.Message{Frame: 3, Sender: fight.Player2, Control: attack})

	advance(t, r, 3)

	rec, err := r.History().Get(3)
	require.NoError(t, err)
	assert.Equal(t, fight.Neutral, rec.Remote)
}

func TestRollback_HoldEarlyInput(t *testing.T) {
	hold := NewHoldEarlyInput(4)
	r, _ := newAttachedRollback(t, fight.Player1, Config{Desync: hold})
	attack := fight.ControlState{Attack: true}
	left := fight.ControlState{MoveLeft: true}

	r.OnMessage(wire.Message{Frame: 3, Sender: fight.Player2, Control: attack})
	r.OnMessage(wire.Message{Frame: 4, Sender: fight.Player2, Control: left})
	assert.Equal(t, []int{3, 4}, hold.Held())

	advance(t, r, 5)

	records := r.History().Snapshot()
	assert.Equal(t, fight.Neutral, records[2].Remote)
	assert.Equal(t, attack, records[3].Remote, "held input used when the tick reached it")
	assert.Equal(t, left, records[4].Remote)
	assert.Equal(t, left, records[5].Remote, "carried forward after the held input")
	assert.Empty(t, hold.Held())
	assertConsistent(t, r.History())
}

func TestHoldEarlyInput_Bounded(t *testing.T) {
	hold := NewHoldEarlyInput(2)
	for _, f := range []int{9, 5, 7} {
		hold.HandleDesync(DesyncEvent{RemoteFrame: f})
	}
	assert.Equal(t, []int{5, 7}, hold.Held(), "furthest frame evicted first")

	_, ok := hold.Take(6)
	assert.False(t, ok)
	assert.Equal(t, []int{7}, hold.Held(), "frames behind the tick are forgotten")

	assert.Equal(t, []int{}, NewHoldEarlyInput(0).Held())
}

func TestObserveDesync(t *testing.T) {
	hold := NewHoldEarlyInput(4)
	var seen []DesyncEvent
	policy := ObserveDesync(hold, func(ev DesyncEvent) { seen = append(seen, ev) })

	ev := DesyncEvent{LocalFrame: 2, RemoteFrame: 4, Ahead: 2, Control: fight.ControlState{Attack: true}}
	policy.HandleDesync(ev)

	assert.Equal(t, []DesyncEvent{ev}, seen)
	in, ok := policy.Take(4)
	assert.True(t, ok, "wrapped policy still holds the input")
	assert.Equal(t, ev.Control, in)

	assert.Equal(t, DropEarlyInput, ObserveDesync(nil, nil))
	assert.Same(t, hold, ObserveDesync(hold, nil))
}

func TestRollback_StartStopsOnClose(t *testing.T) {
	r, err := NewRollback(Config{Input: &script{}, Logger: quietLogger()})
	require.NoError(t, err)

	msg, err := wire.Encode(1, fight.Player2, fight.ControlState{Attack: true})
	require.NoError(t, err)
	conn := &scriptedConn{Reader: strings.NewReader(string(msg))}

	require.NoError(t, r.Start(context.Background(), fight.Player1, conn))
	require.NoError(t, r.Wait(), "clean end of stream is not an error")

	assert.Equal(t, 2, r.History().Len())
	assert.ErrorIs(t, r.Start(context.Background(), fight.Player1, conn), ErrAlreadyStarted)
}

func TestRollback_StartReportsCorruptStream(t *testing.T) {
	r, err := NewRollback(Config{
		Input:         &script{},
		Logger:        quietLogger(),
		ReaderOptions: []wire.ReaderOption{wire.WithMaxMalformed(1)},
	})
	require.NoError(t, err)

	conn := &scriptedConn{Reader: strings.NewReader("FSx|1|[]|\nFSy|2|[]|\nFSz|3|[]|\n")}
	require.NoError(t, r.Start(context.Background(), fight.Player1, conn))

	assert.ErrorIs(t, r.Wait(), wire.ErrStreamCorrupt)
}

func TestRollback_TickSurfacesReceiverFailure(t *testing.T) {
	input := &script{}
	r, err := NewRollback(Config{
		Input:         input,
		Logger:        quietLogger(),
		ReaderOptions: []wire.ReaderOption{wire.WithMaxMalformed(1)},
	})
	require.NoError(t, err)

	conn := &scriptedConn{Reader: strings.NewReader("FSx|1|[]|\nFSy|2|[]|\nFSz|3|[]|\n")}
	require.NoError(t, r.Start(context.Background(), fight.Player1, conn))
	require.ErrorIs(t, r.Wait(), wire.ErrStreamCorrupt)

	for i := 0; i < 3; i++ {
		_, err := r.AdvanceTick()
		require.Error(t, err, "tick %d", i)
		assert.ErrorIs(t, err, ErrReceiverStopped)
		assert.ErrorIs(t, err, wire.ErrStreamCorrupt)
	}
	assert.Equal(t, FirstFrame, r.CurrentFrame(), "no frame simulated after the failure")
	assert.Zero(t, input.calls, "local input not captured")
	assert.Empty(t, conn.String(), "nothing sent")
}

func TestRollback_CleanCloseKeepsTicking(t *testing.T) {
	r, err := NewRollback(Config{Input: &script{}, Logger: quietLogger()})
	require.NoError(t, err)

	conn := &scriptedConn{Reader: strings.NewReader("")}
	require.NoError(t, r.Start(context.Background(), fight.Player1, conn))
	require.NoError(t, r.Wait())

	_, err = r.AdvanceTick()
	assert.NoError(t, err)
}
