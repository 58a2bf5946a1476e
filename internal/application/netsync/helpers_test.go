package netsync

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/younwookim/fightsquares/internal/application/history"
	"github.com/younwookim/fightsquares/internal/domain/fight"
	"github.com/younwookim/fightsquares/internal/infrastructure/wire"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// script replays a fixed list of inputs, then stays neutral
type script struct {
	inputs []fight.ControlState
	calls  int
}

func (s *script) CaptureLocalInput() fight.ControlState {
	s.calls++
	if s.calls > len(s.inputs) {
		return fight.Neutral
	}
	return s.inputs[s.calls-1]
}

// cycleInputs walks every control combination, offset so two peers differ
func cycleInputs(n, offset int) []fight.ControlState {
	out := make([]fight.ControlState, n)
	for i := range out {
		v := (i/3 + offset) % 8
		out[i] = fight.ControlState{MoveLeft: v&1 != 0, MoveRight: v&2 != 0, Attack: v&4 != 0}
	}
	return out
}

// capture records every write
type capture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// scriptedConn serves pre-encoded remote input and records what is sent
type scriptedConn struct {
	io.Reader
	capture
}

func newScriptedConn(t *testing.T, sender fight.Player, inputs map[int]fight.ControlState, frames ...int) *scriptedConn {
	t.Helper()
	var in bytes.Buffer
	for _, f := range frames {
		msg, err := wire.Encode(f, sender, inputs[f])
		require.NoError(t, err)
		in.Write(msg)
	}
	return &scriptedConn{Reader: &in}
}

// replayOffline computes the frame states from both players' inputs alone
func replayOffline(p1, p2 []fight.ControlState) []fight.SimState {
	states := []fight.SimState{fight.NewSimState()}
	for i := range p1 {
		states = append(states, fight.Step(states[i], p1[i], p2[i]))
	}
	return states
}

// assertConsistent checks every simulated frame against its predecessor
func assertConsistent(t *testing.T, h *history.History) {
	t.Helper()
	records := h.Snapshot()
	for i := 1; i < len(records); i++ {
		if !records[i].Simulated {
			continue
		}
		p1, p2 := h.Player().Order(records[i].Local, records[i].Remote)
		require.Equal(t, fight.Step(records[i-1].State, p1, p2), records[i].State, "frame %d", i)
	}
}
