package netsync

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/younwookim/fightsquares/internal/application/history"
	"github.com/younwookim/fightsquares/internal/application/sender"
	"github.com/younwookim/fightsquares/internal/application/state"
	"github.com/younwookim/fightsquares/internal/domain/fight"
	"github.com/younwookim/fightsquares/internal/infrastructure/wire"
)

// Lockstep advances a frame only once both inputs for it are known.
//
// AdvanceTick blocks on the network and has no timeout: a silent peer stalls
// the game. Everything runs on the caller's goroutine.
type Lockstep struct {
	cfg   Config
	phase atomic.Int32

	ctx    context.Context
	role   fight.Player
	hist   *history.History
	sender *sender.ControlledSender
	reader *wire.Reader
}

var _ Synchronizer = (*Lockstep)(nil)

// NewLockstep creates a delay-based synchronizer
func NewLockstep(cfg Config) (*Lockstep, error) {
	if cfg.Input == nil {
		return nil, ErrNoInput
	}
	return &Lockstep{cfg: cfg.withDefaults()}, nil
}

// Start seeds the history and binds the stream. It must be called once, from
// the goroutine that will call AdvanceTick.
func (l *Lockstep) Start(ctx context.Context, role fight.Player, conn io.ReadWriter) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidRole, role)
	}
	if l.hist != nil {
		return ErrAlreadyStarted
	}
	l.ctx = ctx
	l.role = role
	l.hist = history.New(role, *l.cfg.Initial)
	l.sender = sender.New(conn, FirstFrame, l.cfg.Logger)
	l.reader = l.cfg.newReader(conn)
	l.setPhase(state.AwaitingLocalInput)
	l.cfg.Logger.Info("lockstep started", "player", role)
	return nil
}

// AdvanceTick sends this frame's local input, waits for the remote input of
// the same frame and simulates it. It returns the new frame.
func (l *Lockstep) AdvanceTick() (Frame, error) {
	if l.hist == nil {
		return Frame{}, ErrNotStarted
	}
	if err := l.ctx.Err(); err != nil {
		return Frame{}, err
	}

	n := l.hist.Len()
	l.setPhase(state.AwaitingLocalInput)
	local := l.cfg.Input.CaptureLocalInput()

	payload, err := wire.Encode(n, fight.PlayerNone, local)
	if err != nil {
		return Frame{}, err
	}
	sent, err := l.sender.TrySend(n, payload)
	if err != nil {
		return Frame{}, err
	}
	if !sent {
		return Frame{}, fmt.Errorf("frame %d was already sent", n)
	}
	l.setPhase(state.Sent)

	msg, err := l.receive()
	if err != nil {
		return Frame{}, err
	}
	if msg.Frame != n {
		l.cfg.Metrics.Desync(msg.Frame - n)
		l.cfg.Logger.Error("remote frame mismatch", "local_frame", n, "remote_frame", msg.Frame)
		return Frame{}, fmt.Errorf("%w: local frame %d, remote frame %d", ErrDesync, n, msg.Frame)
	}

	var next fight.SimState
	err = l.hist.Update(func(tl *history.Timeline) error {
		i := tl.Append(history.FrameRecord{Local: local, Remote: msg.Control})
		next, err = tl.Simulate(i, l.cfg.Transition)
		return err
	})
	if err != nil {
		return Frame{}, fmt.Errorf("failed to simulate frame %d: %w", n, err)
	}

	l.setPhase(state.Advanced)
	l.cfg.Metrics.FrameAdvanced(n)
	l.cfg.Logger.Debug("frame advanced", "frame", n, "local", local, "remote", msg.Control)
	return Frame{Number: n, State: next}, nil
}

// receive blocks until one message from the remote peer decodes
func (l *Lockstep) receive() (wire.Message, error) {
	l.setPhase(state.AwaitingRemote)
	for {
		msg, err := l.reader.Next()
		if err != nil {
			return wire.Message{}, fmt.Errorf("failed to receive remote input: %w", err)
		}
		if msg.Sender == l.role {
			l.cfg.Metrics.EchoDropped()
			continue
		}
		return msg, nil
	}
}

// Phase reports where the current tick stands. Safe from any goroutine.
func (l *Lockstep) Phase() state.TickPhase {
	return state.TickPhase(l.phase.Load())
}

func (l *Lockstep) setPhase(p state.TickPhase) {
	l.phase.Store(int32(p))
	l.cfg.Logger.Debug("tick phase", "phase", p)
}

// History returns the timeline, nil before Start
func (l *Lockstep) History() *history.History {
	return l.hist
}
