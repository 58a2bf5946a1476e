package netsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/younwookim/fightsquares/internal/application/history"
	"github.com/younwookim/fightsquares/internal/application/sender"
	"github.com/younwookim/fightsquares/internal/domain/fight"
	"github.com/younwookim/fightsquares/internal/infrastructure/wire"
)

// Rollback advances on local input plus the best remote input it has, and a
// receiver goroutine repairs history when the real remote input arrives.
//
// The frame counter lives under the history lock together with the timeline,
// so the tick and the receiver always agree on which frame is current. The
// lock is never held across a network write.
type Rollback struct {
	cfg Config

	mu     sync.Mutex // guards the fields set by Start
	role   fight.Player
	hist   *history.History
	sender *sender.ControlledSender
	group  *errgroup.Group
	failed error // terminal receiver error, never a clean close

	frame int // next frame the tick will simulate, history lock
}

var _ Synchronizer = (*Rollback)(nil)

// NewRollback creates a rollback synchronizer
func NewRollback(cfg Config) (*Rollback, error) {
	if cfg.Input == nil {
		return nil, ErrNoInput
	}
	return &Rollback{cfg: cfg.withDefaults()}, nil
}

// Start seeds the history and starts the receiver. When ctx is done and conn
// is an io.Closer, conn is closed to unblock the receiver.
func (r *Rollback) Start(ctx context.Context, role fight.Player, conn io.ReadWriter) error {
	if err := r.attach(role, conn); err != nil {
		return err
	}

	reader := r.cfg.newReader(conn)
	if c, ok := conn.(io.Closer); ok {
		context.AfterFunc(ctx, func() { _ = c.Close() })
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.receive(ctx, reader)
	})

	r.mu.Lock()
	r.group = g
	r.mu.Unlock()

	r.cfg.Logger.Info("rollback started", "player", role, "render_delay", r.cfg.RenderDelay)
	return nil
}

// attach binds the seat and the outbound stream without starting a receiver
func (r *Rollback) attach(role fight.Player, w io.Writer) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidRole, role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hist != nil {
		return ErrAlreadyStarted
	}
	r.role = role
	r.hist = history.New(role, *r.cfg.Initial)
	r.sender = sender.New(w, FirstFrame, r.cfg.Logger)
	r.frame = FirstFrame
	return nil
}

func (r *Rollback) attached() (*history.History, *sender.ControlledSender, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hist == nil {
		return nil, nil, ErrNotStarted
	}
	return r.hist, r.sender, nil
}

// receiverErr returns the error that stopped the receiver, nil while it runs
// or after a clean close
func (r *Rollback) receiverErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

func (r *Rollback) receive(ctx context.Context, reader *wire.Reader) error {
	for {
		msg, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				r.cfg.Logger.Info("receiver stopped", "reason", err)
				return nil
			}
			r.cfg.Logger.Error("receiver failed", "error", err)
			err = fmt.Errorf("failed to receive remote input: %w", err)
			r.mu.Lock()
			r.failed = err
			r.mu.Unlock()
			return err
		}
		r.OnMessage(msg)
	}
}

// AdvanceTick simulates the next frame with the local input and the best known
// remote input, and returns the frame to present, RenderDelay frames behind.
// Once the receiver has failed every tick returns its error.
func (r *Rollback) AdvanceTick() (Frame, error) {
	hist, snd, err := r.attached()
	if err != nil {
		return Frame{}, err
	}
	if err := r.receiverErr(); err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrReceiverStopped, err)
	}

	local := r.cfg.Input.CaptureLocalInput()

	var n int
	_ = hist.Update(func(*history.Timeline) error {
		n = r.frame
		return nil
	})

	payload, err := wire.Encode(n, r.role, local)
	if err != nil {
		return Frame{}, err
	}
	sent, err := snd.TrySend(n, payload)
	if err != nil {
		return Frame{}, err
	}
	if !sent {
		return Frame{}, fmt.Errorf("frame %d was already sent", n)
	}

	var shown Frame
	err = hist.Update(func(tl *history.Timeline) error {
		held, isHeld := r.cfg.Desync.Take(n)
		switch {
		case tl.Len() > n:
			// the receiver got here first with the real remote input
			if err := tl.SetLocal(n, local); err != nil {
				return err
			}
		case tl.Len() == n:
			last, _ := tl.Last()
			remote := last.Remote
			if isHeld {
				remote = held
			}
			tl.Append(history.FrameRecord{Local: local, Remote: remote})
		default:
			return fmt.Errorf("history ends at frame %d, tick is at %d", tl.Len()-1, n)
		}

		if _, err := tl.Simulate(n, r.cfg.Transition); err != nil {
			return err
		}
		r.frame = n + 1

		number := max(n-r.cfg.RenderDelay, 0)
		rec, err := tl.Get(number)
		if err != nil {
			return err
		}
		shown = Frame{Number: number, State: rec.State}
		return nil
	})
	if err != nil {
		return Frame{}, fmt.Errorf("failed to simulate frame %d: %w", n, err)
	}

	r.cfg.Metrics.FrameAdvanced(n)
	r.cfg.Logger.Debug("frame advanced", "frame", n, "local", local)
	return shown, nil
}

// OnMessage applies one decoded remote message to the history. The receiver
// goroutine calls it for every message; it is safe to call directly.
func (r *Rollback) OnMessage(msg wire.Message) {
	hist, _, err := r.attached()
	if err != nil {
		return
	}

	if msg.Sender == r.role {
		r.cfg.Metrics.EchoDropped()
		r.cfg.Logger.Debug("dropped own message", "remote_frame", msg.Frame)
		return
	}
	if msg.Frame < FirstFrame {
		r.cfg.Logger.Warn("dropped message for seed frame", "remote_frame", msg.Frame)
		return
	}

	var (
		local    int
		desync   *DesyncEvent
		late     bool
		resim    history.Resimulation
		replayed bool
	)
	err = hist.Update(func(tl *history.Timeline) error {
		local = r.frame
		switch {
		case msg.Frame == local:
			if tl.Len() == local {
				last, _ := tl.Last()
				tl.Append(history.FrameRecord{Local: last.Local, Remote: msg.Control})
				return nil
			}
			_, err := tl.CorrectRemoteInput(msg.Frame, msg.Control)
			return err

		case msg.Frame < local:
			late = true
			changed, err := tl.CorrectRemoteInput(msg.Frame, msg.Control)
			if err != nil || !changed {
				return err
			}
			resim, err = tl.ResimulateFrom(msg.Frame, r.cfg.Transition, local)
			replayed = true
			return err

		default:
			desync = &DesyncEvent{
				LocalFrame:  local,
				RemoteFrame: msg.Frame,
				Ahead:       msg.Frame - local,
				Control:     msg.Control,
			}
			r.cfg.Desync.HandleDesync(*desync)
			return nil
		}
	})
	if err != nil {
		r.cfg.Logger.Error("failed to apply remote input", "remote_frame", msg.Frame, "local_frame", local, "error", err)
		return
	}

	if late {
		r.cfg.Metrics.LateInput()
	}
	if replayed {
		r.cfg.Metrics.Rollback(resim.Recomputed, resim.ShortCircuited())
		r.cfg.Logger.Debug("rolled back",
			"remote_frame", msg.Frame,
			"local_frame", local,
			"recomputed", resim.Recomputed,
			"stopped_at", resim.StoppedAt,
		)
	}
	if desync != nil {
		r.cfg.Metrics.Desync(desync.Ahead)
		r.cfg.Logger.Warn("remote peer is ahead",
			"local_frame", desync.LocalFrame,
			"remote_frame", desync.RemoteFrame,
			"ahead", desync.Ahead,
		)
	}
}

// CurrentFrame returns the next frame the tick will simulate
func (r *Rollback) CurrentFrame() int {
	hist, _, err := r.attached()
	if err != nil {
		return 0
	}
	var n int
	_ = hist.Update(func(*history.Timeline) error {
		n = r.frame
		return nil
	})
	return n
}

// Wait blocks until the receiver stops and returns its error. A clean close of
// the stream is not an error.
func (r *Rollback) Wait() error {
	r.mu.Lock()
	g := r.group
	r.mu.Unlock()
	if g == nil {
		return ErrNotStarted
	}
	return g.Wait()
}

// History returns the timeline, nil before Start
func (r *Rollback) History() *history.History {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hist
}
