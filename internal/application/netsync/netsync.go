// Package netsync keeps two peers' simulations in agreement over a byte stream.
//
// Lockstep (delay-based) blocks every tick until the remote input for that
// frame arrives. Rollback advances on the best input it has and repairs history
// when late input disagrees with what it guessed.
package netsync

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/younwookim/fightsquares/internal/application/history"
	"github.com/younwookim/fightsquares/internal/domain/fight"
	"github.com/younwookim/fightsquares/internal/infrastructure/metrics"
	"github.com/younwookim/fightsquares/internal/infrastructure/wire"
)

var (
	// ErrNotStarted is returned by AdvanceTick before Start
	ErrNotStarted = errors.New("synchronizer not started")
	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("synchronizer already started")
	// ErrInvalidRole is returned when Start gets neither player 1 nor player 2
	ErrInvalidRole = errors.New("invalid player role")
	// ErrNoInput is returned by constructors given no InputSource
	ErrNoInput = errors.New("input source required")
	// ErrDesync is returned when the peers disagree on the current frame
	ErrDesync = errors.New("peers out of sync")
	// ErrReceiverStopped is returned by a rollback tick after its receiver failed
	ErrReceiverStopped = errors.New("receiver stopped")
)

// FirstFrame is the first frame whose input goes on the wire. Frame 0 is the
// seed both peers create locally.
const FirstFrame = 1

// DefaultRenderDelay is the rollback presentation lag in frames
const DefaultRenderDelay = 1

// Frame is one simulated frame handed to the renderer
type Frame struct {
	Number int
	State  fight.SimState
}

// InputSource captures the local player's controls once per tick
type InputSource interface {
	CaptureLocalInput() fight.ControlState
}

// InputFunc adapts a function to InputSource
type InputFunc func() fight.ControlState

// CaptureLocalInput calls f
func (f InputFunc) CaptureLocalInput() fight.ControlState {
	return f()
}

// Synchronizer is the surface both strategies expose to the game loop
type Synchronizer interface {
	// Start binds the synchronizer to a seat and a connected stream.
	// Background work stops when ctx is done or the stream closes.
	Start(ctx context.Context, role fight.Player, conn io.ReadWriter) error
	// AdvanceTick drives one frame forward and returns the frame to render
	AdvanceTick() (Frame, error)
	// History returns the shared timeline, nil before Start
	History() *history.History
}

// Config holds what both strategies need
type Config struct {
	// Transition advances the simulation. Default: fight.Step.
	Transition fight.TransitionFunc
	// Input captures local controls every tick. Required.
	Input InputSource
	// Initial is the frame 0 state. Default: fight.NewSimState().
	Initial *fight.SimState
	// RenderDelay is how many frames behind the tick the rollback strategy
	// presents. Zero selects DefaultRenderDelay, a negative value disables
	// the delay. Lockstep ignores it.
	RenderDelay int
	// Desync decides what to do with input from a peer that is ahead.
	// Default: DropEarlyInput. Rollback only.
	Desync DesyncPolicy
	// Metrics is optional
	Metrics *metrics.Netcode
	// Logger defaults to slog.Default()
	Logger *slog.Logger
	// ReaderOptions tune the inbound stream bounds
	ReaderOptions []wire.ReaderOption
}

func (c Config) withDefaults() Config {
	if c.Transition == nil {
		c.Transition = fight.Step
	}
	if c.Initial == nil {
		initial := fight.NewSimState()
		c.Initial = &initial
	}
	switch {
	case c.RenderDelay == 0:
		c.RenderDelay = DefaultRenderDelay
	case c.RenderDelay < 0:
		c.RenderDelay = 0
	}
	if c.Desync == nil {
		c.Desync = DropEarlyInput
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func (c Config) newReader(conn io.Reader) *wire.Reader {
	opts := []wire.ReaderOption{
		wire.WithLogger(c.Logger),
		wire.WithMalformedHook(func(error) { c.Metrics.DecodeError() }),
	}
	opts = append(opts, c.ReaderOptions...)
	return wire.NewReader(conn, opts...)
}
