package netsync

import (
	"fmt"

	"github.com/younwookim/fightsquares/internal/application/history"
	"github.com/younwookim/fightsquares/internal/domain/fight"
)

// Local runs both players on this machine with no network. Player 1's input
// is recorded as local and player 2's as remote.
type Local struct {
	cfg  Config
	p2   InputSource
	hist *history.History
}

// NewLocal creates a local match. cfg.Input drives player 1.
func NewLocal(cfg Config, p2 InputSource) (*Local, error) {
	if cfg.Input == nil || p2 == nil {
		return nil, ErrNoInput
	}
	cfg = cfg.withDefaults()
	return &Local{
		cfg:  cfg,
		p2:   p2,
		hist: history.New(fight.Player1, *cfg.Initial),
	}, nil
}

// AdvanceTick reads both players and simulates the next frame
func (l *Local) AdvanceTick() (Frame, error) {
	p1 := l.cfg.Input.CaptureLocalInput()
	p2 := l.p2.CaptureLocalInput()

	var f Frame
	err := l.hist.Update(func(tl *history.Timeline) error {
		i := tl.Append(history.FrameRecord{Local: p1, Remote: p2})
		st, err := tl.Simulate(i, l.cfg.Transition)
		f = Frame{Number: i, State: st}
		return err
	})
	if err != nil {
		return Frame{}, fmt.Errorf("failed to simulate frame %d: %w", f.Number, err)
	}

	l.cfg.Metrics.FrameAdvanced(f.Number)
	l.cfg.Logger.Debug("frame advanced", "frame", f.Number, "p1", p1, "p2", p2)
	return f, nil
}

// History returns the timeline
func (l *Local) History() *history.History {
	return l.hist
}
