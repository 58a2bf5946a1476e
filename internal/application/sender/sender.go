// Package sender gates outbound per-frame input so each frame goes out exactly
// once and in order.
package sender

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ErrOutOfSequence is returned when a caller tries to skip ahead. It means a
// frame was produced without passing through the sender, which is a bug.
var ErrOutOfSequence = errors.New("frame sent out of sequence")

// ControlledSender writes one payload per frame, strictly in frame order
type ControlledSender struct {
	mu     sync.Mutex
	w      io.Writer
	next   int
	logger *slog.Logger
}

// New creates a sender whose first accepted frame is start
func New(w io.Writer, start int, logger *slog.Logger) *ControlledSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &ControlledSender{
		w:      w,
		next:   start,
		logger: logger,
	}
}

// TrySend writes payload if frame is the next frame to send.
//
// A frame that was already sent is a no-op returning false. A frame beyond the
// next one is logged and rejected with ErrOutOfSequence. A failed write leaves
// the counter unchanged.
func (s *ControlledSender) TrySend(frame int, payload []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case frame < s.next:
		return false, nil
	case frame > s.next:
		s.logger.Error("frame sent out of sequence", "frame", frame, "next", s.next)
		return false, fmt.Errorf("%w: frame %d, expected %d", ErrOutOfSequence, frame, s.next)
	}

	if _, err := s.w.Write(payload); err != nil {
		return false, fmt.Errorf("failed to send frame %d: %w", frame, err)
	}
	s.next++
	return true, nil
}

// Next returns the next frame the sender will accept
func (s *ControlledSender) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
