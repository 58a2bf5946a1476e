package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrHandshake is returned when the peer does not speak the handshake
var ErrHandshake = errors.New("handshake failed")

const (
	helloPrefix = "HELLO "
	readyLine   = "READY"
	maxLineLen  = 64
)

type deadliner interface {
	SetDeadline(t time.Time) error
}

// Offer runs the host side: announce the mode, wait for the joiner to accept.
// The host is always player 1.
func Offer(ctx context.Context, rw io.ReadWriter, mode string) error {
	if mode == "" || strings.ContainsAny(mode, " \r\n") {
		return fmt.Errorf("%w: invalid mode %q", ErrHandshake, mode)
	}
	defer withDeadline(ctx, rw)()

	if _, err := io.WriteString(rw, helloPrefix+mode+"\n"); err != nil {
		return fmt.Errorf("failed to send hello: %w", err)
	}
	line, err := readLine(rw)
	if err != nil {
		return err
	}
	if line != readyLine {
		return fmt.Errorf("%w: expected %q, got %q", ErrHandshake, readyLine, line)
	}
	return nil
}

// Await runs the joiner side: read the host's mode and accept it
func Await(ctx context.Context, rw io.ReadWriter) (string, error) {
	defer withDeadline(ctx, rw)()

	line, err := readLine(rw)
	if err != nil {
		return "", err
	}
	mode, ok := strings.CutPrefix(line, helloPrefix)
	if !ok || mode == "" {
		return "", fmt.Errorf("%w: expected hello, got %q", ErrHandshake, line)
	}
	if _, err := io.WriteString(rw, readyLine+"\n"); err != nil {
		return "", fmt.Errorf("failed to send ready: %w", err)
	}
	return mode, nil
}

// withDeadline applies ctx's deadline to rw when it supports one and returns
// the reset
func withDeadline(ctx context.Context, rw io.ReadWriter) func() {
	d, ok := rw.(deadliner)
	deadline, has := ctx.Deadline()
	if !ok || !has {
		return func() {}
	}
	_ = d.SetDeadline(deadline)
	return func() { _ = d.SetDeadline(time.Time{}) }
}

// readLine reads one byte at a time so nothing past the newline is consumed
func readLine(r io.Reader) (string, error) {
	var (
		line []byte
		b    [1]byte
	)
	for len(line) <= maxLineLen {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return "", fmt.Errorf("%w: %w", ErrHandshake, err)
		}
		if b[0] == '\n' {
			return strings.TrimSuffix(string(line), "\r"), nil
		}
		line = append(line, b[0])
	}
	return "", fmt.Errorf("%w: line longer than %d bytes", ErrHandshake, maxLineLen)
}
