package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted replies with fixed bytes and records what it is sent
type scripted struct {
	io.Reader
	sent bytes.Buffer
}

func (s *scripted) Write(p []byte) (int, error) {
	return s.sent.Write(p)
}

func TestHandshake_OverPipe(t *testing.T) {
	hostEnd, joinEnd := net.Pipe()
	defer hostEnd.Close()
	defer joinEnd.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Offer(ctx, hostEnd, "rollback")
	}()

	mode, err := Await(ctx, joinEnd)
	require.NoError(t, err)
	assert.Equal(t, "rollback", mode)
	require.NoError(t, <-done)
}

func TestAwait_LeavesGameBytes(t *testing.T) {
	conn := &scripted{Reader: strings.NewReader("HELLO delay\nFS|1|[false,false,false]|\n")}

	mode, err := Await(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, "delay", mode)
	assert.Equal(t, "READY\n", conn.sent.String())

	rest, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "FS|1|[false,false,false]|\n", string(rest))
}

func TestOffer_Writes(t *testing.T) {
	conn := &scripted{Reader: strings.NewReader("READY\r\n")}
	require.NoError(t, Offer(context.Background(), conn, "delay"))
	assert.Equal(t, "HELLO delay\n", conn.sent.String())
}

func TestHandshake_Errors(t *testing.T) {
	tests := []struct {
		name  string
		run   func(rw io.ReadWriter) error
		input string
	}{
		{
			name:  "offer gets no ready",
			run:   func(rw io.ReadWriter) error { return Offer(context.Background(), rw, "delay") },
			input: "NOPE\n",
		},
		{
			name:  "offer peer hangs up",
			run:   func(rw io.ReadWriter) error { return Offer(context.Background(), rw, "delay") },
			input: "REA",
		},
		{
			name:  "offer bad mode",
			run:   func(rw io.ReadWriter) error { return Offer(context.Background(), rw, "two words") },
			input: "READY\n",
		},
		{
			name: "await gets game bytes",
			run: func(rw io.ReadWriter) error {
				_, err := Await(context.Background(), rw)
				return err
			},
			input: "FS1|1|[false,false,false]|\n",
		},
		{
			name: "await empty mode",
			run: func(rw io.ReadWriter) error {
				_, err := Await(context.Background(), rw)
				return err
			},
			input: "HELLO \n",
		},
		{
			name: "await endless line",
			run: func(rw io.ReadWriter) error {
				_, err := Await(context.Background(), rw)
				return err
			},
			input: strings.Repeat("x", 200),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(&scripted{Reader: strings.NewReader(tt.input)})
			assert.ErrorIs(t, err, ErrHandshake)
		})
	}
}

func TestHandshake_Deadline(t *testing.T) {
	hostEnd, joinEnd := net.Pipe()
	defer hostEnd.Close()
	defer joinEnd.Close()

	// nobody answers
	go func() { _, _ = io.Copy(io.Discard, joinEnd) }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := Offer(ctx, hostEnd, "delay")
	assert.ErrorIs(t, err, ErrHandshake)
}
