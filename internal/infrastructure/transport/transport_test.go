package transport

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// connectPair listens on a loopback port and dials it
func connectPair(t *testing.T, kind Kind) (host, joiner Conn) {
	t.Helper()
	ln, err := Listen(kind, "127.0.0.1:0", quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	accepted := make(chan Conn, 1)
	errs := make(chan error, 1)
	go func() {
		c, err := ln.Accept(ctx)
		if err != nil {
			errs <- err
			return
		}
		accepted <- c
	}()

	joiner, err = Dial(ctx, kind, ln.Addr())
	require.NoError(t, err)

	select {
	case host = <-accepted:
	case err := <-errs:
		t.Fatalf("accept failed: %v", err)
	}
	t.Cleanup(func() {
		host.Close()
		joiner.Close()
	})
	return host, joiner
}

func TestTransport_RoundTrip(t *testing.T) {
	for _, kind := range []Kind{KindTCP, KindWebSocket} {
		t.Run(string(kind), func(t *testing.T) {
			host, joiner := connectPair(t, kind)
			assert.NotEmpty(t, host.RemoteAddr())

			_, err := io.WriteString(joiner, "FS2|1|[false,false,true]|\n")
			require.NoError(t, err)
			_, err = io.WriteString(joiner, "FS2|2|[true,false,false]|\n")
			require.NoError(t, err)

			r := bufio.NewReader(host)
			line, err := r.ReadString('\n')
			require.NoError(t, err)
			assert.Equal(t, "FS2|1|[false,false,true]|\n", line)
			line, err = r.ReadString('\n')
			require.NoError(t, err)
			assert.Equal(t, "FS2|2|[true,false,false]|\n", line)

			_, err = io.WriteString(host, "FS1|1|[false,false,false]|\n")
			require.NoError(t, err)
			line, err = bufio.NewReader(joiner).ReadString('\n')
			require.NoError(t, err)
			assert.Equal(t, "FS1|1|[false,false,false]|\n", line)
		})
	}
}

func TestTransport_PeerCloseIsEOF(t *testing.T) {
	for _, kind := range []Kind{KindTCP, KindWebSocket} {
		t.Run(string(kind), func(t *testing.T) {
			host, joiner := connectPair(t, kind)
			require.NoError(t, joiner.Close())

			_, err := host.Read(make([]byte, 16))
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestTransport_UnknownKind(t *testing.T) {
	_, err := Listen("udp", "127.0.0.1:0", nil)
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Dial(context.Background(), "quic", "127.0.0.1:1")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestListener_AcceptHonoursContext(t *testing.T) {
	for _, kind := range []Kind{KindTCP, KindWebSocket} {
		t.Run(string(kind), func(t *testing.T) {
			ln, err := Listen(kind, "127.0.0.1:0", quietLogger())
			require.NoError(t, err)
			defer ln.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, err = ln.Accept(ctx)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		})
	}
}

func TestWebSocketListener_RejectsSecondPeer(t *testing.T) {
	ln, err := ListenWebSocket("127.0.0.1:0", quietLogger())
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := DialWebSocket(ctx, ln.Addr())
	require.NoError(t, err)
	defer first.Close()
	host, err := ln.Accept(ctx)
	require.NoError(t, err)
	defer host.Close()

	second, err := DialWebSocket(ctx, "ws://"+ln.Addr()+WebSocketPath)
	require.NoError(t, err)
	defer second.Close()

	_, err = second.Read(make([]byte, 8))
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF, "a policy close is not a clean end of match")
}
