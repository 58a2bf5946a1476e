// Package transport opens the ordered byte stream two peers play over: plain
// TCP or a WebSocket, plus the role handshake and a bad-connection simulator.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
)

// Conn is a connected, ordered byte stream to the other peer
type Conn interface {
	io.ReadWriteCloser
	RemoteAddr() string
}

// Listener accepts exactly the peers it is asked for
type Listener interface {
	// Accept waits for one peer or until ctx is done
	Accept(ctx context.Context) (Conn, error)
	// Addr is the address peers should dial
	Addr() string
	Close() error
}

// ErrUnknownKind is returned for a transport name other than tcp or ws
var ErrUnknownKind = errors.New("unknown transport")

// Kind names a transport on the command line
type Kind string

const (
	KindTCP       Kind = "tcp"
	KindWebSocket Kind = "ws"
)

// Listen opens a listener of the given kind on addr
func Listen(kind Kind, addr string, logger *slog.Logger) (Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		ln  Listener
		err error
	)
	switch kind {
	case KindTCP:
		ln, err = ListenTCP(addr, logger)
	case KindWebSocket:
		ln, err = ListenWebSocket(addr, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, err
	}
	return ln, nil
}

// Dial connects to a listener of the given kind
func Dial(ctx context.Context, kind Kind, addr string) (Conn, error) {
	switch kind {
	case KindTCP:
		return DialTCP(ctx, addr)
	case KindWebSocket:
		return DialWebSocket(ctx, addr)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// tcpConn exposes a net.Conn as a Conn
type tcpConn struct {
	net.Conn
}

func (c tcpConn) RemoteAddr() string {
	return c.Conn.RemoteAddr().String()
}
