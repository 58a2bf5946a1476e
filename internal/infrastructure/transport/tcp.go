package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
)

// TCPListener accepts peers on a TCP port
type TCPListener struct {
	ln     net.Listener
	logger *slog.Logger
}

// ListenTCP binds addr, e.g. ":5005" or "127.0.0.1:0"
func ListenTCP(addr string, logger *slog.Logger) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	logger.Info("listening", "transport", KindTCP, "addr", ln.Addr().String())
	return &TCPListener{ln: ln, logger: logger}, nil
}

// Accept waits for one peer. Cancelling ctx closes the listener.
func (l *TCPListener) Accept(ctx context.Context) (Conn, error) {
	stop := context.AfterFunc(ctx, func() { _ = l.ln.Close() })
	defer stop()

	c, err := l.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to accept peer: %w", err)
	}
	if tc, ok := c.(*net.TCPConn); ok {
		// one small message per frame
		_ = tc.SetNoDelay(true)
	}
	l.logger.Info("peer connected", "remote", c.RemoteAddr().String())
	return tcpConn{c}, nil
}

// Addr returns the bound address
func (l *TCPListener) Addr() string {
	return l.ln.Addr().String()
}

// Close stops accepting
func (l *TCPListener) Close() error {
	return l.ln.Close()
}

// DialTCP connects to a TCP listener
func DialTCP(ctx context.Context, addr string) (Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return tcpConn{c}, nil
}
