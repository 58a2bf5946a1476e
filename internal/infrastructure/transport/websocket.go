package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketPath is where the host serves the match
const WebSocketPath = "/netcode"

// WebSocketListener serves one match over a WebSocket. Only the first peer is
// kept; later upgrades are closed with a policy violation.
type WebSocketListener struct {
	ln       net.Listener
	srv      *http.Server
	upgrader websocket.Upgrader
	peers    chan *websocket.Conn
	claimed  atomic.Bool
	logger   *slog.Logger
}

// ListenWebSocket binds addr and starts serving upgrades on WebSocketPath
func ListenWebSocket(addr string, logger *slog.Logger) (*WebSocketListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	l := &WebSocketListener{
		ln: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		peers:  make(chan *websocket.Conn, 1),
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, l.handle)
	l.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("websocket server stopped", "error", err)
		}
	}()

	logger.Info("listening", "transport", KindWebSocket, "addr", ln.Addr().String(), "path", WebSocketPath)
	return l, nil
}

func (l *WebSocketListener) handle(w http.ResponseWriter, r *http.Request) {
	c, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	if !l.claimed.CompareAndSwap(false, true) {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "match is full")
		_ = c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = c.Close()
		l.logger.Warn("rejected extra peer", "remote", r.RemoteAddr)
		return
	}
	l.peers <- c
	l.logger.Info("peer connected", "remote", r.RemoteAddr)
}

// Accept waits for the peer or until ctx is done
func (l *WebSocketListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case c := <-l.peers:
		return newWSConn(c), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Addr returns the bound host:port
func (l *WebSocketListener) Addr() string {
	return l.ln.Addr().String()
}

// Close stops the HTTP server. Accepted connections stay open.
func (l *WebSocketListener) Close() error {
	return l.srv.Close()
}

// DialWebSocket connects to a host. addr is either host:port or a full ws:// URL.
func DialWebSocket(ctx context.Context, addr string) (Conn, error) {
	url := addr
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		url = "ws://" + addr + WebSocketPath
	}

	c, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return newWSConn(c), nil
}

// wsConn turns a message-oriented WebSocket into a byte stream. Each Write is
// one text message; Read drains messages in order.
type wsConn struct {
	ws *websocket.Conn

	rmu sync.Mutex
	r   io.Reader // current message, nil between messages

	wmu sync.Mutex
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

func (c *wsConn) Read(p []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	for {
		if c.r == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				return 0, streamError(err)
			}
			c.r = r
		}

		n, err := c.r.Read(p)
		if errors.Is(err, io.EOF) {
			c.r = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if err := c.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a normal close frame, then drops the connection
func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.ws.Close()
}

func (c *wsConn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// SetDeadline bounds both directions, used by the handshake
func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

// streamError maps a clean close from the peer to io.EOF
func streamError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return io.EOF
	}
	return err
}
