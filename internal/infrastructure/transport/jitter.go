package transport

import (
	"bytes"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"sync"
	"time"
)

// Jitter simulates a bad connection by delaying every write by a random
// duration in [0, MaxDelay].
//
// A synchronous Jitter sleeps in Write, stalling the caller. An asynchronous
// one returns at once and writes from a background goroutine, so writes may
// reach the peer out of order.
type Jitter struct {
	w        io.Writer
	maxDelay time.Duration
	async    bool
	logger   *slog.Logger
	randN    func(n int64) int64

	mu       sync.Mutex // serializes writes to w
	inflight sync.WaitGroup
}

// NewJitter wraps w
func NewJitter(w io.Writer, maxDelay time.Duration, async bool, logger *slog.Logger) *Jitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Jitter{
		w:        w,
		maxDelay: maxDelay,
		async:    async,
		logger:   logger,
		randN:    rand.Int64N,
	}
}

func (j *Jitter) delay() time.Duration {
	if j.maxDelay <= 0 {
		return 0
	}
	return time.Duration(j.randN(int64(j.maxDelay) + 1))
}

// Write delays p, then writes it
func (j *Jitter) Write(p []byte) (int, error) {
	d := j.delay()
	if !j.async {
		time.Sleep(d)
		j.mu.Lock()
		defer j.mu.Unlock()
		return j.w.Write(p)
	}

	payload := bytes.Clone(p)
	j.inflight.Go(func() {
		time.Sleep(d)
		j.mu.Lock()
		defer j.mu.Unlock()
		if _, err := j.w.Write(payload); err != nil {
			j.logger.Warn("delayed write failed", "error", err, "delay", d)
		}
	})
	return len(p), nil
}

// Flush waits for delayed writes still in flight
func (j *Jitter) Flush() {
	j.inflight.Wait()
}

// jitterConn is a Conn whose writes go through a Jitter
type jitterConn struct {
	Conn
	j *Jitter

	mu     sync.RWMutex
	closed bool
}

// WithJitter delays every write on c. Close waits for delayed writes first.
func WithJitter(c Conn, maxDelay time.Duration, async bool, logger *slog.Logger) Conn {
	return &jitterConn{Conn: c, j: NewJitter(c, maxDelay, async, logger)}
}

func (c *jitterConn) Write(p []byte) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	return c.j.Write(p)
}

func (c *jitterConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return net.ErrClosed
	}
	c.closed = true
	c.mu.Unlock()

	c.j.Flush()
	return c.Conn.Close()
}
