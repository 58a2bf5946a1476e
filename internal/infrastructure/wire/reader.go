package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// ErrStreamCorrupt is returned once a stream stops producing decodable
// messages within the Reader's bounds. The connection should be dropped.
var ErrStreamCorrupt = errors.New("stream corrupt")

const (
	// DefaultMaxBuffer bounds the bytes held while waiting for a terminator
	DefaultMaxBuffer = 4096
	// DefaultMaxMalformed bounds consecutive malformed messages
	DefaultMaxMalformed = 8

	readChunk = 1024
)

// ReaderOption configures a Reader
type ReaderOption func(*Reader)

// WithMaxBuffer sets the largest partial message the Reader will hold
func WithMaxBuffer(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.maxBuffer = n
		}
	}
}

// WithMaxMalformed sets how many malformed messages in a row are tolerated
func WithMaxMalformed(n int) ReaderOption {
	return func(r *Reader) {
		if n >= 0 {
			r.maxMalformed = n
		}
	}
}

// WithLogger sets the logger used for skipped messages
func WithLogger(logger *slog.Logger) ReaderOption {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMalformedHook registers a callback invoked for every skipped message
func WithMalformedHook(fn func(error)) ReaderOption {
	return func(r *Reader) {
		r.onMalformed = fn
	}
}

// Reader frames messages out of a byte stream that has no message boundaries.
type Reader struct {
	src          io.Reader
	buf          []byte
	chunk        []byte
	readErr      error
	maxBuffer    int
	maxMalformed int
	malformed    int
	logger       *slog.Logger
	onMalformed  func(error)
}

// NewReader creates a Reader over src
func NewReader(src io.Reader, opts ...ReaderOption) *Reader {
	r := &Reader{
		src:          src,
		chunk:        make([]byte, readChunk),
		maxBuffer:    DefaultMaxBuffer,
		maxMalformed: DefaultMaxMalformed,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Next blocks until one message decodes.
//
// Incomplete input is retried after another read. A malformed message is
// skipped up to the next tag; more than the configured number in a row, or a
// partial message larger than the buffer bound, fails with ErrStreamCorrupt.
// A clean end of stream returns io.EOF; a stream ending mid-message returns
// io.ErrUnexpectedEOF.
func (r *Reader) Next() (Message, error) {
	for {
		if len(r.buf) > 0 {
			msg, rest, err := DecodeFirst(r.buf)
			switch {
			case err == nil:
				r.buf = rest
				r.malformed = 0
				return msg, nil
			case errors.Is(err, ErrIncomplete):
				// need more bytes
			default:
				r.malformed++
				r.logger.Warn("skipping malformed message", "error", err, "consecutive", r.malformed)
				if r.onMalformed != nil {
					r.onMalformed(err)
				}
				if r.malformed > r.maxMalformed {
					return Message{}, fmt.Errorf("%w: %d malformed messages in a row: %w", ErrStreamCorrupt, r.malformed, err)
				}
				r.buf = skipToNextTag(r.buf)
				continue
			}
		}

		if r.readErr != nil {
			if errors.Is(r.readErr, io.EOF) && len(bytes.TrimLeft(r.buf, "|\r\n ")) > 0 {
				return Message{}, io.ErrUnexpectedEOF
			}
			return Message{}, r.readErr
		}
		if len(r.buf) >= r.maxBuffer {
			return Message{}, fmt.Errorf("%w: %d bytes without a complete message", ErrStreamCorrupt, len(r.buf))
		}

		n, err := r.src.Read(r.chunk)
		r.buf = append(r.buf, r.chunk[:n]...)
		if err != nil {
			r.readErr = err
		}
	}
}

// Buffered returns the number of bytes read but not yet decoded
func (r *Reader) Buffered() int {
	return len(r.buf)
}

// skipToNextTag drops the message at the head of buf
func skipToNextTag(buf []byte) []byte {
	if len(buf) == 0 {
		return buf
	}
	i := bytes.Index(buf[1:], []byte(Tag))
	if i < 0 {
		// Keep a trailing partial tag
		if len(buf) > 1 && buf[len(buf)-1] == Tag[0] {
			return buf[len(buf)-1:]
		}
		return buf[:0]
	}
	return buf[i+1:]
}
