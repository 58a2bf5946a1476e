// Package wire encodes per-frame input messages for a byte stream transport.
//
// A message is the tag "FS" (optionally followed by the sender's player
// number), the frame number in decimal, and the control flags as a JSON array
// of booleans, separated by '|' and closed with the terminator "|\n":
//
//	FS|12|[false,true,false]|\n      delay revision, untagged
//	FS2|12|[false,true,false]|\n     rollback revision, tagged with the sender
//
// Older rollback peers omit the terminator; the decoder accepts both.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/younwookim/fightsquares/internal/domain/fight"
)

const (
	// Tag starts every message
	Tag = "FS"
	// Separator splits message fields
	Separator = '|'
	// Terminator closes a message. It cannot occur inside a JSON bool array.
	Terminator = "|\n"

	maxFrameDigits = 19
	maxArrayBytes  = 64
)

var (
	// ErrIncomplete means the buffer holds only part of a message; read more and retry.
	ErrIncomplete = errors.New("incomplete message")
	// ErrMalformed means the buffer starts with bytes that can never form a message.
	ErrMalformed = errors.New("malformed message")
	// ErrEncode reports a message that cannot be encoded. It signals a caller bug.
	ErrEncode = errors.New("cannot encode message")
)

// Message is one decoded input message
type Message struct {
	Frame   int
	Sender  fight.Player // PlayerNone for the untagged revision
	Control fight.ControlState
}

// DecodeError describes why DecodeFirst could not return a message
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func incomplete(field string) error {
	return &DecodeError{Field: field, Err: ErrIncomplete}
}

func malformed(field string, cause error) error {
	if cause == nil {
		return &DecodeError{Field: field, Err: ErrMalformed}
	}
	return &DecodeError{Field: field, Err: fmt.Errorf("%w: %w", ErrMalformed, cause)}
}

// Encode returns the wire bytes for one frame of input.
// Pass fight.PlayerNone as sender for the untagged revision.
func Encode(frame int, sender fight.Player, c fight.ControlState) ([]byte, error) {
	if frame < 0 {
		return nil, fmt.Errorf("%w: negative frame %d", ErrEncode, frame)
	}
	if sender != fight.PlayerNone && !sender.Valid() {
		return nil, fmt.Errorf("%w: invalid sender %d", ErrEncode, int(sender))
	}

	flags, err := json.Marshal(c.Flags())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	buf := make([]byte, 0, 32)
	buf = append(buf, Tag...)
	if sender != fight.PlayerNone {
		buf = strconv.AppendInt(buf, int64(sender), 10)
	}
	buf = append(buf, Separator)
	buf = strconv.AppendInt(buf, int64(frame), 10)
	buf = append(buf, Separator)
	buf = append(buf, flags...)
	buf = append(buf, Terminator...)
	return buf, nil
}

// DecodeFirst decodes the first message in buf and returns the bytes after it.
// Leading separator or newline bytes left over from a split terminator are skipped.
func DecodeFirst(buf []byte) (Message, []byte, error) {
	rest := bytes.TrimLeft(buf, "|\r\n ")
	if len(rest) == 0 {
		return Message{}, buf, incomplete("tag")
	}

	// Tag, with an optional sender digit
	if len(rest) < len(Tag) {
		if bytes.HasPrefix([]byte(Tag), rest) {
			return Message{}, buf, incomplete("tag")
		}
		return Message{}, buf, malformed("tag", nil)
	}
	if !bytes.HasPrefix(rest, []byte(Tag)) {
		return Message{}, buf, malformed("tag", nil)
	}
	p := len(Tag)
	if p >= len(rest) {
		return Message{}, buf, incomplete("tag")
	}

	var msg Message
	switch rest[p] {
	case Separator:
	case '1', '2':
		msg.Sender = fight.Player(rest[p] - '0')
		p++
		if p >= len(rest) {
			return Message{}, buf, incomplete("tag")
		}
		if rest[p] != Separator {
			return Message{}, buf, malformed("tag", nil)
		}
	default:
		return Message{}, buf, malformed("tag", nil)
	}
	p++

	// Frame number
	end := bytes.IndexByte(rest[p:], Separator)
	if end < 0 {
		digits := rest[p:]
		if len(digits) > maxFrameDigits || !allDigits(digits) {
			return Message{}, buf, malformed("frame", nil)
		}
		return Message{}, buf, incomplete("frame")
	}
	field := rest[p : p+end]
	if len(field) == 0 || len(field) > maxFrameDigits || !allDigits(field) {
		return Message{}, buf, malformed("frame", nil)
	}
	frame, err := strconv.Atoi(string(field))
	if err != nil {
		return Message{}, buf, malformed("frame", err)
	}
	msg.Frame = frame
	p += end + 1

	// Control flags
	if p >= len(rest) {
		return Message{}, buf, incomplete("control")
	}
	if rest[p] != '[' {
		return Message{}, buf, malformed("control", nil)
	}
	closing := bytes.IndexByte(rest[p:], ']')
	if closing < 0 {
		if len(rest)-p > maxArrayBytes {
			return Message{}, buf, malformed("control", nil)
		}
		return Message{}, buf, incomplete("control")
	}
	var flags []bool
	if err := json.Unmarshal(rest[p:p+closing+1], &flags); err != nil {
		return Message{}, buf, malformed("control", err)
	}
	control, err := fight.ControlStateFromFlags(flags)
	if err != nil {
		return Message{}, buf, malformed("control", err)
	}
	msg.Control = control
	p += closing + 1

	// Terminator. Absent in the unterminated revision.
	if p < len(rest) && rest[p] == Separator {
		if p+1 >= len(rest) {
			return Message{}, buf, incomplete("terminator")
		}
		if rest[p+1] != '\n' {
			return Message{}, buf, malformed("terminator", nil)
		}
		p += len(Terminator)
	}

	return msg, rest[p:], nil
}

func allDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
