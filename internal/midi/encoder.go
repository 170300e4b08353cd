package midi

import (
	"errors"
	"fmt"
	"io"
)

var ErrEmptyMessage = errors.New("midi: empty message")

// Encoder writes complete wire messages to a stream, optionally applying
// running-status compression: a voice message whose status byte repeats the
// previous one is written without it. System common messages cancel the
// compression window; real-time bytes pass through without affecting it.
type Encoder struct {
	w        io.Writer
	compress bool

	lastStatus byte
	hasLast    bool
}

func NewEncoder(w io.Writer, compress bool) *Encoder {
	return &Encoder{w: w, compress: compress}
}

// Write emits one complete message, status byte first. msg must carry a
// valid status byte and exactly the data bytes that status mandates.
func (e *Encoder) Write(msg []byte) error {
	if len(msg) == 0 {
		return ErrEmptyMessage
	}
	status := msg[0]
	if !IsStatus(status) {
		return fmt.Errorf("%w: 0x%02X", ErrUnknownStatus, status)
	}

	switch {
	case IsRealtime(status):
		_, err := e.w.Write(msg)
		return err
	case status >= VoiceMin && status <= VoiceMax:
		if e.compress && e.hasLast && e.lastStatus == status {
			_, err := e.w.Write(msg[1:])
			return err
		}
		e.lastStatus = status
		e.hasLast = true
		_, err := e.w.Write(msg)
		return err
	default:
		e.hasLast = false
		_, err := e.w.Write(msg)
		return err
	}
}
