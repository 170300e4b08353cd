package midi

import (
	"fmt"
	"time"
)

// InterByteTimeout bounds how long a partial message may linger. At the
// fixed MIDI rate of 31250 baud a full three-byte message takes under a
// millisecond, so 300ms tolerates any legitimate device pause while still
// catching a source that died mid-message.
const InterByteTimeout = 300 * time.Millisecond

type parserState uint8

const (
	stateReading parserState = iota
	stateResync
	stateSysEx
)

// Parser is a per-stream state machine turning raw bytes into messages.
// It owns no I/O and is not safe for concurrent use; each stream reader
// owns exactly one.
type Parser struct {
	state parserState

	status    byte
	hasStatus bool
	data      [2]byte
	nData     int
	// want is the data-byte count of the message being accumulated. It
	// survives voice-message completion so that following bare data bytes
	// accumulate as running status with the same length.
	want int

	last    time.Time
	hasLast bool
	now     func() time.Time
}

func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// Feed consumes one byte. It returns a completed message with ok=true, or
// ok=false while still accumulating, or a protocol fault. Every fault
// clears the accumulators and leaves the parser hunting for the next valid
// status byte.
func (p *Parser) Feed(b byte) (Message, bool, error) {
	// Real-time bytes are evaluated before anything else, whatever the
	// current state: they interleave with other messages without touching
	// the accumulators or the inter-byte clock.
	if IsRealtime(b) {
		if IsUndefinedStatus(b) {
			p.toResync()
			return Message{}, false, fmt.Errorf("%w: 0x%02X", ErrInvalidStatus, b)
		}
		return Message{Kind: KindSystemRealtime, Data: []byte{b}}, true, nil
	}

	now := p.now()
	if p.pending() && p.hasLast && now.Sub(p.last) > InterByteTimeout {
		p.toResync()
	}
	p.last = now
	p.hasLast = true

	switch p.state {
	case stateSysEx:
		// Exclusive-data payload is never forwarded.
		if b == SysExEnd {
			p.clear()
			p.state = stateReading
		}
		return Message{}, false, nil
	case stateResync:
		if !isSyncPoint(b) {
			return Message{}, false, nil
		}
		p.state = stateReading
	}
	return p.read(b)
}

// Reset forces the parser into resynchronization, dropping any partial
// accumulation. Stream readers call it after a transport-level fault.
// Calling it while already resynchronizing is a no-op.
func (p *Parser) Reset() {
	p.toResync()
}

func (p *Parser) read(b byte) (Message, bool, error) {
	if IsStatus(b) {
		switch {
		case b == SysExStart:
			p.clear()
			p.state = stateSysEx
			return Message{}, false, nil
		case b == SysExEnd, IsUndefinedStatus(b):
			// A stray end marker outside exclusive data is as much a
			// violation as an undefined status value.
			p.toResync()
			return Message{}, false, fmt.Errorf("%w: 0x%02X", ErrInvalidStatus, b)
		case p.hasStatus:
			p.toResync()
			return Message{}, false, fmt.Errorf("%w: 0x%02X", ErrDuplicateStatus, b)
		}
		p.status = b
		p.hasStatus = true
		p.nData = 0
		p.want = DataLen(b)
		if p.want == 0 {
			return p.emit()
		}
		return Message{}, false, nil
	}

	// want==0 with no status staged means there is no message this data
	// byte could belong to: nothing completed yet on this stream, or the
	// last completed message does not admit running status.
	if p.nData >= p.want {
		p.toResync()
		return Message{}, false, fmt.Errorf("%w: 0x%02X", ErrUnexpectedDataByte, b)
	}
	p.data[p.nData] = b
	p.nData++
	if p.nData == p.want {
		return p.emit()
	}
	return Message{}, false, nil
}

func (p *Parser) emit() (Message, bool, error) {
	msg, err := p.classify()
	if err != nil {
		p.toResync()
		return Message{}, false, err
	}

	p.hasStatus = false
	p.nData = 0
	if msg.Kind == KindSystemCommon {
		// System common cancels running status: bare data bytes after it
		// have no status to inherit and must fault.
		p.want = 0
	}
	return msg, true, nil
}

func (p *Parser) classify() (Message, error) {
	if !p.hasStatus {
		data := make([]byte, p.nData)
		copy(data, p.data[:p.nData])
		return Message{Kind: KindRunningStatus, Data: data}, nil
	}

	var kind Kind
	switch {
	case p.status >= VoiceMin && p.status <= VoiceMax:
		kind = KindVoice
	case p.status == MTCQuarterFrame, p.status == SongPosition,
		p.status == SongSelect, p.status == TuneRequest:
		kind = KindSystemCommon
	default:
		// Unreachable given the checks in read; kept as a fault rather
		// than a panic so corrupt state still routes through resync.
		return Message{}, fmt.Errorf("%w: 0x%02X", ErrUnknownStatus, p.status)
	}

	data := make([]byte, 1+p.nData)
	data[0] = p.status
	copy(data[1:], p.data[:p.nData])
	return Message{Kind: kind, Data: data}, nil
}

// pending reports whether dropping state now would lose a partial message.
func (p *Parser) pending() bool {
	return p.hasStatus || p.nData > 0 || p.state == stateSysEx
}

func (p *Parser) clear() {
	p.hasStatus = false
	p.nData = 0
	p.want = 0
}

func (p *Parser) toResync() {
	p.clear()
	p.state = stateResync
}

// isSyncPoint reports whether b can end a resync hunt: a defined,
// non-realtime status byte that Reading knows how to start a message from.
func isSyncPoint(b byte) bool {
	if !IsStatus(b) || IsUndefinedStatus(b) || b == SysExEnd {
		return false
	}
	return true
}
