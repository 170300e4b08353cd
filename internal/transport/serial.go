// Package transport adapts physical serial ports to the stream contracts.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/somiandras/midi-merger/internal/stream"
)

// MIDIBaudRate is fixed by the protocol; it is not configurable.
const MIDIBaudRate = 31250

const readBufSize = 64

var ErrPortClosed = errors.New("transport: port closed")

// SerialPort is one open MIDI port. It implements stream.ByteSource for
// inputs and merge.Sink for the output. The read side belongs to exactly
// one task; the write side may belong to another when a single UART serves
// both a source and the merged output, so the port handle itself is
// guarded.
type SerialPort struct {
	path    string
	backoff BackoffConfig
	rng     *rand.Rand
	buf     [readBufSize]byte

	mu   sync.Mutex
	port serial.Port
}

// Open opens path at the MIDI line discipline (31250-8-N-1).
func Open(path string) (*SerialPort, error) {
	port, err := open(path)
	if err != nil {
		return nil, err
	}
	return &SerialPort{
		path:    path,
		port:    port,
		backoff: DefaultBackoff(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func open(path string) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: MIDIBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", path, err)
	}
	return port, nil
}

func (p *SerialPort) get() serial.Port {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.port
}

func (p *SerialPort) set(port serial.Port) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.port = port
}

// ReadBytes blocks until at least one byte arrives and returns the batch.
// Read failures come back as *stream.Fault. A dead line (adapter unplugged)
// surfaces exactly one fault; the next call blocks reopening the port with
// backoff until the device returns.
func (p *SerialPort) ReadBytes(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	port := p.get()
	if port == nil {
		var err error
		if port, err = p.reopen(ctx); err != nil {
			return nil, err
		}
	}
	n, err := port.Read(p.buf[:])
	if err != nil {
		fault := classify(err)
		if isDeadLine(fault) {
			port.Close()
			p.set(nil)
		}
		return nil, fault
	}
	if n == 0 {
		// Zero-length read with no error means the line went away.
		port.Close()
		p.set(nil)
		return nil, &stream.Fault{Kind: stream.FaultBreak, Cause: ErrPortClosed}
	}
	out := make([]byte, n)
	copy(out, p.buf[:n])
	return out, nil
}

// reopen blocks until the port opens again or ctx is cancelled.
func (p *SerialPort) reopen(ctx context.Context) (serial.Port, error) {
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(NextBackoffDelay(p.backoff, attempt, p.rng)):
		}
		port, err := open(p.path)
		if err == nil {
			p.set(port)
			return port, nil
		}
	}
}

func isDeadLine(err error) bool {
	var fault *stream.Fault
	return errors.As(err, &fault) && fault.Kind == stream.FaultBreak
}

func (p *SerialPort) WriteBytes(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	port := p.get()
	if port == nil {
		return fmt.Errorf("transport: write %s: %w", p.path, ErrPortClosed)
	}
	if _, err := port.Write(data); err != nil {
		return fmt.Errorf("transport: write %s: %w", p.path, err)
	}
	return nil
}

// Close may be called from another goroutine to unblock a pending read
// during shutdown.
func (p *SerialPort) Close() error {
	port := p.get()
	if port == nil {
		return nil
	}
	return port.Close()
}

// RawWriter exposes the port as a plain io.Writer for callers that stream
// bytes without the sink contract.
func (p *SerialPort) RawWriter() io.Writer {
	return p.get()
}

func (p *SerialPort) String() string {
	return p.path
}

// classify maps a serial read error onto the transport fault taxonomy. The
// OS does not surface per-byte framing or parity failures through this
// driver, so most errors land in FaultOther; dead lines are the one case
// that can be told apart.
func classify(err error) error {
	var portErr serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortClosed, serial.PortNotFound:
			return &stream.Fault{Kind: stream.FaultBreak, Cause: err}
		}
	}
	return &stream.Fault{Kind: stream.FaultOther, Cause: err}
}
