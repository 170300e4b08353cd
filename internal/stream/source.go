package stream

import (
	"context"
	"fmt"
)

// FaultKind is the transport-level fault taxonomy a byte source may signal.
type FaultKind uint8

const (
	FaultOverrun FaultKind = iota
	FaultFraming
	FaultBreak
	FaultParity
	FaultOther
)

func (k FaultKind) String() string {
	switch k {
	case FaultOverrun:
		return "overrun"
	case FaultFraming:
		return "framing"
	case FaultBreak:
		return "break"
	case FaultParity:
		return "parity"
	default:
		return "other"
	}
}

// Fault is a transport-level read failure. It always forces a parser reset
// and a merge-state invalidation for the source that raised it; it is never
// fatal to the stream.
type Fault struct {
	Kind  FaultKind
	Cause error
}

func (f *Fault) Error() string {
	if f.Cause == nil {
		return fmt.Sprintf("stream: transport fault (%s)", f.Kind)
	}
	return fmt.Sprintf("stream: transport fault (%s): %v", f.Kind, f.Cause)
}

func (f *Fault) Unwrap() error {
	return f.Cause
}

// ByteSource yields raw received bytes, one non-empty batch per call, or a
// transport fault. Implementations block until bytes are available.
type ByteSource interface {
	ReadBytes(ctx context.Context) ([]byte, error)
}
