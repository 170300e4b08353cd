package merge

import "github.com/somiandras/midi-merger/internal/midi"

// SourceID identifies one of the two input streams being merged.
type SourceID uint8

const (
	SourceA SourceID = iota
	SourceB

	numSources
)

func (s SourceID) String() string {
	switch s {
	case SourceA:
		return "a"
	case SourceB:
		return "b"
	default:
		return "unknown"
	}
}

type EventKind uint8

const (
	// EventData carries one parsed message from a source.
	EventData EventKind = iota
	// EventInvalidate signals that the source's parser was reset; any
	// merge-side state cached for it predates the reset and must go.
	EventInvalidate
)

// Event is one entry on the merge channel. Per-source ordering is the load-
// bearing invariant: a reader emits its events in program order, and the
// channel delivers them to the single consumer in arrival order, so an
// invalidation can never be outraced by a stale message queued around it.
type Event struct {
	Kind   EventKind
	Source SourceID
	Msg    midi.Message
}

func DataEvent(src SourceID, msg midi.Message) Event {
	return Event{Kind: EventData, Source: src, Msg: msg}
}

func InvalidateEvent(src SourceID) Event {
	return Event{Kind: EventInvalidate, Source: src}
}

// ChannelCapacity bounds the merge channel. Sized to absorb a burst from
// both sources; when full, producers block rather than drop, since dropping
// would desynchronize running-status state.
const ChannelCapacity = 32

func NewChannel() chan Event {
	return make(chan Event, ChannelCapacity)
}
