package stream

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/somiandras/midi-merger/internal/merge"
	"github.com/somiandras/midi-merger/internal/midi"
	"github.com/somiandras/midi-merger/internal/observability"
)

// Reader binds one parser to one byte source and feeds the merge channel.
// On a protocol fault the parser resynchronizes itself; on a transport
// fault the reader resets it explicitly. Either way an invalidation event
// follows the fault onto the channel in program order, so the merge engine
// never acts on a cache entry that predates the reset.
type Reader struct {
	id     merge.SourceID
	src    ByteSource
	parser *midi.Parser
	events chan<- merge.Event
	log    zerolog.Logger
}

func NewReader(id merge.SourceID, src ByteSource, events chan<- merge.Event, log zerolog.Logger) *Reader {
	return &Reader{
		id:     id,
		src:    src,
		parser: midi.NewParser(),
		events: events,
		log:    log.With().Str("task", "reader").Stringer("source", id).Logger(),
	}
}

// Run pulls bytes until ctx is cancelled. No fault is fatal.
func (r *Reader) Run(ctx context.Context) error {
	for {
		batch, err := r.src.ReadBytes(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.transportFault(ctx, err)
			continue
		}
		for _, b := range batch {
			if err := r.feed(ctx, b); err != nil {
				return err
			}
		}
	}
}

func (r *Reader) feed(ctx context.Context, b byte) error {
	msg, ok, err := r.parser.Feed(b)
	if err != nil {
		observability.RecordProtocolFault(r.id.String(), faultLabel(err))
		r.log.Warn().Err(err).Msg("protocol fault, resynchronizing")
		return r.send(ctx, merge.InvalidateEvent(r.id))
	}
	if !ok {
		return nil
	}

	switch msg.Kind {
	case midi.KindSystemRealtime:
		// Timing clocks arrive at high frequency; keep them out of
		// normal-verbosity logs.
		r.log.Trace().Hex("bytes", msg.Data).Msg("realtime message")
	case midi.KindRunningStatus:
		r.log.Debug().Hex("data", msg.Data).Msg("running status message")
	default:
		r.log.Debug().
			Stringer("kind", msg.Kind).
			Str("message", gomidi.Message(msg.Data).String()).
			Msg("message parsed")
	}
	observability.RecordMessage(r.id.String(), msg.Kind.String())
	return r.send(ctx, merge.DataEvent(r.id, msg))
}

// transportFault handles a source-level read failure. Every fault kind,
// overrun included, resets the parser: bytes may have been lost, so any
// partial accumulation is unsalvageable.
func (r *Reader) transportFault(ctx context.Context, err error) {
	kind := FaultOther
	var fault *Fault
	if errors.As(err, &fault) {
		kind = fault.Kind
	}
	observability.RecordTransportFault(r.id.String(), kind.String())
	r.log.Warn().Err(err).Msg("transport fault, resetting parser")

	r.parser.Reset()
	_ = r.send(ctx, merge.InvalidateEvent(r.id))
}

// send enqueues one event, blocking while the channel is full. Blocking is
// deliberate: dropping events would desynchronize running-status state.
func (r *Reader) send(ctx context.Context, ev merge.Event) error {
	select {
	case r.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func faultLabel(err error) string {
	switch {
	case errors.Is(err, midi.ErrInvalidStatus):
		return "invalid_status"
	case errors.Is(err, midi.ErrDuplicateStatus):
		return "duplicate_status"
	case errors.Is(err, midi.ErrUnexpectedDataByte):
		return "unexpected_data_byte"
	case errors.Is(err, midi.ErrUnknownStatus):
		return "unknown_status"
	default:
		return "other"
	}
}
