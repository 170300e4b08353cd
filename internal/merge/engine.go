package merge

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/somiandras/midi-merger/internal/midi"
	"github.com/somiandras/midi-merger/internal/observability"
)

var ErrRunningStatusUnderflow = errors.New("merge: running status with no cached status byte")

// Sink accepts merged output bytes for transmission.
type Sink interface {
	WriteBytes(ctx context.Context, p []byte) error
}

// Engine is the single consumer of the merge channel. It owns the per-source
// status cache and the last-transmitter mark exclusively; nothing else
// mutates them, so no locking is involved.
type Engine struct {
	events <-chan Event
	sink   Sink
	log    zerolog.Logger

	status    [numSources]byte
	hasStatus [numSources]bool
	last      SourceID
	hasLast   bool
}

func NewEngine(events <-chan Event, sink Sink, log zerolog.Logger) *Engine {
	return &Engine{
		events: events,
		sink:   sink,
		log:    log.With().Str("task", "merge").Logger(),
	}
}

// Run drains the channel strictly in arrival order until ctx is cancelled.
// No fault is fatal: protocol violations drop the offending message, sink
// failures abort only the current message.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.events:
			e.handle(ctx, ev)
		}
	}
}

func (e *Engine) handle(ctx context.Context, ev Event) {
	if ev.Kind == EventInvalidate {
		e.hasStatus[ev.Source] = false
		if e.hasLast && e.last == ev.Source {
			e.hasLast = false
		}
		observability.RecordInvalidation(ev.Source.String())
		e.log.Debug().Stringer("source", ev.Source).Msg("source invalidated")
		return
	}

	switch ev.Msg.Kind {
	case midi.KindVoice:
		if status, ok := ev.Msg.Status(); ok {
			e.status[ev.Source] = status
			e.hasStatus[ev.Source] = true
		}
		if err := e.write(ctx, ev.Msg.Data); err != nil {
			e.writeFailed(ev, err)
			return
		}
		e.last = ev.Source
		e.hasLast = true
	case midi.KindSystemCommon, midi.KindSystemRealtime:
		// Write-through: no running-status bookkeeping on either side.
		if err := e.write(ctx, ev.Msg.Data); err != nil {
			e.writeFailed(ev, err)
			return
		}
	case midi.KindRunningStatus:
		if err := e.writeRunning(ctx, ev); err != nil {
			return
		}
		e.last = ev.Source
		e.hasLast = true
	}
	observability.RecordMerged(ev.Source.String(), ev.Msg.Kind.String())
}

// writeRunning re-derives the status byte omitted by the source's running
// status compression. The omitted byte is only implied correctly when the
// previous bytes on the merged output came from the same source; otherwise
// the source's cached status must be injected first.
func (e *Engine) writeRunning(ctx context.Context, ev Event) error {
	if e.hasLast && e.last == ev.Source {
		// Output-side running status is still valid, data bytes suffice.
		if err := e.write(ctx, ev.Msg.Data); err != nil {
			e.writeFailed(ev, err)
			return err
		}
		return nil
	}

	if !e.hasStatus[ev.Source] {
		// No voice message from this source since the last invalidation;
		// there is nothing valid to inject. Drop the message.
		observability.RecordUnderflow(ev.Source.String())
		e.log.Warn().
			Stringer("source", ev.Source).
			Hex("data", ev.Msg.Data).
			Msg("running status underflow, message dropped")
		return ErrRunningStatusUnderflow
	}

	out := make([]byte, 0, 1+len(ev.Msg.Data))
	out = append(out, e.status[ev.Source])
	out = append(out, ev.Msg.Data...)
	if err := e.write(ctx, out); err != nil {
		e.writeFailed(ev, err)
		return err
	}
	return nil
}

func (e *Engine) write(ctx context.Context, p []byte) error {
	if err := e.sink.WriteBytes(ctx, p); err != nil {
		return err
	}
	observability.RecordSinkBytes(len(p))
	return nil
}

// writeFailed aborts the current message. The status caches still reflect
// what each source actually sent, but the last-transmitter mark is cleared:
// the sink may have missed the bytes that made output-side running status
// valid, so the next running-status message re-injects its status byte.
func (e *Engine) writeFailed(ev Event, err error) {
	e.hasLast = false
	observability.RecordSinkError()
	e.log.Error().
		Err(err).
		Stringer("source", ev.Source).
		Stringer("kind", ev.Msg.Kind).
		Msg("sink write failed, message dropped")
}
