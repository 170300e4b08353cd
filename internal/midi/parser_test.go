package midi

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

// feedAll runs bytes through the parser and collects every completed
// message and every fault, in order.
func feedAll(p *Parser, input []byte) ([]Message, []error) {
	var msgs []Message
	var faults []error
	for _, b := range input {
		msg, ok, err := p.Feed(b)
		if err != nil {
			faults = append(faults, err)
			continue
		}
		if ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs, faults
}

func requireNoFaults(t *testing.T, faults []error) {
	t.Helper()
	if len(faults) != 0 {
		t.Fatalf("unexpected faults: %v", faults)
	}
}

func TestRoundTripCleanStream(t *testing.T) {
	input := []byte{
		0x90, 0x40, 0x7F, // note on
		0x80, 0x40, 0x00, // note off
		0xC0, 0x05, // program change, one data byte
		0xF2, 0x10, 0x02, // song position, system common
		0xF6,             // tune request, no data
		0xB0, 0x07, 0x40, // control change
	}
	want := []Message{
		{Kind: KindVoice, Data: []byte{0x90, 0x40, 0x7F}},
		{Kind: KindVoice, Data: []byte{0x80, 0x40, 0x00}},
		{Kind: KindVoice, Data: []byte{0xC0, 0x05}},
		{Kind: KindSystemCommon, Data: []byte{0xF2, 0x10, 0x02}},
		{Kind: KindSystemCommon, Data: []byte{0xF6}},
		{Kind: KindVoice, Data: []byte{0xB0, 0x07, 0x40}},
	}

	msgs, faults := feedAll(NewParser(), input)
	requireNoFaults(t, faults)
	if len(msgs) != len(want) {
		t.Fatalf("message count: got=%d want=%d", len(msgs), len(want))
	}
	for i := range want {
		if msgs[i].Kind != want[i].Kind || !bytes.Equal(msgs[i].Data, want[i].Data) {
			t.Fatalf("message %d: got=%v/% X want=%v/% X",
				i, msgs[i].Kind, msgs[i].Data, want[i].Kind, want[i].Data)
		}
	}
}

func TestRunningStatusOmission(t *testing.T) {
	input := []byte{0x90, 0x40, 0x7F, 0x41, 0x7F, 0x42, 0x60}
	msgs, faults := feedAll(NewParser(), input)
	requireNoFaults(t, faults)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d: %v", len(msgs), msgs)
	}
	if msgs[0].Kind != KindVoice || !bytes.Equal(msgs[0].Data, []byte{0x90, 0x40, 0x7F}) {
		t.Fatalf("voice message mismatch: %v % X", msgs[0].Kind, msgs[0].Data)
	}
	if msgs[1].Kind != KindRunningStatus || !bytes.Equal(msgs[1].Data, []byte{0x41, 0x7F}) {
		t.Fatalf("running status mismatch: %v % X", msgs[1].Kind, msgs[1].Data)
	}
	if msgs[2].Kind != KindRunningStatus || !bytes.Equal(msgs[2].Data, []byte{0x42, 0x60}) {
		t.Fatalf("running status mismatch: %v % X", msgs[2].Kind, msgs[2].Data)
	}
}

func TestRunningStatusAfterOneByteVoice(t *testing.T) {
	// Program change takes one data byte; running status inherits that.
	input := []byte{0xC0, 0x05, 0x06, 0x07}
	msgs, faults := feedAll(NewParser(), input)
	requireNoFaults(t, faults)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range [][]byte{{0xC0, 0x05}, {0x06}, {0x07}} {
		if !bytes.Equal(msgs[i].Data, want) {
			t.Fatalf("message %d: got % X want % X", i, msgs[i].Data, want)
		}
	}
}

func TestRealtimeInterruptsPartialMessage(t *testing.T) {
	p := NewParser()
	input := []byte{0x90, 0x40, 0xF8, 0x7F}
	msgs, faults := feedAll(p, input)
	requireNoFaults(t, faults)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Kind != KindSystemRealtime || !bytes.Equal(msgs[0].Data, []byte{0xF8}) {
		t.Fatalf("realtime not emitted first: %v % X", msgs[0].Kind, msgs[0].Data)
	}
	if msgs[1].Kind != KindVoice || !bytes.Equal(msgs[1].Data, []byte{0x90, 0x40, 0x7F}) {
		t.Fatalf("interrupted message corrupted: %v % X", msgs[1].Kind, msgs[1].Data)
	}
}

func TestRealtimeInsideSysEx(t *testing.T) {
	input := []byte{0xF0, 0x01, 0xFE, 0x02, 0xF7, 0x90, 0x40, 0x7F}
	msgs, faults := feedAll(NewParser(), input)
	requireNoFaults(t, faults)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Kind != KindSystemRealtime || msgs[0].Data[0] != 0xFE {
		t.Fatalf("realtime inside sysex not emitted: %v", msgs[0])
	}
	if msgs[1].Kind != KindVoice {
		t.Fatalf("message after sysex mismatch: %v", msgs[1])
	}
}

func TestSysExPayloadNeverForwarded(t *testing.T) {
	input := []byte{0xF0, 0x7E, 0x00, 0x09, 0x01, 0xF7}
	msgs, faults := feedAll(NewParser(), input)
	requireNoFaults(t, faults)
	if len(msgs) != 0 {
		t.Fatalf("sysex payload leaked: %v", msgs)
	}
}

func TestUndefinedRealtimeIsFault(t *testing.T) {
	for _, b := range []byte{0xF9, 0xFD} {
		p := NewParser()
		_, _, err := p.Feed(b)
		if !errors.Is(err, ErrInvalidStatus) {
			t.Fatalf("0x%02X: expected ErrInvalidStatus, got %v", b, err)
		}
	}
}

func TestUndefinedCommonStatusIsFault(t *testing.T) {
	for _, b := range []byte{0xF4, 0xF5, 0xF7} {
		p := NewParser()
		_, _, err := p.Feed(b)
		if !errors.Is(err, ErrInvalidStatus) {
			t.Fatalf("0x%02X: expected ErrInvalidStatus, got %v", b, err)
		}
	}
}

func TestDuplicateStatusIsFault(t *testing.T) {
	p := NewParser()
	if _, _, err := p.Feed(0x90); err != nil {
		t.Fatalf("feed status: %v", err)
	}
	_, _, err := p.Feed(0x91)
	if !errors.Is(err, ErrDuplicateStatus) {
		t.Fatalf("expected ErrDuplicateStatus, got %v", err)
	}
}

func TestLeadingDataByteIsFault(t *testing.T) {
	p := NewParser()
	_, _, err := p.Feed(0x41)
	if !errors.Is(err, ErrUnexpectedDataByte) {
		t.Fatalf("expected ErrUnexpectedDataByte, got %v", err)
	}
}

func TestSystemCommonCancelsRunningStatus(t *testing.T) {
	p := NewParser()
	msgs, faults := feedAll(p, []byte{0x90, 0x40, 0x7F, 0xF6})
	requireNoFaults(t, faults)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	_, _, err := p.Feed(0x41)
	if !errors.Is(err, ErrUnexpectedDataByte) {
		t.Fatalf("data byte after system common: expected fault, got %v", err)
	}
}

func TestResyncConvergence(t *testing.T) {
	p := NewParser()

	// Trip a fault, then feed arbitrary garbage.
	if _, _, err := p.Feed(0x41); err == nil {
		t.Fatalf("expected initial fault")
	}
	garbage := []byte{0x00, 0x7F, 0x13, 0xF4, 0x22, 0xF5, 0x55}
	for _, b := range garbage {
		if msg, ok, _ := p.Feed(b); ok {
			t.Fatalf("message emitted during resync: %v", msg)
		}
	}

	// One legitimate status byte plus its data converges to exactly one
	// correctly classified message, with no pre-fault contamination.
	msgs, faults := feedAll(p, []byte{0xB0, 0x07, 0x40})
	requireNoFaults(t, faults)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Kind != KindVoice || !bytes.Equal(msgs[0].Data, []byte{0xB0, 0x07, 0x40}) {
		t.Fatalf("converged message mismatch: %v % X", msgs[0].Kind, msgs[0].Data)
	}
}

func TestResyncDiscardsDataBytesQuietly(t *testing.T) {
	p := NewParser()
	p.Reset()
	for _, b := range []byte{0x01, 0x02, 0x7F} {
		if _, ok, err := p.Feed(b); ok || err != nil {
			t.Fatalf("resync byte 0x%02X: ok=%v err=%v", b, ok, err)
		}
	}
}

func TestResetIsIdempotent(t *testing.T) {
	p := NewParser()
	p.Reset()
	before := *p
	p.Reset()
	if p.state != before.state || p.hasStatus || p.nData != 0 || p.want != 0 {
		t.Fatalf("second reset changed state: %+v", p)
	}
}

func TestResetDropsPartialMessage(t *testing.T) {
	p := NewParser()
	feedAll(p, []byte{0x90, 0x40})
	p.Reset()
	msgs, faults := feedAll(p, []byte{0x7F, 0x91, 0x10, 0x20})
	requireNoFaults(t, faults)
	if len(msgs) != 1 || !bytes.Equal(msgs[0].Data, []byte{0x91, 0x10, 0x20}) {
		t.Fatalf("post-reset stream mismatch: %v", msgs)
	}
}

func TestInterByteTimeoutDropsStalePartial(t *testing.T) {
	p := NewParser()
	clock := time.Unix(1000, 0)
	p.now = func() time.Time { return clock }

	feedAll(p, []byte{0x90, 0x40}) // partial voice message

	clock = clock.Add(InterByteTimeout + time.Millisecond)
	// The stale accumulators are dropped and this byte is discarded by the
	// resync hunt rather than completing the old message.
	if msg, ok, err := p.Feed(0x7F); ok || err != nil {
		t.Fatalf("stale byte: ok=%v msg=%v err=%v", ok, msg, err)
	}

	msgs, faults := feedAll(p, []byte{0xB0, 0x07, 0x40})
	requireNoFaults(t, faults)
	if len(msgs) != 1 || !bytes.Equal(msgs[0].Data, []byte{0xB0, 0x07, 0x40}) {
		t.Fatalf("post-timeout message mismatch: %v", msgs)
	}
}

func TestInterByteTimeoutIgnoredWhenIdle(t *testing.T) {
	p := NewParser()
	clock := time.Unix(1000, 0)
	p.now = func() time.Time { return clock }

	msgs, faults := feedAll(p, []byte{0x90, 0x40, 0x7F})
	requireNoFaults(t, faults)
	if len(msgs) != 1 {
		t.Fatalf("setup message not emitted")
	}

	// A long pause between complete messages is a legitimate device pause:
	// running status is still honored afterwards.
	clock = clock.Add(time.Hour)
	msgs, faults = feedAll(p, []byte{0x41, 0x7F})
	requireNoFaults(t, faults)
	if len(msgs) != 1 || msgs[0].Kind != KindRunningStatus {
		t.Fatalf("running status after idle pause rejected: %v", msgs)
	}
}

func TestRealtimeDoesNotFeedTimeoutClock(t *testing.T) {
	p := NewParser()
	clock := time.Unix(1000, 0)
	p.now = func() time.Time { return clock }

	feedAll(p, []byte{0x90, 0x40})
	clock = clock.Add(InterByteTimeout + time.Millisecond)

	// The realtime byte must not refresh the partial message's clock.
	if msg, ok, err := p.Feed(0xF8); !ok || err != nil || msg.Kind != KindSystemRealtime {
		t.Fatalf("realtime byte: ok=%v err=%v", ok, err)
	}
	if msg, ok, err := p.Feed(0x7F); ok || err != nil {
		t.Fatalf("stale partial survived timeout: ok=%v msg=%v err=%v", ok, msg, err)
	}
}

func TestDataLenTable(t *testing.T) {
	cases := []struct {
		status byte
		want   int
	}{
		{0x80, 2}, {0x90, 2}, {0xA5, 2}, {0xB0, 2}, {0xE7, 2},
		{0xC0, 1}, {0xCF, 1}, {0xD3, 1},
		{0xF1, 1}, {0xF3, 1},
		{0xF2, 2},
		{0xF6, 0},
	}
	for _, tc := range cases {
		if got := DataLen(tc.status); got != tc.want {
			t.Fatalf("DataLen(0x%02X): got=%d want=%d", tc.status, got, tc.want)
		}
	}
}
