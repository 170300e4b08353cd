// midigen writes generated MIDI traffic to a serial port or stdout, for
// soaking a merger with realistic note streams, running-status compression,
// and optional line corruption to exercise resynchronization.
package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/somiandras/midi-merger/internal/midi"
	"github.com/somiandras/midi-merger/internal/transport"
)

func main() {
	var (
		portPath = flag.String("port", "-", "serial port to write to, or - for stdout")
		count    = flag.Int("count", 64, "number of notes to send")
		rate     = flag.Int("rate", 20, "notes per second")
		channel  = flag.Uint("channel", 0, "MIDI channel (0-15)")
		compress = flag.Bool("running", true, "apply running-status compression")
		clock    = flag.Bool("clock", true, "interleave timing-clock bytes")
		corrupt  = flag.Int("corrupt", 0, "inject one corrupt byte every N messages (0 disables)")
		seed     = flag.Int64("seed", 0, "random seed (0 uses current time)")
	)
	flag.Parse()

	if *channel > 15 {
		fmt.Fprintln(os.Stderr, "midigen: channel must be in 0-15")
		os.Exit(1)
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	out, closer, err := openOutput(*portPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "midigen: %v\n", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}

	if err := generate(out, *count, *rate, uint8(*channel), *compress, *clock, *corrupt, *seed); err != nil {
		fmt.Fprintf(os.Stderr, "midigen: %v\n", err)
		os.Exit(1)
	}
}

func openOutput(path string) (io.Writer, io.Closer, error) {
	if path == "-" {
		return os.Stdout, nil, nil
	}
	port, err := transport.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return port.RawWriter(), port, nil
}

func generate(w io.Writer, count, rate int, channel uint8, compress, clock bool, corrupt int, seed int64) error {
	enc := midi.NewEncoder(w, compress)
	rng := rand.New(rand.NewSource(seed))
	interval := time.Second / time.Duration(rate)

	for i := 0; i < count; i++ {
		key := uint8(36 + rng.Intn(48))
		velocity := uint8(32 + rng.Intn(96))

		var msgs []gomidi.Message
		switch rng.Intn(8) {
		case 0:
			msgs = append(msgs, gomidi.ControlChange(channel, 7, uint8(rng.Intn(128))))
		case 1:
			msgs = append(msgs, gomidi.ProgramChange(channel, uint8(rng.Intn(128))))
		default:
			msgs = append(msgs,
				gomidi.NoteOn(channel, key, velocity),
				gomidi.NoteOff(channel, key),
			)
		}

		for _, msg := range msgs {
			if err := enc.Write(msg); err != nil {
				return err
			}
		}
		if clock {
			if _, err := w.Write([]byte{midi.RealtimeMin}); err != nil {
				return err
			}
		}
		if corrupt > 0 && (i+1)%corrupt == 0 {
			// A lone data byte in the gap between messages: the reader on
			// the other end should fault and resynchronize.
			if _, err := w.Write([]byte{byte(rng.Intn(0x80))}); err != nil {
				return err
			}
		}
		time.Sleep(interval)
	}
	return nil
}
