package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/somiandras/midi-merger/internal/config"
	"github.com/somiandras/midi-merger/internal/logging"
	"github.com/somiandras/midi-merger/internal/merge"
	"github.com/somiandras/midi-merger/internal/observability"
	"github.com/somiandras/midi-merger/internal/stream"
	"github.com/somiandras/midi-merger/internal/transport"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to TOML config (defaults apply when empty)")
		inputA     = flag.String("input-a", "", "serial port for source A (overrides config)")
		inputB     = flag.String("input-b", "", "serial port for source B (overrides config)")
		output     = flag.String("output", "", "serial port for merged output (overrides config)")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath, *inputA, *inputB, *output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "midimerged: %v\n", err)
		os.Exit(1)
	}

	log := logging.New("midimerged", cfg.LogLevel)
	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("exit")
		os.Exit(1)
	}
}

func loadConfig(path, inputA, inputB, output string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if inputA != "" {
		cfg.InputA = inputA
	}
	if inputB != "" {
		cfg.InputB = inputB
	}
	if output != "" {
		cfg.Output = output
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	portA, err := transport.Open(cfg.InputA)
	if err != nil {
		return err
	}
	defer portA.Close()

	portB, err := transport.Open(cfg.InputB)
	if err != nil {
		return err
	}
	defer portB.Close()

	// The output may share a device with an input (one UART, RX for a
	// source and TX for the merged stream); reuse the open port rather
	// than opening the tty twice.
	out := portA
	switch cfg.Output {
	case cfg.InputA:
	case cfg.InputB:
		out = portB
	default:
		out, err = transport.Open(cfg.Output)
		if err != nil {
			return err
		}
		defer out.Close()
	}

	log.Info().
		Str("input_a", cfg.InputA).
		Str("input_b", cfg.InputB).
		Str("output", cfg.Output).
		Msg("ports open")

	events := merge.NewChannel()
	engine := merge.NewEngine(events, out, log)
	readerA := stream.NewReader(merge.SourceA, portA, events, log)
	readerB := stream.NewReader(merge.SourceB, portB, events, log)

	if cfg.MetricsAddr != "" {
		go func() {
			if err := observability.ServeMetrics(cfg.MetricsAddr); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics endpoint up")
	}

	var wg sync.WaitGroup
	for _, task := range []func(context.Context) error{
		readerA.Run, readerB.Run, engine.Run,
	} {
		wg.Add(1)
		go func(run func(context.Context) error) {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("task stopped")
			}
		}(task)
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	// Blocking serial reads don't observe ctx; closing the ports unblocks
	// the readers so they can see the cancellation.
	portA.Close()
	portB.Close()
	wg.Wait()
	return ctx.Err()
}
