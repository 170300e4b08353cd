package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration. Protocol parameters (baud rate,
// inter-byte timeout, channel capacity) are build-time constants and have
// no entry here.
type Config struct {
	InputA      string `toml:"input_a"`
	InputB      string `toml:"input_b"`
	Output      string `toml:"output"`
	LogLevel    string `toml:"log_level"`
	MetricsAddr string `toml:"metrics_addr"`
}

func Default() Config {
	return Config{
		InputA:   "/dev/ttyAMA0",
		InputB:   "/dev/ttyAMA1",
		Output:   "/dev/ttyAMA0",
		LogLevel: "info",
	}
}

func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.InputA) == "" {
		return fmt.Errorf("config missing input_a")
	}
	if strings.TrimSpace(c.InputB) == "" {
		return fmt.Errorf("config missing input_b")
	}
	if strings.TrimSpace(c.Output) == "" {
		return fmt.Errorf("config missing output")
	}
	if strings.TrimSpace(c.InputA) == strings.TrimSpace(c.InputB) {
		return fmt.Errorf("config input_a and input_b must be distinct ports")
	}
	return nil
}
