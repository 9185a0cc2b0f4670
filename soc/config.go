package soc

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"noelsim/devices/gptimer"
	"noelsim/devices/grgpio"
	"noelsim/errcode"
)

// UARTConfig selects the host backend behind the emulated UART.
type UARTConfig struct {
	Backend string `yaml:"backend"` // "none", "stdio" or "serial"
	Device  string `yaml:"device"`  // host serial device for "serial"
	Baud    int    `yaml:"baud"`
}

// LogConfig mirrors x/logx.Options in board-file form.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Config is the board description. The loopback and interrupt maps are
// data, not code: alternate boards swap them without touching the router.
type Config struct {
	PinCount int    `yaml:"pin_count"`
	RAMSize  uint32 `yaml:"ram_size"`
	Timers   int    `yaml:"timers"`

	// Loopback maps an output pin to the input pin its level feeds back
	// into. The reference board jumpers pin 22 onto itself.
	Loopback map[int]int `yaml:"loopback"`

	// GPIOIRQ maps an output pin to an interrupt source. Empty on the
	// reference board.
	GPIOIRQ map[int]int `yaml:"gpio_irq"`

	UART UARTConfig `yaml:"uart"`
	Log  LogConfig  `yaml:"log"`
}

// DefaultConfig returns the reference board: 32 pins, 16 MiB RAM, two
// subtimers, pin 22 jumpered onto itself, no GPIO interrupt wiring.
func DefaultConfig() Config {
	return Config{
		PinCount: grgpio.MaxPins,
		RAMSize:  0x1000000,
		Timers:   2,
		Loopback: map[int]int{22: 22},
		UART:     UARTConfig{Backend: "stdio", Baud: 115200},
		Log:      LogConfig{Level: "info", Format: "text", Output: "stderr"},
	}
}

// Validate rejects configurations the board cannot be built from.
func (c *Config) Validate() error {
	if c.PinCount <= 0 || c.PinCount > grgpio.MaxPins {
		return &errcode.E{C: errcode.BadPinCount, Op: "soc.Config"}
	}
	if c.RAMSize == 0 || c.RAMSize%4 != 0 {
		return &errcode.E{C: errcode.BadRAMSize, Op: "soc.Config"}
	}
	if c.Timers < 0 || c.Timers > gptimer.MaxTimers {
		return &errcode.E{C: errcode.Error, Op: "soc.Config", Msg: "timer count out of range"}
	}
	for out, in := range c.Loopback {
		if !c.pinOK(out) || !c.pinOK(in) {
			return &errcode.E{C: errcode.PinOutOfRange, Op: "soc.Config", Msg: "loopback"}
		}
	}
	for pin := range c.GPIOIRQ {
		if !c.pinOK(pin) {
			return &errcode.E{C: errcode.PinOutOfRange, Op: "soc.Config", Msg: "gpio_irq"}
		}
	}
	switch c.UART.Backend {
	case "", "none", "stdio", "serial":
	default:
		return &errcode.E{C: errcode.BadBackend, Op: "soc.Config", Msg: c.UART.Backend}
	}
	return nil
}

func (c *Config) pinOK(pin int) bool { return pin >= 0 && pin < c.PinCount }

// LoadConfig reads a YAML board file over the defaults, so a file only
// states what it changes.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read board file %s", path)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse board file %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid board file %s", path)
	}
	return cfg, nil
}
