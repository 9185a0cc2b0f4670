// Package soc assembles the reference board: system bus, RAM, GPIO block,
// UART, timer unit and the signal router wiring them together. The CPU
// core and the interrupt controller live outside this repository; the
// harness drives the system bus directly and interrupts leave through an
// irq.Sink.
package soc

import (
	"io"
	"log/slog"

	"github.com/pkg/errors"

	"noelsim/bus"
	"noelsim/devices/apbuart"
	"noelsim/devices/gptimer"
	"noelsim/devices/grgpio"
	"noelsim/irq"
	"noelsim/mem"
)

// Options carries the host-side collaborators of a board instance.
type Options struct {
	Config Config
	Log    *slog.Logger // nil: slog.Default()
	IRQ    irq.Sink     // nil: assertions are dropped
	UARTTx io.Writer    // nil: transmitted bytes are dropped
}

// SoC is one assembled board. All register access must be serialized by
// the caller; there is exactly one logical thread of execution.
type SoC struct {
	cfg Config
	log *slog.Logger

	mem    *mem.Bus
	sig    *bus.Bus
	router *Router

	gpio  *grgpio.Device
	uart  *apbuart.Device
	timer *gptimer.Device
}

// New builds the board described by opts.Config.
func New(opts Options) (*SoC, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	s := &SoC{
		cfg: cfg,
		log: log,
		mem: mem.NewBus(log),
		sig: bus.New(16),
	}

	if err := s.mem.MapRAM(AddrRAM, cfg.RAMSize); err != nil {
		return nil, errors.Wrap(err, "map RAM")
	}

	s.router = newRouter(&cfg, s.sig.NewConnection("router"), opts.IRQ, log)

	gpio, err := grgpio.New(cfg.PinCount, s.router, log)
	if err != nil {
		return nil, err
	}
	s.gpio = gpio
	s.router.gpio = gpio
	if err := s.mem.Map("gpio0", AddrGPIO0, windowSize, gpio); err != nil {
		return nil, errors.Wrap(err, "map gpio0")
	}

	s.uart = apbuart.New(opts.UARTTx, irq.NewLine(opts.IRQ, SrcUART0), log)
	if err := s.mem.Map("uart0", AddrUART0, windowSize, s.uart); err != nil {
		return nil, errors.Wrap(err, "map uart0")
	}

	lines := make([]irq.Line, cfg.Timers)
	for i := range lines {
		lines[i] = irq.NewLine(opts.IRQ, SrcTimerBase+i)
	}
	s.timer = gptimer.New(lines, log)
	if err := s.mem.Map("timer0", AddrTimer0, windowSize, s.timer); err != nil {
		return nil, errors.Wrap(err, "map timer0")
	}

	return s, nil
}

// Bus returns the system bus the harness (or a CPU model) drives.
func (s *SoC) Bus() *mem.Bus { return s.mem }

// Signals returns the board telemetry bus.
func (s *SoC) Signals() *bus.Bus { return s.sig }

// UART returns the board UART, for host backends feeding received bytes.
func (s *SoC) UART() *apbuart.Device { return s.uart }

// Timer returns the timer unit, for harnesses advancing simulated cycles.
func (s *SoC) Timer() *gptimer.Device { return s.timer }

// Pins returns the GPIO line count.
func (s *SoC) Pins() int { return s.gpio.Pins() }

// PinLevel reads one GPIO line, the pass-through inspection the board
// exposes to its containing assembly.
func (s *SoC) PinLevel(pin int) bool { return s.gpio.Level(pin) }

// PinIsOutput reports one line's direction.
func (s *SoC) PinIsOutput(pin int) bool { return s.gpio.IsOutput(pin) }

// DrivePin injects an external level onto a GPIO line, as a jumper or test
// harness would. Output-configured lines ignore it.
func (s *SoC) DrivePin(pin int, level bool) { s.gpio.SetInput(pin, level) }

// Reset returns every device to power-on state. RAM contents survive, as
// they do on the reference hardware.
func (s *SoC) Reset() {
	s.gpio.Reset()
	s.uart.Reset()
	s.timer.Reset()
}
