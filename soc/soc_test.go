package soc

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"noelsim/bus"
	"noelsim/devices/apbuart"
	"noelsim/devices/grgpio"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type irqEvent struct {
	source int
	level  bool
}

type irqRec struct {
	events []irqEvent
}

func (r *irqRec) Set(source int, level bool) {
	r.events = append(r.events, irqEvent{source, level})
}

func testBoard(t *testing.T, cfg Config) *SoC {
	t.Helper()
	cfg.RAMSize = 0x1000 // keep tests small
	s, err := New(Options{Config: cfg, Log: discardLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestMemoryMapDispatch(t *testing.T) {
	s := testBoard(t, DefaultConfig())

	s.Bus().Write32(AddrGPIO0+grgpio.RegDir, 0x1)
	if got := s.Bus().Read32(AddrGPIO0 + grgpio.RegDir); got != 0x1 {
		t.Fatalf("DIR through bus = %08X", got)
	}
	if !s.PinIsOutput(0) {
		t.Fatal("bus write did not reach the GPIO block")
	}

	s.Bus().Write32(AddrRAM+0x10, 0xCAFE)
	if got := s.Bus().Read32(AddrRAM + 0x10); got != 0xCAFE {
		t.Fatalf("RAM through bus = %08X", got)
	}

	// Reserved interrupt-controller windows have no model.
	if got := s.Bus().Read32(AddrPLIC); got != 0 {
		t.Fatalf("PLIC window read = %08X, want 0", got)
	}
}

func TestLoopbackPin22(t *testing.T) {
	s := testBoard(t, DefaultConfig())

	loops := s.Signals().NewConnection("test").Subscribe(bus.T("gpio", 22, "loopback"))

	s.Bus().Write32(AddrGPIO0+grgpio.RegDir, 1<<22)
	s.Bus().Write32(AddrGPIO0+grgpio.RegOut, 1<<22)

	// The jumper feeds the edge back exactly once; since pin 22 is
	// output-configured the input path ignores it, and nothing recurses.
	if n := len(loops.Channel()); n != 1 {
		t.Fatalf("loopback invoked %d times, want 1", n)
	}
	if !s.PinLevel(22) {
		t.Fatal("pin 22 level lost")
	}

	// Identical rewrite: no edge, no loopback.
	s.Bus().Write32(AddrGPIO0+grgpio.RegOut, 1<<22)
	if n := len(loops.Channel()); n != 1 {
		t.Fatalf("re-write fired the jumper again (%d)", n)
	}
}

func TestLoopbackRewired(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Loopback = map[int]int{3: 9} // alternate board: pin 3 jumpered to pin 9
	s := testBoard(t, cfg)

	s.Bus().Write32(AddrGPIO0+grgpio.RegDir, 1<<3) // pin 9 stays input
	s.Bus().Write32(AddrGPIO0+grgpio.RegOut, 1<<3)

	if !s.PinLevel(9) {
		t.Fatal("rewired loopback did not reach pin 9")
	}
	s.Bus().Write32(AddrGPIO0+grgpio.RegOut, 0)
	if s.PinLevel(9) {
		t.Fatal("falling edge did not propagate to pin 9")
	}
}

func TestGPIOInterruptMap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GPIOIRQ = map[int]int{7: SrcGPIOBase + 7}
	rec := &irqRec{}
	cfg.RAMSize = 0x1000
	s, err := New(Options{Config: cfg, Log: discardLogger(), IRQ: rec})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Bus().Write32(AddrGPIO0+grgpio.RegDir, 1<<7|1<<8)
	s.Bus().Write32(AddrGPIO0+grgpio.RegOut, 1<<7|1<<8) // pin 8 edge is not wired

	if len(rec.events) != 1 || rec.events[0] != (irqEvent{SrcGPIOBase + 7, true}) {
		t.Fatalf("irq events = %+v", rec.events)
	}
	s.Bus().Write32(AddrGPIO0+grgpio.RegOut, 0)
	if rec.events[len(rec.events)-1] != (irqEvent{SrcGPIOBase + 7, false}) {
		t.Fatalf("falling edge not forwarded: %+v", rec.events)
	}
}

func TestDirectionEventsDoNotPropagate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GPIOIRQ = map[int]int{22: SrcGPIOBase + 22}
	rec := &irqRec{}
	cfg.RAMSize = 0x1000
	s, err := New(Options{Config: cfg, Log: discardLogger(), IRQ: rec})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	loops := s.Signals().NewConnection("test").Subscribe(bus.T("gpio", 22, "loopback"))
	s.Bus().Write32(AddrGPIO0+grgpio.RegDir, 1<<22)

	if len(rec.events) != 0 {
		t.Fatalf("direction change raised interrupts: %+v", rec.events)
	}
	if len(loops.Channel()) != 0 {
		t.Fatal("direction change fed the loopback")
	}
	// But it is observable on the telemetry bus.
	if v, ok := s.Signals().Retained(bus.T("gpio", 22, "dir")); !ok || v.(bool) != true {
		t.Fatalf("retained dir record = %v, %v", v, ok)
	}
}

func TestRetainedPinRecords(t *testing.T) {
	s := testBoard(t, DefaultConfig())

	s.Bus().Write32(AddrGPIO0+grgpio.RegDir, 0x1)
	s.Bus().Write32(AddrGPIO0+grgpio.RegOut, 0x1)

	if v, ok := s.Signals().Retained(bus.T("gpio", 0, "out")); !ok || v.(bool) != true {
		t.Fatalf("retained out record = %v, %v", v, ok)
	}
	// Unwired pins have no record.
	if _, ok := s.Signals().Retained(bus.T("gpio", 1, "out")); ok {
		t.Fatal("record for a pin that never changed")
	}
}

func TestDrivePin(t *testing.T) {
	s := testBoard(t, DefaultConfig())

	s.DrivePin(5, true)
	if !s.PinLevel(5) {
		t.Fatal("external drive lost on input pin")
	}
	if got := s.Bus().Read32(AddrGPIO0 + grgpio.RegIn); got != 1<<5 {
		t.Fatalf("IN = %08X", got)
	}

	s.Bus().Write32(AddrGPIO0+grgpio.RegDir, 1<<5)
	s.DrivePin(5, false)
	if !s.PinLevel(5) {
		t.Fatal("external drive overrode an output pin")
	}
}

func TestUARTThroughBus(t *testing.T) {
	var tx bytes.Buffer
	cfg := DefaultConfig()
	cfg.RAMSize = 0x1000
	s, err := New(Options{Config: cfg, Log: discardLogger(), UARTTx: &tx})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Bus().Write32(AddrUART0+apbuart.RegCtrl, apbuart.CtrlTE|apbuart.CtrlRE)
	for _, b := range []byte("hi") {
		s.Bus().Write32(AddrUART0+apbuart.RegData, uint32(b))
	}
	if tx.String() != "hi" {
		t.Fatalf("uart tx = %q", tx.String())
	}

	s.UART().PushRX('!')
	if got := s.Bus().Read32(AddrUART0 + apbuart.RegData); got != '!' {
		t.Fatalf("uart rx = %q", got)
	}
}

func TestUARTInterruptSource(t *testing.T) {
	rec := &irqRec{}
	cfg := DefaultConfig()
	cfg.RAMSize = 0x1000
	s, err := New(Options{Config: cfg, Log: discardLogger(), IRQ: rec})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Bus().Write32(AddrUART0+apbuart.RegCtrl, apbuart.CtrlRE|apbuart.CtrlRI)
	s.UART().PushRX('a')

	if len(rec.events) != 2 || rec.events[0] != (irqEvent{SrcUART0, true}) {
		t.Fatalf("uart irq events = %+v", rec.events)
	}
}

func TestTimerInterruptSources(t *testing.T) {
	rec := &irqRec{}
	cfg := DefaultConfig()
	cfg.RAMSize = 0x1000
	s, err := New(Options{Config: cfg, Log: discardLogger(), IRQ: rec})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Second subtimer, one-shot, immediate underflow.
	base := uint32(AddrTimer0 + 0x10 + 0x10)
	s.Bus().Write32(base+0x8, 0x9) // EN|IE
	s.Timer().Tick(1)

	if len(rec.events) != 2 || rec.events[0] != (irqEvent{SrcTimerBase + 1, true}) {
		t.Fatalf("timer irq events = %+v", rec.events)
	}
}

func TestBoardReset(t *testing.T) {
	s := testBoard(t, DefaultConfig())

	s.Bus().Write32(AddrGPIO0+grgpio.RegDir, 0xFF)
	s.Bus().Write32(AddrGPIO0+grgpio.RegOut, 0xFF)
	s.Bus().Write32(AddrUART0+apbuart.RegCtrl, apbuart.CtrlTE)
	s.Bus().Write32(AddrRAM, 0x1234)

	s.Reset()
	if s.Bus().Read32(AddrGPIO0+grgpio.RegDir) != 0 || s.Bus().Read32(AddrGPIO0+grgpio.RegOut) != 0 {
		t.Fatal("GPIO not reset")
	}
	if s.Bus().Read32(AddrUART0+apbuart.RegCtrl) != 0 {
		t.Fatal("UART not reset")
	}
	// RAM survives reset.
	if s.Bus().Read32(AddrRAM) != 0x1234 {
		t.Fatal("RAM cleared by reset")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PinCount = 64
	if _, err := New(Options{Config: cfg, Log: discardLogger()}); err == nil {
		t.Fatal("bad pin count accepted")
	}
}
