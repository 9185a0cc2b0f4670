// Package gptimer models the board timer unit: a shared prescaler feeding
// N down-counting subtimers, each with its own interrupt source. The
// emulator has no internal time base; the harness advances the unit
// explicitly through Tick.
package gptimer

import (
	"log/slog"

	"noelsim/irq"
)

const (
	RegScaler       = 0x00 // R/W: prescaler counter
	RegScalerReload = 0x04 // R/W: prescaler reload
	RegConfig       = 0x08 // R: subtimer count

	// Per-subtimer register blocks start at 0x10, stride 0x10.
	timerBase   = 0x10
	timerStride = 0x10
	regCounter  = 0x0
	regReload   = 0x4
	regCtrl     = 0x8

	Size = 0x100

	// CTRL bits
	CtrlEN = 1 << 0 // enable
	CtrlRS = 1 << 1 // restart from reload on underflow
	CtrlLD = 1 << 2 // load counter from reload now (write-only, reads 0)
	CtrlIE = 1 << 3 // interrupt enable
	CtrlIP = 1 << 4 // interrupt pending, write 0 to clear

	MaxTimers = 7

	scalerMask = 0xFFFF
)

type subtimer struct {
	counter uint32
	reload  uint32
	ctrl    uint32
	line    irq.Line
}

// Device is one timer unit. Unsynchronized; the board serializes access.
type Device struct {
	scaler       uint32
	scalerReload uint32
	timers       []subtimer
	log          *slog.Logger
}

// New creates a unit with one subtimer per interrupt line (at most
// MaxTimers; extra lines are ignored).
func New(lines []irq.Line, log *slog.Logger) *Device {
	if len(lines) > MaxTimers {
		lines = lines[:MaxTimers]
	}
	d := &Device{log: log, timers: make([]subtimer, len(lines))}
	for i := range d.timers {
		d.timers[i].line = lines[i]
	}
	return d
}

// Timers returns the subtimer count.
func (d *Device) Timers() int { return len(d.timers) }

// decode maps an offset to a subtimer index and register, or (-1, 0).
func (d *Device) decode(offset uint32) (int, uint32) {
	if offset < timerBase {
		return -1, 0
	}
	n := int((offset - timerBase) / timerStride)
	if n >= len(d.timers) {
		return -1, 0
	}
	return n, (offset - timerBase) % timerStride
}

// Read32 implements mem.Device.
func (d *Device) Read32(offset uint32) uint32 {
	switch offset {
	case RegScaler:
		return d.scaler
	case RegScalerReload:
		return d.scalerReload
	case RegConfig:
		return uint32(len(d.timers))
	}
	if n, reg := d.decode(offset); n >= 0 {
		t := &d.timers[n]
		switch reg {
		case regCounter:
			return t.counter
		case regReload:
			return t.reload
		case regCtrl:
			return t.ctrl &^ CtrlLD
		}
	}
	d.log.Warn("gptimer: bad read offset", "offset", offset)
	return 0
}

// Write32 implements mem.Device.
func (d *Device) Write32(offset uint32, value uint32) {
	switch offset {
	case RegScaler:
		d.scaler = value & scalerMask
		return
	case RegScalerReload:
		d.scalerReload = value & scalerMask
		return
	case RegConfig:
		return // read-only, silently ignored
	}
	if n, reg := d.decode(offset); n >= 0 {
		t := &d.timers[n]
		switch reg {
		case regCounter:
			t.counter = value
			return
		case regReload:
			t.reload = value
			return
		case regCtrl:
			t.ctrl = value & (CtrlEN | CtrlRS | CtrlIE | CtrlIP)
			if value&CtrlLD != 0 {
				t.counter = t.reload
			}
			return
		}
	}
	d.log.Warn("gptimer: bad write offset", "offset", offset, "value", value)
}

// Tick advances the unit by cycles prescaler input ticks. Each prescaler
// underflow decrements every enabled subtimer; a subtimer underflow fires
// its interrupt (when IE is set), then restarts or stops per RS.
func (d *Device) Tick(cycles uint32) {
	for ; cycles > 0; cycles-- {
		if d.scaler > 0 {
			d.scaler--
			continue
		}
		d.scaler = d.scalerReload
		for i := range d.timers {
			d.step(&d.timers[i], i)
		}
	}
}

func (d *Device) step(t *subtimer, n int) {
	if t.ctrl&CtrlEN == 0 {
		return
	}
	if t.counter > 0 {
		t.counter--
		return
	}
	// Underflow.
	d.log.Debug("gptimer: underflow", "timer", n)
	if t.ctrl&CtrlIE != 0 {
		t.ctrl |= CtrlIP
		t.line.Pulse()
	}
	if t.ctrl&CtrlRS != 0 {
		t.counter = t.reload
	} else {
		t.ctrl &^= CtrlEN
	}
}

// Reset returns every register to power-on state.
func (d *Device) Reset() {
	d.scaler = 0
	d.scalerReload = 0
	for i := range d.timers {
		line := d.timers[i].line
		d.timers[i] = subtimer{line: line}
	}
}
