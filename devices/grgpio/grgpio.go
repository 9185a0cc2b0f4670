package grgpio

import (
	"log/slog"

	"noelsim/errcode"
	"noelsim/x/bitx"
)

// Events receives per-pin notifications from the device. Both methods are
// invoked synchronously from the register write path, after the register
// state has been fully recomputed, so a handler may re-enter SetInput (the
// board loopback does) without corrupting the device.
//
// Events fire only on actual bit changes, never on every register write:
// guest code does read-modify-write cycles on the full register and
// unchanged bits must not re-trigger downstream pin actions.
type Events interface {
	// PinChanged reports a level change on an output-configured pin.
	PinChanged(pin int, level bool)
	// DirChanged reports a direction change; output is the new direction.
	DirChanged(pin int, output bool)
}

type nopEvents struct{}

func (nopEvents) PinChanged(int, bool) {}
func (nopEvents) DirChanged(int, bool) {}

// Device is one GPIO block instance. It owns its register state
// exclusively; a multi-threaded host must serialize access per instance.
type Device struct {
	pins int
	mask uint32

	// Register file. value holds the level of every line: sampled levels
	// for inputs, last accepted levels for outputs. Bits above pins are
	// always zero in both fields.
	value uint32
	dir   uint32

	ev  Events
	log *slog.Logger
}

// New creates a zeroed device (all pins input, all low) with the given
// line count. ev may be nil for an unwired block; log must not be nil.
func New(pins int, ev Events, log *slog.Logger) (*Device, error) {
	if pins <= 0 || pins > MaxPins {
		return nil, &errcode.E{C: errcode.BadPinCount, Op: "grgpio.New"}
	}
	if ev == nil {
		ev = nopEvents{}
	}
	return &Device{
		pins: pins,
		mask: bitx.Mask[uint32](pins),
		ev:   ev,
		log:  log,
	}, nil
}

// Pins returns the configured line count.
func (d *Device) Pins() int { return d.pins }

// Value returns the pin-level bitset.
func (d *Device) Value() uint32 { return d.value }

// Dir returns the direction bitset.
func (d *Device) Dir() uint32 { return d.dir }

// Level returns the level of one line.
func (d *Device) Level(pin int) bool { return bitx.Has(d.value, pin) }

// IsOutput reports whether a line is output-configured.
func (d *Device) IsOutput(pin int) bool { return bitx.Has(d.dir, pin) }

// Read32 implements mem.Device. Out-of-range offsets read as zero and log
// a guest-error diagnostic; the access is never fatal.
func (d *Device) Read32(offset uint32) uint32 {
	var v uint32
	switch offset {
	case RegIn, RegOut:
		v = d.value
	case RegDir:
		v = d.dir
	default:
		d.log.Warn("gpio: bad read offset", "offset", offset)
		return 0
	}
	d.log.Debug("gpio: read", "offset", offset, "value", v)
	return v
}

// Write32 implements mem.Device.
//
// OUT updates only output-configured bits; input bits keep their last
// sampled level no matter what the guest wrote. DIR is replaced whole
// (masked to the line count). Register state is committed before any event
// fires, so handlers observe the post-write registers.
func (d *Device) Write32(offset uint32, value uint32) {
	switch offset {
	case RegIn:
		// Read-only alias: accepted and discarded.
		d.log.Debug("gpio: write to IN ignored", "value", value)

	case RegOut:
		old := d.value
		d.value = (old &^ d.dir) | (value & d.dir & d.mask)
		d.log.Debug("gpio: write", "offset", offset, "value", value, "result", d.value)
		changed := old ^ d.value
		for pin := 0; pin < d.pins; pin++ {
			if bitx.Has(changed, pin) {
				d.ev.PinChanged(pin, bitx.Has(d.value, pin))
			}
		}

	case RegDir:
		old := d.dir
		d.dir = value & d.mask
		d.log.Debug("gpio: write", "offset", offset, "value", value, "result", d.dir)
		changed := old ^ d.dir
		for pin := 0; pin < d.pins; pin++ {
			if bitx.Has(changed, pin) {
				d.ev.DirChanged(pin, bitx.Has(d.dir, pin))
			}
		}

	default:
		d.log.Warn("gpio: bad write offset", "offset", offset, "value", value)
	}
}

// SetInput drives one line from the board side. Only input-configured
// lines sample the level; on an output-configured line the call is ignored
// and the output path stays last-writer-wins.
func (d *Device) SetInput(pin int, level bool) {
	if pin < 0 || pin >= d.pins {
		d.log.Warn("gpio: input for pin out of range", "pin", pin)
		return
	}
	if bitx.Has(d.dir, pin) {
		return
	}
	d.log.Debug("gpio: input", "pin", pin, "level", level)
	d.value = bitx.Set(d.value, pin, level)
}

// Reset clears both registers: all pins input, all low. Idempotent and
// callable at any time; emits no events.
func (d *Device) Reset() {
	d.value = 0
	d.dir = 0
}
