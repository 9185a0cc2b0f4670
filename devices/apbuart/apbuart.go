// Package apbuart models the board UART: an APB register block in front of
// a host backend. Transmit goes straight to the backend writer; receive is
// fed by the harness through PushRX and drained by guest DATA reads.
package apbuart

import (
	"io"
	"log/slog"

	"noelsim/irq"
)

const (
	RegData   = 0x0 // R: pop RX FIFO; W: transmit when TE is set
	RegStatus = 0x4 // R: DR/TS/TE/OV flags; writes clear OV
	RegCtrl   = 0x8 // R/W: RE/TE/RI enables
	RegScaler = 0xC // R/W: baud scaler, stored only (no simulated time base)

	Size = 0x100

	// STATUS bits
	StatusDR = 1 << 0 // receiver data ready
	StatusTS = 1 << 1 // transmitter shift register empty (always set)
	StatusTE = 1 << 2 // transmitter FIFO empty (always set)
	StatusOV = 1 << 4 // receiver overflow since last STATUS write

	// CTRL bits
	CtrlRE = 1 << 0 // receiver enable
	CtrlTE = 1 << 1 // transmitter enable
	CtrlRI = 1 << 2 // interrupt on received byte

	rxDepth = 64
)

// Device is one UART instance. Unsynchronized; the board serializes access.
type Device struct {
	ctrl   uint32
	scaler uint32
	rx     []byte
	over   bool

	out  io.Writer // TX backend; nil drops transmitted bytes
	line irq.Line
	log  *slog.Logger
}

// New creates a UART transmitting to out (may be nil) and asserting line on
// received data when the guest enables RI.
func New(out io.Writer, line irq.Line, log *slog.Logger) *Device {
	return &Device{out: out, line: line, log: log}
}

func (d *Device) status() uint32 {
	s := uint32(StatusTS | StatusTE)
	if len(d.rx) > 0 {
		s |= StatusDR
	}
	if d.over {
		s |= StatusOV
	}
	return s
}

// Read32 implements mem.Device.
func (d *Device) Read32(offset uint32) uint32 {
	switch offset {
	case RegData:
		if len(d.rx) == 0 {
			return 0
		}
		b := d.rx[0]
		d.rx = d.rx[1:]
		d.log.Debug("uart: rx read", "byte", b)
		return uint32(b)
	case RegStatus:
		return d.status()
	case RegCtrl:
		return d.ctrl
	case RegScaler:
		return d.scaler
	default:
		d.log.Warn("uart: bad read offset", "offset", offset)
		return 0
	}
}

// Write32 implements mem.Device.
func (d *Device) Write32(offset uint32, value uint32) {
	switch offset {
	case RegData:
		if d.ctrl&CtrlTE == 0 {
			d.log.Debug("uart: tx dropped, transmitter disabled", "byte", value&0xFF)
			return
		}
		b := byte(value)
		d.log.Debug("uart: tx", "byte", b)
		if d.out != nil {
			_, _ = d.out.Write([]byte{b})
		}
	case RegStatus:
		d.over = false
	case RegCtrl:
		d.ctrl = value & (CtrlRE | CtrlTE | CtrlRI)
	case RegScaler:
		d.scaler = value & 0xFFF
	default:
		d.log.Warn("uart: bad write offset", "offset", offset, "value", value)
	}
}

// PushRX feeds one byte from the host backend. Bytes arriving while the
// receiver is disabled are dropped; a full FIFO drops the byte and latches
// the overflow flag.
func (d *Device) PushRX(b byte) {
	if d.ctrl&CtrlRE == 0 {
		return
	}
	if len(d.rx) >= rxDepth {
		d.over = true
		d.log.Warn("uart: rx overflow", "byte", b)
		return
	}
	d.rx = append(d.rx, b)
	if d.ctrl&CtrlRI != 0 {
		d.line.Pulse()
	}
}

// Buffered returns the number of received bytes waiting for the guest.
func (d *Device) Buffered() int { return len(d.rx) }

// Reset returns the UART to power-on state: everything disabled, FIFO empty.
func (d *Device) Reset() {
	d.ctrl = 0
	d.scaler = 0
	d.rx = nil
	d.over = false
}
