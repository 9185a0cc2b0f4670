package apbuart

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"noelsim/irq"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func irqLine(s irq.Sink) irq.Line {
	if s == nil {
		return irq.Line{}
	}
	return irq.NewLine(s, 3)
}

type sinkRec struct {
	events []bool
}

func (s *sinkRec) Set(source int, level bool) { s.events = append(s.events, level) }

func TestTransmit(t *testing.T) {
	var out bytes.Buffer
	d := New(&out, irqLine(nil), discardLogger())

	d.Write32(RegData, 'x') // transmitter disabled: dropped
	d.Write32(RegCtrl, CtrlTE)
	for _, b := range []byte("ok\n") {
		d.Write32(RegData, uint32(b))
	}
	if out.String() != "ok\n" {
		t.Fatalf("backend got %q", out.String())
	}
}

func TestReceive(t *testing.T) {
	d := New(nil, irqLine(nil), discardLogger())

	d.PushRX('a') // receiver disabled: dropped
	if d.Buffered() != 0 {
		t.Fatal("byte queued while receiver disabled")
	}

	d.Write32(RegCtrl, CtrlRE)
	d.PushRX('a')
	d.PushRX('b')

	if d.Read32(RegStatus)&StatusDR == 0 {
		t.Fatal("DR not set with buffered data")
	}
	if got := d.Read32(RegData); got != 'a' {
		t.Fatalf("first byte = %q", got)
	}
	if got := d.Read32(RegData); got != 'b' {
		t.Fatalf("second byte = %q", got)
	}
	if d.Read32(RegStatus)&StatusDR != 0 {
		t.Fatal("DR still set on empty FIFO")
	}
	if got := d.Read32(RegData); got != 0 {
		t.Fatalf("empty FIFO read = %X, want 0", got)
	}
}

func TestReceiveInterrupt(t *testing.T) {
	rec := &sinkRec{}
	d := New(nil, irqLine(rec), discardLogger())

	d.Write32(RegCtrl, CtrlRE)
	d.PushRX('a')
	if len(rec.events) != 0 {
		t.Fatal("interrupt without RI enabled")
	}

	d.Write32(RegCtrl, CtrlRE|CtrlRI)
	d.PushRX('b')
	if len(rec.events) != 2 || !rec.events[0] || rec.events[1] {
		t.Fatalf("want one pulse (raise+lower), got %v", rec.events)
	}
}

func TestOverflow(t *testing.T) {
	d := New(nil, irqLine(nil), discardLogger())
	d.Write32(RegCtrl, CtrlRE)
	for i := 0; i < rxDepth+3; i++ {
		d.PushRX(byte(i))
	}
	if d.Buffered() != rxDepth {
		t.Fatalf("FIFO depth = %d", d.Buffered())
	}
	if d.Read32(RegStatus)&StatusOV == 0 {
		t.Fatal("overflow flag not latched")
	}
	d.Write32(RegStatus, 0)
	if d.Read32(RegStatus)&StatusOV != 0 {
		t.Fatal("STATUS write did not clear overflow")
	}
}

func TestBadOffsets(t *testing.T) {
	var buf bytes.Buffer
	d := New(nil, irqLine(nil), slog.New(slog.NewTextHandler(&buf, nil)))
	if got := d.Read32(0x20); got != 0 {
		t.Fatalf("bad-offset read = %X", got)
	}
	d.Write32(0x20, 1)
	if buf.Len() == 0 {
		t.Fatal("no diagnostics for bad offsets")
	}
}

func TestReset(t *testing.T) {
	d := New(nil, irqLine(nil), discardLogger())
	d.Write32(RegCtrl, CtrlRE|CtrlTE|CtrlRI)
	d.Write32(RegScaler, 0x123)
	d.PushRX('a')

	d.Reset()
	if d.Read32(RegCtrl) != 0 || d.Read32(RegScaler) != 0 || d.Buffered() != 0 {
		t.Fatal("reset left state behind")
	}
}
