// Package irq models the interrupt plumbing between devices and the
// platform interrupt controller. The controller itself lives outside this
// repository; devices only see a Sink that accepts per-source levels.
package irq

// Sink accepts the level of one interrupt source. Implementations must be
// safe for synchronous, re-entrant calls from device register handlers.
type Sink interface {
	Set(source int, level bool)
}

// Line binds a fixed source number on a Sink, so a device can assert its
// interrupt without knowing its board-assigned source.
type Line struct {
	sink   Sink
	source int
}

// NewLine returns a Line raising source on sink. A nil sink yields a
// disconnected line whose methods are no-ops.
func NewLine(sink Sink, source int) Line {
	return Line{sink: sink, source: source}
}

func (l Line) Source() int { return l.source }

// SetLevel drives the line to level.
func (l Line) SetLevel(level bool) {
	if l.sink == nil {
		return
	}
	l.sink.Set(l.source, level)
}

// Raise asserts the line.
func (l Line) Raise() { l.SetLevel(true) }

// Lower deasserts the line.
func (l Line) Lower() { l.SetLevel(false) }

// Pulse asserts then immediately deasserts the line, the edge-triggered
// hand-off used by the board wiring.
func (l Line) Pulse() {
	if l.sink == nil {
		return
	}
	l.sink.Set(l.source, true)
	l.sink.Set(l.source, false)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(source int, level bool)

func (f SinkFunc) Set(source int, level bool) { f(source, level) }

// Discard is a Sink that drops every assertion, for boards run without an
// interrupt controller attached.
var Discard Sink = SinkFunc(func(int, bool) {})
