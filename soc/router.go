package soc

import (
	"log/slog"

	"noelsim/bus"
	"noelsim/devices/grgpio"
	"noelsim/irq"
)

// Router is the board-side consumer of GPIO events. It owns the loopback
// and interrupt wiring for its SoC instance; nothing here is process
// global, so boards can coexist with different wirings.
//
// For every output edge it logs an observability record, publishes the
// retained pin level on the telemetry bus, forwards to an interrupt source
// when the board wires one, and feeds configured loopbacks back into the
// GPIO input path. Direction changes are logged and published only; they
// never propagate further.
type Router struct {
	log  *slog.Logger
	conn *bus.Connection
	sink irq.Sink

	loopback map[int]int // output pin -> input pin
	irqMap   map[int]int // output pin -> interrupt source

	// gpio is set by the SoC after device construction; the router holds
	// a non-owning reference for the loopback input path.
	gpio *grgpio.Device
}

func newRouter(cfg *Config, conn *bus.Connection, sink irq.Sink, log *slog.Logger) *Router {
	if sink == nil {
		sink = irq.Discard
	}
	return &Router{
		log:      log,
		conn:     conn,
		sink:     sink,
		loopback: cfg.Loopback,
		irqMap:   cfg.GPIOIRQ,
	}
}

// PinChanged implements grgpio.Events. Called synchronously from the GPIO
// write path; the loopback below re-enters the device, which tolerates it
// because its registers are committed before events fire.
func (r *Router) PinChanged(pin int, level bool) {
	r.log.Info("soc: gpio output", "pin", pin, "level", level)
	r.conn.Publish(&bus.Record{Topic: bus.T("gpio", pin, "out"), Payload: level, Retained: true})

	if src, ok := r.irqMap[pin]; ok {
		r.sink.Set(src, level)
	}
	if in, ok := r.loopback[pin]; ok {
		r.conn.Publish(&bus.Record{Topic: bus.T("gpio", pin, "loopback"), Payload: level})
		r.gpio.SetInput(in, level)
	}
}

// DirChanged implements grgpio.Events.
func (r *Router) DirChanged(pin int, output bool) {
	r.log.Info("soc: gpio direction", "pin", pin, "output", output)
	r.conn.Publish(&bus.Record{Topic: bus.T("gpio", pin, "dir"), Payload: output, Retained: true})
}
