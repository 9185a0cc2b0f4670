// Package grgpio models the GR GPIO block: up to 32 digital lines behind
// three memory-mapped registers, with edge-only event emission toward the
// board wiring.
package grgpio

const (
	// Register offsets within the 0x100-byte block. IN and OUT expose the
	// same pin-level bitset; they differ only on the write path.
	RegIn  = 0x000 // R: pin levels; writes accepted and discarded
	RegOut = 0x004 // R: pin levels; W: update output-configured bits only
	RegDir = 0x008 // R/W: per-pin direction, bit set = output

	// Size is the register block footprint on the system bus.
	Size = 0x100

	// MaxPins is the architectural line count; boards may configure fewer.
	MaxPins = 32
)
