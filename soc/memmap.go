package soc

// Reference board memory map. CLINT and PLIC addresses are part of the
// board contract but have no device model here; the interrupt controller
// is consumed through irq.Sink only, and accesses to those windows fall
// through to the unmapped-address diagnostic.
const (
	AddrRAM    = 0x00000000
	AddrCLINT  = 0xE0000000 // reserved, no model
	AddrPLIC   = 0xF8000000 // reserved, no model
	AddrTimer0 = 0xFC000000
	AddrUART0  = 0xFC001000
	AddrGPIO0  = 0xFC083000

	windowSize = 0x1000 // per-device window on the system bus
)

// Board interrupt source map, consumed from the external interrupt
// controller. GPIO-origin sources exist only for pins a board wires up
// through Config.GPIOIRQ; the reference board wires none.
const (
	SrcUART0     = 3
	SrcTimerBase = 4 // one source per subtimer: 4, 5, ...
	SrcGPIOBase  = 8 // pin i maps to SrcGPIOBase+i when wired
)
