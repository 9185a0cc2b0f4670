// Package mem implements the 32-bit little-endian system bus: one RAM
// region plus memory-mapped device regions. Every access is 4 bytes wide,
// matching the register blocks it fronts.
package mem

import (
	"encoding/binary"
	"log/slog"

	"noelsim/errcode"
)

// Device is a memory-mapped register block. Offsets are relative to the
// region base and always 4-byte aligned. Implementations never fail:
// invalid offsets are a guest error, logged by the device, and degrade to
// read-0 / write-ignore.
type Device interface {
	Read32(offset uint32) uint32
	Write32(offset uint32, value uint32)
}

type region struct {
	name string
	base uint32
	size uint32
	dev  Device // nil for the RAM region
}

func (r *region) contains(addr uint32) bool {
	return addr >= r.base && addr-r.base < r.size
}

func (r *region) overlaps(base, size uint32) bool {
	return base < r.base+r.size && r.base < base+size
}

// Bus routes 32-bit accesses to RAM or to mapped devices.
type Bus struct {
	ram     []byte
	ramBase uint32
	regions []region
	log     *slog.Logger
}

// NewBus creates a bus with no regions. log must not be nil.
func NewBus(log *slog.Logger) *Bus {
	return &Bus{log: log}
}

// MapRAM backs [base, base+size) with zeroed RAM. size must be a non-zero
// multiple of 4.
func (b *Bus) MapRAM(base, size uint32) error {
	if size == 0 || size%4 != 0 {
		return &errcode.E{C: errcode.BadRAMSize, Op: "mem.MapRAM"}
	}
	if b.ram != nil {
		return &errcode.E{C: errcode.RegionOverlap, Op: "mem.MapRAM", Msg: "RAM already mapped"}
	}
	if err := b.checkOverlap(base, size); err != nil {
		return err
	}
	b.ram = make([]byte, size)
	b.ramBase = base
	b.regions = append(b.regions, region{name: "ram", base: base, size: size})
	return nil
}

// Map claims [base, base+size) for dev. Overlapping an existing region is
// a board wiring bug and is rejected.
func (b *Bus) Map(name string, base, size uint32, dev Device) error {
	if size == 0 {
		return &errcode.E{C: errcode.RegionEmpty, Op: "mem.Map", Msg: name}
	}
	if err := b.checkOverlap(base, size); err != nil {
		return err
	}
	b.regions = append(b.regions, region{name: name, base: base, size: size, dev: dev})
	return nil
}

func (b *Bus) checkOverlap(base, size uint32) error {
	for i := range b.regions {
		if b.regions[i].overlaps(base, size) {
			return &errcode.E{C: errcode.RegionOverlap, Op: "mem.Map", Msg: b.regions[i].name}
		}
	}
	return nil
}

// find returns the region containing addr, or nil.
func (b *Bus) find(addr uint32) *region {
	for i := range b.regions {
		if b.regions[i].contains(addr) {
			return &b.regions[i]
		}
	}
	return nil
}

// Read32 returns the word at addr. Unmapped addresses read as 0 and log a
// guest-error diagnostic; they are never fatal.
func (b *Bus) Read32(addr uint32) uint32 {
	addr &^= 3 // bus enforces 4-byte alignment
	r := b.find(addr)
	if r == nil {
		b.log.Warn("bus: read from unmapped address", "addr", hex32(addr))
		return 0
	}
	if r.dev == nil {
		off := addr - b.ramBase
		return binary.LittleEndian.Uint32(b.ram[off : off+4])
	}
	return r.dev.Read32(addr - r.base)
}

// Write32 stores value at addr. Unmapped addresses drop the write and log
// a guest-error diagnostic.
func (b *Bus) Write32(addr uint32, value uint32) {
	addr &^= 3
	r := b.find(addr)
	if r == nil {
		b.log.Warn("bus: write to unmapped address", "addr", hex32(addr), "value", hex32(value))
		return
	}
	if r.dev == nil {
		off := addr - b.ramBase
		binary.LittleEndian.PutUint32(b.ram[off:off+4], value)
		return
	}
	r.dev.Write32(addr-r.base, value)
}

// LoadRAM copies a payload into RAM at addr, for boot images and test
// fixtures. Out-of-range loads are truncated.
func (b *Bus) LoadRAM(addr uint32, data []byte) int {
	if b.ram == nil || addr < b.ramBase {
		return 0
	}
	off := addr - b.ramBase
	if off >= uint32(len(b.ram)) {
		return 0
	}
	return copy(b.ram[off:], data)
}

// RAMSize returns the mapped RAM size in bytes.
func (b *Bus) RAMSize() uint32 { return uint32(len(b.ram)) }

const hexd = "0123456789abcdef"

// hex32 formats v as 0x%08x without going through fmt.
func hex32(v uint32) string {
	var buf [10]byte
	buf[0], buf[1] = '0', 'x'
	for i := 9; i >= 2; i-- {
		buf[i] = hexd[v&0xF]
		v >>= 4
	}
	return string(buf[:])
}
