package nes

// Bus is the NES CPU's address space: 2 KiB internal RAM mirrored four
// times, PPU registers mirrored every 8 bytes through $3FFF, the APU and
// I/O block at $4000-$4017, and cartridge space via the active Mapper,
// grounded on sms/bus.go's thin-adapter shape and genesis/bus.go's
// region-dispatch style for a bus that fans out to more than one chip.
type Bus struct {
	ram [0x0800]uint8

	// ciram is the console-internal nametable RAM (2 KiB, or 4 KiB worth of
	// addressable space for four-screen carts that supply their own extra
	// 2 KiB) — physically inside the NES, never on the cartridge, so it
	// lives on the Bus rather than the Mapper. Addressed 0x2000-based, same
	// contract as the fakeVRAM test double in ppu_test.go.
	ciram [0x1000]uint8

	ppu    *PPU
	apu    *APU
	mapper Mapper

	controller    [2]ControllerState
	controllerShift [2]uint8
	strobe        bool

	cpu *CPU

	dmaStallCycles int
	cycleCount     uint64
}

var _ CPUBus = (*Bus)(nil)
var _ CartridgeVRAM = (*Bus)(nil)

// ControllerState is the 8-bit button mask for one standard NES pad,
// ordered A,B,Select,Start,Up,Down,Left,Right (bit 0 first) per spec.md's
// uniform controller-mask convention.
type ControllerState uint8

func NewBus(ppu *PPU, apu *APU, mapper Mapper) *Bus {
	return &Bus{ppu: ppu, apu: apu, mapper: mapper}
}

func (b *Bus) AttachCPU(cpu *CPU) { b.cpu = cpu }

func (b *Bus) SetController(port int, mask ControllerState) {
	if port >= 0 && port < 2 {
		b.controller[port] = mask
	}
}

func (b *Bus) Read(addr uint16) uint8 {
	switch {
	case addr < 0x2000:
		return b.ram[addr&0x07FF]
	case addr < 0x4000:
		return b.ppu.ReadRegister(uint8(addr & 0x0007))
	case addr == 0x4015:
		return b.apu.ReadStatus()
	case addr == 0x4016:
		return b.readController(0)
	case addr == 0x4017:
		return b.readController(1)
	case addr < 0x4018:
		return 0
	case addr < 0x6000:
		return 0
	default:
		return b.mapper.ReadPRG(addr)
	}
}

func (b *Bus) Write(addr uint16, val uint8) {
	switch {
	case addr < 0x2000:
		b.ram[addr&0x07FF] = val
	case addr < 0x4000:
		b.ppu.WriteRegister(uint8(addr&0x0007), val)
	case addr == 0x4014:
		b.runOAMDMA(val)
		stall := 513
		if b.cycleCount%2 != 0 {
			stall = 514
		}
		b.dmaStallCycles += stall
	case addr == 0x4016:
		b.writeStrobe(val)
	case addr < 0x4018:
		b.apu.WriteRegister(addr, val)
	case addr < 0x6000:
		// unused expansion region
	default:
		b.mapper.WritePRG(addr, val)
	}
}

func (b *Bus) writeStrobe(val uint8) {
	b.strobe = val&0x01 != 0
	if b.strobe {
		b.controllerShift[0] = uint8(b.controller[0])
		b.controllerShift[1] = uint8(b.controller[1])
	}
}

func (b *Bus) readController(port int) uint8 {
	if b.strobe {
		b.controllerShift[port] = uint8(b.controller[port])
	}
	bit := b.controllerShift[port] & 0x01
	b.controllerShift[port] >>= 1
	b.controllerShift[port] |= 0x80
	return 0x40 | bit
}

// runOAMDMA performs the 256-byte $4014 transfer immediately (the CPU stall
// is modeled by System.Step adding the 513/514-cycle cost rather than by
// stretching this loop over real bus cycles).
func (b *Bus) runOAMDMA(page uint8) {
	base := uint16(page) << 8
	oam := b.ppu.OAM()
	start := b.ppu.oamAddr
	for i := 0; i < 256; i++ {
		oam[(uint16(start)+uint16(i))&0xFF] = b.Read(base + uint16(i))
	}
}

// ReadCHR/WriteCHR dispatch pattern-table addresses ($0000-$1FFF) to the
// cartridge's CHR ROM/RAM via the Mapper, and nametable addresses
// ($2000-$2FFF, as folded by MirrorNametable) to this Bus's own CIRAM —
// the NES has no nametable storage on the cartridge side, so these two
// address ranges must never share one backing array.
func (b *Bus) ReadCHR(addr uint16) uint8 {
	if addr < 0x2000 {
		return b.mapper.ReadCHR(addr)
	}
	return b.ciram[addr-0x2000]
}

func (b *Bus) WriteCHR(addr uint16, val uint8) {
	if addr < 0x2000 {
		b.mapper.WriteCHR(addr, val)
		return
	}
	b.ciram[addr-0x2000] = val
}

// MirrorNametable folds a $2000-$2FFF PPU address down into its physical
// CIRAM offset (0x2000-based) per the cartridge's wired mirroring mode.
func (b *Bus) MirrorNametable(addr uint16) uint16 { return 0x2000 + b.mapper.MirrorNametable(addr) }

// CIRAM exposes the raw nametable RAM for save-state serialization.
func (b *Bus) CIRAM() []byte { return b.ciram[:] }

func (b *Bus) RAM() []byte { return b.ram[:] }

// TakeDMAStall returns and clears the CPU-cycle cost accumulated by any
// $4014 writes since the last call: 513 cycles, or 514 when the write lands
// on an odd CPU cycle (spec.md §4.4), per the parity SetCycleCount was last
// given.
func (b *Bus) TakeDMAStall() int {
	n := b.dmaStallCycles
	b.dmaStallCycles = 0
	return n
}

// SetCycleCount records the CPU's running cycle total as of the start of
// the instruction about to execute, so a mid-instruction $4014 write can
// price its OAM-DMA stall by the parity of that count.
func (b *Bus) SetCycleCount(n uint64) { b.cycleCount = n }
