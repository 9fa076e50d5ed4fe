// Package nes implements the NES core: a hand-written NMOS 6502 with its
// documented undocumented behaviors, a per-pixel PPU, a five-channel APU,
// the common mapper families, and the bus gluing them together, driven in
// lockstep by System. Grounded on user-none-eMkIII/emu's overall
// component shape (bus/CPU/video/audio/mapper, one System aggregate) and
// on _examples/hejops-gone/cpu for 6502 register-file naming conventions,
// generalized into the opcode-dispatch-table style spec.md §3.2 calls for.
package nes

// CPUBus is the byte-addressable space the CPU fetches instructions from
// and performs all memory effects through.
type CPUBus interface {
	Read(addr uint16) uint8
	Write(addr uint16, val uint8)
}

const (
	flagC uint8 = 1 << 0
	flagZ uint8 = 1 << 1
	flagI uint8 = 1 << 2
	flagD uint8 = 1 << 3
	flagB uint8 = 1 << 4
	flagU uint8 = 1 << 5
	flagV uint8 = 1 << 6
	flagN uint8 = 1 << 7
)

const (
	vectorNMI   = 0xFFFA
	vectorReset = 0xFFFC
	vectorIRQ   = 0xFFFE
)

// CPU is the NMOS 6502: six registers (A, X, Y, SP, PC, P), an
// opcode-indexed dispatch table, and the documented undocumented
// behaviors games rely on (RMW double-write, BRK/IRQ vector sharing, the
// no-carry indirect-JMP bug).
type CPU struct {
	A, X, Y uint8
	SP      uint8
	PC      uint16
	P       uint8

	bus CPUBus

	nmiPending bool
	irqLine    bool

	halted bool

	cycles uint64

	// pageCrossed/opAddr/accumMode are scratch state threaded from
	// addressing mode resolution into the executor and cycle accounting for
	// the current instruction; opValue is never set.
	pageCrossed bool
	opAddr      uint16
	opValue     uint8
	accumMode   bool
}

func NewCPU(bus CPUBus) *CPU {
	c := &CPU{bus: bus}
	c.Reset()
	return c
}

// Reset loads PC from the reset vector and sets the post-power-on register
// values (P=0x24: I and the unused bit; B exists only in pushed copies,
// SP=0xFD).
func (c *CPU) Reset() {
	c.A, c.X, c.Y = 0, 0, 0
	c.SP = 0xFD
	c.P = flagU | flagI
	c.PC = c.read16(vectorReset)
	c.nmiPending = false
	c.irqLine = false
	c.halted = false
	c.cycles = 0
}

func (c *CPU) read16(addr uint16) uint16 {
	lo := uint16(c.bus.Read(addr))
	hi := uint16(c.bus.Read(addr + 1))
	return lo | hi<<8
}

// read16Bugged reproduces the indirect-JMP page-boundary bug: when the
// low byte of the pointer is 0xFF, the high byte is fetched from the same
// page instead of crossing into the next one.
func (c *CPU) read16Bugged(addr uint16) uint16 {
	lo := uint16(c.bus.Read(addr))
	var hiAddr uint16
	if addr&0x00FF == 0x00FF {
		hiAddr = addr & 0xFF00
	} else {
		hiAddr = addr + 1
	}
	hi := uint16(c.bus.Read(hiAddr))
	return lo | hi<<8
}

func (c *CPU) push(v uint8) {
	c.bus.Write(0x0100|uint16(c.SP), v)
	c.SP--
}

func (c *CPU) pop() uint8 {
	c.SP++
	return c.bus.Read(0x0100 | uint16(c.SP))
}

func (c *CPU) push16(v uint16) {
	c.push(uint8(v >> 8))
	c.push(uint8(v))
}

func (c *CPU) pop16() uint16 {
	lo := uint16(c.pop())
	hi := uint16(c.pop())
	return lo | hi<<8
}

func (c *CPU) setZN(v uint8) {
	if v == 0 {
		c.P |= flagZ
	} else {
		c.P &^= flagZ
	}
	if v&0x80 != 0 {
		c.P |= flagN
	} else {
		c.P &^= flagN
	}
}

func (c *CPU) setFlag(mask uint8, on bool) {
	if on {
		c.P |= mask
	} else {
		c.P &^= mask
	}
}

func (c *CPU) flag(mask uint8) bool { return c.P&mask != 0 }

// RequestNMI latches a non-maskable interrupt, serviced unconditionally
// before the next instruction fetch.
func (c *CPU) RequestNMI() { c.nmiPending = true }

// SetIRQLine sets the level-triggered IRQ line; the mapper/APU deasserts
// it once its condition clears.
func (c *CPU) SetIRQLine(asserted bool) { c.irqLine = asserted }

func (c *CPU) Halted() bool { return c.halted }

// Step executes one instruction (servicing a pending NMI or asserted,
// unmasked IRQ first) and returns the cycle count consumed.
func (c *CPU) Step() int {
	if c.nmiPending {
		c.nmiPending = false
		return c.serviceInterrupt(vectorNMI, false)
	}
	if c.irqLine && !c.flag(flagI) {
		return c.serviceInterrupt(vectorIRQ, false)
	}

	opcode := c.bus.Read(c.PC)
	c.PC++

	entry := opcodeTable[opcode]
	c.pageCrossed = false
	c.accumMode = entry.mode == modeAccumulator

	if entry.mode != modeImplied && entry.mode != modeAccumulator {
		c.resolveAddress(entry.mode)
	}

	start := c.cycles
	entry.exec(c, entry.mode)

	cycles := entry.cycles + int(c.cycles-start)
	if entry.pageCrossExtra && c.pageCrossed {
		cycles++
	}
	c.cycles = start + uint64(cycles)
	return cycles
}

// serviceInterrupt pushes PC and P (with the documented B-flag handling:
// clear on hardware interrupts, set on BRK) and jumps through vector.
func (c *CPU) serviceInterrupt(vector uint16, brk bool) int {
	c.push16(c.PC)
	flags := c.P | flagU
	if brk {
		flags |= flagB
	} else {
		flags &^= flagB
	}
	c.push(flags)
	c.setFlag(flagI, true)
	c.PC = c.read16(vector)
	return 7
}

type addrMode int

const (
	modeImplied addrMode = iota
	modeAccumulator
	modeImmediate
	modeZeroPage
	modeZeroPageX
	modeZeroPageY
	modeAbsolute
	modeAbsoluteX
	modeAbsoluteY
	modeIndirect
	modeIndirectX
	modeIndirectY
	modeRelative
)

// resolveAddress computes opAddr for every mode except
// implied/accumulator, which the executors special-case; executors fetch
// the operand themselves through readOperand.
func (c *CPU) resolveAddress(mode addrMode) {
	switch mode {
	case modeImmediate:
		c.opAddr = c.PC
		c.PC++
	case modeZeroPage:
		c.opAddr = uint16(c.bus.Read(c.PC))
		c.PC++
	case modeZeroPageX:
		c.opAddr = uint16(c.bus.Read(c.PC) + c.X)
		c.PC++
	case modeZeroPageY:
		c.opAddr = uint16(c.bus.Read(c.PC) + c.Y)
		c.PC++
	case modeAbsolute:
		c.opAddr = c.read16(c.PC)
		c.PC += 2
	case modeAbsoluteX:
		base := c.read16(c.PC)
		c.PC += 2
		c.opAddr = base + uint16(c.X)
		c.pageCrossed = base&0xFF00 != c.opAddr&0xFF00
	case modeAbsoluteY:
		base := c.read16(c.PC)
		c.PC += 2
		c.opAddr = base + uint16(c.Y)
		c.pageCrossed = base&0xFF00 != c.opAddr&0xFF00
	case modeIndirect:
		ptr := c.read16(c.PC)
		c.PC += 2
		c.opAddr = c.read16Bugged(ptr)
	case modeIndirectX:
		zp := c.bus.Read(c.PC) + c.X
		c.PC++
		lo := uint16(c.bus.Read(uint16(zp)))
		hi := uint16(c.bus.Read(uint16(zp + 1)))
		c.opAddr = lo | hi<<8
	case modeIndirectY:
		zp := c.bus.Read(c.PC)
		c.PC++
		lo := uint16(c.bus.Read(uint16(zp)))
		hi := uint16(c.bus.Read(uint16(zp + 1)))
		base := lo | hi<<8
		c.opAddr = base + uint16(c.Y)
		c.pageCrossed = base&0xFF00 != c.opAddr&0xFF00
	case modeRelative:
		offset := int8(c.bus.Read(c.PC))
		c.PC++
		c.opAddr = uint16(int32(c.PC) + int32(offset))
	}
}

func (c *CPU) readOperand() uint8 {
	if c.accumMode {
		return c.A
	}
	return c.bus.Read(c.opAddr)
}

func (c *CPU) writeOperand(v uint8) {
	if c.accumMode {
		c.A = v
		return
	}
	c.bus.Write(c.opAddr, v)
}

// readModifyWrite reproduces the 6502's double-write on RMW instructions:
// the original value is written back unmodified before the new value is
// written, a quirk several games' memory-mapped I/O depend on.
func (c *CPU) readModifyWrite(f func(uint8) uint8) {
	old := c.readOperand()
	c.writeOperand(old)
	c.writeOperand(f(old))
}
