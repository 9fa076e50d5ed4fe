// Package z80core wraps github.com/koron-go/z80 with accurate per-
// instruction cycle accounting and the documented EI-delay fix, shared by
// both Z80 users in this module: the SMS main CPU (internal/sms) and the
// Genesis Z80 sub-processor (internal/genesis). Grounded on
// user-none-eMkIII/emu/z80.go's CycleZ80.
package z80core

import "github.com/koron-go/z80"

// Memory is the byte-addressable space the wrapped CPU fetches opcodes
// from and writes interrupt-response stack pushes to; both SMS and Genesis
// bus adapters implement it, and it matches koron-go/z80's own Memory
// interface so a Memory can be handed to z80.CPU directly.
type Memory interface {
	Get(addr uint16) uint8
	Set(addr uint16, val uint8)
}

// CPU wraps *z80.CPU, returning real T-state counts from Step and
// reproducing the one-instruction EI interrupt-acceptance delay the
// underlying library omits.
type CPU struct {
	cpu          *z80.CPU
	mem          Memory
	afterEI      bool
	cachedIM1Int *z80.Interrupt
}

// IO is re-exported so callers can build a z80.CPU-compatible IO without
// importing koron-go/z80 directly.
type IO = z80.IO

// New creates a wrapped Z80 driven by mem for opcode fetches, with io
// servicing IN/OUT.
func New(mem Memory, io IO) *CPU {
	return &CPU{
		cpu: &z80.CPU{
			Memory: mem,
			IO:     io,
		},
		mem:          mem,
		cachedIM1Int: z80.IM1Interrupt(),
	}
}

// Raw exposes the underlying *z80.CPU for save-state serialization code
// that needs direct field access (register file, IFF1/IFF2, IM, HALT).
func (c *CPU) Raw() *z80.CPU { return c.cpu }

func (c *CPU) SetInterrupt(i *z80.Interrupt) { c.cpu.Interrupt = i }
func (c *CPU) SetIM1Interrupt()              { c.cpu.Interrupt = c.cachedIM1Int }
func (c *CPU) ClearInterrupt()               { c.cpu.Interrupt = nil }
func (c *CPU) PC() uint16                    { return c.cpu.PC }
func (c *CPU) IFF1() bool                    { return c.cpu.IFF1 }
func (c *CPU) IM() int                       { return c.cpu.IM }

// RegisterState is the flat, byte-exact register file save states capture.
// Every field mirrors one of *z80.CPU's exported registers directly, so a
// save/load round-trip reproduces CPU state exactly (spec.md §6.4).
type RegisterState struct {
	A, F   uint8
	B, C   uint8
	D, E   uint8
	H, L   uint8
	A2, F2 uint8
	B2, C2 uint8
	D2, E2 uint8
	H2, L2 uint8
	IX, IY uint16
	SP, PC uint16
	I, R   uint8
	IFF1   bool
	IFF2   bool
	IM     int
	HALT   bool
}

// Registers snapshots the full register file for SaveState.
func (c *CPU) Registers() RegisterState {
	z := c.cpu
	return RegisterState{
		A: z.A, F: z.F, B: z.B, C: z.C, D: z.D, E: z.E, H: z.H, L: z.L,
		A2: z.A2, F2: z.F2, B2: z.B2, C2: z.C2, D2: z.D2, E2: z.E2, H2: z.H2, L2: z.L2,
		IX: z.IX, IY: z.IY, SP: z.SP, PC: z.PC,
		I: z.I, R: z.R, IFF1: z.IFF1, IFF2: z.IFF2, IM: z.IM, HALT: z.HALT,
	}
}

// SetRegisters restores a full register file for LoadState.
func (c *CPU) SetRegisters(r RegisterState) {
	z := c.cpu
	z.A, z.F, z.B, z.C, z.D, z.E, z.H, z.L = r.A, r.F, r.B, r.C, r.D, r.E, r.H, r.L
	z.A2, z.F2, z.B2, z.C2, z.D2, z.E2, z.H2, z.L2 = r.A2, r.F2, r.B2, r.C2, r.D2, r.E2, r.H2, r.L2
	z.IX, z.IY, z.SP, z.PC = r.IX, r.IY, r.SP, r.PC
	z.I, z.R, z.IFF1, z.IFF2, z.IM, z.HALT = r.I, r.R, r.IFF1, r.IFF2, r.IM, r.HALT
	c.afterEI = false
}

// TriggerNMI services a non-maskable interrupt: edge-triggered,
// unconditional, disables IFF1, and vectors to $0066. Returns the 11
// T-states the response costs (spec.md §4.1).
func (c *CPU) TriggerNMI() int {
	c.cpu.IFF1 = false
	c.cpu.SP--
	c.mem.Set(c.cpu.SP, uint8(c.cpu.PC>>8))
	c.cpu.SP--
	c.mem.Set(c.cpu.SP, uint8(c.cpu.PC&0xFF))
	c.cpu.PC = 0x0066
	c.cpu.HALT = false
	return 11
}

// Step executes one instruction and returns the T-states consumed,
// reproducing the EI-instruction interrupt-acceptance delay documented in
// the Zilog Z80 CPU User Manual (UM0080 p.175): an interrupt pending when
// EI executes is not serviced until after the instruction following EI.
func (c *CPU) Step() int {
	var savedInterrupt *z80.Interrupt
	if c.afterEI && c.cpu.Interrupt != nil {
		savedInterrupt = c.cpu.Interrupt
		c.cpu.Interrupt = nil
	}
	c.afterEI = false

	if c.cpu.Interrupt != nil {
		if c.cpu.HALT {
			c.cpu.HALT = false
			c.cpu.PC++
		}
		if c.cpu.IFF1 {
			c.cpu.Step()
			return 13
		}
	}

	if c.cpu.HALT {
		return 4
	}

	pc := c.cpu.PC
	opcode := c.mem.Get(pc)

	var cycles int
	switch opcode {
	case 0xCB:
		cycles = cbCycles[c.mem.Get(pc+1)]
	case 0xDD:
		cycles = c.prefixedIndexCycles(pc, ddCycles)
	case 0xED:
		cycles = edCycles[c.mem.Get(pc+1)]
	case 0xFD:
		cycles = c.prefixedIndexCycles(pc, fdCycles)
	default:
		cycles = baseCycles[opcode]
	}

	c.cpu.Step()

	if opcode == 0xFB {
		c.afterEI = true
	}

	cycles = c.adjustConditional(opcode, pc, cycles)

	if savedInterrupt != nil {
		c.cpu.Interrupt = savedInterrupt
	}

	return cycles
}

func (c *CPU) prefixedIndexCycles(pc uint16, table [256]int) int {
	op2 := c.mem.Get(pc + 1)
	if op2 == 0xCB {
		op4 := c.mem.Get(pc + 3)
		if op4 >= 0x40 && op4 <= 0x7F {
			return 20
		}
		return 23
	}
	return table[op2]
}

func (c *CPU) adjustConditional(opcode uint8, pcBefore uint16, cycles int) int {
	pcAfter := c.cpu.PC

	switch opcode {
	case 0x20, 0x28, 0x30, 0x38: // JR cc,d
		if pcAfter == pcBefore+2 {
			return 7
		}
		return 12
	case 0xC0, 0xC8, 0xD0, 0xD8, 0xE0, 0xE8, 0xF0, 0xF8: // RET cc
		if pcAfter == pcBefore+1 {
			return 5
		}
		return 11
	case 0xC2, 0xCA, 0xD2, 0xDA, 0xE2, 0xEA, 0xF2, 0xFA: // JP cc,nn
		return 10
	case 0xC4, 0xCC, 0xD4, 0xDC, 0xE4, 0xEC, 0xF4, 0xFC: // CALL cc,nn
		if pcAfter == pcBefore+3 {
			return 10
		}
		return 17
	case 0x10: // DJNZ
		if pcAfter == pcBefore+2 {
			return 8
		}
		return 13
	case 0xED:
		op2 := c.mem.Get(pcBefore + 1)
		switch op2 {
		case 0xB0, 0xB1, 0xB2, 0xB3, 0xB8, 0xB9, 0xBA, 0xBB: // LDIR/CPIR/INIR/OTIR/LDDR/CPDR/INDR/OTDR
			if pcAfter == pcBefore {
				return 21
			}
			return 16
		}
	}
	return cycles
}

// IM1Interrupt builds the maskable-interrupt token used to signal an IM1
// interrupt is pending, re-exported so callers outside this package never
// need to import koron-go/z80 directly.
func IM1Interrupt() *z80.Interrupt { return z80.IM1Interrupt() }
