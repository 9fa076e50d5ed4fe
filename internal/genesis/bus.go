package genesis

import (
	m68k "github.com/user-none/go-chip-m68k"
)

// Bus implements m68k.Bus (and the optional m68k.CycleBus) for the
// Genesis's 68000: cartridge ROM, 64KB work RAM mirrored through
// $E00000-$FFFFFF, the VDP port block, the I/O chip, and the Z80
// bus-arbitration window, wired the way user-none-eMkIII/emu/mem.go
// wires the SMS's single flat address space, generalized into the
// segmented regions the Genesis memory map §4.3 describes.
type Bus struct {
	rom     []byte
	sram    []byte
	sramOn  bool
	sramLo  uint32
	sramHi  uint32
	workRAM [0x10000]uint8

	vdp *VDP
	io  *IO

	z80      *Z80Sub
	z80Bus   bool // true when the 68000 holds the bus-request (Z80 halted)
	z80Reset bool
}

var _ m68k.Bus = (*Bus)(nil)

func NewBus(rom []byte, vdp *VDP, io *IO, z80 *Z80Sub) *Bus {
	b := &Bus{rom: rom, vdp: vdp, io: io, z80: z80, z80Reset: true}
	b.detectSRAM()
	return b
}

// detectSRAM reads the "RA" signature at ROM offset 0x1B0 spec.md's header
// section documents, enabling the cartridge SRAM window it describes when
// present.
func (b *Bus) detectSRAM() {
	if len(b.rom) < 0x1C0 {
		return
	}
	if b.rom[0x1B0] == 'R' && b.rom[0x1B1] == 'A' {
		b.sramOn = true
		b.sramLo = uint32(b.rom[0x1B4])<<24 | uint32(b.rom[0x1B5])<<16 | uint32(b.rom[0x1B6])<<8 | uint32(b.rom[0x1B7])
		b.sramHi = uint32(b.rom[0x1B8])<<24 | uint32(b.rom[0x1B9])<<16 | uint32(b.rom[0x1BA])<<8 | uint32(b.rom[0x1BB])
		if b.sramHi < b.sramLo {
			b.sramHi = b.sramLo + 0x7FFF
		}
		b.sram = make([]byte, b.sramHi-b.sramLo+1)
	}
}

func (b *Bus) SRAM() []byte { return b.sram }

func (b *Bus) Reset() {
	b.z80Bus = false
	b.z80Reset = true
}

func (b *Bus) ReadByte(addr uint32) uint8 {
	return uint8(b.Read(m68k.Byte, addr))
}

func (b *Bus) Read(op m68k.Size, addr uint32) uint32 {
	addr &= 0xFFFFFF
	switch {
	case addr < 0x400000:
		return readSized(b.rom, addr, op)
	case b.sramOn && addr >= b.sramLo && addr <= b.sramHi:
		return readSized(b.sram, addr-b.sramLo, op)
	case addr >= 0xA00000 && addr < 0xA02000:
		if !b.z80Bus {
			return 0
		}
		return readSized(b.z80.RAM(), addr&0x1FFF, op)
	case addr == 0xA11100 || addr == 0xA11101:
		if b.z80Bus {
			return 0x0000
		}
		return 0x0100
	case addr >= 0xA10000 && addr < 0xA10020:
		return uint32(b.io.Read(addr))
	case addr >= 0xC00000 && addr < 0xC00010:
		return b.readVDPPort(addr, op)
	case addr >= 0xE00000:
		return readSized(b.workRAM[:], addr&0xFFFF, op)
	default:
		return 0
	}
}

func (b *Bus) Write(op m68k.Size, addr uint32, val uint32) {
	addr &= 0xFFFFFF
	switch {
	case addr < 0x400000:
		// ROM: ignore writes.
	case b.sramOn && addr >= b.sramLo && addr <= b.sramHi:
		writeSized(b.sram, addr-b.sramLo, op, val)
	case addr >= 0xA00000 && addr < 0xA02000:
		if b.z80Bus {
			writeSized(b.z80.RAM(), addr&0x1FFF, op, val)
		}
	case addr == 0xA11100 || addr == 0xA11101:
		b.z80Bus = val&0x0100 != 0
	case addr == 0xA11200 || addr == 0xA11201:
		b.z80Reset = val&0x0100 == 0
		if !b.z80Reset {
			b.z80.Reset()
		}
	case addr >= 0xA10000 && addr < 0xA10020:
		b.io.Write(addr, uint8(val))
	case addr >= 0xC00000 && addr < 0xC00010:
		b.writeVDPPort(addr, op, val)
	case addr >= 0xE00000:
		writeSized(b.workRAM[:], addr&0xFFFF, op, val)
	}
}

func (b *Bus) Z80BusGranted() bool { return b.z80Bus }
func (b *Bus) Z80Halted() bool     { return b.z80Reset }

func (b *Bus) readVDPPort(addr uint32, op m68k.Size) uint32 {
	switch {
	case addr < 0xC00004: // data port
		if op == m68k.Long {
			hi := b.vdp.ReadData()
			lo := b.vdp.ReadData()
			return uint32(hi)<<16 | uint32(lo)
		}
		return uint32(b.vdp.ReadData())
	case addr < 0xC00008: // control port / status register
		return uint32(b.vdp.ReadControl())
	case addr < 0xC0000C: // H/V counter
		return uint32(b.vdp.hCounter&0xFF) | uint32(b.vdp.vCounter&0xFF)<<8
	default:
		return 0
	}
}

func (b *Bus) writeVDPPort(addr uint32, op m68k.Size, val uint32) {
	switch {
	case addr < 0xC00004:
		if op == m68k.Long {
			b.vdp.WriteData(uint16(val >> 16))
			b.vdp.WriteData(uint16(val))
			return
		}
		b.vdp.WriteData(uint16(val))
	case addr < 0xC00008:
		if op == m68k.Long {
			b.vdp.WriteControl(uint16(val >> 16))
			b.vdp.WriteControl(uint16(val))
			return
		}
		b.vdp.WriteControl(uint16(val))
	}
}

func readSized(data []byte, addr uint32, op m68k.Size) uint32 {
	switch op {
	case m68k.Byte:
		if int(addr) >= len(data) {
			return 0
		}
		return uint32(data[addr])
	case m68k.Word:
		if int(addr)+1 >= len(data) {
			return 0
		}
		return uint32(data[addr])<<8 | uint32(data[addr+1])
	default: // Long
		if int(addr)+3 >= len(data) {
			return 0
		}
		return uint32(data[addr])<<24 | uint32(data[addr+1])<<16 | uint32(data[addr+2])<<8 | uint32(data[addr+3])
	}
}

func writeSized(data []byte, addr uint32, op m68k.Size, val uint32) {
	switch op {
	case m68k.Byte:
		if int(addr) < len(data) {
			data[addr] = uint8(val)
		}
	case m68k.Word:
		if int(addr)+1 < len(data) {
			data[addr] = uint8(val >> 8)
			data[addr+1] = uint8(val)
		}
	default: // Long
		if int(addr)+3 < len(data) {
			data[addr] = uint8(val >> 24)
			data[addr+1] = uint8(val >> 16)
			data[addr+2] = uint8(val >> 8)
			data[addr+3] = uint8(val)
		}
	}
}
