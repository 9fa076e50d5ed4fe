package genesis

import "github.com/user-none/multicore/internal/z80core"

// Z80Sub is the Genesis's Z80 sub-processor: its own 8KB RAM, a window
// onto the YM2612's register ports, the PSG write port mirrored at
// $7F11, and a banked 32KB view onto the 68000's address space selected
// through the $6000 bank register, wired the way internal/sms wires the
// SMS's own Z80 (this is the second of the two systems internal/z80core
// was factored out to serve).
type Z80Sub struct {
	ram [0x2000]uint8
	cpu *z80core.CPU

	fm  *FM
	psg *PSG

	bankBit  int
	bankAddr uint32

	mainBus *Bus
}

func NewZ80Sub(fm *FM, psg *PSG) *Z80Sub {
	z := &Z80Sub{fm: fm, psg: psg}
	z.cpu = z80core.New(z, z)
	return z
}

func (z *Z80Sub) AttachMainBus(bus *Bus) { z.mainBus = bus }
func (z *Z80Sub) RAM() []byte            { return z.ram[:] }
func (z *Z80Sub) CPU() *z80core.CPU      { return z.cpu }

func (z *Z80Sub) Reset() {
	z.bankBit = 0
	z.bankAddr = 0
	z.cpu = z80core.New(z, z)
}

// Get/Set implement the z80core.Memory interface the Z80 CPU core reads
// instructions and data through.
func (z *Z80Sub) Get(addr uint16) uint8 {
	switch {
	case addr < 0x2000:
		return z.ram[addr]
	case addr < 0x4000:
		return z.ram[addr&0x1FFF]
	case addr >= 0x4000 && addr < 0x4004:
		if addr&1 == 0 {
			return z.fm.Status()
		}
		return 0xFF
	case addr >= 0x8000:
		if z.mainBus == nil {
			return 0
		}
		full := z.bankAddr | uint32(addr&0x7FFF)
		return z.mainBus.ReadByte(full)
	default:
		return 0xFF
	}
}

func (z *Z80Sub) Set(addr uint16, v uint8) {
	switch {
	case addr < 0x2000:
		z.ram[addr] = v
	case addr < 0x4000:
		z.ram[addr&0x1FFF] = v
	case addr >= 0x4000 && addr < 0x4004:
		if addr&1 == 0 {
			z.fm.SelectRegister(int((addr>>1)&1), v)
		} else {
			z.fm.WriteData(int((addr>>1)&1), v)
		}
	case addr == 0x6000 || addr == 0x6001:
		z.bankAddr = ((z.bankAddr >> 1) | (uint32(v&1) << 23)) & 0xFF8000
		z.bankBit++
	case addr == 0x7F11 || (addr >= 0x7F00 && addr < 0x8000 && addr&1 == 1):
		z.psg.Write(v)
	}
}

// In/Out implement the z80core.IO interface; the sub-CPU's port space is
// unused on real hardware and always reads open-bus 0xFF.
func (z *Z80Sub) In(addr uint8) uint8     { return 0xFF }
func (z *Z80Sub) Out(addr uint8, v uint8) {}
