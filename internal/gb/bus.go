package gb

// ButtonState is the 8-bit uniform input mask, ordered per spec.md §6.2's
// GB layout: 0=A, 1=B, 2=Select, 3=Start, 4=Right, 5=Left, 6=Up, 7=Down.
type ButtonState uint8

// Bus is the SM83's address space: cartridge ROM/RAM via the active
// Cartridge, 8 KiB work RAM, VRAM/OAM via the PPU, the APU/timer/joypad I/O
// block, and 127 bytes of HRAM, grounded on sms/bus.go's thin-dispatch
// shape (spec.md §4.2 memory bus).
type Bus struct {
	cart Cartridge
	ppu  *PPU
	apu  *APU
	tmr  *Timer

	wram [0x2000]uint8
	hram [0x7F]uint8

	ifReg uint8
	ieReg uint8

	joypSelectButtons bool
	joypSelectDirs    bool
	buttons           ButtonState

	bootDisabled bool

	dmaSource uint8
}

var _ CPUBus = (*Bus)(nil)

func NewBus(cart Cartridge, ppu *PPU, apu *APU, tmr *Timer) *Bus {
	return &Bus{cart: cart, ppu: ppu, apu: apu, tmr: tmr, ifReg: 0xE1}
}

func (b *Bus) IFRegister() *uint8 { return &b.ifReg }
func (b *Bus) IERegister() *uint8 { return &b.ieReg }

func (b *Bus) SetInput(mask ButtonState) { b.buttons = mask }

func (b *Bus) Read(addr uint16) uint8 {
	switch {
	case addr < 0x8000:
		return b.cart.ReadROM(addr)
	case addr < 0xA000:
		return b.ppu.ReadVRAM(addr - 0x8000)
	case addr < 0xC000:
		return b.cart.ReadRAM(addr - 0xA000)
	case addr < 0xE000:
		return b.wram[addr&0x1FFF]
	case addr < 0xFE00:
		return b.wram[(addr-0x2000)&0x1FFF]
	case addr < 0xFEA0:
		return b.ppu.ReadOAM(uint8(addr - 0xFE00))
	case addr < 0xFF00:
		return 0xFF
	case addr == 0xFF00:
		return b.readJoypad()
	case addr == 0xFF04, addr == 0xFF05, addr == 0xFF06, addr == 0xFF07:
		return b.tmr.ReadRegister(addr)
	case addr == 0xFF0F:
		return b.ifReg | 0xE0
	case addr >= 0xFF10 && addr <= 0xFF3F:
		return b.apu.ReadRegister(addr)
	case addr >= 0xFF40 && addr <= 0xFF4B:
		return b.ppu.ReadRegister(addr)
	case addr == 0xFF50:
		if b.bootDisabled {
			return 0x01
		}
		return 0x00
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr == 0xFFFF:
		return b.ieReg
	default:
		return 0xFF
	}
}

func (b *Bus) Write(addr uint16, val uint8) {
	switch {
	case addr < 0x8000:
		b.cart.WriteROM(addr, val)
	case addr < 0xA000:
		b.ppu.WriteVRAM(addr-0x8000, val)
	case addr < 0xC000:
		b.cart.WriteRAM(addr-0xA000, val)
	case addr < 0xE000:
		b.wram[addr&0x1FFF] = val
	case addr < 0xFE00:
		b.wram[(addr-0x2000)&0x1FFF] = val
	case addr < 0xFEA0:
		b.ppu.WriteOAM(uint8(addr-0xFE00), val)
	case addr < 0xFF00:
		// unusable region, writes are dropped
	case addr == 0xFF00:
		b.joypSelectButtons = val&0x20 == 0
		b.joypSelectDirs = val&0x10 == 0
	case addr == 0xFF04, addr == 0xFF05, addr == 0xFF06, addr == 0xFF07:
		b.tmr.WriteRegister(addr, val)
	case addr == 0xFF0F:
		b.ifReg = val & 0x1F
	case addr == 0xFF46:
		b.runOAMDMA(val)
	case addr >= 0xFF10 && addr <= 0xFF3F:
		b.apu.WriteRegister(addr, val)
	case addr >= 0xFF40 && addr <= 0xFF4B:
		b.ppu.WriteRegister(addr, val)
	case addr == 0xFF50:
		b.bootDisabled = val != 0
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = val
	case addr == 0xFFFF:
		b.ieReg = val & 0x1F
	}
}

// readJoypad implements the "direct active-low scan" protocol (spec.md
// §4.7): a 0 bit means the corresponding button is held.
func (b *Bus) readJoypad() uint8 {
	var v uint8 = 0xC0
	if !b.joypSelectButtons {
		v |= 0x20
	}
	if !b.joypSelectDirs {
		v |= 0x10
	}
	nibble := uint8(0x0F)
	if b.joypSelectButtons {
		nibble &^= uint8(b.buttons) & 0x0F
	}
	if b.joypSelectDirs {
		nibble &^= (uint8(b.buttons) >> 4) & 0x0F
	}
	return v | nibble
}

// runOAMDMA copies 160 bytes from val*0x100 into OAM; real hardware takes
// 160 cycles during which only HRAM is CPU-accessible, a restriction this
// core does not enforce (spec.md Non-goals excludes cycle-exact bus
// contention).
func (b *Bus) runOAMDMA(val uint8) {
	b.dmaSource = val
	src := uint16(val) << 8
	buf := make([]uint8, 160)
	for i := range buf {
		buf[i] = b.Read(src + uint16(i))
	}
	b.ppu.DMATransfer(buf)
}

func (b *Bus) WRAM() []byte { return b.wram[:] }
func (b *Bus) HRAM() []byte { return b.hram[:] }
