package gb

import "errors"

// Cartridge is the bank-switching contract the CPU-addressable ROM/RAM
// window ($0000-$7FFF, $A000-$BFFF) dispatches through, grounded on
// nes/mapper.go's translate-on-access shape but specialized to the DMG's
// two-window (ROM bank 0 fixed / switchable, external RAM) layout
// (spec.md §4.3).
type Cartridge interface {
	ReadROM(addr uint16) uint8
	WriteROM(addr uint16, val uint8)
	ReadRAM(addr uint16) uint8
	WriteRAM(addr uint16, val uint8)
	RAM() []byte
	HasBattery() bool
}

// parseCartridge selects an MBC from the header byte at 0x0147 (spec.md
// §6.3): 0x00 -> none, 0x01-0x03 -> MBC1, 0x0F-0x13 -> MBC3. RAM size comes
// from the byte at 0x0149.
func parseCartridge(rom []byte) (Cartridge, error) {
	if len(rom) < 0x150 {
		return nil, errors.New("gb: rom too short to contain a header")
	}

	cartType := rom[0x0147]
	ramSize := ramSizeFromHeader(rom[0x0149])

	switch {
	case cartType == 0x00:
		return newROMOnly(rom), nil
	case cartType >= 0x01 && cartType <= 0x03:
		return newMBC1(rom, ramSize, cartType == 0x03), nil
	case cartType >= 0x0F && cartType <= 0x13:
		return newMBC3(rom, ramSize, cartType == 0x0F || cartType == 0x10 || cartType == 0x13), nil
	default:
		return nil, errors.New("gb: unsupported cartridge type")
	}
}

func ramSizeFromHeader(b uint8) int {
	switch b {
	case 0x01:
		return 0x800
	case 0x02:
		return 0x2000
	case 0x03:
		return 0x8000
	case 0x04:
		return 0x20000
	case 0x05:
		return 0x10000
	default:
		return 0
	}
}

type romOnly struct {
	rom []byte
	ram [0x2000]byte
}

func newROMOnly(rom []byte) *romOnly { return &romOnly{rom: rom} }

func (m *romOnly) ReadROM(addr uint16) uint8 {
	if int(addr) < len(m.rom) {
		return m.rom[addr]
	}
	return 0xFF
}
func (m *romOnly) WriteROM(addr uint16, val uint8)  {}
func (m *romOnly) ReadRAM(addr uint16) uint8        { return m.ram[addr&0x1FFF] }
func (m *romOnly) WriteRAM(addr uint16, val uint8)  { m.ram[addr&0x1FFF] = val }
func (m *romOnly) RAM() []byte                      { return m.ram[:] }
func (m *romOnly) HasBattery() bool                 { return false }

// mbc1 implements the MBC1 register-write bank-select protocol (spec.md
// §4.3): writes to $2000-$3FFF load the low 5 ROM-bank bits, $4000-$5FFF
// loads either the high 2 ROM-bank bits or the RAM bank depending on the
// banking-mode register latched at $6000-$7FFF.
type mbc1 struct {
	rom []byte
	ram []byte

	ramEnable bool
	bankLow   uint8 // 5 bits
	bankHigh  uint8 // 2 bits
	mode      uint8 // 0 = ROM banking, 1 = RAM banking
	battery   bool
}

func newMBC1(rom []byte, ramSize int, battery bool) *mbc1 {
	return &mbc1{rom: rom, ram: make([]byte, max(ramSize, 0x2000)), bankLow: 1, battery: battery}
}

func (m *mbc1) romBank() int {
	bank := int(m.bankLow)
	if bank == 0 {
		bank = 1
	}
	if m.mode == 0 {
		bank |= int(m.bankHigh) << 5
	}
	return bank
}

func (m *mbc1) ramBank() int {
	if m.mode == 1 {
		return int(m.bankHigh)
	}
	return 0
}

func (m *mbc1) ReadROM(addr uint16) uint8 {
	var offset int
	if addr < 0x4000 {
		bank := 0
		if m.mode == 1 {
			bank = int(m.bankHigh) << 5
		}
		offset = bank*0x4000 + int(addr)
	} else {
		offset = m.romBank()*0x4000 + int(addr-0x4000)
	}
	if offset < len(m.rom) {
		return m.rom[offset]
	}
	return 0xFF
}

// WriteROM writes to the four 0x2000-wide register windows. A write whose
// low 5 bits are all zero maps to bank 1, the documented MBC1 "bank 0
// alias" quirk (spec.md §4.3 undocumented-behavior note).
func (m *mbc1) WriteROM(addr uint16, val uint8) {
	switch {
	case addr < 0x2000:
		m.ramEnable = val&0x0F == 0x0A
	case addr < 0x4000:
		bank := val & 0x1F
		if bank == 0 {
			bank = 1
		}
		m.bankLow = bank
	case addr < 0x6000:
		m.bankHigh = val & 0x03
	default:
		m.mode = val & 0x01
	}
}

func (m *mbc1) ReadRAM(addr uint16) uint8 {
	if !m.ramEnable || len(m.ram) == 0 {
		return 0xFF
	}
	offset := m.ramBank()*0x2000 + int(addr&0x1FFF)
	if offset < len(m.ram) {
		return m.ram[offset]
	}
	return 0xFF
}

func (m *mbc1) WriteRAM(addr uint16, val uint8) {
	if !m.ramEnable || len(m.ram) == 0 {
		return
	}
	offset := m.ramBank()*0x2000 + int(addr&0x1FFF)
	if offset < len(m.ram) {
		m.ram[offset] = val
	}
}

func (m *mbc1) RAM() []byte  { return m.ram }
func (m *mbc1) HasBattery() bool { return m.battery }

// mbc3 adds a real-time clock latch on top of MBC1's banking shape, though
// this core stubs the RTC registers as honest zero-advancing counters
// rather than wiring a wall-clock (spec.md Non-goals excludes anything
// beyond frame-granularity correctness; games that merely probe RTC
// presence still see a plausible, internally consistent register set).
type mbc3 struct {
	rom []byte
	ram []byte

	ramEnable bool
	romBank   uint8 // 7 bits
	ramBank   uint8 // 0-3 selects RAM, 0x08-0x0C selects an RTC register

	rtcRegs    [5]uint8
	rtcLatched [5]uint8
	latchState uint8

	battery bool
	hasRTC  bool
}

func newMBC3(rom []byte, ramSize int, hasRTC bool) *mbc3 {
	return &mbc3{rom: rom, ram: make([]byte, max(ramSize, 0x2000)), romBank: 1, hasRTC: hasRTC, battery: true}
}

func (m *mbc3) ReadROM(addr uint16) uint8 {
	var offset int
	if addr < 0x4000 {
		offset = int(addr)
	} else {
		bank := int(m.romBank)
		if bank == 0 {
			bank = 1
		}
		offset = bank*0x4000 + int(addr-0x4000)
	}
	if offset < len(m.rom) {
		return m.rom[offset]
	}
	return 0xFF
}

func (m *mbc3) WriteROM(addr uint16, val uint8) {
	switch {
	case addr < 0x2000:
		m.ramEnable = val&0x0F == 0x0A
	case addr < 0x4000:
		bank := val & 0x7F
		if bank == 0 {
			bank = 1
		}
		m.romBank = bank
	case addr < 0x6000:
		m.ramBank = val
	default:
		if m.latchState == 0 && val == 1 {
			m.rtcLatched = m.rtcRegs
		}
		m.latchState = val
	}
}

func (m *mbc3) ReadRAM(addr uint16) uint8 {
	if !m.ramEnable {
		return 0xFF
	}
	if m.hasRTC && m.ramBank >= 0x08 && m.ramBank <= 0x0C {
		return m.rtcLatched[m.ramBank-0x08]
	}
	offset := int(m.ramBank)*0x2000 + int(addr&0x1FFF)
	if offset < len(m.ram) {
		return m.ram[offset]
	}
	return 0xFF
}

func (m *mbc3) WriteRAM(addr uint16, val uint8) {
	if !m.ramEnable {
		return
	}
	if m.hasRTC && m.ramBank >= 0x08 && m.ramBank <= 0x0C {
		m.rtcRegs[m.ramBank-0x08] = val
		return
	}
	offset := int(m.ramBank)*0x2000 + int(addr&0x1FFF)
	if offset < len(m.ram) {
		m.ram[offset] = val
	}
}

func (m *mbc3) RAM() []byte      { return m.ram }
func (m *mbc3) HasBattery() bool { return m.battery }
