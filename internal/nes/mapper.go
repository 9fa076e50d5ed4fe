package nes

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/user-none/multicore/internal/statebuf"
)

// Mirroring identifies how the PPU's four logical nametables fold onto its
// two physical 1 KiB banks.
type Mirroring int

const (
	MirrorHorizontal Mirroring = iota
	MirrorVertical
	MirrorSingleLower
	MirrorSingleUpper
	MirrorFourScreen
)

// Mapper is the cartridge bank-switching contract every mapper family
// implements, generalized from sms/mapper.go's single Memory type into a
// Get/Set-shaped interface the NES's split CPU/PPU address spaces require
// two of (CPU-side PRG and PPU-side CHR).
type Mapper interface {
	ReadPRG(addr uint16) uint8
	WritePRG(addr uint16, val uint8)
	ReadCHR(addr uint16) uint8
	WriteCHR(addr uint16, val uint8)
	MirrorNametable(addr uint16) uint16
	// Clock is called once per PPU dot by the bus, letting scanline-IRQ
	// mappers (MMC3) observe rendering without the PPU depending on mappers.
	Clock(scanline, cycle int, renderingEnabled bool)
	IRQPending() bool
	// SerializeState/DeserializeState save and restore every mapper-internal
	// register and CHR-RAM byte a save-state needs to round-trip a
	// bank-switched cartridge byte-identically (spec.md §6.4).
	SerializeState(w *statebuf.Writer)
	DeserializeState(r *statebuf.Reader)
}

// serializeCHR/deserializeCHR dump the cartridge's CHR array only when it
// is RAM; CHR ROM is part of the loaded cartridge image, not runtime state.
func (rb *romBanks) serializeCHR(w *statebuf.Writer) {
	if rb.chrIsRAM {
		w.WriteBytes(rb.chr)
	}
}

func (rb *romBanks) deserializeCHR(r *statebuf.Reader) {
	if rb.chrIsRAM {
		r.ReadInto(rb.chr)
	}
}

func mirrorAddr(addr uint16, m Mirroring) uint16 {
	addr = (addr - 0x2000) & 0x0FFF
	table := addr / 0x0400
	offset := addr % 0x0400
	switch m {
	case MirrorHorizontal:
		return (table/2)*0x0400 + offset
	case MirrorVertical:
		return (table%2)*0x0400 + offset
	case MirrorSingleLower:
		return offset
	case MirrorSingleUpper:
		return 0x0400 + offset
	default: // four-screen: identity, backed by the console's CIRAM plus the
		// cartridge's onboard 2 KiB extension (not cartridge CHR RAM/ROM)
		return addr
	}
}

type romBanks struct {
	prg []uint8
	chr []uint8
	chrIsRAM bool
}

func splitROM(prg, chr []uint8) romBanks {
	rb := romBanks{prg: prg, chr: chr}
	if len(chr) == 0 {
		rb.chr = make([]uint8, 0x2000)
		rb.chrIsRAM = true
	}
	return rb
}

// nromMapper is iNES mapper 0: up to 32 KiB PRG (mirrored if only 16 KiB)
// and 8 KiB fixed CHR, the simplest cartridge wiring, grounded on
// sms/mapper.go's Sega-mapper fixed-slot-plus-bank-register shape reduced
// to its no-bank-register limit case.
type nromMapper struct {
	romBanks
	mirror Mirroring
}

func newNROM(rb romBanks, mirror Mirroring) *nromMapper { return &nromMapper{romBanks: rb, mirror: mirror} }

func (m *nromMapper) ReadPRG(addr uint16) uint8 {
	off := int(addr-0x8000) % len(m.prg)
	return m.prg[off]
}
func (m *nromMapper) WritePRG(addr uint16, val uint8) {}
func (m *nromMapper) ReadCHR(addr uint16) uint8 {
	if int(addr) < len(m.chr) {
		return m.chr[addr]
	}
	return 0
}
func (m *nromMapper) WriteCHR(addr uint16, val uint8) {
	if m.chrIsRAM && int(addr) < len(m.chr) {
		m.chr[addr] = val
	}
}
func (m *nromMapper) MirrorNametable(addr uint16) uint16 { return mirrorAddr(addr, m.mirror) }
func (m *nromMapper) Clock(int, int, bool)               {}
func (m *nromMapper) IRQPending() bool                   { return false }

func (m *nromMapper) SerializeState(w *statebuf.Writer)   { m.serializeCHR(w) }
func (m *nromMapper) DeserializeState(r *statebuf.Reader) { m.deserializeCHR(r) }

// uxromMapper is mapper 2: 16 KiB switchable PRG bank at $8000, 16 KiB
// fixed to the last bank at $C000, CHR is always RAM.
type uxromMapper struct {
	romBanks
	mirror  Mirroring
	prgBank uint8
}

func newUxROM(rb romBanks, mirror Mirroring) *uxromMapper { return &uxromMapper{romBanks: rb, mirror: mirror} }

func (m *uxromMapper) ReadPRG(addr uint16) uint8 {
	if addr < 0xC000 {
		bank := int(m.prgBank) * 0x4000
		return m.prg[bank+int(addr-0x8000)]
	}
	lastBank := len(m.prg) - 0x4000
	return m.prg[lastBank+int(addr-0xC000)]
}
func (m *uxromMapper) WritePRG(addr uint16, val uint8) { m.prgBank = val }
func (m *uxromMapper) ReadCHR(addr uint16) uint8 {
	if int(addr) < len(m.chr) {
		return m.chr[addr]
	}
	return 0
}
func (m *uxromMapper) WriteCHR(addr uint16, val uint8) {
	if int(addr) < len(m.chr) {
		m.chr[addr] = val
	}
}
func (m *uxromMapper) MirrorNametable(addr uint16) uint16 { return mirrorAddr(addr, m.mirror) }
func (m *uxromMapper) Clock(int, int, bool)               {}
func (m *uxromMapper) IRQPending() bool                   { return false }

func (m *uxromMapper) SerializeState(w *statebuf.Writer) {
	w.WriteUint8(m.prgBank)
	m.serializeCHR(w)
}

func (m *uxromMapper) DeserializeState(r *statebuf.Reader) {
	m.prgBank = r.ReadUint8()
	m.deserializeCHR(r)
}

// axromMapper is mapper 7: 32 KiB switchable PRG bank, single-screen
// nametable mirroring selected by the same write.
type axromMapper struct {
	romBanks
	prgBank uint8
	mirror  Mirroring
}

func newAxROM(rb romBanks) *axromMapper { return &axromMapper{romBanks: rb} }

func (m *axromMapper) ReadPRG(addr uint16) uint8 {
	bank := int(m.prgBank) * 0x8000
	return m.prg[bank+int(addr-0x8000)]
}
func (m *axromMapper) WritePRG(addr uint16, val uint8) {
	m.prgBank = val & 0x07
	if val&0x10 != 0 {
		m.mirror = MirrorSingleUpper
	} else {
		m.mirror = MirrorSingleLower
	}
}
func (m *axromMapper) ReadCHR(addr uint16) uint8 {
	if int(addr) < len(m.chr) {
		return m.chr[addr]
	}
	return 0
}
func (m *axromMapper) WriteCHR(addr uint16, val uint8) {
	if int(addr) < len(m.chr) {
		m.chr[addr] = val
	}
}
func (m *axromMapper) MirrorNametable(addr uint16) uint16 { return mirrorAddr(addr, m.mirror) }
func (m *axromMapper) Clock(int, int, bool)               {}
func (m *axromMapper) IRQPending() bool                   { return false }

func (m *axromMapper) SerializeState(w *statebuf.Writer) {
	w.WriteUint8(m.prgBank)
	w.WriteUint8(uint8(m.mirror))
	m.serializeCHR(w)
}

func (m *axromMapper) DeserializeState(r *statebuf.Reader) {
	m.prgBank = r.ReadUint8()
	m.mirror = Mirroring(r.ReadUint8())
	m.deserializeCHR(r)
}

// mmc1Mapper is mapper 1: a 5-bit serial shift register (reset by any write
// with bit 7 set) feeding four internal registers that together select
// 16/32 KiB PRG banking, 4/8 KiB CHR banking, and nametable mirroring.
// Bank-to-offset translation is memoized in an LRU cache keyed by (register
// snapshot, 8 KiB address region), holding each region's base offset, the way a real MMC1 emulator avoids recomputing the
// same multiply/mask chain every fetch on a hot path.
type mmc1Mapper struct {
	romBanks
	shift      uint8
	shiftCount uint8

	control uint8
	chrBank0, chrBank1 uint8
	prgBank uint8

	bankCache *lru.Cache[uint32, int]
}

func newMMC1(rb romBanks) *mmc1Mapper {
	cache, _ := lru.New[uint32, int](256)
	return &mmc1Mapper{romBanks: rb, control: 0x0C, shift: 0x10, bankCache: cache}
}

func (m *mmc1Mapper) mirroring() Mirroring {
	switch m.control & 0x03 {
	case 0:
		return MirrorSingleLower
	case 1:
		return MirrorSingleUpper
	case 2:
		return MirrorVertical
	default:
		return MirrorHorizontal
	}
}

func (m *mmc1Mapper) prgMode() uint8 { return (m.control >> 2) & 0x03 }
func (m *mmc1Mapper) chr4KMode() bool { return m.control&0x10 != 0 }

func (m *mmc1Mapper) cacheKey(addr uint16) uint32 {
	return uint32(m.control)<<24 | uint32(m.chrBank0)<<18 | uint32(m.chrBank1)<<12 | uint32(m.prgBank)<<6 | uint32(addr>>13)
}

func (m *mmc1Mapper) prgOffset(addr uint16) int {
	key := m.cacheKey(addr)
	within := int(addr & 0x1FFF)
	if base, ok := m.bankCache.Get(key); ok {
		return base + within
	}
	addr &^= 0x1FFF
	prgBankSize := 0x4000
	var off int
	switch m.prgMode() {
	case 0, 1:
		bank := int(m.prgBank&0x0E) * prgBankSize
		off = bank + int(addr-0x8000)
	case 2:
		if addr < 0xC000 {
			off = int(addr - 0x8000)
		} else {
			off = int(m.prgBank)*prgBankSize + int(addr-0xC000)
		}
	default: // 3
		if addr < 0xC000 {
			off = int(m.prgBank)*prgBankSize + int(addr-0x8000)
		} else {
			off = len(m.prg) - prgBankSize + int(addr-0xC000)
		}
	}
	off %= len(m.prg)
	m.bankCache.Add(key, off)
	return off + within
}

func (m *mmc1Mapper) ReadPRG(addr uint16) uint8 { return m.prg[m.prgOffset(addr)] }

func (m *mmc1Mapper) WritePRG(addr uint16, val uint8) {
	if val&0x80 != 0 {
		m.shift = 0x10
		m.control |= 0x0C
		return
	}
	complete := m.shift&0x01 != 0
	m.shift = (m.shift >> 1) | ((val & 0x01) << 4)
	if !complete {
		return
	}
	value := m.shift
	m.shift = 0x10

	switch {
	case addr < 0xA000:
		m.control = value
	case addr < 0xC000:
		m.chrBank0 = value
	case addr < 0xE000:
		m.chrBank1 = value
	default:
		m.prgBank = value & 0x0F
	}
}

func (m *mmc1Mapper) chrOffset(addr uint16) int {
	bankSize := 0x1000
	if m.chr4KMode() {
		if addr < 0x1000 {
			return int(m.chrBank0)*bankSize + int(addr)
		}
		return int(m.chrBank1)*bankSize + int(addr-0x1000)
	}
	bank := int(m.chrBank0 &^ 0x01)
	return bank*bankSize + int(addr)
}

func (m *mmc1Mapper) ReadCHR(addr uint16) uint8 {
	off := m.chrOffset(addr) % len(m.chr)
	if off < 0 {
		off += len(m.chr)
	}
	return m.chr[off]
}
func (m *mmc1Mapper) WriteCHR(addr uint16, val uint8) {
	if !m.chrIsRAM {
		return
	}
	off := m.chrOffset(addr) % len(m.chr)
	if off < 0 {
		off += len(m.chr)
	}
	m.chr[off] = val
}
func (m *mmc1Mapper) MirrorNametable(addr uint16) uint16 { return mirrorAddr(addr, m.mirroring()) }
func (m *mmc1Mapper) Clock(int, int, bool)               {}
func (m *mmc1Mapper) IRQPending() bool                   { return false }

// SerializeState skips bankCache: it is a pure memoization of
// cacheKey->offset math, not state, and repopulates itself on first access
// after a load.
func (m *mmc1Mapper) SerializeState(w *statebuf.Writer) {
	w.WriteUint8(m.shift)
	w.WriteUint8(m.shiftCount)
	w.WriteUint8(m.control)
	w.WriteUint8(m.chrBank0)
	w.WriteUint8(m.chrBank1)
	w.WriteUint8(m.prgBank)
	m.serializeCHR(w)
}

func (m *mmc1Mapper) DeserializeState(r *statebuf.Reader) {
	m.shift = r.ReadUint8()
	m.shiftCount = r.ReadUint8()
	m.control = r.ReadUint8()
	m.chrBank0 = r.ReadUint8()
	m.chrBank1 = r.ReadUint8()
	m.prgBank = r.ReadUint8()
	m.deserializeCHR(r)
	m.bankCache.Purge()
}

// mmc3Mapper is mapper 4: six swappable CHR banks (two 2 KiB, four 1 KiB), two swappable
// 8 KiB PRG banks plus two fixed, and a scanline counter clocked once per
// visible scanline (standing in for the PPU's A12 line transitions) that drives a one-shot IRQ — wired here
// through the mapper's Clock hook rather than coupling the PPU to mapper
// internals directly.
type mmc3Mapper struct {
	romBanks
	bankSelect  uint8
	bankRegs    [8]uint8
	mirror      Mirroring
	prgRAMEnable bool

	irqLatch   uint8
	irqCounter uint8
	irqReload  bool
	irqEnabled bool
	irqPending bool

	lastA12 bool
}

func newMMC3(rb romBanks) *mmc3Mapper { return &mmc3Mapper{romBanks: rb} }

func (m *mmc3Mapper) prgBankCount() int { return len(m.prg) / 0x2000 }

func (m *mmc3Mapper) ReadPRG(addr uint16) uint8 {
	bank := int(addr-0x8000) / 0x2000
	offset := int(addr) % 0x2000
	swapMode := m.bankSelect&0x40 != 0
	var reg int
	switch bank {
	case 0:
		if swapMode {
			reg = m.prgBankCount() - 2
		} else {
			reg = int(m.bankRegs[6])
		}
	case 1:
		reg = int(m.bankRegs[7])
	case 2:
		if swapMode {
			reg = int(m.bankRegs[6])
		} else {
			reg = m.prgBankCount() - 2
		}
	default:
		reg = m.prgBankCount() - 1
	}
	return m.prg[(reg%m.prgBankCount())*0x2000+offset]
}

func (m *mmc3Mapper) WritePRG(addr uint16, val uint8) {
	even := addr%2 == 0
	switch {
	case addr < 0xA000:
		if even {
			m.bankSelect = val
		} else {
			m.bankRegs[m.bankSelect&0x07] = val
		}
	case addr < 0xC000:
		if even {
			if val&0x01 != 0 {
				m.mirror = MirrorHorizontal
			} else {
				m.mirror = MirrorVertical
			}
		}
	case addr < 0xE000:
		if even {
			m.irqLatch = val
		} else {
			m.irqReload = true
		}
	default:
		if even {
			m.irqEnabled = false
			m.irqPending = false
		} else {
			m.irqEnabled = true
		}
	}
}

func (m *mmc3Mapper) chrBankSize(reg int) int {
	if reg < 2 {
		return 0x0800
	}
	return 0x0400
}

func (m *mmc3Mapper) ReadCHR(addr uint16) uint8 {
	off, ok := m.chrOffset(addr)
	if !ok {
		return 0
	}
	return m.chr[off]
}
func (m *mmc3Mapper) WriteCHR(addr uint16, val uint8) {
	if !m.chrIsRAM {
		return
	}
	if off, ok := m.chrOffset(addr); ok {
		m.chr[off] = val
	}
}

func (m *mmc3Mapper) chrOffset(addr uint16) (int, bool) {
	invert := m.bankSelect&0x80 != 0
	region := addr / 0x0400
	if invert {
		region ^= 0x04
	}
	var reg, within int
	switch region {
	case 0, 1:
		reg, within = 0, int(addr)%0x0800
	case 2, 3:
		reg, within = 1, int(addr-0x0800)%0x0800
	case 4:
		reg, within = 2, int(addr-0x1000)
	case 5:
		reg, within = 3, int(addr-0x1400)
	case 6:
		reg, within = 4, int(addr-0x1800)
	default:
		reg, within = 5, int(addr-0x1C00)
	}
	bankSize := m.chrBankSize(reg)
	bank := int(m.bankRegs[reg])
	if reg < 2 {
		bank &^= 1
	}
	off := bank*0x0400 + within
	if bankSize == 0x0800 {
		off = bank * 0x0400
		off += within
	}
	off %= len(m.chr)
	return off, true
}

func (m *mmc3Mapper) MirrorNametable(addr uint16) uint16 { return mirrorAddr(addr, m.mirror) }

// Clock is driven once per PPU dot; it detects the rising edge on the
// pattern-table address line (A12) that real MMC3 hardware watches,
// approximated here from scanline/cycle rather than the true PPU address
// bus since the PPU doesn't expose per-dot CHR addresses to mappers.
func (m *mmc3Mapper) Clock(scanline, cycle int, renderingEnabled bool) {
	if !renderingEnabled || scanline >= 240 || cycle != 260 {
		return
	}
	if m.irqCounter == 0 || m.irqReload {
		m.irqCounter = m.irqLatch
		m.irqReload = false
	} else {
		m.irqCounter--
	}
	if m.irqCounter == 0 && m.irqEnabled {
		m.irqPending = true
	}
}

func (m *mmc3Mapper) IRQPending() bool { return m.irqPending }

func (m *mmc3Mapper) SerializeState(w *statebuf.Writer) {
	w.WriteUint8(m.bankSelect)
	for _, v := range m.bankRegs {
		w.WriteUint8(v)
	}
	w.WriteUint8(uint8(m.mirror))
	w.WriteBool(m.prgRAMEnable)
	w.WriteUint8(m.irqLatch)
	w.WriteUint8(m.irqCounter)
	w.WriteBool(m.irqReload)
	w.WriteBool(m.irqEnabled)
	w.WriteBool(m.irqPending)
	w.WriteBool(m.lastA12)
	m.serializeCHR(w)
}

func (m *mmc3Mapper) DeserializeState(r *statebuf.Reader) {
	m.bankSelect = r.ReadUint8()
	for i := range m.bankRegs {
		m.bankRegs[i] = r.ReadUint8()
	}
	m.mirror = Mirroring(r.ReadUint8())
	m.prgRAMEnable = r.ReadBool()
	m.irqLatch = r.ReadUint8()
	m.irqCounter = r.ReadUint8()
	m.irqReload = r.ReadBool()
	m.irqEnabled = r.ReadBool()
	m.irqPending = r.ReadBool()
	m.lastA12 = r.ReadBool()
	m.deserializeCHR(r)
}
