package nes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user-none/multicore/internal/statebuf"
)

func makeTestINES(mapperNum uint8, prgBanks, chrBanks int, mirrorVertical bool) []byte {
	rom := make([]byte, 16+prgBanks*0x4000+chrBanks*0x2000)
	copy(rom, []byte("NES\x1A"))
	rom[4] = uint8(prgBanks)
	rom[5] = uint8(chrBanks)
	var flags6 uint8
	if mirrorVertical {
		flags6 |= 0x01
	}
	flags6 |= (mapperNum & 0x0F) << 4
	rom[6] = flags6
	rom[7] = mapperNum & 0xF0
	return rom
}

func TestParseINES_RejectsMissingHeader(t *testing.T) {
	_, err := parseINES([]byte{0, 1, 2, 3})
	assert.Error(t, err)
}

func TestParseINES_SelectsNROMForMapperZero(t *testing.T) {
	rom := makeTestINES(0, 2, 1, false)
	m, err := parseINES(rom)
	require.NoError(t, err)
	_, ok := m.(*nromMapper)
	assert.True(t, ok)
}

func TestNROM_ReadPRGMirrorsSingleBank(t *testing.T) {
	rom := makeTestINES(0, 1, 1, false)
	rom[16] = 0x42
	m, err := parseINES(rom)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x42), m.ReadPRG(0x8000))
	assert.Equal(t, uint8(0x42), m.ReadPRG(0xC000))
}

func TestUxROM_BankSwitchSelectsLowWindow(t *testing.T) {
	rom := makeTestINES(2, 4, 0, false)
	rom[16] = 0x11                    // bank 0
	rom[16+0x4000] = 0x22             // bank 1
	rom[16+0x4000*3] = 0x44           // last bank, fixed at $C000
	m, err := parseINES(rom)
	require.NoError(t, err)
	m.WritePRG(0x8000, 1)
	assert.Equal(t, uint8(0x22), m.ReadPRG(0x8000))
	assert.Equal(t, uint8(0x44), m.ReadPRG(0xC000))
}

func TestMMC1_FiveWriteSequenceLoadsControlRegister(t *testing.T) {
	rom := makeTestINES(1, 4, 2, false)
	m, err := parseINES(rom)
	require.NoError(t, err)
	mm := m.(*mmc1Mapper)

	// Load control=0x0E (vertical mirroring, PRG mode 3, 8K CHR mode) across 5 one-bit writes.
	for i, bit := range []uint8{0, 1, 1, 1, 0} {
		_ = i
		m.WritePRG(0x9FFF, bit)
	}
	assert.Equal(t, uint8(0x0E), mm.control)
}

func TestMMC1_ResetBitAbortsInProgressWrite(t *testing.T) {
	rom := makeTestINES(1, 4, 2, false)
	m, err := parseINES(rom)
	require.NoError(t, err)
	mm := m.(*mmc1Mapper)

	m.WritePRG(0x9FFF, 1)
	m.WritePRG(0x9FFF, 0x80) // reset bit set mid-sequence
	assert.Equal(t, uint8(0x10), mm.shift)
	assert.NotZero(t, mm.control&0x0C)
}

func TestMMC3_BankSelectSwapsPRGWindow(t *testing.T) {
	rom := makeTestINES(4, 8, 8, false)
	m, err := parseINES(rom)
	require.NoError(t, err)
	mm := m.(*mmc3Mapper)
	mm.prg[2*0x2000] = 0x77

	m.WritePRG(0x8000, 6) // select register 6
	m.WritePRG(0x8001, 2) // bank 2 into register 6
	assert.Equal(t, uint8(0x77), m.ReadPRG(0x8000))
}

func TestMMC3_IRQFiresAfterCounterReachesZero(t *testing.T) {
	rom := makeTestINES(4, 8, 8, false)
	m, err := parseINES(rom)
	require.NoError(t, err)
	mm := m.(*mmc3Mapper)

	m.WritePRG(0xC000, 1) // irq latch = 1
	m.WritePRG(0xC001, 0) // reload flag
	m.WritePRG(0xE001, 0) // enable IRQ

	mm.Clock(100, 260, true)
	mm.Clock(100, 260, true)
	assert.True(t, mm.IRQPending())
}

func TestUxROM_SerializeStateRoundTripsBankRegisterAndCHRRAM(t *testing.T) {
	rom := makeTestINES(2, 4, 0, false)
	m, err := parseINES(rom)
	require.NoError(t, err)
	mm := m.(*uxromMapper)
	m.WritePRG(0x8000, 3)
	m.WriteCHR(0x0010, 0x9A)

	w := statebuf.NewWriter()
	m.SerializeState(w)

	mm2 := &uxromMapper{romBanks: romBanks{prg: mm.prg, chr: make([]byte, len(mm.chr)), chrIsRAM: mm.chrIsRAM}}
	mm2.DeserializeState(statebuf.NewReader(w.Bytes()))

	assert.Equal(t, mm.prgBank, mm2.prgBank)
	assert.Equal(t, mm.chr, mm2.chr)
}

func TestMMC1_SerializeStateRoundTripsShiftRegisterAndBanks(t *testing.T) {
	rom := makeTestINES(1, 4, 2, false)
	m, err := parseINES(rom)
	require.NoError(t, err)
	mm := m.(*mmc1Mapper)
	m.WritePRG(0x9FFF, 1)

	w := statebuf.NewWriter()
	m.SerializeState(w)

	mm2 := newMMC1(romBanks{prg: mm.prg, chr: mm.chr, chrIsRAM: mm.chrIsRAM})
	mm2.DeserializeState(statebuf.NewReader(w.Bytes()))

	assert.Equal(t, mm.shift, mm2.shift)
	assert.Equal(t, mm.control, mm2.control)
}

func TestMirrorAddr_HorizontalFoldsTopTwoNametablesTogether(t *testing.T) {
	a := mirrorAddr(0x2000, MirrorHorizontal)
	b := mirrorAddr(0x2400, MirrorHorizontal)
	assert.Equal(t, a, b)
}

func TestMirrorAddr_VerticalFoldsLeftRightTogether(t *testing.T) {
	a := mirrorAddr(0x2000, MirrorVertical)
	b := mirrorAddr(0x2800, MirrorVertical)
	assert.Equal(t, a, b)
}
