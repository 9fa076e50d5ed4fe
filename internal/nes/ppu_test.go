package nes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVRAM struct {
	chr       [0x2000]uint8
	nametable [0x1000]uint8
}

func (f *fakeVRAM) ReadCHR(addr uint16) uint8 {
	if addr < 0x2000 {
		return f.chr[addr]
	}
	return f.nametable[addr-0x2000]
}
func (f *fakeVRAM) WriteCHR(addr uint16, val uint8) {
	if addr < 0x2000 {
		f.chr[addr] = val
		return
	}
	f.nametable[addr-0x2000] = val
}
func (f *fakeVRAM) MirrorNametable(addr uint16) uint16 {
	return 0x2000 + mirrorAddr(addr, MirrorHorizontal)
}

func newTestPPU() (*PPU, *fakeVRAM) {
	p := NewPPU()
	v := &fakeVRAM{}
	p.AttachVRAM(v)
	return p, v
}

func TestPPU_WriteControlSetsNametableBitsInTempAddr(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0, 0x03)
	assert.Equal(t, uint16(0x0C00), p.TempAddr()&0x0C00)
}

func TestPPU_AddressWriteTwoStepLatchesVRAMAddr(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(6, 0x21)
	p.WriteRegister(6, 0x08)
	assert.Equal(t, uint16(0x2108), p.VRAMAddr())
}

func TestPPU_DataReadIsBufferedForNonPaletteAddresses(t *testing.T) {
	p, v := newTestPPU()
	v.nametable[0x108] = 0x55
	p.WriteRegister(6, 0x21)
	p.WriteRegister(6, 0x08)
	first := p.ReadRegister(7)
	assert.NotEqual(t, uint8(0x55), first, "first read returns the stale buffer, not the fresh fetch")
	second := p.ReadRegister(7)
	assert.Equal(t, uint8(0x55), second)
}

func TestPPU_PaletteWriteReadRoundTrip(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(6, 0x3F)
	p.WriteRegister(6, 0x01)
	p.WriteRegister(7, 0x16)
	assert.Equal(t, uint8(0x16), p.PaletteRAM()[1])
}

func TestPPU_StatusReadClearsVBlankAndResetsWriteLatch(t *testing.T) {
	p, _ := newTestPPU()
	p.status = 0x80
	p.writeLatch = true
	v := p.ReadRegister(2)
	assert.NotZero(t, v&0x80)
	assert.Zero(t, p.status&0x80)
	assert.False(t, p.writeLatch)
}

func TestPPU_StepSetsVBlankAtScanline241Cycle1(t *testing.T) {
	p, _ := newTestPPU()
	p.scanline = 241
	p.cycle = 0
	p.Step()
	assert.NotZero(t, p.status&0x80)
	assert.True(t, p.nmiOccurred)
}

func TestPPU_FrameCompletesAfterFullScanlineSweep(t *testing.T) {
	p, _ := newTestPPU()
	done := false
	for i := 0; i < 400000 && !done; i++ {
		done = p.Step()
	}
	require.True(t, done)
	assert.Equal(t, 0, p.scanline)
}

func TestPPU_OAMWriteReadRoundTrip(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(3, 0x10)
	p.WriteRegister(4, 0x99)
	assert.Equal(t, uint8(0x99), p.OAM()[0x10])
}
