package gb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPPU_ModeCyclesThroughOAMTransferHBlank(t *testing.T) {
	p := NewPPU()
	assert.Equal(t, uint8(modeOAM), p.Mode())

	p.Tick(cyclesOAM)
	assert.Equal(t, uint8(modeTransfer), p.Mode())

	p.Tick(cyclesTransfer)
	assert.Equal(t, uint8(modeHBlank), p.Mode())

	p.Tick(cyclesHBlank)
	assert.Equal(t, uint8(modeOAM), p.Mode())
	assert.Equal(t, uint8(1), p.LY())
}

func TestPPU_VBlankEntryAtLine144SetsVBlankPending(t *testing.T) {
	p := NewPPU()
	for line := 0; line < ScreenHeight; line++ {
		p.Tick(cyclesScanline)
	}
	assert.Equal(t, uint8(modeVBlank), p.Mode())
	assert.True(t, p.VBlankPending())
	assert.False(t, p.VBlankPending(), "pending flag is one-shot")
}

func TestPPU_FullFrameWrapsLYBackToZero(t *testing.T) {
	p := NewPPU()
	for i := 0; i < totalScanlines; i++ {
		p.Tick(cyclesScanline)
	}
	assert.Equal(t, uint8(0), p.LY())
	assert.Equal(t, uint8(modeOAM), p.Mode())
}

func TestPPU_LYCMatchRaisesStatInterruptWhenEnabled(t *testing.T) {
	p := NewPPU()
	p.WriteRegister(0xFF45, 1) // LYC = 1
	p.WriteRegister(0xFF41, 0x40) // enable LYC=LY STAT interrupt
	p.Tick(cyclesScanline) // LY -> 1, matches LYC
	assert.True(t, p.StatPending())
}

func TestPPU_VRAMReadWriteRoundTrip(t *testing.T) {
	p := NewPPU()
	p.mode = modeHBlank // ensure VRAM is accessible
	p.WriteVRAM(0x0010, 0x5A)
	assert.Equal(t, uint8(0x5A), p.ReadVRAM(0x0010))
}

func TestPPU_OAMWriteReadRoundTrip(t *testing.T) {
	p := NewPPU()
	p.mode = modeVBlank // OAM accessible outside modes 2/3
	p.WriteOAM(0, 0x50) // Y
	p.WriteOAM(1, 0x08) // X
	p.WriteOAM(2, 0x01) // tile
	p.WriteOAM(3, 0x00) // attr
	assert.Equal(t, uint8(0x50), p.ReadOAM(0))
	assert.Equal(t, uint8(0x08), p.ReadOAM(1))
}

func TestPPU_RenderBackgroundPicksUpTileData(t *testing.T) {
	p := NewPPU()
	p.mode = modeHBlank
	p.lcdc = 0x91 // LCD on, BG on, unsigned tile addressing, BG map at $9800
	p.bgp = 0xE4  // identity-ish palette: 11 10 01 00

	// Tile 1's first row: all pixels color index 3 (both bitplanes all 1s).
	p.WriteVRAM(0x0010, 0xFF)
	p.WriteVRAM(0x0011, 0xFF)
	p.WriteVRAM(0x1800, 0x01) // nametable entry selects tile 1

	p.renderScanline()
	assert.Equal(t, uint8(3), p.framebuffer[0])
}

func TestPPU_WindowOverridesBackgroundWhenEnabled(t *testing.T) {
	p := NewPPU()
	p.mode = modeHBlank
	p.lcdc = 0x91 | 0x20 // window enabled
	p.wy = 0
	p.wx = 7 // window starts at screen x=0
	p.bgp = 0xE4

	p.WriteVRAM(0x0010, 0xFF) // tile 1, row 0 all set
	p.WriteVRAM(0x0011, 0xFF)
	p.WriteVRAM(0x1800, 0x01) // window map entry (same default map as BG here)

	p.renderScanline()
	assert.Equal(t, uint8(3), p.framebuffer[0])
}

func TestPPU_DMATransferCopies160BytesIntoOAM(t *testing.T) {
	p := NewPPU()
	src := make([]uint8, 160)
	for i := range src {
		src[i] = uint8(i)
	}
	p.mode = modeVBlank
	p.DMATransfer(src)
	require.Equal(t, uint8(0), p.oam[0].y)
	assert.Equal(t, uint8(1), p.oam[0].x)
	assert.Equal(t, uint8(2), p.oam[0].tile)
	assert.Equal(t, uint8(3), p.oam[0].attr)
}
