package genesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVDP_RegisterWriteControlWord(t *testing.T) {
	v := NewVDP()
	v.WriteControl(0x8100) // register 1 = 0x00
	v.WriteControl(0x8140) // register 1 = 0x40 (display enable)

	assert.Equal(t, uint8(0x40), v.Register(1))
}

func TestVDP_AddressSetupTwoWordLatch(t *testing.T) {
	v := NewVDP()
	v.WriteControl(0x4000) // first word: CD1CD0=01, addr low bits 0
	v.WriteControl(0x0001) // second word: CD5-2=0000, addr high bits=01

	v.WriteData(0xABCD)

	assert.Equal(t, uint8(0xAB), v.vram[0x4000])
	assert.Equal(t, uint8(0xCD), v.vram[0x4001])
}

func TestVDP_CRAMWriteReadRoundTrip(t *testing.T) {
	v := NewVDP()
	v.WriteControl(0xC000) // first word, CD1CD0=11 (CRAM write low bits), addr 0
	v.WriteControl(0x0000)

	v.WriteData(0x00E0) // palette entry 0: green bits set (bits 7-5)

	col := v.cramColor(0)
	assert.NotZero(t, col.G)
}

func TestVDP_DisplayDisabledPaintsBackdrop(t *testing.T) {
	v := NewVDP()
	v.SetVCounter(10)
	v.RenderScanline()

	c := v.framebuffer.RGBAAt(0, 10)
	backdrop := v.cramColor(16)
	assert.Equal(t, backdrop, c)
}

func TestVDP_InterruptPendingRequiresEnableBit(t *testing.T) {
	v := NewVDP()
	v.SetVBlankFlag()

	vint, _ := v.InterruptPending()
	assert.False(t, vint, "V-int must not fire until register 1 bit 5 is set")

	v.registers[1] |= 0x20
	vint, _ = v.InterruptPending()
	assert.True(t, vint)
}

func TestVDP_ReadControlClearsLineInterruptPending(t *testing.T) {
	v := NewVDP()
	v.lineIntPending = true
	v.registers[0] |= 0x10

	_, hint := v.InterruptPending()
	assert.True(t, hint)

	v.ReadControl()
	_, hint = v.InterruptPending()
	assert.False(t, hint)
}

func TestVDP_DMAFillWritesLengthBytes(t *testing.T) {
	v := NewVDP()
	v.registers[19] = 0x04 // length low
	v.registers[20] = 0x00
	v.registers[23] = 0x80 // DMA mode = fill (bits 7-6 = 10)

	v.WriteControl(0x4000)
	v.WriteControl(0x0020) // second word: CD5 set (bit5 of code=0x20 via bits5-2)

	v.WriteData(0x5500) // fill byte = 0x55

	for i := 0; i < 4; i++ {
		assert.Equal(t, uint8(0x55), v.vram[i])
	}
}
