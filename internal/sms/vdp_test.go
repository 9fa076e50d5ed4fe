package sms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVDP_ActiveHeightDefaultsTo192(t *testing.T) {
	v := NewVDP()
	assert.Equal(t, 192, v.ActiveHeight())
}

func TestVDP_ActiveHeightSwitchesTo224WithM1M2(t *testing.T) {
	v := NewVDP()
	v.WriteControl(0x06) // latch low byte: M4 (0x04) and M2 (0x02) bits of register 0
	v.WriteControl(0x80) // code=2 (register write), reg 0
	v.WriteControl(0x10) // latch low byte: M1 bit (0x10 of register 1)
	v.WriteControl(0x81) // code=2, reg 1
	assert.Equal(t, 224, v.ActiveHeight())
}

func TestVDP_WriteControlTwoByteLatch(t *testing.T) {
	v := NewVDP()
	v.WriteControl(0x00)
	v.WriteControl(0x40) // code=1, addr = 0x0000 -> VRAM write mode
	assert.Equal(t, uint16(0x0000), v.Address())
	assert.Equal(t, uint8(1), v.CodeReg())
}

func TestVDP_DataWriteReadRoundTrip(t *testing.T) {
	v := NewVDP()
	v.WriteControl(0x00)
	v.WriteControl(0x40) // VRAM write at 0x0000
	v.WriteData(0xAB)
	v.WriteControl(0x00)
	v.WriteControl(0x00) // VRAM read at 0x0000
	_ = v.ReadData()     // the read setup prefetched VRAM[0] into the buffer
	assert.Equal(t, uint8(0xAB), v.VRAM()[0])
}

func TestVDP_InterruptPendingRequiresEnable(t *testing.T) {
	v := NewVDP()
	v.SetVBlank()
	assert.False(t, v.InterruptPending(), "frame interrupt must be masked until register 1 bit 5 is set")

	v.WriteControl(0x20)
	v.WriteControl(0x81) // register 1 = 0x20: enable frame interrupts
	assert.True(t, v.InterruptPending())
}

func TestVDP_ReadControlClearsStatusAndLatch(t *testing.T) {
	v := NewVDP()
	v.SetVBlank()
	v.WriteControl(0x00) // first byte of a pending address latch

	status := v.ReadControl()
	assert.Equal(t, uint8(0x80), status)
	assert.Equal(t, uint8(0), v.Status())
	assert.False(t, v.WriteLatch())
}

func TestVDP_SetRenderGraphicsSkipsPixelWrites(t *testing.T) {
	v := NewVDP()
	v.WriteControl(0x40)
	v.WriteControl(0x81) // register 1 = 0x40: display enabled
	v.SetVCounter(0)
	v.RenderScanline() // paints line 0 from the background layer while enabled

	before := v.Framebuffer().At(0, 0)

	v.register[7] = 0x05 // backdrop register changed before the second render
	v.reg7Latch = 0x05
	v.SetRenderGraphics(false)
	v.RenderScanline()

	after := v.Framebuffer().At(0, 0)
	assert.Equal(t, before, after, "RenderScanline must not touch the framebuffer while rendering is disabled")
}
