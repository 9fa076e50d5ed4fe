package gb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimer_DIVRegisterExposesUpperByte(t *testing.T) {
	tm := NewTimer()
	tm.div = 0x1234
	assert.Equal(t, uint8(0x12), tm.ReadRegister(0xFF04))
}

func TestTimer_WritingDIVResetsItToZero(t *testing.T) {
	tm := NewTimer()
	tm.div = 0x9999
	tm.WriteRegister(0xFF04, 0xAB) // value is irrelevant, any write clears DIV
	assert.Equal(t, uint8(0), tm.ReadRegister(0xFF04))
}

func TestTimer_FallingEdgeOnSelectedBitIncrementsTIMA(t *testing.T) {
	tm := NewTimer()
	tm.div = 15
	tm.tac = 0x05 // enabled, clock select 1 -> DIV bit 3
	tm.tima = 0x10
	tm.Tick(1) // div 15 -> 16, bit 3 falls from 1 to 0
	assert.Equal(t, uint8(0x11), tm.tima)
}

func TestTimer_DisabledTimerNeverIncrementsTIMA(t *testing.T) {
	tm := NewTimer()
	tm.div = 15
	tm.tac = 0x01 // clock select 1 but timer disabled (bit 2 clear)
	tm.tima = 0x10
	tm.Tick(1)
	assert.Equal(t, uint8(0x10), tm.tima)
}

func TestTimer_OverflowDelaysReloadAndRaisesIRQ(t *testing.T) {
	tm := NewTimer()
	tm.div = 15
	tm.tac = 0x05
	tm.tima = 0xFF
	tm.tma = 0x12

	tm.Tick(1) // falling edge overflows TIMA to 0x00, starts a 4-cycle reload delay
	assert.Equal(t, uint8(0), tm.tima)
	assert.False(t, tm.IRQPending())

	tm.Tick(4) // delay elapses: TIMA reloads from TMA and the IRQ is requested
	assert.Equal(t, uint8(0x12), tm.tima)
	assert.True(t, tm.IRQPending())
	assert.False(t, tm.IRQPending(), "pending flag is one-shot")
}

func TestTimer_WriteDuringReloadDelayIsIgnored(t *testing.T) {
	tm := NewTimer()
	tm.reloadDelay = 2
	tm.WriteRegister(0xFF05, 0x77)
	assert.Equal(t, uint8(0), tm.tima)
}

func TestTimer_TACWriteMasksToThreeBits(t *testing.T) {
	tm := NewTimer()
	tm.WriteRegister(0xFF07, 0xFF)
	assert.Equal(t, uint8(0xFF), tm.ReadRegister(0xFF07), "unused bits read back as set")
	assert.Equal(t, uint8(0x07), tm.tac)
}

func TestTimer_TMARoundTrips(t *testing.T) {
	tm := NewTimer()
	tm.WriteRegister(0xFF06, 0x42)
	assert.Equal(t, uint8(0x42), tm.ReadRegister(0xFF06))
}
