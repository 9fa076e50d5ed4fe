package nes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPU_Pulse1LengthCounterLoadedFromTable(t *testing.T) {
	a := NewAPU(1789773, 44100, 2048)
	a.WriteRegister(0x4015, 0x01) // enable pulse 1
	a.WriteRegister(0x4003, 0x08) // length index 1 -> 254
	assert.Equal(t, lengthTable[1], a.pulse1.lengthCount)
}

func TestAPU_DisablingChannelViaStatusClearsLengthCounter(t *testing.T) {
	a := NewAPU(1789773, 44100, 2048)
	a.WriteRegister(0x4015, 0x01)
	a.WriteRegister(0x4003, 0x08)
	a.WriteRegister(0x4015, 0x00)
	assert.Equal(t, uint8(0), a.pulse1.lengthCount)
}

func TestAPU_StatusReadReportsActiveChannelsAndClearsFrameIRQ(t *testing.T) {
	a := NewAPU(1789773, 44100, 2048)
	a.WriteRegister(0x4015, 0x05) // pulse 1 + triangle
	a.WriteRegister(0x4003, 0x08)
	a.WriteRegister(0x400B, 0x08)
	a.frameIRQ = true
	status := a.ReadStatus()
	assert.NotZero(t, status&0x01)
	assert.NotZero(t, status&0x04)
	assert.NotZero(t, status&0x40)
	assert.False(t, a.frameIRQ)
}

func TestAPU_TriangleSilentWhenLinearCounterZero(t *testing.T) {
	a := NewAPU(1789773, 44100, 2048)
	a.triangle.enabled = true
	a.triangle.lengthCount = 10
	a.triangle.linearCount = 0
	assert.Equal(t, uint8(0), a.triangle.sample())
}

func TestAPU_NoiseEnvelopeDecaysTowardZero(t *testing.T) {
	a := NewAPU(1789773, 44100, 2048)
	a.noise.env.constant = false
	a.noise.env.start = true
	a.noise.env.period = 0
	for i := 0; i < 20; i++ {
		a.noise.env.clock()
	}
	assert.Equal(t, uint8(0), a.noise.env.decay)
}

func TestAPU_TickPushesSamplesIntoRing(t *testing.T) {
	a := NewAPU(1789773, 44100, 2048)
	clocksPerSample := 1789773 / 44100
	a.Tick(clocksPerSample * 10)
	assert.GreaterOrEqual(t, a.Ring().Available(), 9)
}

func TestAPU_FrameCounterWriteWithModeBitClocksImmediately(t *testing.T) {
	a := NewAPU(1789773, 44100, 2048)
	a.pulse1.env.start = true
	a.WriteRegister(0x4017, 0x80)
	assert.Equal(t, uint8(1), a.FrameMode())
	assert.False(t, a.pulse1.env.start)
}
