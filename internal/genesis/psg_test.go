package genesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPSG_SilentOnInit(t *testing.T) {
	p := NewPSG(3579545, 44100, 256)
	p.Tick(1000)

	out := make([]int16, 64)
	n := p.Ring().Drain(out)
	assert.Greater(t, n, 0)
	for i := 0; i < n; i++ {
		assert.Equal(t, int16(0), out[i])
	}
}

func TestPSG_ToneRegisterLatchAndVolume(t *testing.T) {
	p := NewPSG(3579545, 44100, 256)
	p.Write(0x80 | 0x0A) // latch channel 0 tone, low nibble 0xA
	p.Write(0x05)        // high 6 bits
	p.Write(0x90 | 0x02) // latch channel 0 volume = 2

	assert.Equal(t, uint16(0x05A), p.ToneReg(0))
	assert.Equal(t, uint8(0x02), p.Volume(0))
}

func TestPSG_NoiseRegisterLatch(t *testing.T) {
	p := NewPSG(3579545, 44100, 256)
	p.Write(0xE0 | 0x03)

	assert.Equal(t, uint8(0x03), p.NoiseReg())
}
