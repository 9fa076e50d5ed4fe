package sms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInput_SetMaskMatchesSetP1BitLayout(t *testing.T) {
	i := &Input{Port1: 0xFF, Port2: 0xFF}
	i.SetMask(0x01 | 0x08 | 0x10) // up, right, button1

	other := &Input{Port1: 0xFF, Port2: 0xFF}
	other.SetP1(true, false, false, true, true, false)

	assert.Equal(t, other.Port1, i.Port1)
}

func TestIO_ReadPortDDAppliesTHLevelsAndNationality(t *testing.T) {
	vdp := NewVDP()
	psg := NewPSG(3579545, 48000, 4096)

	exportIO := NewIO(vdp, psg, NationalityExport)
	exportIO.Out(0x01, 0xA0) // set ioControl bits 0x20 and 0x80
	assert.Equal(t, uint8(0xFF), exportIO.readPortDD())

	jpIO := NewIO(vdp, psg, NationalityJapanese)
	jpIO.Out(0x01, 0xA0)
	assert.Equal(t, uint8(0xFF)^0xC0, jpIO.readPortDD())
}

func TestIO_OutRoutesVDPAndPSGPorts(t *testing.T) {
	vdp := NewVDP()
	psg := NewPSG(3579545, 48000, 4096)
	io := NewIO(vdp, psg, NationalityExport)

	io.Out(0x40, 0x9F) // PSG: latch channel 0 volume = silent
	assert.Equal(t, uint8(0x0F), psg.Volume(0))

	io.Out(0x81, 0x00)
	io.Out(0x81, 0x81) // register 1 = 0x00 (prior latch byte)
	assert.Equal(t, uint8(0x00), vdp.Register(1))
}
