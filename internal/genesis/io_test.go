package genesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIO_VersionRegisterReadsFixedValue(t *testing.T) {
	io := NewIO()
	assert.Equal(t, uint8(0xA0), io.Read(0xA10001))
}

func TestIO_ControllerReadTHHighReturnsDirectionAndBC(t *testing.T) {
	io := NewIO()
	io.SetInput(0x01 | 0x20) // Up + C pressed
	io.Write(0xA10003, 0x40) // TH=1

	v := io.Read(0xA10003)
	assert.Equal(t, uint8(0), v&0x01, "Up pressed reads as 0")
	assert.Equal(t, uint8(0), v&0x20, "C pressed reads as 0")
	assert.NotEqual(t, uint8(0), v&0x02, "Down not pressed reads as 1")
}

func TestIO_ControllerReadTHLowReturnsStartAndA(t *testing.T) {
	io := NewIO()
	io.SetInput(0x80 | 0x40) // Start + A pressed
	io.Write(0xA10003, 0x00) // TH=0

	v := io.Read(0xA10003)
	assert.Equal(t, uint8(0), v&0x20, "Start pressed reads as 0")
	assert.Equal(t, uint8(0), v&0x10, "A pressed reads as 0")
}

func TestIO_SixButtonExtendedRead(t *testing.T) {
	io := NewIO()
	io.SetInputExtended(0, 0x01) // X pressed
	io.Write(0xA10003, 0x40)     // TH=1
	io.Write(0xA10003, 0x00)     // TH=0, thCount -> 1
	io.Write(0xA10003, 0x40)     // TH=1
	io.Write(0xA10003, 0x00)     // TH=0, thCount -> 2: extended read window

	v := io.Read(0xA10003)
	assert.Equal(t, uint8(0), v&0x01, "X pressed reads as 0 in extended nibble")
}
