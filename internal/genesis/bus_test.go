package genesis

import (
	"testing"

	m68k "github.com/user-none/go-chip-m68k"
	"github.com/stretchr/testify/assert"
)

func makeTestROM(size int) []byte {
	rom := make([]byte, size)
	copy(rom, []byte("SEGA GENESIS    "))
	return rom
}

func newTestBus(rom []byte) *Bus {
	vdp := NewVDP()
	io := NewIO()
	z80 := NewZ80Sub(NewFM(256), NewPSG(3579545, 44100, 256))
	bus := NewBus(rom, vdp, io, z80)
	vdp.AttachBus(bus)
	z80.AttachMainBus(bus)
	return bus
}

func TestBus_ReadsROMInLowRegion(t *testing.T) {
	rom := makeTestROM(0x1000)
	rom[0x100] = 0x42
	bus := newTestBus(rom)

	assert.Equal(t, uint32(0x42), bus.Read(m68k.Byte, 0x100))
}

func TestBus_WritesToROMAreIgnored(t *testing.T) {
	rom := makeTestROM(0x1000)
	bus := newTestBus(rom)

	bus.Write(m68k.Byte, 0x100, 0xFF)
	assert.Equal(t, uint32(0), bus.Read(m68k.Byte, 0x100))
}

func TestBus_WorkRAMReadWriteRoundTrip(t *testing.T) {
	bus := newTestBus(makeTestROM(0x1000))

	bus.Write(m68k.Word, 0xFF0000, 0xBEEF)
	assert.Equal(t, uint32(0xBEEF), bus.Read(m68k.Word, 0xFF0000))
}

func TestBus_Z80BusArbitrationGatesZ80RAMAccess(t *testing.T) {
	bus := newTestBus(makeTestROM(0x1000))

	// Before the 68K requests the bus, Z80 RAM reads as open bus.
	assert.Equal(t, uint32(0), bus.Read(m68k.Byte, 0xA00000))

	bus.Write(m68k.Word, 0xA11100, 0x0100) // request bus
	bus.z80.RAM()[0] = 0x77
	assert.Equal(t, uint32(0x77), bus.Read(m68k.Byte, 0xA00000))
}

func TestBus_VDPDataPortRoundTrip(t *testing.T) {
	bus := newTestBus(makeTestROM(0x1000))

	bus.Write(m68k.Word, 0xC00004, 0x4000)
	bus.Write(m68k.Word, 0xC00004, 0x0001)
	bus.Write(m68k.Word, 0xC00000, 0x1234)

	assert.Equal(t, uint8(0x12), bus.vdp.vram[0x4000])
	assert.Equal(t, uint8(0x34), bus.vdp.vram[0x4001])
}

func TestBus_SRAMDetectedFromROMHeaderSignature(t *testing.T) {
	rom := makeTestROM(0x200000)
	rom[0x1B0] = 'R'
	rom[0x1B1] = 'A'
	rom[0x1B4] = 0x20
	rom[0x1B5] = 0x00
	rom[0x1B6] = 0x00
	rom[0x1B7] = 0x00
	rom[0x1B8] = 0x20
	rom[0x1B9] = 0x00
	rom[0x1BA] = 0xFF
	rom[0x1BB] = 0xFF

	bus := newTestBus(rom)
	assert.True(t, bus.sramOn)
	assert.NotEmpty(t, bus.SRAM())
}
