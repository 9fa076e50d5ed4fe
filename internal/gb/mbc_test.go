package gb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headerROM(cartType, ramSizeByte uint8, size int) []byte {
	rom := make([]byte, size)
	rom[0x0147] = cartType
	rom[0x0149] = ramSizeByte
	return rom
}

func TestParseCartridge_HeaderZeroSelectsROMOnly(t *testing.T) {
	rom := headerROM(0x00, 0x00, 0x8000)
	cart, err := parseCartridge(rom)
	require.NoError(t, err)
	_, ok := cart.(*romOnly)
	assert.True(t, ok)
	assert.False(t, cart.HasBattery())
}

func TestParseCartridge_HeaderRangeSelectsMBC1(t *testing.T) {
	rom := headerROM(0x03, 0x02, 0x20000) // MBC1+RAM+BATTERY
	cart, err := parseCartridge(rom)
	require.NoError(t, err)
	m1, ok := cart.(*mbc1)
	require.True(t, ok)
	assert.True(t, m1.battery)
	assert.Equal(t, 0x2000, len(m1.ram))
}

func TestParseCartridge_HeaderRangeSelectsMBC3(t *testing.T) {
	rom := headerROM(0x10, 0x02, 0x20000) // MBC3+TIMER+RAM+BATTERY
	cart, err := parseCartridge(rom)
	require.NoError(t, err)
	m3, ok := cart.(*mbc3)
	require.True(t, ok)
	assert.True(t, m3.hasRTC)
}

func TestParseCartridge_UnsupportedTypeIsRejected(t *testing.T) {
	rom := headerROM(0xFF, 0x00, 0x8000)
	_, err := parseCartridge(rom)
	assert.Error(t, err)
}

func TestParseCartridge_ShortImageIsRejected(t *testing.T) {
	_, err := parseCartridge(make([]byte, 0x10))
	assert.Error(t, err)
}

func TestMBC1_BankZeroAliasesToBankOne(t *testing.T) {
	rom := make([]byte, 0x40000)
	rom[0x4000] = 0xAB // start of bank 1
	m := newMBC1(rom, 0x2000, false)
	m.WriteROM(0x2000, 0x00) // low 5 bits zero -> aliases to bank 1
	assert.Equal(t, uint8(0xAB), m.ReadROM(0x4000))
}

func TestMBC1_RAMBankingModeSelectsUpperBankRegister(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := newMBC1(rom, 0x8000, true)
	m.WriteROM(0x0000, 0x0A) // enable RAM
	m.WriteROM(0x6000, 0x01) // RAM banking mode
	m.WriteROM(0x4000, 0x02) // RAM bank 2
	m.WriteRAM(0xA010, 0x99)
	assert.Equal(t, uint8(0x99), m.ReadRAM(0xA010))
	assert.Equal(t, uint8(0), m.ReadRAM(0xA011))
}

func TestMBC1_RAMDisabledReadsFF(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := newMBC1(rom, 0x2000, false)
	m.WriteRAM(0xA000, 0x42)
	assert.Equal(t, uint8(0xFF), m.ReadRAM(0xA000))
}

func TestMBC1_ROMBankingModeCombinesHighAndLowBits(t *testing.T) {
	rom := make([]byte, 0x400000)
	rom[0x21*0x4000] = 0x7E // bank 0x21 = (1<<5)|1
	m := newMBC1(rom, 0, false)
	m.WriteROM(0x2000, 0x01) // low bits = 1
	m.WriteROM(0x4000, 0x01) // high bits = 1
	assert.Equal(t, uint8(0x7E), m.ReadROM(0x4000))
}

func TestMBC3_RAMBankSelectsCartRAM(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := newMBC3(rom, 0x8000, false)
	m.WriteROM(0x0000, 0x0A) // enable RAM
	m.WriteROM(0x4000, 0x01) // RAM bank 1
	m.WriteRAM(0xA005, 0x77)
	assert.Equal(t, uint8(0x77), m.ReadRAM(0xA005))
}

func TestMBC3_RTCLatchCapturesRegistersOnZeroThenOneWrite(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := newMBC3(rom, 0, true)
	m.WriteROM(0x0000, 0x0A) // enable RAM/RTC access
	m.WriteROM(0x4000, 0x08) // select RTC seconds register
	m.WriteRAM(0xA000, 0x2A) // write seconds
	m.WriteROM(0x6000, 0x00)
	m.WriteROM(0x6000, 0x01) // latch transition
	assert.Equal(t, uint8(0x2A), m.ReadRAM(0xA000))
}

func TestMBC3_RTCLatchDoesNotUpdateWithoutZeroToOneTransition(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := newMBC3(rom, 0, true)
	m.WriteROM(0x0000, 0x0A)
	m.WriteROM(0x4000, 0x08)
	m.WriteRAM(0xA000, 0x10)
	m.WriteROM(0x6000, 0x01) // latch once to capture 0x10
	m.WriteRAM(0xA000, 0x20) // change underlying register
	m.WriteROM(0x6000, 0x01) // repeated 1 write, no 0->1 edge
	assert.Equal(t, uint8(0x10), m.ReadRAM(0xA000))
}

func TestMBC3_ROMBankZeroAliasesToOne(t *testing.T) {
	rom := make([]byte, 0x40000)
	rom[0x4000] = 0x55
	m := newMBC3(rom, 0, false)
	m.WriteROM(0x2000, 0x00)
	assert.Equal(t, uint8(0x55), m.ReadROM(0x4000))
}

func TestROMOnly_IgnoresBankSwitchWrites(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x4000] = 0x11
	m := newROMOnly(rom)
	m.WriteROM(0x2000, 0x05) // no-op for a fixed mapper
	assert.Equal(t, uint8(0x11), m.ReadROM(0x4000))
	assert.False(t, m.HasBattery())
}
