package gb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testROM(cartType uint8) []byte {
	rom := make([]byte, 0x8000)
	rom[0x0147] = cartType
	return rom
}

func TestSystem_LoadROMRejectsShortImage(t *testing.T) {
	s := New()
	err := s.LoadROM(make([]byte, 0x10))
	assert.Error(t, err)
}

func TestSystem_LoadROMAcceptsROMOnlyHeader(t *testing.T) {
	s := New()
	err := s.LoadROM(testROM(0x00))
	require.NoError(t, err)
}

func TestSystem_FrameAdvancesFrameCount(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadROM(testROM(0x00)))
	s.Frame()
	assert.Equal(t, uint64(1), s.FrameCount())
	s.Frame()
	assert.Equal(t, uint64(2), s.FrameCount())
}

func TestSystem_FrameBufferIsScreenSized(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadROM(testROM(0x00)))
	fb := s.FrameBuffer()
	assert.Equal(t, ScreenWidth*ScreenHeight, len(fb))
}

func TestSystem_StepReturnsPositiveCycleCount(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadROM(testROM(0x00)))
	cycles := s.Step()
	assert.Greater(t, cycles, 0)
	assert.Equal(t, uint64(cycles), s.TotalCycles())
}

func TestSystem_ReadAudioDrainsRing(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadROM(testROM(0x00)))
	for i := 0; i < 5; i++ {
		s.Frame()
	}
	out := make([]int16, 4096)
	n := s.ReadAudio(out)
	assert.Greater(t, n, 0)
}

func TestSystem_SetInputReachesJoypadRegister(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadROM(testROM(0x00)))
	s.SetInput(0x01) // A held
	s.Write(0xFF00, 0xDF) // select button group
	assert.Equal(t, uint8(0), s.Read(0xFF00)&0x01)
}

func TestSystem_ReadWriteRoundTripsThroughBus(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadROM(testROM(0x00)))
	s.Write(0xC000, 0x5A)
	assert.Equal(t, uint8(0x5A), s.Read(0xC000))
}

func TestSystem_RAMReturnsWorkRAM(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadROM(testROM(0x00)))
	s.Write(0xC001, 0x77)
	assert.Equal(t, uint8(0x77), s.RAM()[1])
}

func TestSystem_SaveRAMLoadSaveRAMRoundTrip(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadROM(testROM(0x03))) // MBC1+RAM+BATTERY
	s.bus.cart.WriteROM(0x0000, 0x0A)             // enable cart RAM
	s.Write(0xA000, 0x42)
	saved := s.SaveRAM()
	assert.NotEmpty(t, saved)

	s2 := New()
	require.NoError(t, s2.LoadROM(testROM(0x03)))
	require.NoError(t, s2.LoadSaveRAM(saved))
	s2.bus.cart.WriteROM(0x0000, 0x0A)
	assert.Equal(t, uint8(0x42), s2.Read(0xA000))
}

func TestSystem_SaveStateLoadStateRoundTrip(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadROM(testROM(0x00)))
	for i := 0; i < 3; i++ {
		s.Step()
	}
	s.cpu.A = 0x99
	blob := s.SaveState()

	s2 := New()
	require.NoError(t, s2.LoadROM(testROM(0x00)))
	require.NoError(t, s2.LoadState(blob))
	assert.Equal(t, uint8(0x99), s2.cpu.A)
	assert.Equal(t, s.TotalCycles(), s2.TotalCycles())
}

func TestSystem_LoadStateRejectsForeignROM(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadROM(testROM(0x00)))
	blob := s.SaveState()

	other := New()
	otherROM := testROM(0x00)
	otherROM[0x0134] = 'X' // perturb contents so CRC differs
	require.NoError(t, other.LoadROM(otherROM))
	err := other.LoadState(blob)
	assert.Error(t, err)
}

func TestSystem_LoadStateRejectsCorruptPayload(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadROM(testROM(0x00)))
	blob := s.SaveState()
	blob[len(blob)-1] ^= 0xFF

	err := s.LoadState(blob)
	assert.Error(t, err)
}

func TestSystem_SetRenderGraphicsDisablesFramebufferUpdates(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadROM(testROM(0x00)))
	s.SetRenderGraphics(false)
	assert.False(t, s.ppu.renderGraphics)
}

func TestSystem_SetRenderAudioDisablesMixing(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadROM(testROM(0x00)))
	s.SetRenderAudio(false)
	assert.False(t, s.apu.render)
}

func TestSystem_SkipBootLeavesCPUInPostBootState(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadROM(testROM(0x00)))
	s.cpu.PC = 0x00
	s.SkipBoot()
	assert.Equal(t, uint16(0x0100), s.cpu.PC)
	assert.Equal(t, uint8(0x01), s.Read(0xFF50))
}
