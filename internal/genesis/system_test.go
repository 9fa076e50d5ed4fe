package genesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSystem_NewIsUsableBeforeLoadROM covers the default-construction
// scenario: a freshly created System already has a reset 68000 (supervisor
// mode set, interrupt-priority mask 7) and every uniform op is safe to call
// before any ROM is loaded.
func TestSystem_NewIsUsableBeforeLoadROM(t *testing.T) {
	s := New(Options{})

	sr := s.cpu.Registers().SR
	assert.NotZero(t, sr&0x2000, "supervisor-mode bit should be set on power-on")
	assert.Equal(t, uint16(0x0700), sr&0x0700, "interrupt-priority mask should be 7 on power-on")

	s.Step()
	s.Frame()
	assert.NotPanics(t, func() { s.Read(0) })
	assert.NotPanics(t, func() { s.FrameBuffer() })
	assert.NotPanics(t, func() { s.SaveState() })
}

func TestSystem_LoadROMRejectsShortImage(t *testing.T) {
	s := New(Options{})
	err := s.LoadROM([]byte{0x00, 0x01})
	assert.Error(t, err)
}

func TestSystem_FrameAdvancesFrameCount(t *testing.T) {
	s := New(Options{})
	require.NoError(t, s.LoadROM(makeTestROM(0x10000)))

	s.Frame()
	assert.Equal(t, uint64(1), s.FrameCount())
	assert.Greater(t, s.TotalCycles(), uint64(0))

	s.Frame()
	assert.Equal(t, uint64(2), s.FrameCount())
}

func TestSystem_FrameBufferHasExpectedSize(t *testing.T) {
	s := New(Options{})
	require.NoError(t, s.LoadROM(makeTestROM(0x10000)))
	s.Frame()

	fb := s.FrameBuffer()
	assert.Len(t, fb, ScreenWidth*ScreenHeight*4)
}

func TestSystem_ReadAudioDrainsRing(t *testing.T) {
	s := New(Options{})
	require.NoError(t, s.LoadROM(makeTestROM(0x10000)))
	for i := 0; i < 4; i++ {
		s.Frame()
	}

	out := make([]int16, 512)
	n := s.ReadAudio(out)
	assert.GreaterOrEqual(t, n, 0)
}

func TestSystem_SaveStateLoadStateRoundTrip(t *testing.T) {
	s := New(Options{})
	require.NoError(t, s.LoadROM(makeTestROM(0x10000)))
	for i := 0; i < 2; i++ {
		s.Frame()
	}
	s.Write(0xFF0010, 0x55)

	blob := s.SaveState()

	s2 := New(Options{})
	require.NoError(t, s2.LoadROM(makeTestROM(0x10000)))
	require.NoError(t, s2.LoadState(blob))

	assert.Equal(t, s.FrameCount(), s2.FrameCount())
	assert.Equal(t, s.TotalCycles(), s2.TotalCycles())
	assert.Equal(t, s.Read(0xFF0010), s2.Read(0xFF0010))
}

func TestSystem_SaveStateCapturesMidCommandVDPLatch(t *testing.T) {
	s := New(Options{})
	require.NoError(t, s.LoadROM(makeTestROM(0x10000)))

	s.vdp.WriteControl(0x4000) // first word of a two-word command, latched but not yet applied
	require.True(t, s.vdp.pendingFirstWord)

	blob := s.SaveState()

	s2 := New(Options{})
	require.NoError(t, s2.LoadROM(makeTestROM(0x10000)))
	require.NoError(t, s2.LoadState(blob))

	assert.True(t, s2.vdp.pendingFirstWord)
	assert.Equal(t, s.vdp.firstWord, s2.vdp.firstWord)
}

func TestSystem_LoadStateRejectsForeignROM(t *testing.T) {
	s := New(Options{})
	require.NoError(t, s.LoadROM(makeTestROM(0x10000)))
	blob := s.SaveState()

	other := New(Options{})
	require.NoError(t, other.LoadROM(makeTestROM(0x20000)))
	err := other.LoadState(blob)
	assert.Error(t, err)
}

func TestSystem_LoadStateRejectsCorruptData(t *testing.T) {
	s := New(Options{})
	require.NoError(t, s.LoadROM(makeTestROM(0x10000)))
	blob := s.SaveState()
	blob[len(blob)-1] ^= 0xFF

	err := s.LoadState(blob)
	assert.Error(t, err)
}

func TestSystem_SaveRAMLoadSaveRAMRoundTrip(t *testing.T) {
	rom := makeTestROM(0x200000)
	rom[0x1B0] = 'R'
	rom[0x1B1] = 'A'
	rom[0x1B4], rom[0x1B5], rom[0x1B6], rom[0x1B7] = 0x20, 0x00, 0x00, 0x00
	rom[0x1B8], rom[0x1B9], rom[0x1BA], rom[0x1BB] = 0x20, 0x00, 0xFF, 0xFF

	s := New(Options{})
	require.NoError(t, s.LoadROM(rom))

	saved := make([]byte, len(s.SaveRAM()))
	copy(saved, s.SaveRAM())
	saved[0] = 0x99

	s2 := New(Options{})
	require.NoError(t, s2.LoadROM(rom))
	require.NoError(t, s2.LoadSaveRAM(saved))
	assert.Equal(t, uint8(0x99), s2.SaveRAM()[0])
}

func TestSystem_SetRenderGraphicsAndAudioDisableOutput(t *testing.T) {
	s := New(Options{})
	require.NoError(t, s.LoadROM(makeTestROM(0x10000)))
	s.SetRenderGraphics(false)
	s.SetRenderAudio(false)

	s.Frame()

	out := make([]int16, 4)
	n := s.ReadAudio(out)
	if n > 0 {
		assert.Equal(t, int16(0), out[0])
	}
}
