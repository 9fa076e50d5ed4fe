// Package sms implements the Sega Master System core: Z80 CPU (via
// internal/z80core wrapping koron-go/z80), mode-4 VDP, SN76489 PSG, and the
// Sega/Codemasters cartridge mappers, driven in lockstep by System.
//
// Grounded throughout on user-none-eMkIII/emu — the teacher repo is itself
// an SMS core, so this package is the least-transformed of the four; its
// job is to generalize the teacher's single-region, single-mapper-family
// assumptions into the uniform core.System contract the other three
// systems also implement.
package sms

import (
	"encoding/binary"
	"errors"
	"hash/crc32"

	"github.com/user-none/multicore/internal/core"
	"github.com/user-none/multicore/internal/statebuf"
	"github.com/user-none/multicore/internal/z80core"
)

var _ core.System = (*System)(nil)

const (
	ScreenWidth     = 256
	MaxScreenHeight = 224
	sampleRate      = 44100
)

const (
	stateVersion    = 1
	stateMagic      = "MCORE-SMS-v1"
	stateHeaderSize = 12 + 2 + 4 + 4 // magic + version + romCRC + dataCRC
)

// Options configures a System at construction time.
type Options struct {
	Region      Region
	Nationality Nationality
}

// System is the Master System aggregate: CPU, memory bus, VDP, PSG, and I/O,
// advanced one frame at a time by Frame/Step (spec.md §4.6).
type System struct {
	cpu *z80core.CPU
	mem *Memory
	vdp *VDP
	psg *PSG
	io  *IO
	bus *Bus

	cyclesPerFrame      int
	cyclesPerScanlineFP int

	region    Region
	timing    Timing
	scanlines int

	frameCount  uint64
	totalCycles uint64

	renderGraphics bool
}

// New creates a System in a default, ROM-less state. Call LoadROM before
// advancing frames.
func New(opts Options) *System {
	s := &System{region: opts.Region, renderGraphics: true}
	s.reset(nil)
	if opts.Nationality != NationalityJapanese {
		opts.Nationality = NationalityExport
	}
	s.io.nationality = opts.Nationality
	return s
}

func (s *System) reset(rom []byte) {
	if rom == nil {
		rom = []byte{0x00}
	}
	mem := NewMemory(rom)
	vdp := NewVDP()

	timing := TimingForRegion(s.region)
	vdp.SetTotalScanlines(timing.Scanlines)

	samplesPerFrame := sampleRate / timing.FPS
	psg := NewPSG(timing.CPUClockHz, sampleRate, samplesPerFrame*4)

	io := NewIO(vdp, psg, NationalityExport)
	bus := NewBus(mem, io)
	cpu := z80core.New(bus, bus)

	s.cpu = cpu
	s.mem = mem
	s.vdp = vdp
	s.psg = psg
	s.io = io
	s.bus = bus
	s.timing = timing
	s.scanlines = timing.Scanlines
	s.cyclesPerFrame = timing.CPUClockHz / timing.FPS
	s.cyclesPerScanlineFP = (timing.CPUClockHz * 65536) / timing.FPS / timing.Scanlines
	s.vdp.SetRenderGraphics(s.renderGraphics)
}

// LoadROM parses the ROM (falling back to the Sega mapper / NTSC region on
// an unrecognized cart, per spec.md §4.9) and resets to a post-power-on
// state with it mapped in. Only "ROM too short to contain a header" is
// rejected (spec.md §4.9).
func (s *System) LoadROM(rom []byte) error {
	if len(rom) < 0x4000 {
		return errors.New("sms: rom too short to contain a header")
	}
	if region, ok := DetectRegion(rom); ok {
		s.region = region
	}
	s.reset(rom)
	return nil
}

// Step executes one Z80 instruction and returns its T-state cost.
func (s *System) Step() int {
	cycles := s.cpu.Step()
	s.totalCycles += uint64(cycles)
	return cycles
}

// Frame runs scanlines until the video frame counter advances by one,
// following the teacher's fixed-point scanline scheduler
// (user-none-eMkIII/emu/emulator.go's runScanlines).
func (s *System) Frame() {
	activeHeight := s.vdp.ActiveHeight()

	targetCyclesFP := 0
	executedCycles := 0
	prevTargetCycles := 0

	for i := 0; i < s.scanlines; i++ {
		targetCyclesFP += s.cyclesPerScanlineFP
		targetCycles := targetCyclesFP >> 16

		s.vdp.SetVCounter(uint16(i))
		if i == 0 {
			s.vdp.LatchVScrollForFrame()
		}

		lineIntChecked := false
		vblankChecked := false
		isVBlankLine := i == activeHeight

		scanlineCycles := 0
		for executedCycles < targetCycles {
			scanlineProgress := executedCycles - prevTargetCycles

			if !vblankChecked && isVBlankLine && scanlineProgress >= VBlankInterruptCycle {
				s.vdp.SetVBlank()
				vblankChecked = true
				s.refreshInterrupt()
			}
			if !lineIntChecked && scanlineProgress >= LineInterruptCycle {
				s.vdp.UpdateLineCounter()
				lineIntChecked = true
				s.refreshInterrupt()
			}
			if scanlineProgress >= CRAMLatchCycle && scanlineProgress < CRAMLatchCycle+4 {
				s.vdp.LatchCRAM()
				s.vdp.LatchPerLineRegisters()
			}

			s.vdp.SetHCounter(hCounterForCycle(scanlineProgress))
			cycles := s.cpu.Step()
			executedCycles += cycles
			scanlineCycles += cycles
			s.totalCycles += uint64(cycles)
		}

		if !lineIntChecked {
			s.vdp.UpdateLineCounter()
		}
		if !vblankChecked && isVBlankLine {
			s.vdp.SetVBlank()
		}

		if i < activeHeight {
			s.vdp.RenderScanline()
		}
		prevTargetCycles = targetCycles

		s.psg.Tick(scanlineCycles)
	}

	s.frameCount++
}

func (s *System) refreshInterrupt() {
	if s.vdp.InterruptPending() {
		s.cpu.SetIM1Interrupt()
	} else {
		s.cpu.ClearInterrupt()
	}
}

// SetInput applies the uniform 8-bit mask (spec.md §6.2 SMS layout) to
// player 1's controller port.
func (s *System) SetInput(mask uint8) { s.io.Input.SetMask(mask) }

// FrameBuffer returns the 256×(192 or 224) 32-bit ABGR pixel buffer.
func (s *System) FrameBuffer() []byte { return s.vdp.Framebuffer().Pix }

func (s *System) ReadAudio(out []int16) int { return s.psg.Ring().Drain(out) }

func (s *System) Read(addr uint32) uint8       { return s.mem.Get(uint16(addr)) }
func (s *System) Write(addr uint32, val uint8) { s.mem.Set(uint16(addr), val) }
func (s *System) RAM() []byte                  { return s.mem.SystemRAM()[:] }
func (s *System) FrameCount() uint64           { return s.frameCount }
func (s *System) TotalCycles() uint64          { return s.totalCycles }

func (s *System) SetRenderGraphics(on bool) { s.renderGraphics = on; s.vdp.SetRenderGraphics(on) }
func (s *System) SetRenderAudio(on bool)    { s.psg.SetRenderAudio(on) }

// SetPause raises the Z80 NMI, wired to the console's Pause button.
func (s *System) SetPause() { s.cpu.TriggerNMI() }

func (s *System) SaveRAM() []byte {
	cart := s.mem.CartRAM()
	out := make([]byte, len(cart))
	copy(out, cart[:])
	return out
}

func (s *System) LoadSaveRAM(data []byte) error {
	cart := s.mem.CartRAM()
	n := copy(cart[:], data)
	for i := n; i < len(cart); i++ {
		cart[i] = 0
	}
	return nil
}

// SaveState serializes CPU, memory, VDP, PSG, and input state into a
// fixed-layout blob guarded by a magic/version/ROM-CRC32/data-CRC32 header,
// grounded on user-none-eMkIII/emu/emulator.go's Serialize/VerifyState. Ring
// buffer contents are transient and excluded (spec.md §6.4).
func (s *System) SaveState() []byte {
	payload := s.serializePayload()

	buf := make([]byte, stateHeaderSize+len(payload))
	copy(buf[0:12], stateMagic)
	binary.LittleEndian.PutUint16(buf[12:14], stateVersion)
	binary.LittleEndian.PutUint32(buf[14:18], s.mem.ROMCRC32())
	binary.LittleEndian.PutUint32(buf[18:22], crc32.ChecksumIEEE(payload))
	copy(buf[stateHeaderSize:], payload)
	return buf
}

// LoadState verifies the header (magic, version, ROM CRC32, data CRC32)
// before mutating any state, so a corrupt or mismatched blob leaves the
// running system untouched (spec.md §6.4 "reject rather than partially
// apply").
func (s *System) LoadState(blob []byte) error {
	if len(blob) < stateHeaderSize {
		return errors.New("sms: save state truncated")
	}
	if string(blob[0:12]) != stateMagic {
		return errors.New("sms: save state magic mismatch")
	}
	if binary.LittleEndian.Uint16(blob[12:14]) != stateVersion {
		return errors.New("sms: save state version mismatch")
	}
	if binary.LittleEndian.Uint32(blob[14:18]) != s.mem.ROMCRC32() {
		return errors.New("sms: save state rom mismatch")
	}
	payload := blob[stateHeaderSize:]
	if binary.LittleEndian.Uint32(blob[18:22]) != crc32.ChecksumIEEE(payload) {
		return errors.New("sms: save state data corrupt")
	}
	return s.deserializePayload(payload)
}

func (s *System) serializePayload() []byte {
	w := statebuf.NewWriter()

	reg := s.cpu.Registers()
	w.WriteUint8(reg.A)
	w.WriteUint8(reg.F)
	w.WriteUint8(reg.B)
	w.WriteUint8(reg.C)
	w.WriteUint8(reg.D)
	w.WriteUint8(reg.E)
	w.WriteUint8(reg.H)
	w.WriteUint8(reg.L)
	w.WriteUint8(reg.A2)
	w.WriteUint8(reg.F2)
	w.WriteUint8(reg.B2)
	w.WriteUint8(reg.C2)
	w.WriteUint8(reg.D2)
	w.WriteUint8(reg.E2)
	w.WriteUint8(reg.H2)
	w.WriteUint8(reg.L2)
	w.WriteUint16(reg.IX)
	w.WriteUint16(reg.IY)
	w.WriteUint16(reg.SP)
	w.WriteUint16(reg.PC)
	w.WriteUint8(reg.I)
	w.WriteUint8(reg.R)
	w.WriteBool(reg.IFF1)
	w.WriteBool(reg.IFF2)
	w.WriteUint8(uint8(reg.IM))
	w.WriteBool(reg.HALT)

	w.WriteBytes(s.mem.SystemRAM()[:])
	w.WriteBytes(s.mem.CartRAM()[:])
	w.WriteUint8(s.mem.GetBankSlot(0))
	w.WriteUint8(s.mem.GetBankSlot(1))
	w.WriteUint8(s.mem.GetBankSlot(2))
	w.WriteUint8(s.mem.GetRAMControl())

	w.WriteBytes(s.vdp.VRAM())
	w.WriteBytes(s.vdp.CRAM())
	for i := 0; i < 16; i++ {
		w.WriteUint8(s.vdp.Register(i))
	}
	w.WriteUint16(s.vdp.Address())
	w.WriteUint8(s.vdp.CodeReg())
	w.WriteBool(s.vdp.WriteLatch())
	w.WriteUint8(s.vdp.Status())
	w.WriteInt16(s.vdp.LineCounter())

	w.WriteUint16(s.psg.ToneReg(0))
	w.WriteUint16(s.psg.ToneReg(1))
	w.WriteUint16(s.psg.ToneReg(2))
	w.WriteUint8(s.psg.Volume(0))
	w.WriteUint8(s.psg.Volume(1))
	w.WriteUint8(s.psg.Volume(2))
	w.WriteUint8(s.psg.Volume(3))
	w.WriteUint8(s.psg.NoiseReg())

	w.WriteUint8(s.io.Input.Port1)
	w.WriteUint8(s.io.Input.Port2)

	w.WriteUint64(s.frameCount)
	w.WriteUint64(s.totalCycles)

	return w.Bytes()
}

func (s *System) deserializePayload(data []byte) error {
	r := statebuf.NewReader(data)

	var reg z80core.RegisterState
	reg.A = r.ReadUint8()
	reg.F = r.ReadUint8()
	reg.B = r.ReadUint8()
	reg.C = r.ReadUint8()
	reg.D = r.ReadUint8()
	reg.E = r.ReadUint8()
	reg.H = r.ReadUint8()
	reg.L = r.ReadUint8()
	reg.A2 = r.ReadUint8()
	reg.F2 = r.ReadUint8()
	reg.B2 = r.ReadUint8()
	reg.C2 = r.ReadUint8()
	reg.D2 = r.ReadUint8()
	reg.E2 = r.ReadUint8()
	reg.H2 = r.ReadUint8()
	reg.L2 = r.ReadUint8()
	reg.IX = r.ReadUint16()
	reg.IY = r.ReadUint16()
	reg.SP = r.ReadUint16()
	reg.PC = r.ReadUint16()
	reg.I = r.ReadUint8()
	reg.R = r.ReadUint8()
	reg.IFF1 = r.ReadBool()
	reg.IFF2 = r.ReadBool()
	reg.IM = int(r.ReadUint8())
	reg.HALT = r.ReadBool()
	s.cpu.SetRegisters(reg)

	r.ReadInto(s.mem.SystemRAM()[:])
	r.ReadInto(s.mem.CartRAM()[:])
	s.mem.bankSlot[0] = r.ReadUint8()
	s.mem.bankSlot[1] = r.ReadUint8()
	s.mem.bankSlot[2] = r.ReadUint8()
	s.mem.ramControl = r.ReadUint8()

	r.ReadInto(s.vdp.VRAM())
	r.ReadInto(s.vdp.CRAM())
	for i := 0; i < 16; i++ {
		s.vdp.register[i] = r.ReadUint8()
	}
	s.vdp.addr = r.ReadUint16()
	s.vdp.codeReg = r.ReadUint8()
	s.vdp.writeLatch = r.ReadBool()
	s.vdp.status = r.ReadUint8()
	s.vdp.lineCounter = r.ReadInt16()

	s.psg.toneReg[0] = r.ReadUint16()
	s.psg.toneReg[1] = r.ReadUint16()
	s.psg.toneReg[2] = r.ReadUint16()
	s.psg.volume[0] = r.ReadUint8()
	s.psg.volume[1] = r.ReadUint8()
	s.psg.volume[2] = r.ReadUint8()
	s.psg.volume[3] = r.ReadUint8()
	s.psg.noiseReg = r.ReadUint8()
	s.psg.ring.Reset()

	s.io.Input.Port1 = r.ReadUint8()
	s.io.Input.Port2 = r.ReadUint8()

	s.frameCount = r.ReadUint64()
	s.totalCycles = r.ReadUint64()

	return r.Err
}
