// Package genesis implements the Sega Genesis / Mega Drive core: the
// real go-chip-m68k 68000 as the main CPU, a Z80 sub-processor built on
// internal/z80core for FM/PSG sound driving, a dual-plane VDP with DMA,
// an SN76489 PSG, and a YM2612 functional stub, driven in lockstep by
// System. Grounded on user-none-eMkIII/emu/emulator.go's scanline-driven
// EmulatorBase for overall shape, generalized to the dual-CPU, dual-clock
// scheduling spec.md §4.6 documents for this system.
package genesis

import (
	"encoding/binary"
	"errors"
	"hash/crc32"

	m68k "github.com/user-none/go-chip-m68k"
	"github.com/user-none/multicore/internal/core"
	"github.com/user-none/multicore/internal/statebuf"
	"github.com/user-none/multicore/internal/z80core"
)

var _ core.System = (*System)(nil)

const (
	sampleRate = 44100

	stateVersion    = 1
	stateMagic      = "MCORE-GEN-v1"
	stateHeaderSize = 12 + 2 + 4 + 4
)

// cyclesPerLine approximates the 68000's per-scanline cycle budget at
// NTSC rates (7.67MHz / 59.92fps / 262 lines); spec.md's Non-goals
// exclude cycle-exact bus contention, so this is a fixed average rather
// than a per-instruction-accurate dot clock.
const cyclesPerLine = 488

// fmClocksPerSample approximates the 68000-clock-to-sample-rate ratio
// (7.67MHz / 44100Hz) the FM stub's DAC passthrough ticks against.
const fmClocksPerSample = 7670000.0 / sampleRate

type Region int

const (
	RegionNTSC Region = iota
	RegionPAL
)

type Options struct {
	Region Region
}

type System struct {
	cpu *m68k.CPU
	bus *Bus
	vdp *VDP
	psg *PSG
	fm  *FM
	io  *IO
	z80 *Z80Sub

	region    Region
	scanlines int

	z80CycleDebt   float64
	fmClockCounter float64

	romCRC uint32
	rom    []byte

	frameCount  uint64
	totalCycles uint64

	renderGraphics bool
}

// New creates a System in a default, ROM-less state with the 68000 already
// reset to its documented power-on register file (spec.md §3.5/§8.3.5),
// matching gb.New/nes.New/sms.New's immediate s.reset(nil) rather than
// leaving cpu/bus/vdp/psg/fm/io/z80 nil until LoadROM.
func New(opts Options) *System {
	s := &System{region: opts.Region}
	s.reset(nil)
	return s
}

func (s *System) reset(rom []byte) {
	if rom == nil {
		rom = minimalROM()
	}
	s.rom = rom
	s.romCRC = crc32.ChecksumIEEE(rom)

	s.vdp = NewVDP()
	s.psg = NewPSG(3579545, sampleRate, 8192)
	s.fm = NewFM(8192)
	s.io = NewIO()
	s.z80 = NewZ80Sub(s.fm, s.psg)

	s.bus = NewBus(rom, s.vdp, s.io, s.z80)
	s.vdp.AttachBus(s.bus)
	s.z80.AttachMainBus(s.bus)

	s.cpu = m68k.New(s.bus)

	if s.region == RegionPAL {
		s.scanlines = 313
	} else {
		s.scanlines = 262
	}
	s.vdp.SetTotalScanlines(s.scanlines)

	s.renderGraphics = true
	s.vdp.SetRenderGraphics(true)
}

// LoadROM requires at least a 0x200-byte header (spec.md's cartridge
// header region extends through the SRAM descriptor at 0x1B0-0x1BB).
func (s *System) LoadROM(rom []byte) error {
	if len(rom) < 0x200 {
		return errors.New("genesis: ROM image too short to contain a header")
	}
	s.reset(rom)
	return nil
}

// minimalROM is the placeholder cartridge New() maps in before LoadROM,
// matching gb.minimalROM/sms's nil-rom fallback: large enough that header
// and SRAM-descriptor reads stay in bounds, contents otherwise zero.
func minimalROM() []byte {
	return make([]byte, 0x200)
}

func (s *System) Step() int {
	cycles := s.cpu.Step()
	if cycles <= 0 {
		cycles = 4
	}
	s.totalCycles += uint64(cycles)
	s.stepPeripherals(cycles)
	return cycles
}

// stepPeripherals advances the Z80 sub-CPU at half the 68000's rate
// (honoring its bus-grant/reset lines) and the PSG/FM at the 68000 rate
// scaled down internally, per spec.md §4.6.
func (s *System) stepPeripherals(cycles68k int) {
	s.psg.Tick(cycles68k)
	s.fm.Tick(cycles68k, fmClocksPerSample, &s.fmClockCounter)

	if s.bus.Z80BusGranted() || s.bus.Z80Halted() {
		return
	}
	s.z80CycleDebt += float64(cycles68k) / 2.0
	for s.z80CycleDebt > 0 {
		used := s.z80.CPU().Step()
		s.z80CycleDebt -= float64(used)
	}
}

// Frame drives the 68000 for one full scanline sweep, updating the VDP's
// V/H counters and raising its V-int (level 6) / H-int (level 4) at the
// documented points, refreshing the CPU's IRQ level before every step so
// a pending interrupt always takes effect on the next instruction.
func (s *System) Frame() {
	for line := 0; line < s.scanlines; line++ {
		s.vdp.SetVCounter(line)

		budget := cyclesPerLine
		for budget > 0 {
			s.refreshInterrupt()
			budget -= s.Step()
		}

		if line < 224 {
			s.vdp.RenderScanline()
		}
		s.vdp.UpdateLineCounter()

		if line == 224 {
			s.vdp.SetVBlankFlag()
		}
	}
	s.vdp.ClearVBlankFlagLatch()
	s.frameCount++
}

func (s *System) refreshInterrupt() {
	vint, hint := s.vdp.InterruptPending()
	switch {
	case vint:
		s.cpu.RequestInterrupt(6, nil)
	case hint:
		s.cpu.RequestInterrupt(4, nil)
	}
}

func (s *System) SetInput(mask uint8) { s.io.SetInput(mask) }

func (s *System) FrameBuffer() []byte { return s.vdp.Framebuffer().Pix }

func (s *System) ReadAudio(out []int16) int {
	half := len(out) / 2
	if half == 0 {
		return 0
	}
	mixBuf := make([]int16, len(out))
	n := s.psg.Ring().Drain(mixBuf)
	fmBuf := make([]int16, len(out))
	s.fm.Ring().Drain(fmBuf[:n*2])
	for i := 0; i < n*2; i++ {
		sum := int32(mixBuf[i]) + int32(fmBuf[i])
		if sum > 32767 {
			sum = 32767
		} else if sum < -32768 {
			sum = -32768
		}
		out[i] = int16(sum)
	}
	return n
}

func (s *System) Read(addr uint32) uint8       { return s.bus.ReadByte(addr) }
func (s *System) Write(addr uint32, val uint8) { s.bus.Write(m68k.Byte, addr, uint32(val)) }
func (s *System) RAM() []byte                  { return s.bus.workRAM[:] }

func (s *System) FrameCount() uint64  { return s.frameCount }
func (s *System) TotalCycles() uint64 { return s.totalCycles }

func (s *System) SetRenderGraphics(on bool) { s.renderGraphics = on; s.vdp.SetRenderGraphics(on) }
func (s *System) SetRenderAudio(on bool)    { s.psg.SetRenderAudio(on) }

func (s *System) SaveRAM() []byte {
	sram := s.bus.SRAM()
	out := make([]byte, len(sram))
	copy(out, sram)
	return out
}

func (s *System) LoadSaveRAM(data []byte) error {
	sram := s.bus.SRAM()
	n := len(data)
	if n > len(sram) {
		n = len(sram)
	}
	copy(sram, data[:n])
	for i := n; i < len(sram); i++ {
		sram[i] = 0
	}
	return nil
}

func (s *System) SaveState() []byte {
	payload := s.serializePayload()

	buf := make([]byte, stateHeaderSize+len(payload))
	copy(buf[0:12], stateMagic)
	binary.LittleEndian.PutUint16(buf[12:14], stateVersion)
	binary.LittleEndian.PutUint32(buf[14:18], s.romCRC)
	binary.LittleEndian.PutUint32(buf[18:22], crc32.ChecksumIEEE(payload))
	copy(buf[stateHeaderSize:], payload)
	return buf
}

// LoadState verifies the header (magic, version, ROM CRC32, data CRC32)
// before mutating any state, so a corrupt or mismatched blob leaves the
// running system untouched.
func (s *System) LoadState(blob []byte) error {
	if len(blob) < stateHeaderSize {
		return errors.New("genesis: save state truncated")
	}
	if string(blob[0:12]) != stateMagic {
		return errors.New("genesis: save state magic mismatch")
	}
	if binary.LittleEndian.Uint16(blob[12:14]) != stateVersion {
		return errors.New("genesis: save state version mismatch")
	}
	if binary.LittleEndian.Uint32(blob[14:18]) != s.romCRC {
		return errors.New("genesis: save state was captured with a different ROM")
	}
	payload := blob[stateHeaderSize:]
	if binary.LittleEndian.Uint32(blob[18:22]) != crc32.ChecksumIEEE(payload) {
		return errors.New("genesis: save state data corrupt")
	}
	return s.deserializePayload(payload)
}

func (s *System) serializePayload() []byte {
	w := statebuf.NewWriter()

	cpuBuf := make([]byte, s.cpu.SerializeSize())
	s.cpu.Serialize(cpuBuf)
	w.WriteUint32(uint32(len(cpuBuf)))
	w.WriteBytes(cpuBuf)

	w.WriteBytes(s.bus.workRAM[:])
	w.WriteBytes(s.z80.ram[:])

	z80core.WriteRegisterState(w, s.z80.cpu.Registers())

	w.WriteBytes(s.vdp.vram[:])
	w.WriteBytes(s.vdp.cram[:])
	w.WriteBytes(s.vdp.vsram[:])
	for _, r := range s.vdp.registers {
		w.WriteUint8(r)
	}
	w.WriteUint32(s.vdp.addr)
	w.WriteUint8(s.vdp.code)
	w.WriteBool(s.vdp.pendingFirstWord)
	w.WriteUint16(s.vdp.firstWord)
	w.WriteUint16(s.vdp.readBuffer)
	w.WriteUint16(s.vdp.status)
	w.WriteInt16(int16(s.vdp.lineCounter))
	w.WriteBool(s.vdp.lineIntPending)
	w.WriteBool(s.vdp.vblankPending)
	w.WriteBool(s.vdp.dmaFillPending)
	w.WriteUint32(uint32(s.vdp.dmaFillLength))

	w.WriteUint32(uint32(s.z80.bankBit))
	w.WriteUint32(s.z80.bankAddr)

	w.WriteBytes(s.io.data[:])
	w.WriteBytes(s.io.ctrl[:])
	for _, p := range s.io.pad {
		w.WriteUint8(p.mask)
		w.WriteUint8(p.ext)
	}
	for _, b := range s.io.sixBtn {
		w.WriteBool(b)
	}
	for _, c := range s.io.thCount {
		w.WriteUint32(uint32(c))
	}

	for _, t := range s.psg.toneReg {
		w.WriteUint16(t)
	}
	for _, vol := range s.psg.volume {
		w.WriteUint8(vol)
	}
	w.WriteUint8(s.psg.noiseReg)

	w.WriteUint64(s.frameCount)
	w.WriteUint64(s.totalCycles)

	return w.Bytes()
}

func (s *System) deserializePayload(data []byte) error {
	r := statebuf.NewReader(data)

	cpuLen := r.ReadUint32()
	cpuBuf := make([]byte, cpuLen)
	r.ReadInto(cpuBuf)
	if r.Err == nil {
		s.cpu.Deserialize(cpuBuf)
	}

	r.ReadInto(s.bus.workRAM[:])
	r.ReadInto(s.z80.ram[:])

	s.z80.cpu.SetRegisters(z80core.ReadRegisterState(r))

	r.ReadInto(s.vdp.vram[:])
	r.ReadInto(s.vdp.cram[:])
	r.ReadInto(s.vdp.vsram[:])
	for i := range s.vdp.registers {
		s.vdp.registers[i] = r.ReadUint8()
	}
	s.vdp.addr = r.ReadUint32()
	s.vdp.code = r.ReadUint8()
	s.vdp.pendingFirstWord = r.ReadBool()
	s.vdp.firstWord = r.ReadUint16()
	s.vdp.readBuffer = r.ReadUint16()
	s.vdp.status = r.ReadUint16()
	s.vdp.lineCounter = int(r.ReadInt16())
	s.vdp.lineIntPending = r.ReadBool()
	s.vdp.vblankPending = r.ReadBool()
	s.vdp.dmaFillPending = r.ReadBool()
	s.vdp.dmaFillLength = int(r.ReadUint32())

	s.z80.bankBit = int(r.ReadUint32())
	s.z80.bankAddr = r.ReadUint32()

	r.ReadInto(s.io.data[:])
	r.ReadInto(s.io.ctrl[:])
	for i := range s.io.pad {
		s.io.pad[i].mask = r.ReadUint8()
		s.io.pad[i].ext = r.ReadUint8()
	}
	for i := range s.io.sixBtn {
		s.io.sixBtn[i] = r.ReadBool()
	}
	for i := range s.io.thCount {
		s.io.thCount[i] = int(r.ReadUint32())
	}

	for i := range s.psg.toneReg {
		s.psg.toneReg[i] = r.ReadUint16()
	}
	for i := range s.psg.volume {
		s.psg.volume[i] = r.ReadUint8()
	}
	s.psg.noiseReg = r.ReadUint8()

	s.frameCount = r.ReadUint64()
	s.totalCycles = r.ReadUint64()

	s.psg.Ring().Reset()
	s.fm.Ring().Reset()

	return r.Err
}
