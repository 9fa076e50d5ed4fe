// Package gb implements the Game Boy (DMG) core: a hand-written SM83 CPU
// with the halt bug and documented DAA/SCF/CCF behavior, a scanline PPU
// producing 2-bit palette-index framebuffers, a four-channel APU, the
// MBC1/MBC3 cartridge controllers, and the bus/timer glue, driven in
// lockstep by System. Grounded on user-none-eMkIII/emu's overall
// component shape (bus/CPU/video/audio, one System aggregate) and on
// _examples/hejops-gone/cpu for the register-index-table style of
// decoding LD r,r' and ALU op,r blocks that spec.md §9 calls for.
package gb

import (
	"encoding/binary"
	"errors"
	"hash/crc32"

	"github.com/user-none/multicore/internal/core"
	"github.com/user-none/multicore/internal/statebuf"
)

var _ core.System = (*System)(nil)

const (
	cpuClockHz = 4194304
	sampleRate = 44100
	fps        = 4194304 / cyclesScanline / totalScanlines

	stateVersion    = 1
	stateMagic      = "MCORE-GB-v1"
	stateHeaderSize = 12 + 2 + 4 + 4
)

// System is the DMG aggregate: CPU, bus, PPU, APU, timer, and cartridge,
// advanced one frame at a time by Frame/Step (spec.md §4.6), following
// sms/system.go's aggregate shape.
type System struct {
	cpu  *CPU
	bus  *Bus
	ppu  *PPU
	apu  *APU
	tmr  *Timer
	cart Cartridge

	romCRC uint32

	frameCount  uint64
	totalCycles uint64

	renderGraphics bool
}

// New creates a System in a default, ROM-less state. Call LoadROM before
// advancing frames.
func New() *System {
	s := &System{renderGraphics: true}
	s.reset(nil)
	return s
}

func (s *System) reset(rom []byte) {
	if rom == nil {
		rom = minimalROM()
	}
	cart, err := parseCartridge(rom)
	if err != nil {
		cart = newROMOnly(padTo(rom, 0x8000))
	}

	ppu := NewPPU()
	apu := NewAPU(cpuClockHz, sampleRate, sampleRate/4)
	tmr := NewTimer()
	bus := NewBus(cart, ppu, apu, tmr)
	cpu := NewCPU(bus)

	s.cpu = cpu
	s.bus = bus
	s.ppu = ppu
	s.apu = apu
	s.tmr = tmr
	s.cart = cart
	s.romCRC = crc32.ChecksumIEEE(rom)
	s.ppu.SetRenderGraphics(s.renderGraphics)
}

// minimalROM is the placeholder cartridge New() maps in before LoadROM,
// matching sms.System's nil-rom fallback.
func minimalROM() []byte {
	rom := make([]byte, 0x8000)
	rom[0x0147] = 0x00
	return rom
}

func padTo(rom []byte, size int) []byte {
	if len(rom) >= size {
		return rom
	}
	out := make([]byte, size)
	copy(out, rom)
	return out
}

// LoadROM parses the cartridge-type byte at 0x0147 (spec.md §6.3) and
// resets to a post-power-on state with it mapped in.
func (s *System) LoadROM(rom []byte) error {
	if len(rom) < 0x150 {
		return errors.New("gb: rom too short to contain a header")
	}
	s.reset(rom)
	return nil
}

// SkipBoot seeds the CPU/PPU with the documented post-boot-ROM state
// (spec.md §6.1); since this core never executes the physical boot ROM,
// Reset() already leaves the CPU there, so this exists as the explicit,
// named entry point callers are expected to invoke once after LoadROM.
func (s *System) SkipBoot() {
	s.cpu.Reset()
	s.bus.bootDisabled = true
}

// Step executes one SM83 instruction (ticking the PPU/APU/timer by the
// same cycle count) and returns its T-state cost.
func (s *System) Step() int {
	cycles := s.cpu.Step(s.bus.IFRegister(), s.bus.IERegister())
	s.tick(cycles)
	s.totalCycles += uint64(cycles)
	return cycles
}

func (s *System) tick(cycles int) {
	s.tmr.Tick(cycles)
	s.ppu.Tick(cycles)
	s.apu.Tick(cycles)

	if s.ppu.VBlankPending() {
		s.bus.ifReg |= 0x01
	}
	if s.ppu.StatPending() {
		s.bus.ifReg |= 0x02
	}
	if s.tmr.IRQPending() {
		s.bus.ifReg |= 0x04
	}
}

// Frame runs the CPU until the PPU's mode-1 vblank line is crossed, the
// same "advance until the video frame counter increments" contract
// sms/system.go's Frame implements via its fixed-point scanline scheduler;
// here driven directly off PPU.LY since the DMG scanline length is fixed.
func (s *System) Frame() {
	inVBlank := s.ppu.LY() >= ScreenHeight

	for {
		s.Step()
		ly := s.ppu.LY()
		if inVBlank {
			inVBlank = ly >= ScreenHeight
			continue
		}
		if ly >= ScreenHeight {
			break
		}
	}
	s.frameCount++
}

func (s *System) SetInput(mask uint8) { s.bus.SetInput(ButtonState(mask)) }

// FrameBuffer returns the 160×144 buffer of 2-bit palette indices (spec.md
// §6.5); unlike the other three systems, this is not a 32-bit pixel
// format — callers apply their own palette to convert to ARGB.
func (s *System) FrameBuffer() []byte { return s.ppu.Framebuffer() }

func (s *System) ReadAudio(out []int16) int { return s.apu.Ring().Drain(out) }

func (s *System) Read(addr uint32) uint8       { return s.bus.Read(uint16(addr)) }
func (s *System) Write(addr uint32, val uint8) { s.bus.Write(uint16(addr), val) }
func (s *System) RAM() []byte                  { return s.bus.WRAM() }
func (s *System) FrameCount() uint64           { return s.frameCount }
func (s *System) TotalCycles() uint64          { return s.totalCycles }

func (s *System) SetRenderGraphics(on bool) { s.renderGraphics = on; s.ppu.SetRenderGraphics(on) }
func (s *System) SetRenderAudio(on bool)    { s.apu.SetRenderAudio(on) }

func (s *System) SaveRAM() []byte {
	cart := s.cart.RAM()
	out := make([]byte, len(cart))
	copy(out, cart)
	return out
}

func (s *System) LoadSaveRAM(data []byte) error {
	cart := s.cart.RAM()
	n := copy(cart, data)
	for i := n; i < len(cart); i++ {
		cart[i] = 0
	}
	return nil
}

// SaveState serializes CPU, bus, PPU, APU, and timer state into a
// fixed-layout blob guarded by a magic/version/ROM-CRC32/data-CRC32 header,
// the same shape as sms/system.go's SaveState. The audio ring and
// framebuffer are transient and excluded (spec.md §6.4).
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

func (s *System) LoadState(blob []byte) error {
	if len(blob) < stateHeaderSize {
		return errors.New("gb: save state truncated")
	}
	var magic [12]byte
	copy(magic[:], stateMagic)
	if string(blob[0:12]) != string(magic[:]) {
		return errors.New("gb: save state magic mismatch")
	}
	if binary.LittleEndian.Uint16(blob[12:14]) != stateVersion {
		return errors.New("gb: save state version mismatch")
	}
	if binary.LittleEndian.Uint32(blob[14:18]) != s.romCRC {
		return errors.New("gb: save state rom mismatch")
	}
	payload := blob[stateHeaderSize:]
	if binary.LittleEndian.Uint32(blob[18:22]) != crc32.ChecksumIEEE(payload) {
		return errors.New("gb: save state data corrupt")
	}
	return s.deserializePayload(payload)
}

func (s *System) serializePayload() []byte {
	w := statebuf.NewWriter()

	w.WriteUint8(s.cpu.A)
	w.WriteUint8(s.cpu.F)
	w.WriteUint8(s.cpu.B)
	w.WriteUint8(s.cpu.C)
	w.WriteUint8(s.cpu.D)
	w.WriteUint8(s.cpu.E)
	w.WriteUint8(s.cpu.H)
	w.WriteUint8(s.cpu.L)
	w.WriteUint16(s.cpu.SP)
	w.WriteUint16(s.cpu.PC)
	w.WriteBool(s.cpu.ime)
	w.WriteBool(s.cpu.imeScheduled)
	w.WriteBool(s.cpu.halted)
	w.WriteBool(s.cpu.stopped)
	w.WriteBool(s.cpu.haltBug)

	w.WriteBytes(s.bus.WRAM())
	w.WriteBytes(s.bus.HRAM())
	w.WriteUint8(s.bus.ifReg)
	w.WriteUint8(s.bus.ieReg)
	w.WriteBool(s.bus.joypSelectButtons)
	w.WriteBool(s.bus.joypSelectDirs)
	w.WriteUint8(uint8(s.bus.buttons))
	w.WriteBool(s.bus.bootDisabled)

	w.WriteBytes(s.ppu.VRAM())
	for i := range s.ppu.oam {
		w.WriteUint8(s.ppu.oam[i].y)
		w.WriteUint8(s.ppu.oam[i].x)
		w.WriteUint8(s.ppu.oam[i].tile)
		w.WriteUint8(s.ppu.oam[i].attr)
	}
	w.WriteUint8(s.ppu.lcdc)
	w.WriteUint8(s.ppu.stat)
	w.WriteUint8(s.ppu.scy)
	w.WriteUint8(s.ppu.scx)
	w.WriteUint8(s.ppu.ly)
	w.WriteUint8(s.ppu.lyc)
	w.WriteUint8(s.ppu.wy)
	w.WriteUint8(s.ppu.wx)
	w.WriteUint8(s.ppu.bgp)
	w.WriteUint8(s.ppu.obp0)
	w.WriteUint8(s.ppu.obp1)
	w.WriteUint8(s.ppu.mode)
	w.WriteUint32(uint32(s.ppu.modeClock))
	w.WriteUint32(uint32(s.ppu.windowLine))

	w.WriteUint16(s.tmr.div)
	w.WriteUint8(s.tmr.tima)
	w.WriteUint8(s.tmr.tma)
	w.WriteUint8(s.tmr.tac)
	w.WriteUint32(uint32(s.tmr.reloadDelay))

	w.WriteUint64(s.frameCount)
	w.WriteUint64(s.totalCycles)

	return w.Bytes()
}

func (s *System) deserializePayload(data []byte) error {
	r := statebuf.NewReader(data)

	s.cpu.A = r.ReadUint8()
	s.cpu.F = r.ReadUint8()
	s.cpu.B = r.ReadUint8()
	s.cpu.C = r.ReadUint8()
	s.cpu.D = r.ReadUint8()
	s.cpu.E = r.ReadUint8()
	s.cpu.H = r.ReadUint8()
	s.cpu.L = r.ReadUint8()
	s.cpu.SP = r.ReadUint16()
	s.cpu.PC = r.ReadUint16()
	s.cpu.ime = r.ReadBool()
	s.cpu.imeScheduled = r.ReadBool()
	s.cpu.halted = r.ReadBool()
	s.cpu.stopped = r.ReadBool()
	s.cpu.haltBug = r.ReadBool()

	r.ReadInto(s.bus.WRAM())
	r.ReadInto(s.bus.HRAM())
	s.bus.ifReg = r.ReadUint8()
	s.bus.ieReg = r.ReadUint8()
	s.bus.joypSelectButtons = r.ReadBool()
	s.bus.joypSelectDirs = r.ReadBool()
	s.bus.buttons = ButtonState(r.ReadUint8())
	s.bus.bootDisabled = r.ReadBool()

	r.ReadInto(s.ppu.VRAM())
	for i := range s.ppu.oam {
		s.ppu.oam[i].y = r.ReadUint8()
		s.ppu.oam[i].x = r.ReadUint8()
		s.ppu.oam[i].tile = r.ReadUint8()
		s.ppu.oam[i].attr = r.ReadUint8()
	}
	s.ppu.lcdc = r.ReadUint8()
	s.ppu.stat = r.ReadUint8()
	s.ppu.scy = r.ReadUint8()
	s.ppu.scx = r.ReadUint8()
	s.ppu.ly = r.ReadUint8()
	s.ppu.lyc = r.ReadUint8()
	s.ppu.wy = r.ReadUint8()
	s.ppu.wx = r.ReadUint8()
	s.ppu.bgp = r.ReadUint8()
	s.ppu.obp0 = r.ReadUint8()
	s.ppu.obp1 = r.ReadUint8()
	s.ppu.mode = r.ReadUint8()
	s.ppu.modeClock = int(r.ReadUint32())
	s.ppu.windowLine = int(r.ReadUint32())

	s.tmr.div = r.ReadUint16()
	s.tmr.tima = r.ReadUint8()
	s.tmr.tma = r.ReadUint8()
	s.tmr.tac = r.ReadUint8()
	s.tmr.reloadDelay = int(r.ReadUint32())

	s.frameCount = r.ReadUint64()
	s.totalCycles = r.ReadUint64()
	s.apu.Ring().Reset()

	return r.Err
}
