// Package nes implements the NES core: a hand-written NMOS 6502 with its
// documented undocumented behaviors, a per-pixel PPU, a five-channel APU,
// the common mapper families, and the bus gluing them together, driven in
// lockstep by System. Grounded on user-none-eMkIII/emu's overall
// component shape (bus/CPU/video/audio/mapper, one System aggregate) and
// on _examples/hejops-gone/cpu for 6502 register-file naming conventions,
// generalized into the opcode-dispatch-table style spec.md §3.2 calls for.
package nes

import (
	"encoding/binary"
	"errors"
	"hash/crc32"

	"github.com/user-none/multicore/internal/core"
	"github.com/user-none/multicore/internal/statebuf"
)

var _ core.System = (*System)(nil)

const (
	cpuClockHz = 1789773
	sampleRate = 44100

	stateVersion    = 1
	stateMagic      = "MCORE-NES-v1"
	stateHeaderSize = 12 + 2 + 4 + 4
)

// System is the NES aggregate: CPU, bus, PPU, APU, and the active mapper,
// advanced one frame at a time by Frame/Step (spec.md §3.4).
type System struct {
	cpu *CPU
	ppu *PPU
	apu *APU
	bus *Bus

	mapper Mapper
	romCRC uint32
	rom    []byte

	prgRAM [0x2000]uint8

	frameCount  uint64
	totalCycles uint64

	renderGraphics bool
	renderAudio    bool
}

func New() *System {
	s := &System{renderGraphics: true, renderAudio: true}
	s.reset(nil)
	return s
}

func (s *System) reset(mapper Mapper) {
	ppu := NewPPU()
	apu := NewAPU(cpuClockHz, sampleRate, 8192)

	if mapper == nil {
		mapper = &nromMapper{romBanks: romBanks{prg: make([]byte, 0x8000), chr: make([]byte, 0x2000), chrIsRAM: true}}
	}

	bus := NewBus(ppu, apu, mapper)
	ppu.AttachVRAM(bus)
	cpu := NewCPU(bus)
	bus.AttachCPU(cpu)

	s.cpu = cpu
	s.ppu = ppu
	s.apu = apu
	s.bus = bus
	s.mapper = mapper
	s.ppu.SetRenderGraphics(s.renderGraphics)
	s.apu.SetRenderAudio(s.renderAudio)
}

// LoadROM parses the iNES header, selects a mapper, and resets to a
// post-power-on state with it mapped in (spec.md §7 loader-rejects-input).
func (s *System) LoadROM(rom []byte) error {
	mapper, err := parseINES(rom)
	if err != nil {
		return err
	}
	s.rom = append([]byte(nil), rom...)
	s.romCRC = crc32.ChecksumIEEE(s.rom)
	s.reset(mapper)
	return nil
}

// Step executes one CPU instruction, applies any OAM-DMA stall the
// instruction's $4014 write incurred, and ticks the PPU three times and the
// APU once per CPU cycle consumed (the 2C02's documented 3:1 dot-to-cycle
// ratio).
func (s *System) Step() int {
	if s.ppu.PendingNMI() {
		s.cpu.RequestNMI()
	}
	s.cpu.SetIRQLine(s.mapper.IRQPending() || s.apu.IRQPending())

	s.bus.SetCycleCount(s.totalCycles)
	cycles := s.cpu.Step() + s.bus.TakeDMAStall()
	s.totalCycles += uint64(cycles)
	s.tickPeripherals(cycles)
	return cycles
}

func (s *System) tickPeripherals(cpuCycles int) {
	for i := 0; i < cpuCycles*3; i++ {
		s.ppu.Step()
		s.mapper.Clock(s.ppu.Scanline(), s.ppu.Cycle(), s.ppu.renderingEnabled())
	}
	s.apu.Tick(cpuCycles)
}

// Frame runs CPU steps until the PPU completes one frame (scanline 261's
// pre-render line wrapping back to 0).
func (s *System) Frame() {
	for {
		if s.ppu.PendingNMI() {
			s.cpu.RequestNMI()
		}
		s.cpu.SetIRQLine(s.mapper.IRQPending() || s.apu.IRQPending())

		s.bus.SetCycleCount(s.totalCycles)
		cycles := s.cpu.Step() + s.bus.TakeDMAStall()
		s.totalCycles += uint64(cycles)

		done := false
		for i := 0; i < cycles*3; i++ {
			if s.ppu.Step() {
				done = true
			}
			s.mapper.Clock(s.ppu.Scanline(), s.ppu.Cycle(), s.ppu.renderingEnabled())
		}
		s.apu.Tick(cycles)

		if done {
			break
		}
	}
	s.frameCount++
}

// SetInput applies the uniform 8-bit mask (spec.md §6.2 NES layout,
// A,B,Select,Start,Up,Down,Left,Right) to controller port 1.
func (s *System) SetInput(mask uint8) { s.bus.SetController(0, ControllerState(mask)) }

func (s *System) FrameBuffer() []byte { return s.ppu.Framebuffer().Pix }

func (s *System) ReadAudio(out []int16) int { return s.apu.Ring().Drain(out) }

func (s *System) Read(addr uint32) uint8       { return s.bus.Read(uint16(addr)) }
func (s *System) Write(addr uint32, val uint8) { s.bus.Write(uint16(addr), val) }
func (s *System) RAM() []byte                  { return s.bus.RAM() }

func (s *System) FrameCount() uint64  { return s.frameCount }
func (s *System) TotalCycles() uint64 { return s.totalCycles }

func (s *System) SetRenderGraphics(on bool) { s.renderGraphics = on; s.ppu.SetRenderGraphics(on) }
func (s *System) SetRenderAudio(on bool)    { s.renderAudio = on; s.apu.SetRenderAudio(on) }

func (s *System) SaveRAM() []byte {
	out := make([]byte, len(s.prgRAM))
	copy(out, s.prgRAM[:])
	return out
}

func (s *System) LoadSaveRAM(data []byte) error {
	n := copy(s.prgRAM[:], data)
	for i := n; i < len(s.prgRAM); i++ {
		s.prgRAM[i] = 0
	}
	return nil
}

// SaveState serializes CPU, PPU, APU, CIRAM, and mapper-internal state
// (bank registers and CHR-RAM, via Mapper.SerializeState) into a
// fixed-layout blob guarded by a magic/version/ROM-CRC32/data-CRC32 header,
// matching sms/system.go's and genesis/system.go's exact layout style.
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
		return errors.New("nes: save state truncated")
	}
	if string(blob[0:12]) != stateMagic {
		return errors.New("nes: save state magic mismatch")
	}
	if binary.LittleEndian.Uint16(blob[12:14]) != stateVersion {
		return errors.New("nes: save state version mismatch")
	}
	if binary.LittleEndian.Uint32(blob[14:18]) != s.romCRC {
		return errors.New("nes: save state rom mismatch")
	}
	payload := blob[stateHeaderSize:]
	if binary.LittleEndian.Uint32(blob[18:22]) != crc32.ChecksumIEEE(payload) {
		return errors.New("nes: save state data corrupt")
	}
	return s.deserializePayload(payload)
}

func (s *System) serializePayload() []byte {
	w := statebuf.NewWriter()

	w.WriteUint8(s.cpu.A)
	w.WriteUint8(s.cpu.X)
	w.WriteUint8(s.cpu.Y)
	w.WriteUint8(s.cpu.SP)
	w.WriteUint16(s.cpu.PC)
	w.WriteUint8(s.cpu.P)
	w.WriteBool(s.cpu.nmiPending)
	w.WriteBool(s.cpu.irqLine)
	w.WriteBool(s.cpu.halted)
	w.WriteUint64(s.cpu.cycles)

	w.WriteBytes(s.bus.RAM())
	w.WriteBytes(s.prgRAM[:])

	w.WriteBytes(s.ppu.PaletteRAM())
	w.WriteBytes(s.ppu.OAM())
	w.WriteUint16(s.ppu.vramAddr)
	w.WriteUint16(s.ppu.tempAddr)
	w.WriteUint8(s.ppu.fineX)
	w.WriteUint8(s.ppu.ctrl)
	w.WriteUint8(s.ppu.mask)
	w.WriteUint8(s.ppu.status)
	w.WriteUint8(s.ppu.oamAddr)
	w.WriteUint16(uint16(s.ppu.scanline))
	w.WriteUint16(uint16(s.ppu.cycle))
	w.WriteBool(s.ppu.nmiOccurred)
	w.WriteBool(s.ppu.nmiOutput)
	w.WriteBool(s.ppu.spriteZeroHit)
	w.WriteBool(s.ppu.spriteOverflow)

	w.WriteBytes(s.bus.CIRAM())
	s.mapper.SerializeState(w)

	w.WriteUint64(s.frameCount)
	w.WriteUint64(s.totalCycles)

	return w.Bytes()
}

func (s *System) deserializePayload(data []byte) error {
	r := statebuf.NewReader(data)

	s.cpu.A = r.ReadUint8()
	s.cpu.X = r.ReadUint8()
	s.cpu.Y = r.ReadUint8()
	s.cpu.SP = r.ReadUint8()
	s.cpu.PC = r.ReadUint16()
	s.cpu.P = r.ReadUint8()
	s.cpu.nmiPending = r.ReadBool()
	s.cpu.irqLine = r.ReadBool()
	s.cpu.halted = r.ReadBool()
	s.cpu.cycles = r.ReadUint64()

	r.ReadInto(s.bus.RAM())
	r.ReadInto(s.prgRAM[:])

	r.ReadInto(s.ppu.PaletteRAM())
	r.ReadInto(s.ppu.OAM())
	s.ppu.vramAddr = r.ReadUint16()
	s.ppu.tempAddr = r.ReadUint16()
	s.ppu.fineX = r.ReadUint8()
	s.ppu.ctrl = r.ReadUint8()
	s.ppu.mask = r.ReadUint8()
	s.ppu.status = r.ReadUint8()
	s.ppu.oamAddr = r.ReadUint8()
	s.ppu.scanline = int(r.ReadUint16())
	s.ppu.cycle = int(r.ReadUint16())
	s.ppu.nmiOccurred = r.ReadBool()
	s.ppu.nmiOutput = r.ReadBool()
	s.ppu.spriteZeroHit = r.ReadBool()
	s.ppu.spriteOverflow = r.ReadBool()

	r.ReadInto(s.bus.CIRAM())
	s.mapper.DeserializeState(r)

	s.frameCount = r.ReadUint64()
	s.totalCycles = r.ReadUint64()

	s.apu.ring.Reset()

	return r.Err
}
