// Package core declares the uniform library-level contract (spec.md §6.1)
// implemented by every concrete system (gb.System, nes.System, sms.System,
// genesis.System). It exists so a caller driving several different systems
// — e.g. a training harness multiplexing GB and NES episodes — can do so
// against one interface, not four.
//
// No system is required to implement this interface to be usable; it is a
// convenience for callers that want platform-agnostic code, not a
// dependency the cores have on each other. Cores share no package-level
// state and never import one another.
package core

// System is the uniform frame-advance / step / input / observation contract
// every core in this module satisfies.
type System interface {
	// LoadROM parses a ROM header, selects a mapper, and resets to a
	// post-power-on state with that ROM mapped in. A non-nil error means
	// the ROM was rejected (spec.md §7 loader-rejects-input /
	// unsupported-cartridge) and the system is left at its prior state.
	LoadROM(rom []byte) error

	// Frame advances emulation until the video frame counter increments
	// exactly once.
	Frame()

	// Step executes a single CPU instruction and returns the number of
	// cycles it consumed (always > 0, per spec.md §3.4).
	Step() int

	// SetInput writes the 8-bit button mask for controller port 1. Bit
	// layout is system-specific (spec.md §6.2).
	SetInput(mask uint8)

	// FrameBuffer returns the current frame's pixel buffer. Byte layout is
	// system-specific (spec.md §6.5); the slice is borrowed and is
	// overwritten by the next Frame/Step call that crosses a frame
	// boundary.
	FrameBuffer() []byte

	// ReadAudio drains up to len(out)/2 interleaved stereo int16 samples
	// and returns the count written.
	ReadAudio(out []int16) int

	// Read and Write observe and mutate the CPU address space exactly as
	// the CPU would see it (through the bus, mapper included).
	Read(addr uint32) uint8
	Write(addr uint32, val uint8)

	// RAM returns a borrowed view of the system's internal work RAM.
	RAM() []byte

	// SaveState returns a fixed-layout snapshot of every observable field
	// (spec.md §6.4). LoadState restores one produced by SaveState on the
	// same build.
	SaveState() []byte
	LoadState(blob []byte) error

	// SaveRAM / LoadSaveRAM are the battery-backed cartridge RAM
	// persistence boundary; the core never performs I/O itself.
	SaveRAM() []byte
	LoadSaveRAM(data []byte) error

	// SetRenderGraphics and SetRenderAudio are headless toggles: when off,
	// peripheral ticks still advance counters and raise interrupts but skip
	// pixel/sample generation (spec.md §6.1).
	SetRenderGraphics(enabled bool)
	SetRenderAudio(enabled bool)

	// FrameCount returns the monotonically increasing count of completed
	// video frames (spec.md §3.4 invariant 3).
	FrameCount() uint64

	// TotalCycles returns the non-decreasing total of cycles consumed by
	// all Step calls since the system was created or last reset.
	TotalCycles() uint64
}
