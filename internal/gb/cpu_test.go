package gb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type flatBus struct {
	mem [0x10000]uint8
}

func (b *flatBus) Read(addr uint16) uint8       { return b.mem[addr] }
func (b *flatBus) Write(addr uint16, val uint8) { b.mem[addr] = val }

func newTestCPU() (*CPU, *flatBus, *uint8, *uint8) {
	bus := &flatBus{}
	c := NewCPU(bus)
	c.PC = 0x0150
	var ifReg, ieReg uint8
	return c, bus, &ifReg, &ieReg
}

func (c *CPU) step(bus *flatBus, ifReg, ieReg *uint8) int {
	return c.Step(ifReg, ieReg)
}

func TestCPU_ResetSeedsPostBootRegisterState(t *testing.T) {
	c, _, _, _ := newTestCPU()
	c.Reset()
	assert.Equal(t, uint8(0x01), c.A)
	assert.Equal(t, uint8(0xB0), c.F)
	assert.Equal(t, uint16(0xFFFE), c.SP)
	assert.Equal(t, uint16(0x0100), c.PC)
}

func TestCPU_LDRRMovesBetweenRegisters(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	c.B = 0x42
	bus.mem[c.PC] = 0x78 // LD A,B
	c.step(bus, ifReg, ieReg)
	assert.Equal(t, uint8(0x42), c.A)
}

func TestCPU_LDFromHLIndirectReadsMemory(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	c.setHL(0x9000)
	bus.mem[0x9000] = 0x77
	bus.mem[c.PC] = 0x46 // LD B,(HL)
	cycles := c.step(bus, ifReg, ieReg)
	assert.Equal(t, uint8(0x77), c.B)
	assert.Equal(t, 8, cycles)
}

func TestCPU_INCSetsHalfCarryOnNibbleOverflow(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	c.A = 0x0F
	bus.mem[c.PC] = 0x3C // INC A
	c.step(bus, ifReg, ieReg)
	assert.Equal(t, uint8(0x10), c.A)
	assert.True(t, c.flag(flagH))
	assert.False(t, c.flag(flagZ))
}

func TestCPU_DECToZeroSetsZeroAndSubtractFlags(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	c.A = 0x01
	bus.mem[c.PC] = 0x3D // DEC A
	c.step(bus, ifReg, ieReg)
	assert.Equal(t, uint8(0), c.A)
	assert.True(t, c.flag(flagZ))
	assert.True(t, c.flag(flagN))
}

func TestCPU_ADDSetsCarryOnOverflow(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	c.A = 0xFF
	bus.mem[c.PC] = 0xC6 // ADD A,n
	bus.mem[c.PC+1] = 0x02
	c.step(bus, ifReg, ieReg)
	assert.Equal(t, uint8(0x01), c.A)
	assert.True(t, c.flag(flagC))
	assert.True(t, c.flag(flagH))
}

func TestCPU_CPDoesNotModifyA(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	c.A = 0x10
	bus.mem[c.PC] = 0xFE // CP n
	bus.mem[c.PC+1] = 0x10
	c.step(bus, ifReg, ieReg)
	assert.Equal(t, uint8(0x10), c.A)
	assert.True(t, c.flag(flagZ))
}

func TestCPU_JRAddsOffset(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	start := c.PC
	bus.mem[c.PC] = 0x18 // JR e
	bus.mem[c.PC+1] = 0x05
	c.step(bus, ifReg, ieReg)
	assert.Equal(t, start+2+5, c.PC)
}

func TestCPU_JRNegativeOffsetJumpsBackward(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	start := c.PC
	bus.mem[c.PC] = 0x18
	bus.mem[c.PC+1] = uint8(int8(-3))
	c.step(bus, ifReg, ieReg)
	assert.Equal(t, start+2-3, c.PC)
}

func TestCPU_CALLAndRETRoundTrip(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	bus.mem[c.PC] = 0xCD // CALL $9000
	bus.mem[c.PC+1] = 0x00
	bus.mem[c.PC+2] = 0x90
	bus.mem[0x9000] = 0xC9 // RET
	c.step(bus, ifReg, ieReg)
	assert.Equal(t, uint16(0x9000), c.PC)
	c.step(bus, ifReg, ieReg)
	assert.Equal(t, uint16(0x0153), c.PC)
}

func TestCPU_PushPopRoundTrip(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	c.setBC(0x1234)
	bus.mem[c.PC] = 0xC5 // PUSH BC
	c.step(bus, ifReg, ieReg)
	bus.mem[c.PC] = 0xD1 // POP DE
	c.step(bus, ifReg, ieReg)
	assert.Equal(t, uint16(0x1234), c.de())
}

func TestCPU_HaltParksCPUUntilInterruptPending(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	*ieReg = 0x01
	bus.mem[c.PC] = 0x76 // HALT
	c.step(bus, ifReg, ieReg)
	assert.True(t, c.Halted())

	cycles := c.step(bus, ifReg, ieReg)
	assert.Equal(t, 4, cycles)
	assert.True(t, c.Halted(), "stays halted while no interrupt is pending")

	*ifReg = 0x01
	c.step(bus, ifReg, ieReg)
	assert.False(t, c.Halted())
}

// TestCPU_HaltBugRereadsFollowingByte reproduces the documented halt bug:
// HALT executed with IME clear while an interrupt is already pending fails
// to advance PC on the next fetch, so the byte after HALT executes twice.
func TestCPU_HaltBugRereadsFollowingByte(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	c.ime = false
	*ifReg = 0x01
	*ieReg = 0x01

	start := c.PC
	bus.mem[start] = 0x76   // HALT
	bus.mem[start+1] = 0x3C // INC A (executed twice due to the bug)

	c.step(bus, ifReg, ieReg) // HALT triggers the bug instead of halting
	assert.False(t, c.Halted())
	assert.True(t, c.haltBug)

	c.step(bus, ifReg, ieReg) // first INC A, PC fails to advance
	assert.Equal(t, uint8(0x02), c.A)
	assert.Equal(t, start+1, c.PC)

	c.step(bus, ifReg, ieReg) // second INC A, PC advances normally now
	assert.Equal(t, uint8(0x03), c.A)
	assert.Equal(t, start+2, c.PC)
}

func TestCPU_InterruptServiceClearsIMEAndPushesPC(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	c.ime = true
	*ifReg = 0x01
	*ieReg = 0x01
	start := c.PC
	bus.mem[start] = 0xEA // LD (a16),A, never fetched: the interrupt preempts the fetch

	c.step(bus, ifReg, ieReg)
	assert.Equal(t, uint16(0x40), c.PC)
	assert.False(t, c.ime)
	assert.Zero(t, *ifReg&0x01)
	assert.Equal(t, start, c.pop())
}

func TestCPU_EIDelaysEnablingIMEByOneInstruction(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	c.ime = false
	*ifReg = 0x01
	*ieReg = 0x01
	bus.mem[c.PC] = 0xFB   // EI
	bus.mem[c.PC+1] = 0x00 // NOP
	c.step(bus, ifReg, ieReg)
	assert.False(t, c.ime, "IME takes effect after the instruction following EI")

	c.step(bus, ifReg, ieReg) // executes the NOP; IME becomes true during this step
	assert.True(t, c.ime)

	c.step(bus, ifReg, ieReg) // the pending interrupt fires on the next fetch
	assert.Equal(t, uint16(0x40), c.PC)
}

func TestCPU_DAACorrectsAfterBCDAddition(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	c.A = 0x09
	bus.mem[c.PC] = 0xC6 // ADD A,1 -> 0x0A
	bus.mem[c.PC+1] = 0x01
	c.step(bus, ifReg, ieReg)
	bus.mem[c.PC] = 0x27 // DAA
	c.step(bus, ifReg, ieReg)
	assert.Equal(t, uint8(0x10), c.A)
}

func TestCPU_CPLComplementsAAndSetsFlags(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	c.A = 0x35
	bus.mem[c.PC] = 0x2F // CPL
	c.step(bus, ifReg, ieReg)
	assert.Equal(t, uint8(0xCA), c.A)
	assert.True(t, c.flag(flagN))
	assert.True(t, c.flag(flagH))
}

func TestCPU_CCFTogglesCarryWithoutTouchingZero(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	c.setFlag(flagZ, true)
	c.setFlag(flagC, false)
	bus.mem[c.PC] = 0x3F // CCF
	c.step(bus, ifReg, ieReg)
	assert.True(t, c.flag(flagC))
	assert.True(t, c.flag(flagZ))
}

func TestCB_BitInstructionSetsZeroWhenBitClear(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	c.A = 0x00
	bus.mem[c.PC] = 0xCB
	bus.mem[c.PC+1] = 0x47 // BIT 0,A
	c.step(bus, ifReg, ieReg)
	assert.True(t, c.flag(flagZ))
	assert.True(t, c.flag(flagH))
}

func TestCB_SwapExchangesNibbles(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	c.A = 0xA5
	bus.mem[c.PC] = 0xCB
	bus.mem[c.PC+1] = 0x37 // SWAP A
	c.step(bus, ifReg, ieReg)
	assert.Equal(t, uint8(0x5A), c.A)
}

func TestCB_SetAndResBit(t *testing.T) {
	c, bus, ifReg, ieReg := newTestCPU()
	c.A = 0x00
	bus.mem[c.PC] = 0xCB
	bus.mem[c.PC+1] = 0xC7 // SET 0,A
	c.step(bus, ifReg, ieReg)
	assert.Equal(t, uint8(0x01), c.A)

	bus.mem[c.PC] = 0xCB
	bus.mem[c.PC+1] = 0x87 // RES 0,A
	c.step(bus, ifReg, ieReg)
	assert.Equal(t, uint8(0x00), c.A)
}
