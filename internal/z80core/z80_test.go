package z80core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeMemory struct {
	data [0x10000]uint8
}

func (m *fakeMemory) Get(addr uint16) uint8   { return m.data[addr] }
func (m *fakeMemory) Set(addr uint16, v uint8) { m.data[addr] = v }

type fakeIO struct{}

func (fakeIO) In(addr uint8) uint8    { return 0xFF }
func (fakeIO) Out(addr uint8, v uint8) {}

func TestCPU_StepNOPCostsFourCycles(t *testing.T) {
	mem := &fakeMemory{}
	mem.data[0] = 0x00 // NOP
	cpu := New(mem, fakeIO{})

	cycles := cpu.Step()
	assert.Equal(t, 4, cycles)
	assert.Equal(t, uint16(1), cpu.PC())
}

func TestCPU_StepJRNotTakenCostsSeven(t *testing.T) {
	mem := &fakeMemory{}
	mem.data[0] = 0x20 // JR NZ,d
	mem.data[1] = 0x05
	cpu := New(mem, fakeIO{})
	cpu.Raw().F = 0x40 // Z flag set -> condition not met, branch not taken

	cycles := cpu.Step()
	assert.Equal(t, 7, cycles)
}

func TestCPU_StepJRTakenCostsTwelve(t *testing.T) {
	mem := &fakeMemory{}
	mem.data[0] = 0x20 // JR NZ,d
	mem.data[1] = 0x05
	cpu := New(mem, fakeIO{})
	cpu.Raw().F = 0x00 // Z flag clear -> branch taken

	cycles := cpu.Step()
	assert.Equal(t, 12, cycles)
}

func TestCPU_EIDelaysInterruptByOneInstruction(t *testing.T) {
	mem := &fakeMemory{}
	mem.data[0] = 0xFB // EI
	mem.data[1] = 0x00 // NOP
	mem.data[2] = 0x00 // NOP
	cpu := New(mem, fakeIO{})
	cpu.Raw().IFF1 = false

	cpu.Step() // EI: enables interrupts, defers acceptance
	cpu.SetIM1Interrupt()

	pcBeforeSecondStep := cpu.PC()
	cpu.Step() // the NOP immediately after EI must still execute normally
	assert.Equal(t, pcBeforeSecondStep+1, cpu.PC(), "interrupt must not be serviced until after the post-EI instruction")
}

func TestCPU_TriggerNMIPushesPCAndVectors(t *testing.T) {
	mem := &fakeMemory{}
	cpu := New(mem, fakeIO{})
	cpu.Raw().PC = 0x1234
	cpu.Raw().SP = 0x8000
	cpu.Raw().IFF1 = true

	cycles := cpu.TriggerNMI()
	assert.Equal(t, 11, cycles)
	assert.Equal(t, uint16(0x0066), cpu.PC())
	assert.False(t, cpu.IFF1())
	assert.Equal(t, uint8(0x12), mem.data[0x7FFF])
	assert.Equal(t, uint8(0x34), mem.data[0x7FFE])
}

func TestCPU_RegistersRoundTrip(t *testing.T) {
	mem := &fakeMemory{}
	cpu := New(mem, fakeIO{})
	cpu.Raw().A = 0x42
	cpu.Raw().PC = 0xBEEF
	cpu.Raw().IFF1 = true
	cpu.Raw().IM = 1

	snapshot := cpu.Registers()

	cpu2 := New(mem, fakeIO{})
	cpu2.SetRegisters(snapshot)

	assert.Equal(t, uint8(0x42), cpu2.Raw().A)
	assert.Equal(t, uint16(0xBEEF), cpu2.PC())
	assert.True(t, cpu2.IFF1())
	assert.Equal(t, 1, cpu2.IM())
}
