package nes

type opcodeEntry struct {
	mnemonic       string
	mode           addrMode
	cycles         int
	pageCrossExtra bool
	exec           func(c *CPU, mode addrMode)
}

// branch executes a conditional relative branch, adding a cycle when
// taken and a further cycle when the branch crosses a page boundary.
func (c *CPU) branch(taken bool) {
	if !taken {
		return
	}
	oldPC := c.PC
	c.PC = c.opAddr
	c.cycles++
	if oldPC&0xFF00 != c.PC&0xFF00 {
		c.cycles++
	}
}

func execLDA(c *CPU, _ addrMode) { c.A = c.readOperand(); c.setZN(c.A) }
func execLDX(c *CPU, _ addrMode) { c.X = c.readOperand(); c.setZN(c.X) }
func execLDY(c *CPU, _ addrMode) { c.Y = c.readOperand(); c.setZN(c.Y) }
func execSTA(c *CPU, _ addrMode) { c.writeOperand(c.A) }
func execSTX(c *CPU, _ addrMode) { c.writeOperand(c.X) }
func execSTY(c *CPU, _ addrMode) { c.writeOperand(c.Y) }

func execTAX(c *CPU, _ addrMode) { c.X = c.A; c.setZN(c.X) }
func execTAY(c *CPU, _ addrMode) { c.Y = c.A; c.setZN(c.Y) }
func execTXA(c *CPU, _ addrMode) { c.A = c.X; c.setZN(c.A) }
func execTYA(c *CPU, _ addrMode) { c.A = c.Y; c.setZN(c.A) }
func execTSX(c *CPU, _ addrMode) { c.X = c.SP; c.setZN(c.X) }
func execTXS(c *CPU, _ addrMode) { c.SP = c.X }

func execPHA(c *CPU, _ addrMode) { c.push(c.A) }
func execPHP(c *CPU, _ addrMode) { c.push(c.P | flagB | flagU) }
func execPLA(c *CPU, _ addrMode) { c.A = c.pop(); c.setZN(c.A) }
func execPLP(c *CPU, _ addrMode) { c.P = (c.pop() &^ flagB) | flagU }

func (c *CPU) addWithCarry(v uint8) {
	carry := uint16(0)
	if c.flag(flagC) {
		carry = 1
	}
	sum := uint16(c.A) + uint16(v) + carry
	result := uint8(sum)
	c.setFlag(flagC, sum > 0xFF)
	c.setFlag(flagV, (c.A^v)&0x80 == 0 && (c.A^result)&0x80 != 0)
	c.A = result
	c.setZN(c.A)
}

func execADC(c *CPU, _ addrMode) { c.addWithCarry(c.readOperand()) }
func execSBC(c *CPU, _ addrMode) { c.addWithCarry(^c.readOperand()) }

func execAND(c *CPU, _ addrMode) { c.A &= c.readOperand(); c.setZN(c.A) }
func execORA(c *CPU, _ addrMode) { c.A |= c.readOperand(); c.setZN(c.A) }
func execEOR(c *CPU, _ addrMode) { c.A ^= c.readOperand(); c.setZN(c.A) }

func execBIT(c *CPU, _ addrMode) {
	v := c.readOperand()
	c.setFlag(flagZ, c.A&v == 0)
	c.setFlag(flagV, v&0x40 != 0)
	c.setFlag(flagN, v&0x80 != 0)
}

func (c *CPU) compare(reg, v uint8) {
	c.setFlag(flagC, reg >= v)
	c.setZN(reg - v)
}

func execCMP(c *CPU, _ addrMode) { c.compare(c.A, c.readOperand()) }
func execCPX(c *CPU, _ addrMode) { c.compare(c.X, c.readOperand()) }
func execCPY(c *CPU, _ addrMode) { c.compare(c.Y, c.readOperand()) }

func execINC(c *CPU, _ addrMode) { c.readModifyWrite(func(v uint8) uint8 { v++; c.setZN(v); return v }) }
func execDEC(c *CPU, _ addrMode) { c.readModifyWrite(func(v uint8) uint8 { v--; c.setZN(v); return v }) }
func execINX(c *CPU, _ addrMode) { c.X++; c.setZN(c.X) }
func execINY(c *CPU, _ addrMode) { c.Y++; c.setZN(c.Y) }
func execDEX(c *CPU, _ addrMode) { c.X--; c.setZN(c.X) }
func execDEY(c *CPU, _ addrMode) { c.Y--; c.setZN(c.Y) }

func execASL(c *CPU, _ addrMode) {
	c.readModifyWrite(func(v uint8) uint8 {
		c.setFlag(flagC, v&0x80 != 0)
		v <<= 1
		c.setZN(v)
		return v
	})
}

func execLSR(c *CPU, _ addrMode) {
	c.readModifyWrite(func(v uint8) uint8 {
		c.setFlag(flagC, v&0x01 != 0)
		v >>= 1
		c.setZN(v)
		return v
	})
}

func execROL(c *CPU, _ addrMode) {
	c.readModifyWrite(func(v uint8) uint8 {
		oldCarry := uint8(0)
		if c.flag(flagC) {
			oldCarry = 1
		}
		c.setFlag(flagC, v&0x80 != 0)
		v = v<<1 | oldCarry
		c.setZN(v)
		return v
	})
}

func execROR(c *CPU, _ addrMode) {
	c.readModifyWrite(func(v uint8) uint8 {
		oldCarry := uint8(0)
		if c.flag(flagC) {
			oldCarry = 0x80
		}
		c.setFlag(flagC, v&0x01 != 0)
		v = v>>1 | oldCarry
		c.setZN(v)
		return v
	})
}

func execJMP(c *CPU, _ addrMode) { c.PC = c.opAddr }
func execJSR(c *CPU, _ addrMode) { c.push16(c.PC - 1); c.PC = c.opAddr }
func execRTS(c *CPU, _ addrMode) { c.PC = c.pop16() + 1 }

// execRTI restores P from the stack the same way PLP does (B cleared, the
// unused bit set), then restores PC without the +1 that RTS applies.
func execRTI(c *CPU, _ addrMode) {
	c.P = (c.pop() &^ flagB) | flagU
	c.PC = c.pop16()
}

// execBRK implements the software-interrupt side effects games rely on:
// it pushes PC+2 (skipping a padding byte) and P with B set, then
// services through the IRQ vector, shared with hardware IRQs.
func execBRK(c *CPU, _ addrMode) {
	c.PC++
	c.push16(c.PC)
	c.push(c.P | flagB | flagU)
	c.setFlag(flagI, true)
	c.PC = c.read16(vectorIRQ)
}

func execBCC(c *CPU, _ addrMode) { c.branch(!c.flag(flagC)) }
func execBCS(c *CPU, _ addrMode) { c.branch(c.flag(flagC)) }
func execBEQ(c *CPU, _ addrMode) { c.branch(c.flag(flagZ)) }
func execBNE(c *CPU, _ addrMode) { c.branch(!c.flag(flagZ)) }
func execBMI(c *CPU, _ addrMode) { c.branch(c.flag(flagN)) }
func execBPL(c *CPU, _ addrMode) { c.branch(!c.flag(flagN)) }
func execBVC(c *CPU, _ addrMode) { c.branch(!c.flag(flagV)) }
func execBVS(c *CPU, _ addrMode) { c.branch(c.flag(flagV)) }

func execCLC(c *CPU, _ addrMode) { c.setFlag(flagC, false) }
func execSEC(c *CPU, _ addrMode) { c.setFlag(flagC, true) }
func execCLI(c *CPU, _ addrMode) { c.setFlag(flagI, false) }
func execSEI(c *CPU, _ addrMode) { c.setFlag(flagI, true) }
func execCLV(c *CPU, _ addrMode) { c.setFlag(flagV, false) }
func execCLD(c *CPU, _ addrMode) { c.setFlag(flagD, false) }
func execSED(c *CPU, _ addrMode) { c.setFlag(flagD, true) }

func execNOP(c *CPU, mode addrMode) {
	if mode != modeImplied {
		c.readOperand() // unofficial NOPs with operands still perform the read
	}
}

// jam halts the CPU, matching the NMOS 6502's KIL/JAM opcodes; a real
// console requires a reset to recover.
func execJAM(c *CPU, _ addrMode) { c.halted = true }

var opcodeTable [256]opcodeEntry

func op(code uint8, mnemonic string, mode addrMode, cycles int, pageCrossExtra bool, exec func(c *CPU, mode addrMode)) {
	opcodeTable[code] = opcodeEntry{mnemonic: mnemonic, mode: mode, cycles: cycles, pageCrossExtra: pageCrossExtra, exec: exec}
}

func init() {
	for i := range opcodeTable {
		opcodeTable[i] = opcodeEntry{mnemonic: "JAM", mode: modeImplied, cycles: 2, exec: execJAM}
	}

	op(0xA9, "LDA", modeImmediate, 2, false, execLDA)
	op(0xA5, "LDA", modeZeroPage, 3, false, execLDA)
	op(0xB5, "LDA", modeZeroPageX, 4, false, execLDA)
	op(0xAD, "LDA", modeAbsolute, 4, false, execLDA)
	op(0xBD, "LDA", modeAbsoluteX, 4, true, execLDA)
	op(0xB9, "LDA", modeAbsoluteY, 4, true, execLDA)
	op(0xA1, "LDA", modeIndirectX, 6, false, execLDA)
	op(0xB1, "LDA", modeIndirectY, 5, true, execLDA)

	op(0xA2, "LDX", modeImmediate, 2, false, execLDX)
	op(0xA6, "LDX", modeZeroPage, 3, false, execLDX)
	op(0xB6, "LDX", modeZeroPageY, 4, false, execLDX)
	op(0xAE, "LDX", modeAbsolute, 4, false, execLDX)
	op(0xBE, "LDX", modeAbsoluteY, 4, true, execLDX)

	op(0xA0, "LDY", modeImmediate, 2, false, execLDY)
	op(0xA4, "LDY", modeZeroPage, 3, false, execLDY)
	op(0xB4, "LDY", modeZeroPageX, 4, false, execLDY)
	op(0xAC, "LDY", modeAbsolute, 4, false, execLDY)
	op(0xBC, "LDY", modeAbsoluteX, 4, true, execLDY)

	op(0x85, "STA", modeZeroPage, 3, false, execSTA)
	op(0x95, "STA", modeZeroPageX, 4, false, execSTA)
	op(0x8D, "STA", modeAbsolute, 4, false, execSTA)
	op(0x9D, "STA", modeAbsoluteX, 5, false, execSTA)
	op(0x99, "STA", modeAbsoluteY, 5, false, execSTA)
	op(0x81, "STA", modeIndirectX, 6, false, execSTA)
	op(0x91, "STA", modeIndirectY, 6, false, execSTA)

	op(0x86, "STX", modeZeroPage, 3, false, execSTX)
	op(0x96, "STX", modeZeroPageY, 4, false, execSTX)
	op(0x8E, "STX", modeAbsolute, 4, false, execSTX)

	op(0x84, "STY", modeZeroPage, 3, false, execSTY)
	op(0x94, "STY", modeZeroPageX, 4, false, execSTY)
	op(0x8C, "STY", modeAbsolute, 4, false, execSTY)

	op(0xAA, "TAX", modeImplied, 2, false, execTAX)
	op(0xA8, "TAY", modeImplied, 2, false, execTAY)
	op(0x8A, "TXA", modeImplied, 2, false, execTXA)
	op(0x98, "TYA", modeImplied, 2, false, execTYA)
	op(0xBA, "TSX", modeImplied, 2, false, execTSX)
	op(0x9A, "TXS", modeImplied, 2, false, execTXS)

	op(0x48, "PHA", modeImplied, 3, false, execPHA)
	op(0x08, "PHP", modeImplied, 3, false, execPHP)
	op(0x68, "PLA", modeImplied, 4, false, execPLA)
	op(0x28, "PLP", modeImplied, 4, false, execPLP)

	op(0x69, "ADC", modeImmediate, 2, false, execADC)
	op(0x65, "ADC", modeZeroPage, 3, false, execADC)
	op(0x75, "ADC", modeZeroPageX, 4, false, execADC)
	op(0x6D, "ADC", modeAbsolute, 4, false, execADC)
	op(0x7D, "ADC", modeAbsoluteX, 4, true, execADC)
	op(0x79, "ADC", modeAbsoluteY, 4, true, execADC)
	op(0x61, "ADC", modeIndirectX, 6, false, execADC)
	op(0x71, "ADC", modeIndirectY, 5, true, execADC)

	op(0xE9, "SBC", modeImmediate, 2, false, execSBC)
	op(0xE5, "SBC", modeZeroPage, 3, false, execSBC)
	op(0xF5, "SBC", modeZeroPageX, 4, false, execSBC)
	op(0xED, "SBC", modeAbsolute, 4, false, execSBC)
	op(0xFD, "SBC", modeAbsoluteX, 4, true, execSBC)
	op(0xF9, "SBC", modeAbsoluteY, 4, true, execSBC)
	op(0xE1, "SBC", modeIndirectX, 6, false, execSBC)
	op(0xF1, "SBC", modeIndirectY, 5, true, execSBC)

	op(0x29, "AND", modeImmediate, 2, false, execAND)
	op(0x25, "AND", modeZeroPage, 3, false, execAND)
	op(0x35, "AND", modeZeroPageX, 4, false, execAND)
	op(0x2D, "AND", modeAbsolute, 4, false, execAND)
	op(0x3D, "AND", modeAbsoluteX, 4, true, execAND)
	op(0x39, "AND", modeAbsoluteY, 4, true, execAND)
	op(0x21, "AND", modeIndirectX, 6, false, execAND)
	op(0x31, "AND", modeIndirectY, 5, true, execAND)

	op(0x09, "ORA", modeImmediate, 2, false, execORA)
	op(0x05, "ORA", modeZeroPage, 3, false, execORA)
	op(0x15, "ORA", modeZeroPageX, 4, false, execORA)
	op(0x0D, "ORA", modeAbsolute, 4, false, execORA)
	op(0x1D, "ORA", modeAbsoluteX, 4, true, execORA)
	op(0x19, "ORA", modeAbsoluteY, 4, true, execORA)
	op(0x01, "ORA", modeIndirectX, 6, false, execORA)
	op(0x11, "ORA", modeIndirectY, 5, true, execORA)

	op(0x49, "EOR", modeImmediate, 2, false, execEOR)
	op(0x45, "EOR", modeZeroPage, 3, false, execEOR)
	op(0x55, "EOR", modeZeroPageX, 4, false, execEOR)
	op(0x4D, "EOR", modeAbsolute, 4, false, execEOR)
	op(0x5D, "EOR", modeAbsoluteX, 4, true, execEOR)
	op(0x59, "EOR", modeAbsoluteY, 4, true, execEOR)
	op(0x41, "EOR", modeIndirectX, 6, false, execEOR)
	op(0x51, "EOR", modeIndirectY, 5, true, execEOR)

	op(0x24, "BIT", modeZeroPage, 3, false, execBIT)
	op(0x2C, "BIT", modeAbsolute, 4, false, execBIT)

	op(0xC9, "CMP", modeImmediate, 2, false, execCMP)
	op(0xC5, "CMP", modeZeroPage, 3, false, execCMP)
	op(0xD5, "CMP", modeZeroPageX, 4, false, execCMP)
	op(0xCD, "CMP", modeAbsolute, 4, false, execCMP)
	op(0xDD, "CMP", modeAbsoluteX, 4, true, execCMP)
	op(0xD9, "CMP", modeAbsoluteY, 4, true, execCMP)
	op(0xC1, "CMP", modeIndirectX, 6, false, execCMP)
	op(0xD1, "CMP", modeIndirectY, 5, true, execCMP)

	op(0xE0, "CPX", modeImmediate, 2, false, execCPX)
	op(0xE4, "CPX", modeZeroPage, 3, false, execCPX)
	op(0xEC, "CPX", modeAbsolute, 4, false, execCPX)

	op(0xC0, "CPY", modeImmediate, 2, false, execCPY)
	op(0xC4, "CPY", modeZeroPage, 3, false, execCPY)
	op(0xCC, "CPY", modeAbsolute, 4, false, execCPY)

	op(0xE6, "INC", modeZeroPage, 5, false, execINC)
	op(0xF6, "INC", modeZeroPageX, 6, false, execINC)
	op(0xEE, "INC", modeAbsolute, 6, false, execINC)
	op(0xFE, "INC", modeAbsoluteX, 7, false, execINC)

	op(0xC6, "DEC", modeZeroPage, 5, false, execDEC)
	op(0xD6, "DEC", modeZeroPageX, 6, false, execDEC)
	op(0xCE, "DEC", modeAbsolute, 6, false, execDEC)
	op(0xDE, "DEC", modeAbsoluteX, 7, false, execDEC)

	op(0xE8, "INX", modeImplied, 2, false, execINX)
	op(0xC8, "INY", modeImplied, 2, false, execINY)
	op(0xCA, "DEX", modeImplied, 2, false, execDEX)
	op(0x88, "DEY", modeImplied, 2, false, execDEY)

	op(0x0A, "ASL", modeAccumulator, 2, false, execASL)
	op(0x06, "ASL", modeZeroPage, 5, false, execASL)
	op(0x16, "ASL", modeZeroPageX, 6, false, execASL)
	op(0x0E, "ASL", modeAbsolute, 6, false, execASL)
	op(0x1E, "ASL", modeAbsoluteX, 7, false, execASL)

	op(0x4A, "LSR", modeAccumulator, 2, false, execLSR)
	op(0x46, "LSR", modeZeroPage, 5, false, execLSR)
	op(0x56, "LSR", modeZeroPageX, 6, false, execLSR)
	op(0x4E, "LSR", modeAbsolute, 6, false, execLSR)
	op(0x5E, "LSR", modeAbsoluteX, 7, false, execLSR)

	op(0x2A, "ROL", modeAccumulator, 2, false, execROL)
	op(0x26, "ROL", modeZeroPage, 5, false, execROL)
	op(0x36, "ROL", modeZeroPageX, 6, false, execROL)
	op(0x2E, "ROL", modeAbsolute, 6, false, execROL)
	op(0x3E, "ROL", modeAbsoluteX, 7, false, execROL)

	op(0x6A, "ROR", modeAccumulator, 2, false, execROR)
	op(0x66, "ROR", modeZeroPage, 5, false, execROR)
	op(0x76, "ROR", modeZeroPageX, 6, false, execROR)
	op(0x6E, "ROR", modeAbsolute, 6, false, execROR)
	op(0x7E, "ROR", modeAbsoluteX, 7, false, execROR)

	op(0x4C, "JMP", modeAbsolute, 3, false, execJMP)
	op(0x6C, "JMP", modeIndirect, 5, false, execJMP)
	op(0x20, "JSR", modeAbsolute, 6, false, execJSR)
	op(0x60, "RTS", modeImplied, 6, false, execRTS)
	op(0x40, "RTI", modeImplied, 6, false, execRTI)
	op(0x00, "BRK", modeImplied, 7, false, execBRK)

	op(0x90, "BCC", modeRelative, 2, false, execBCC)
	op(0xB0, "BCS", modeRelative, 2, false, execBCS)
	op(0xF0, "BEQ", modeRelative, 2, false, execBEQ)
	op(0xD0, "BNE", modeRelative, 2, false, execBNE)
	op(0x30, "BMI", modeRelative, 2, false, execBMI)
	op(0x10, "BPL", modeRelative, 2, false, execBPL)
	op(0x50, "BVC", modeRelative, 2, false, execBVC)
	op(0x70, "BVS", modeRelative, 2, false, execBVS)

	op(0x18, "CLC", modeImplied, 2, false, execCLC)
	op(0x38, "SEC", modeImplied, 2, false, execSEC)
	op(0x58, "CLI", modeImplied, 2, false, execCLI)
	op(0x78, "SEI", modeImplied, 2, false, execSEI)
	op(0xB8, "CLV", modeImplied, 2, false, execCLV)
	op(0xD8, "CLD", modeImplied, 2, false, execCLD)
	op(0xF8, "SED", modeImplied, 2, false, execSED)

	op(0xEA, "NOP", modeImplied, 2, false, execNOP)

	// Common unofficial NOPs with addressing-mode reads, which several
	// commercial ROMs execute incidentally; treated as plain NOPs here.
	for _, c := range []uint8{0x1A, 0x3A, 0x5A, 0x7A, 0xDA, 0xFA} {
		op(c, "NOP", modeImplied, 2, false, execNOP)
	}
	for _, c := range []uint8{0x80, 0x82, 0x89, 0xC2, 0xE2} {
		op(c, "NOP", modeImmediate, 2, false, execNOP)
	}
	for _, c := range []uint8{0x04, 0x44, 0x64} {
		op(c, "NOP", modeZeroPage, 3, false, execNOP)
	}
	for _, c := range []uint8{0x14, 0x34, 0x54, 0x74, 0xD4, 0xF4} {
		op(c, "NOP", modeZeroPageX, 4, false, execNOP)
	}
	op(0x0C, "NOP", modeAbsolute, 4, false, execNOP)
	for _, c := range []uint8{0x1C, 0x3C, 0x5C, 0x7C, 0xDC, 0xFC} {
		op(c, "NOP", modeAbsoluteX, 4, true, execNOP)
	}
}
