package z80core

import "github.com/user-none/multicore/internal/statebuf"

// WriteRegisterState appends a RegisterState snapshot to w in the fixed
// field order ReadRegisterState expects back. The Genesis Z80 sub's
// save-state payload uses it; the SMS payload writes the same fields in the
// same order inline.
func WriteRegisterState(w *statebuf.Writer, reg RegisterState) {
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
}

func ReadRegisterState(r *statebuf.Reader) RegisterState {
	var reg RegisterState
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
	return reg
}
