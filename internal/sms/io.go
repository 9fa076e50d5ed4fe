package sms

// Input holds controller state as the raw (active-low) byte values the
// I/O ports expose.
type Input struct {
	Port1 uint8 // $DC: P1 full state + P2 up/down
	Port2 uint8 // $DD: P2 left/right/button1/button2 + TH levels
}

// Nationality selects the TH-bit polarity readPortDD applies; Japanese
// consoles invert bits 6-7 of port $DD relative to export models.
type Nationality int

const (
	NationalityExport Nationality = iota
	NationalityJapanese
)

// IO decodes the SMS I/O port space (spec.md §4.7) into the VDP, PSG, and
// controller port reads/writes, using the partial address decoding real
// SMS hardware implements (only bits 7, 6, and 0 of the port address are
// significant).
type IO struct {
	vdp         *VDP
	psg         *PSG
	Input       *Input
	nationality Nationality
	ioControl   uint8
}

func NewIO(vdp *VDP, psg *PSG, nationality Nationality) *IO {
	return &IO{
		vdp:         vdp,
		psg:         psg,
		Input:       &Input{Port1: 0xFF, Port2: 0xFF},
		nationality: nationality,
		ioControl:   0xFF,
	}
}

func (e *IO) In(addr uint8) uint8 {
	switch addr & 0xC1 {
	case 0x40:
		return e.vdp.ReadVCounter()
	case 0x41:
		return e.vdp.ReadHCounter()
	case 0x80:
		return e.vdp.ReadData()
	case 0x81:
		return e.vdp.ReadControl()
	case 0xC0:
		return e.Input.Port1
	case 0xC1:
		return e.readPortDD()
	}
	return 0xFF
}

func (e *IO) Out(addr uint8, value uint8) {
	switch addr & 0xC1 {
	case 0x01:
		e.ioControl = value
	case 0x40, 0x41:
		if e.psg != nil {
			e.psg.Write(value)
		}
	case 0x80:
		e.vdp.WriteData(value)
	case 0x81:
		e.vdp.WriteControl(value)
	}
}

// SetP1 sets player-1 button state. Bit layout follows spec.md §6.2:
// 0=Up,1=Down,2=Left,3=Right,4=B1,5=B2 (active-low on the wire).
func (i *Input) SetP1(up, down, left, right, b1, b2 bool) {
	i.Port1 |= 0x3F
	if up {
		i.Port1 &^= 0x01
	}
	if down {
		i.Port1 &^= 0x02
	}
	if left {
		i.Port1 &^= 0x04
	}
	if right {
		i.Port1 &^= 0x08
	}
	if b1 {
		i.Port1 &^= 0x10
	}
	if b2 {
		i.Port1 &^= 0x20
	}
}

// SetMask applies the uniform 8-bit button mask from core.System.SetInput
// using the bit layout spec.md §6.2 defines for SMS.
func (i *Input) SetMask(mask uint8) {
	i.SetP1(
		mask&0x01 != 0,
		mask&0x02 != 0,
		mask&0x04 != 0,
		mask&0x08 != 0,
		mask&0x10 != 0,
		mask&0x20 != 0,
	)
}

func (i *Input) SetP2(up, down, left, right, b1, b2 bool) {
	i.Port1 |= 0xC0
	if up {
		i.Port1 &^= 0x40
	}
	if down {
		i.Port1 &^= 0x80
	}
	i.Port2 |= 0x0F
	if left {
		i.Port2 &^= 0x01
	}
	if right {
		i.Port2 &^= 0x02
	}
	if b1 {
		i.Port2 &^= 0x04
	}
	if b2 {
		i.Port2 &^= 0x08
	}
}

// readPortDD synthesizes $DD: controller-2 bits from Input.Port2, TH output
// levels from the I/O control register, inverted on Japanese consoles.
func (e *IO) readPortDD() uint8 {
	result := e.Input.Port2 & 0x3F
	if e.ioControl&0x20 != 0 {
		result |= 0x40
	}
	if e.ioControl&0x80 != 0 {
		result |= 0x80
	}
	if e.nationality == NationalityJapanese {
		result ^= 0xC0
	}
	return result
}
