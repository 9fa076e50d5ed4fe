package genesis

// IO is the Genesis I/O chip: two 9-pin controller ports plus the version
// register, decoded at $A10000-$A1001F. Controller reads implement the
// TH-multiplexed protocol spec.md §4.7 calls out by name, including the
// 6-button pad's extra TH=0/TH=0 read that exposes X/Y/Z/Mode.
type IO struct {
	data [3]uint8 // port1, port2, expansion
	ctrl [3]uint8 // direction registers, 1 = output

	pad    [2]padState
	sixBtn [2]bool

	thCount [2]int
}

type padState struct {
	mask uint8 // bit layout: Up,Down,Left,Right,B,C,A,Start (LSB first)
	ext  uint8 // bit layout: X,Y,Z,Mode (LSB first), only consulted when sixBtn
}

func NewIO() *IO {
	io := &IO{}
	for i := range io.data {
		io.data[i] = 0xFF
	}
	return io
}

// SetInput applies the uniform button mask from core.System.SetInput to
// controller port 1 using the bit layout spec.md §6.2 defines for
// Genesis: bit0 Up, bit1 Down, bit2 Left, bit3 Right, bit4 B, bit5 C, bit6
// A, bit7 Start.
func (io *IO) SetInput(mask uint8) { io.pad[0].mask = mask }

// SetInputExtended additionally drives the 6-button pad's X/Y/Z/Mode
// buttons (bit0 X, bit1 Y, bit2 Z, bit3 Mode) and marks the port as a
// 6-button pad so its extended TH sequence responds.
func (io *IO) SetInputExtended(mask uint8, ext uint8) {
	io.pad[0].mask = mask
	io.pad[0].ext = ext
	io.sixBtn[0] = true
}

func (io *IO) Read(addr uint32) uint8 {
	switch addr & 0x1F {
	case 0x01:
		return 0xA0 // version register: no TMSS, NTSC, overseas model
	case 0x03:
		return io.readController(0)
	case 0x05:
		return io.readController(1)
	case 0x07:
		return 0xFF // expansion port, unconnected
	case 0x09:
		return io.ctrl[0]
	case 0x0B:
		return io.ctrl[1]
	case 0x0D:
		return io.ctrl[2]
	default:
		return 0xFF
	}
}

func (io *IO) Write(addr uint32, v uint8) {
	switch addr & 0x1F {
	case 0x03:
		io.writeController(0, v)
	case 0x05:
		io.writeController(1, v)
	case 0x09:
		io.ctrl[0] = v
	case 0x0B:
		io.ctrl[1] = v
	case 0x0D:
		io.ctrl[2] = v
	}
}

// writeController tracks TH falling edges to drive the 6-button pad's
// extended read window. Real hardware resets the count once a full
// eight-edge cycle completes; this stub never resets it, which is
// harmless for games that re-select the port before each poll (the
// common case) but is a documented simplification of the exact
// handshake (spec.md's Non-goals exclude cycle-exact bus protocols).
func (io *IO) writeController(port int, v uint8) {
	prevTH := io.data[port]&0x40 != 0
	io.data[port] = v
	th := v&0x40 != 0
	if !th && prevTH {
		io.thCount[port]++
	}
}

func (io *IO) readController(port int) uint8 {
	th := io.data[port]&0x40 != 0
	p := io.pad[port]

	up := p.mask&0x01 != 0
	down := p.mask&0x02 != 0
	left := p.mask&0x04 != 0
	right := p.mask&0x08 != 0
	b := p.mask&0x10 != 0
	c := p.mask&0x20 != 0
	a := p.mask&0x40 != 0
	start := p.mask&0x80 != 0

	bit := func(pressed bool) uint8 {
		if pressed {
			return 0
		}
		return 1
	}

	if th {
		var v uint8 = 0xC0
		v |= bit(up)
		v |= bit(down) << 1
		v |= bit(left) << 2
		v |= bit(right) << 3
		v |= bit(b) << 4
		v |= bit(c) << 5
		return v
	}

	if io.sixBtn[port] && io.thCount[port] >= 2 {
		// Extended read: Right/Left lines read 0, low nibble carries X/Y/Z/Mode.
		var v uint8 = 0x40
		v |= bit(p.ext&0x01 != 0)
		v |= bit(p.ext&0x02 != 0) << 1
		v |= bit(p.ext&0x04 != 0) << 2
		v |= bit(p.ext&0x08 != 0) << 3
		return v
	}

	var v uint8 = 0x00
	v |= bit(up)
	v |= bit(down) << 1
	v |= 0x0C // Left/Right lines tied low when TH=0 on standard reads
	v |= bit(a) << 4
	v |= bit(start) << 5
	return v
}
