package sms

// Bus adapts Memory and IO into the z80core.Memory / z80.IO interfaces the
// wrapped Z80 core requires.
type Bus struct {
	mem *Memory
	io  *IO
}

func NewBus(mem *Memory, io *IO) *Bus {
	return &Bus{mem: mem, io: io}
}

func (b *Bus) Get(addr uint16) uint8      { return b.mem.Get(addr) }
func (b *Bus) Set(addr uint16, val uint8) { b.mem.Set(addr, val) }
func (b *Bus) In(port uint16) uint8       { return b.io.In(uint8(port)) }
func (b *Bus) Out(port uint16, val uint8) { b.io.Out(uint8(port), val) }
