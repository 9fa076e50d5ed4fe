package genesis

import "github.com/user-none/multicore/internal/audio"

// PSG is the Genesis's SN76489 (three tone channels, one noise channel),
// clocked independently of the 68000/Z80's shared crystal. Grounded on
// user-none-eMkIII/emu/psg.go's SMS PSG — the same chip drives both
// systems, so the divider/shift-register math is identical; only the
// input clock and bus wiring differ (internal/sms/psg.go carries the SMS
// side of the same grounding).
type PSG struct {
	toneReg     [3]uint16
	toneCounter [3]uint16
	toneOutput  [3]bool

	noiseReg     uint8
	noiseCounter uint16
	noiseShift   uint16
	noiseOutput  bool

	volume [4]uint8

	latchedChannel uint8
	latchedType    uint8

	clocksPerSample float64
	clockCounter    float64
	clockDivider    int

	ring *audio.Ring

	render bool
}

var volumeTable = []float32{
	1.0, 0.794, 0.631, 0.501, 0.398, 0.316, 0.251, 0.200,
	0.158, 0.126, 0.100, 0.079, 0.063, 0.050, 0.040, 0.0,
}

// NewPSG builds a PSG clocked at psgClock Hz (the Genesis PSG runs off a
// clock derived from the 68000's, independent of the Z80's), emitting
// samples at sampleRate into a fresh ring buffer.
func NewPSG(psgClock, sampleRate, ringSamples int) *PSG {
	p := &PSG{
		clocksPerSample: float64(psgClock) / float64(sampleRate),
		noiseShift:      0x8000,
		ring:            audio.NewRing(ringSamples),
		render:          true,
	}
	for i := range p.volume {
		p.volume[i] = 0x0F
	}
	return p
}

func (p *PSG) SetRenderAudio(on bool) { p.render = on }
func (p *PSG) Ring() *audio.Ring      { return p.ring }

func (p *PSG) Write(value uint8) {
	if value&0x80 != 0 {
		p.latchedChannel = (value >> 5) & 0x03
		p.latchedType = (value >> 4) & 0x01
		data := value & 0x0F
		if p.latchedType == 1 {
			p.volume[p.latchedChannel] = data
		} else if p.latchedChannel < 3 {
			p.toneReg[p.latchedChannel] = (p.toneReg[p.latchedChannel] & 0x3F0) | uint16(data)
		} else {
			p.noiseReg = data & 0x07
			p.noiseShift = 0x8000
		}
	} else if p.latchedType == 0 && p.latchedChannel < 3 {
		data := uint16(value & 0x3F)
		p.toneReg[p.latchedChannel] = (p.toneReg[p.latchedChannel] & 0x0F) | (data << 4)
	}
}

func (p *PSG) clock() {
	p.clockDivider++
	if p.clockDivider < 16 {
		return
	}
	p.clockDivider = 0

	for i := 0; i < 3; i++ {
		if p.toneCounter[i] > 0 {
			p.toneCounter[i]--
		} else {
			if p.toneReg[i] == 0 {
				p.toneCounter[i] = 1
			} else {
				p.toneCounter[i] = p.toneReg[i]
			}
			p.toneOutput[i] = !p.toneOutput[i]
		}
	}

	if p.noiseCounter > 0 {
		p.noiseCounter--
	} else {
		switch p.noiseReg & 0x03 {
		case 0:
			p.noiseCounter = 0x10
		case 1:
			p.noiseCounter = 0x20
		case 2:
			p.noiseCounter = 0x40
		case 3:
			if p.toneReg[2] == 0 {
				p.noiseCounter = 1
			} else {
				p.noiseCounter = p.toneReg[2]
			}
		}
		p.noiseOutput = p.noiseShift&1 != 0
		outputBit := p.noiseShift & 1
		var feedback uint16
		if p.noiseReg&0x04 != 0 {
			feedback = ((p.noiseShift & 1) ^ ((p.noiseShift >> 3) & 1)) << 14
		} else {
			feedback = outputBit << 14
		}
		p.noiseShift = (p.noiseShift >> 1) | feedback
	}
}

func (p *PSG) sample() int16 {
	var s float32
	for i := 0; i < 3; i++ {
		if p.toneOutput[i] {
			s += volumeTable[p.volume[i]]
		} else {
			s -= volumeTable[p.volume[i]]
		}
	}
	if p.noiseOutput {
		s += volumeTable[p.volume[3]]
	} else {
		s -= volumeTable[p.volume[3]]
	}
	s /= 4.0
	return int16(s * 32767)
}

// Tick advances the PSG by cycles 68000-scaled PSG clocks.
func (p *PSG) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		p.clock()
		p.clockCounter++
		if p.clockCounter >= p.clocksPerSample {
			p.clockCounter -= p.clocksPerSample
			if p.render {
				s := p.sample()
				p.ring.PushStereo(s, s)
			} else {
				p.ring.PushStereo(0, 0)
			}
		}
	}
}

func (p *PSG) ToneReg(ch int) uint16 { return p.toneReg[ch] }
func (p *PSG) Volume(ch int) uint8   { return p.volume[ch] }
func (p *PSG) NoiseReg() uint8       { return p.noiseReg }
