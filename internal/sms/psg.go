package sms

import "github.com/user-none/multicore/internal/audio"

// PSG emulates the SN76489 Programmable Sound Generator: three square-wave
// tone channels and one noise channel, each with a 4-bit volume (0 = max,
// 15 = silent). Grounded on user-none-eMkIII/emu/psg.go; reworked here to
// push samples into the shared audio.Ring rather than returning a
// per-frame float32 slice, matching spec.md §4.5's ring-buffered contract.
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

// NewPSG builds a PSG clocked at psgClock Hz, emitting stereo samples at
// sampleRate into a fresh ring buffer sized to ringSamples stereo samples.
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

// Write handles the two-byte latch/data write protocol of the real chip.
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

// clock advances internal dividers by one PSG clock (1/16th of the input
// clock, per the SN76489's documented internal divider).
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

// Tick advances the PSG by cycles CPU cycles, pushing a stereo sample into
// the ring buffer every cpu_clock/sampleRate cycles (spec.md §4.5). SN76489
// audio has no stereo panning, so left and right carry the same value.
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
