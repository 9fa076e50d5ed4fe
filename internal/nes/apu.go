package nes

import "github.com/user-none/multicore/internal/audio"

var dutyTable = [4][8]uint8{
	{0, 1, 0, 0, 0, 0, 0, 0},
	{0, 1, 1, 0, 0, 0, 0, 0},
	{0, 1, 1, 1, 1, 0, 0, 0},
	{1, 0, 0, 1, 1, 1, 1, 1},
}

var lengthTable = [32]uint8{
	10, 254, 20, 2, 40, 4, 80, 6, 160, 8, 60, 10, 14, 12, 26, 14,
	12, 16, 24, 18, 48, 20, 96, 22, 192, 24, 72, 26, 16, 28, 32, 30,
}

var triangleSequence = [32]uint8{
	15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0,
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
}

var noisePeriodTable = [16]uint16{
	4, 8, 16, 32, 64, 96, 128, 160, 202, 254, 380, 508, 762, 1016, 2034, 4068,
}

type envelope struct {
	start     bool
	decay     uint8
	divider   uint8
	period    uint8
	loop      bool
	constant  bool
	volume    uint8
}

func (e *envelope) clock() {
	if e.start {
		e.start = false
		e.decay = 15
		e.divider = e.period
		return
	}
	if e.divider > 0 {
		e.divider--
		return
	}
	e.divider = e.period
	if e.decay > 0 {
		e.decay--
	} else if e.loop {
		e.decay = 15
	}
}

func (e *envelope) output() uint8 {
	if e.constant {
		return e.volume
	}
	return e.decay
}

type pulseChannel struct {
	enabled     bool
	dutyCycle   uint8
	dutyPos     uint8
	timer       uint16
	timerPeriod uint16
	lengthCount uint8
	env         envelope

	sweepEnabled bool
	sweepPeriod  uint8
	sweepNegate  bool
	sweepShift   uint8
	sweepDivider uint8
	sweepReload  bool
	channel2     bool // true for pulse 2, whose sweep negation doesn't add the extra one
}

func (p *pulseChannel) sweepTarget() uint16 {
	change := p.timerPeriod >> p.sweepShift
	if p.sweepNegate {
		if p.channel2 {
			return p.timerPeriod - change
		}
		return p.timerPeriod - change - 1
	}
	return p.timerPeriod + change
}

func (p *pulseChannel) sweepMuted() bool {
	return p.timerPeriod < 8 || p.sweepTarget() > 0x7FF
}

func (p *pulseChannel) clockSweep() {
	if p.sweepDivider == 0 && p.sweepEnabled && p.sweepShift > 0 && !p.sweepMuted() {
		p.timerPeriod = p.sweepTarget()
	}
	if p.sweepDivider == 0 || p.sweepReload {
		p.sweepDivider = p.sweepPeriod
		p.sweepReload = false
	} else {
		p.sweepDivider--
	}
}

func (p *pulseChannel) clockTimer() {
	if p.timer == 0 {
		p.timer = p.timerPeriod
		p.dutyPos = (p.dutyPos + 1) % 8
	} else {
		p.timer--
	}
}

func (p *pulseChannel) clockLength() {
	if !p.env.loop && p.lengthCount > 0 {
		p.lengthCount--
	}
}

func (p *pulseChannel) sample() uint8 {
	if !p.enabled || p.lengthCount == 0 || p.sweepMuted() || dutyTable[p.dutyCycle][p.dutyPos] == 0 {
		return 0
	}
	return p.env.output()
}

type triangleChannel struct {
	enabled     bool
	timer       uint16
	timerPeriod uint16
	lengthCount uint8
	linearCount uint8
	linearPeriod uint8
	linearReload bool
	control     bool
	sequencePos uint8
}

func (t *triangleChannel) clockTimer() {
	if t.timer == 0 {
		t.timer = t.timerPeriod
		if t.lengthCount > 0 && t.linearCount > 0 {
			t.sequencePos = (t.sequencePos + 1) % 32
		}
	} else {
		t.timer--
	}
}

func (t *triangleChannel) clockLinear() {
	if t.linearReload {
		t.linearCount = t.linearPeriod
	} else if t.linearCount > 0 {
		t.linearCount--
	}
	if !t.control {
		t.linearReload = false
	}
}

func (t *triangleChannel) clockLength() {
	if !t.control && t.lengthCount > 0 {
		t.lengthCount--
	}
}

func (t *triangleChannel) sample() uint8 {
	if !t.enabled || t.lengthCount == 0 || t.linearCount == 0 {
		return 0
	}
	return triangleSequence[t.sequencePos]
}

type noiseChannel struct {
	enabled     bool
	mode        bool
	timer       uint16
	timerPeriod uint16
	lengthCount uint8
	shift       uint16
	env         envelope
}

func (n *noiseChannel) clockTimer() {
	if n.timer == 0 {
		n.timer = n.timerPeriod
		var feedback uint16
		if n.mode {
			feedback = (n.shift & 1) ^ ((n.shift >> 6) & 1)
		} else {
			feedback = (n.shift & 1) ^ ((n.shift >> 1) & 1)
		}
		n.shift = (n.shift >> 1) | (feedback << 14)
	} else {
		n.timer--
	}
}

func (n *noiseChannel) clockLength() {
	if !n.env.loop && n.lengthCount > 0 {
		n.lengthCount--
	}
}

func (n *noiseChannel) sample() uint8 {
	if !n.enabled || n.lengthCount == 0 || n.shift&1 != 0 {
		return 0
	}
	return n.env.output()
}

// dmcChannel is a documented-gap stub: it tracks the registers games probe
// but never performs the delta-modulation sample playback or IRQ (spec.md
// Non-goals excludes cycle-accurate DMA-cycle-stealing audio).
type dmcChannel struct {
	enabled bool
	rate    uint8
	output  uint8
}

// APU is the NES 2A03 audio unit: two pulse channels, a triangle, a noise
// channel, and a DMC stub, clocked by the frame sequencer and mixed into
// the shared audio.Ring the way sms/psg.go feeds PSG samples.
type APU struct {
	pulse1, pulse2 pulseChannel
	triangle       triangleChannel
	noise          noiseChannel
	dmc            dmcChannel

	frameMode     uint8 // 0 = 4-step, 1 = 5-step
	frameIRQInhibit bool
	frameIRQ      bool
	frameCounter  int

	cpuClock       float64
	clocksPerSample float64
	clockCounter    float64

	ring   *audio.Ring
	render bool
}

func NewAPU(cpuClockHz, sampleRate, ringSamples int) *APU {
	a := &APU{
		cpuClock:        float64(cpuClockHz),
		clocksPerSample: float64(cpuClockHz) / float64(sampleRate),
		ring:            audio.NewRing(ringSamples),
		render:          true,
	}
	a.noise.shift = 1
	a.pulse2.channel2 = true
	return a
}

func (a *APU) SetRenderAudio(on bool) { a.render = on }
func (a *APU) Ring() *audio.Ring      { return a.ring }

// WriteRegister handles CPU writes to $4000-$4013, $4015, and $4017.
func (a *APU) WriteRegister(addr uint16, val uint8) {
	switch addr {
	case 0x4000:
		a.pulse1.dutyCycle = val >> 6
		a.pulse1.env.loop = val&0x20 != 0
		a.pulse1.env.constant = val&0x10 != 0
		a.pulse1.env.volume = val & 0x0F
	case 0x4001:
		a.pulse1.sweepEnabled = val&0x80 != 0
		a.pulse1.sweepPeriod = (val >> 4) & 0x07
		a.pulse1.sweepNegate = val&0x08 != 0
		a.pulse1.sweepShift = val & 0x07
		a.pulse1.sweepReload = true
	case 0x4002:
		a.pulse1.timerPeriod = (a.pulse1.timerPeriod &^ 0x00FF) | uint16(val)
	case 0x4003:
		a.pulse1.timerPeriod = (a.pulse1.timerPeriod &^ 0x0700) | (uint16(val&0x07) << 8)
		if a.pulse1.enabled {
			a.pulse1.lengthCount = lengthTable[val>>3]
		}
		a.pulse1.env.start = true
		a.pulse1.dutyPos = 0

	case 0x4004:
		a.pulse2.dutyCycle = val >> 6
		a.pulse2.env.loop = val&0x20 != 0
		a.pulse2.env.constant = val&0x10 != 0
		a.pulse2.env.volume = val & 0x0F
	case 0x4005:
		a.pulse2.sweepEnabled = val&0x80 != 0
		a.pulse2.sweepPeriod = (val >> 4) & 0x07
		a.pulse2.sweepNegate = val&0x08 != 0
		a.pulse2.sweepShift = val & 0x07
		a.pulse2.sweepReload = true
	case 0x4006:
		a.pulse2.timerPeriod = (a.pulse2.timerPeriod &^ 0x00FF) | uint16(val)
	case 0x4007:
		a.pulse2.timerPeriod = (a.pulse2.timerPeriod &^ 0x0700) | (uint16(val&0x07) << 8)
		if a.pulse2.enabled {
			a.pulse2.lengthCount = lengthTable[val>>3]
		}
		a.pulse2.env.start = true
		a.pulse2.dutyPos = 0

	case 0x4008:
		a.triangle.control = val&0x80 != 0
		a.triangle.linearPeriod = val & 0x7F
	case 0x400A:
		a.triangle.timerPeriod = (a.triangle.timerPeriod &^ 0x00FF) | uint16(val)
	case 0x400B:
		a.triangle.timerPeriod = (a.triangle.timerPeriod &^ 0x0700) | (uint16(val&0x07) << 8)
		if a.triangle.enabled {
			a.triangle.lengthCount = lengthTable[val>>3]
		}
		a.triangle.linearReload = true

	case 0x400C:
		a.noise.env.loop = val&0x20 != 0
		a.noise.env.constant = val&0x10 != 0
		a.noise.env.volume = val & 0x0F
	case 0x400E:
		a.noise.mode = val&0x80 != 0
		a.noise.timerPeriod = noisePeriodTable[val&0x0F]
	case 0x400F:
		if a.noise.enabled {
			a.noise.lengthCount = lengthTable[val>>3]
		}
		a.noise.env.start = true

	case 0x4010:
		a.dmc.rate = val & 0x0F
	case 0x4011:
		a.dmc.output = val & 0x7F

	case 0x4015:
		a.pulse1.enabled = val&0x01 != 0
		a.pulse2.enabled = val&0x02 != 0
		a.triangle.enabled = val&0x04 != 0
		a.noise.enabled = val&0x08 != 0
		a.dmc.enabled = val&0x10 != 0
		if !a.pulse1.enabled {
			a.pulse1.lengthCount = 0
		}
		if !a.pulse2.enabled {
			a.pulse2.lengthCount = 0
		}
		if !a.triangle.enabled {
			a.triangle.lengthCount = 0
		}
		if !a.noise.enabled {
			a.noise.lengthCount = 0
		}

	case 0x4017:
		a.frameMode = val >> 7
		a.frameIRQInhibit = val&0x40 != 0
		if a.frameIRQInhibit {
			a.frameIRQ = false
		}
		a.frameCounter = 0
		if a.frameMode == 1 {
			a.clockQuarter()
			a.clockHalf()
		}
	}
}

// ReadStatus implements $4015's read side: channel length-counter activity
// plus the frame IRQ flag, clearing the frame IRQ on read. The DMC bits
// read as 0, since the DMC stub neither plays samples nor raises an IRQ.
func (a *APU) ReadStatus() uint8 {
	var v uint8
	if a.pulse1.lengthCount > 0 {
		v |= 0x01
	}
	if a.pulse2.lengthCount > 0 {
		v |= 0x02
	}
	if a.triangle.lengthCount > 0 {
		v |= 0x04
	}
	if a.noise.lengthCount > 0 {
		v |= 0x08
	}
	if a.frameIRQ {
		v |= 0x40
	}
	a.frameIRQ = false
	return v
}

func (a *APU) clockQuarter() {
	a.pulse1.env.clock()
	a.pulse2.env.clock()
	a.noise.env.clock()
	a.triangle.clockLinear()
}

func (a *APU) clockHalf() {
	a.pulse1.clockLength()
	a.pulse2.clockLength()
	a.triangle.clockLength()
	a.noise.clockLength()
	a.pulse1.clockSweep()
	a.pulse2.clockSweep()
}

// IRQPending reports whether the frame sequencer's IRQ line is asserted.
func (a *APU) IRQPending() bool { return a.frameIRQ && !a.frameIRQInhibit }

// frameSequencerStep drives the 4-step/5-step frame sequencer at its
// documented CPU-cycle checkpoints (roughly quarter-frame every ~7457
// cycles), mirroring the SMS PSG's fixed-divider clock() shape but with the
// NES's richer quarter/half-frame split.
const frameSequencerPeriod = 7457

func (a *APU) stepFrameSequencer() {
	a.frameCounter++
	if a.frameCounter%frameSequencerPeriod != 0 {
		return
	}
	step := a.frameCounter / frameSequencerPeriod
	last := 4 + int(a.frameMode)
	if step != 4 || a.frameMode == 0 {
		a.clockQuarter()
	}
	if step == 2 || step == last {
		a.clockHalf()
	}
	if step == last {
		a.frameCounter = 0
		if a.frameMode == 0 && !a.frameIRQInhibit {
			a.frameIRQ = true
		}
	}
}

// Tick advances every channel's timer by cpuCycles CPU cycles (the triangle
// clocks at CPU rate; pulses and noise clock every other cycle, matching
// the 2A03's internal APU-cycle divider) and pushes stereo samples into the
// ring at sampleRate.
func (a *APU) Tick(cpuCycles int) {
	for i := 0; i < cpuCycles; i++ {
		a.triangle.clockTimer()
		if i%2 == 0 {
			a.pulse1.clockTimer()
			a.pulse2.clockTimer()
			a.noise.clockTimer()
		}
		a.stepFrameSequencer()

		a.clockCounter++
		if a.clockCounter >= a.clocksPerSample {
			a.clockCounter -= a.clocksPerSample
			if a.render {
				s := a.mix()
				a.ring.PushStereo(s, s)
			} else {
				a.ring.PushStereo(0, 0)
			}
		}
	}
}

func (a *APU) mix() int16 {
	p1 := float32(a.pulse1.sample())
	p2 := float32(a.pulse2.sample())
	tr := float32(a.triangle.sample())
	ns := float32(a.noise.sample())

	var pulseOut float32
	if p1+p2 > 0 {
		pulseOut = 95.88 / (8128.0/(p1+p2) + 100.0)
	}
	var tndOut float32
	tndDenom := tr/8227.0 + ns/12241.0
	if tndDenom > 0 {
		tndOut = 159.79 / (1.0/tndDenom + 100.0)
	}

	sample := (pulseOut + tndOut) * 2.0 * 32767.0
	if sample > 32767 {
		sample = 32767
	} else if sample < -32768 {
		sample = -32768
	}
	return int16(sample)
}

func (a *APU) FrameMode() uint8     { return a.frameMode }
func (a *APU) FrameIRQInhibit() bool { return a.frameIRQInhibit }
