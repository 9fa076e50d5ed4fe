package gb

import "github.com/user-none/multicore/internal/audio"

var waveVolumeShift = [4]uint8{4, 0, 1, 2} // mute, 100%, 50%, 25%

var dutyTable = [4][8]uint8{
	{0, 0, 0, 0, 0, 0, 0, 1}, // 12.5%
	{1, 0, 0, 0, 0, 0, 0, 1}, // 25%
	{1, 0, 0, 0, 0, 1, 1, 1}, // 50%
	{0, 1, 1, 1, 1, 1, 1, 0}, // 75%
}

type envelope struct {
	initialVolume uint8
	addMode       bool
	period        uint8

	volume  uint8
	timer   uint8
	running bool
}

func (e *envelope) trigger() {
	e.volume = e.initialVolume
	e.timer = e.period
	e.running = true
}

func (e *envelope) clock() {
	if e.period == 0 || !e.running {
		return
	}
	if e.timer > 0 {
		e.timer--
	}
	if e.timer == 0 {
		e.timer = e.period
		if e.addMode && e.volume < 15 {
			e.volume++
		} else if !e.addMode && e.volume > 0 {
			e.volume--
		} else {
			e.running = false
		}
	}
}

// sweepUnit is CH1-only: the frequency sweep clocked at 128Hz from the
// frame sequencer (spec.md §4.5).
type sweepUnit struct {
	period  uint8
	negate  bool
	shift   uint8
	timer   uint8
	enabled bool
	shadow  uint16
}

type pulseChannel struct {
	enabled     bool
	dacOn       bool
	duty        uint8
	dutyPos     uint8
	timer       int
	freq        uint16
	lengthLoad  uint8
	lengthTimer uint16
	lengthOn    bool
	env         envelope
	sweep       sweepUnit
	hasSweep    bool
}

func (p *pulseChannel) periodCycles() int { return (2048 - int(p.freq)) * 4 }

func (p *pulseChannel) clockTimer() {
	p.timer--
	if p.timer <= 0 {
		p.timer = p.periodCycles()
		p.dutyPos = (p.dutyPos + 1) & 7
	}
}

func (p *pulseChannel) clockLength() {
	if p.lengthOn && p.lengthTimer > 0 {
		p.lengthTimer--
		if p.lengthTimer == 0 {
			p.enabled = false
		}
	}
}

func (p *pulseChannel) sweepCalc() uint16 {
	delta := p.sweep.shadow >> p.sweep.shift
	if p.sweep.negate {
		return p.sweep.shadow - delta
	}
	return p.sweep.shadow + delta
}

func (p *pulseChannel) clockSweep() {
	if !p.hasSweep {
		return
	}
	if p.sweep.timer > 0 {
		p.sweep.timer--
	}
	if p.sweep.timer != 0 {
		return
	}
	p.sweep.timer = p.sweep.period
	if p.sweep.timer == 0 {
		p.sweep.timer = 8
	}
	if !p.sweep.enabled || p.sweep.period == 0 {
		return
	}
	next := p.sweepCalc()
	if next > 2047 {
		p.enabled = false
		return
	}
	if p.sweep.shift > 0 {
		p.sweep.shadow = next
		p.freq = next
		if p.sweepCalc() > 2047 {
			p.enabled = false
		}
	}
}

func (p *pulseChannel) trigger() {
	p.enabled = true
	if p.lengthTimer == 0 {
		p.lengthTimer = 64
	}
	p.timer = p.periodCycles()
	p.env.trigger()
	if p.hasSweep {
		p.sweep.shadow = p.freq
		p.sweep.timer = p.sweep.period
		if p.sweep.timer == 0 {
			p.sweep.timer = 8
		}
		p.sweep.enabled = p.sweep.period > 0 || p.sweep.shift > 0
		if p.sweep.shift > 0 && p.sweepCalc() > 2047 {
			p.enabled = false
		}
	}
	if !p.dacOn {
		p.enabled = false
	}
}

func (p *pulseChannel) sample() uint8 {
	if !p.enabled || !p.dacOn {
		return 0
	}
	if dutyTable[p.duty][p.dutyPos] == 0 {
		return 0
	}
	return p.env.volume
}

// waveChannel is CH3: a user-defined 32-sample 4-bit wave table played back
// at a programmable rate with a coarse volume divider rather than an
// envelope (spec.md §4.5).
type waveChannel struct {
	enabled     bool
	dacOn       bool
	freq        uint16
	timer       int
	position    uint8
	volumeCode  uint8
	lengthTimer uint16
	lengthOn    bool
	table       [16]uint8 // 32 nibbles packed 2-per-byte
}

func (w *waveChannel) periodCycles() int { return (2048 - int(w.freq)) * 2 }

func (w *waveChannel) clockTimer() {
	w.timer--
	if w.timer <= 0 {
		w.timer = w.periodCycles()
		w.position = (w.position + 1) & 31
	}
}

func (w *waveChannel) clockLength() {
	if w.lengthOn && w.lengthTimer > 0 {
		w.lengthTimer--
		if w.lengthTimer == 0 {
			w.enabled = false
		}
	}
}

func (w *waveChannel) trigger() {
	w.enabled = w.dacOn
	if w.lengthTimer == 0 {
		w.lengthTimer = 256
	}
	w.timer = w.periodCycles()
	w.position = 0
}

func (w *waveChannel) sample() uint8 {
	if !w.enabled || !w.dacOn {
		return 0
	}
	b := w.table[w.position/2]
	var nibble uint8
	if w.position%2 == 0 {
		nibble = b >> 4
	} else {
		nibble = b & 0x0F
	}
	return nibble >> waveVolumeShift[w.volumeCode]
}

// noiseChannel is CH4: a 15-bit (or 7-bit, in "width" mode) LFSR clocked by
// a shift/ratio divider pair.
type noiseChannel struct {
	enabled     bool
	dacOn       bool
	env         envelope
	shiftAmount uint8
	widthMode   bool
	divisorCode uint8
	timer       int
	lfsr        uint16
	lengthTimer uint16
	lengthOn    bool
}

var noiseDivisors = [8]int{8, 16, 32, 48, 64, 80, 96, 112}

func (n *noiseChannel) periodCycles() int {
	return noiseDivisors[n.divisorCode] << n.shiftAmount
}

func (n *noiseChannel) clockTimer() {
	n.timer--
	if n.timer <= 0 {
		n.timer = n.periodCycles()
		bit := (n.lfsr & 1) ^ ((n.lfsr >> 1) & 1)
		n.lfsr = (n.lfsr >> 1) | (bit << 14)
		if n.widthMode {
			n.lfsr &^= 1 << 6
			n.lfsr |= bit << 6
		}
	}
}

func (n *noiseChannel) clockLength() {
	if n.lengthOn && n.lengthTimer > 0 {
		n.lengthTimer--
		if n.lengthTimer == 0 {
			n.enabled = false
		}
	}
}

func (n *noiseChannel) trigger() {
	n.enabled = n.dacOn
	if n.lengthTimer == 0 {
		n.lengthTimer = 64
	}
	n.timer = n.periodCycles()
	n.lfsr = 0x7FFF
	n.env.trigger()
}

func (n *noiseChannel) sample() uint8 {
	if !n.enabled || !n.dacOn || n.lfsr&1 != 0 {
		return 0
	}
	return n.env.volume
}

// APU is the DMG sound unit: two pulse channels (CH1 with sweep), the wave
// channel (CH3), the noise channel (CH4), a 512Hz frame sequencer driven
// off the CPU divider (spec.md §4.5), and a stereo mixer feeding the shared
// audio.Ring the way nes/apu.go feeds its ring.
type APU struct {
	ch1, ch2 pulseChannel
	ch3      waveChannel
	ch4      noiseChannel

	masterEnable bool
	leftVolume   uint8
	rightVolume  uint8
	leftEnable   [4]bool
	rightEnable  [4]bool

	frameSeqCounter int
	frameSeqStep    uint8

	cpuClock        float64
	clocksPerSample float64
	clockCounter    float64

	ring   *audio.Ring
	render bool
}

const frameSequencerDivider = 8192 // CPU/8192 = 512Hz

func NewAPU(cpuClockHz, sampleRate, ringSamples int) *APU {
	a := &APU{
		cpuClock:        float64(cpuClockHz),
		clocksPerSample: float64(cpuClockHz) / float64(sampleRate),
		ring:            audio.NewRing(ringSamples),
		render:          true,
	}
	a.ch1.hasSweep = true
	a.ch4.lfsr = 0x7FFF
	return a
}

func (a *APU) SetRenderAudio(on bool) { a.render = on }
func (a *APU) Ring() *audio.Ring      { return a.ring }

// ReadRegister implements the $FF10-$FF3F I/O window, including the
// read-only bits that always report set (spec.md undocumented-behavior
// note: unused bits float high on real hardware).
func (a *APU) ReadRegister(addr uint16) uint8 {
	switch addr {
	case 0xFF26:
		var v uint8 = 0x70
		if a.masterEnable {
			v |= 0x80
		}
		if a.ch1.enabled {
			v |= 0x01
		}
		if a.ch2.enabled {
			v |= 0x02
		}
		if a.ch3.enabled {
			v |= 0x04
		}
		if a.ch4.enabled {
			v |= 0x08
		}
		return v
	case 0xFF25:
		return a.nr51()
	case 0xFF24:
		return a.nr50()
	}
	if addr >= 0xFF30 && addr <= 0xFF3F {
		return a.ch3.table[addr-0xFF30]
	}
	return 0xFF
}

func (a *APU) nr50() uint8 {
	return a.leftVolume<<4 | a.rightVolume
}

func (a *APU) nr51() uint8 {
	var v uint8
	for i := 0; i < 4; i++ {
		if a.rightEnable[i] {
			v |= 1 << i
		}
		if a.leftEnable[i] {
			v |= 1 << (i + 4)
		}
	}
	return v
}

// WriteRegister implements the $FF10-$FF3F I/O window.
func (a *APU) WriteRegister(addr uint16, val uint8) {
	if !a.masterEnable && addr != 0xFF26 && addr < 0xFF30 {
		return
	}
	switch addr {
	case 0xFF10:
		a.ch1.sweep.period = (val >> 4) & 0x07
		a.ch1.sweep.negate = val&0x08 != 0
		a.ch1.sweep.shift = val & 0x07
	case 0xFF11:
		a.ch1.duty = val >> 6
		a.ch1.lengthTimer = 64 - uint16(val&0x3F)
	case 0xFF12:
		a.ch1.env.initialVolume = val >> 4
		a.ch1.env.addMode = val&0x08 != 0
		a.ch1.env.period = val & 0x07
		a.ch1.dacOn = val&0xF8 != 0
		if !a.ch1.dacOn {
			a.ch1.enabled = false
		}
	case 0xFF13:
		a.ch1.freq = (a.ch1.freq &^ 0x00FF) | uint16(val)
	case 0xFF14:
		a.ch1.freq = (a.ch1.freq &^ 0x0700) | (uint16(val&0x07) << 8)
		a.ch1.lengthOn = val&0x40 != 0
		if val&0x80 != 0 {
			a.ch1.trigger()
		}

	case 0xFF16:
		a.ch2.duty = val >> 6
		a.ch2.lengthTimer = 64 - uint16(val&0x3F)
	case 0xFF17:
		a.ch2.env.initialVolume = val >> 4
		a.ch2.env.addMode = val&0x08 != 0
		a.ch2.env.period = val & 0x07
		a.ch2.dacOn = val&0xF8 != 0
		if !a.ch2.dacOn {
			a.ch2.enabled = false
		}
	case 0xFF18:
		a.ch2.freq = (a.ch2.freq &^ 0x00FF) | uint16(val)
	case 0xFF19:
		a.ch2.freq = (a.ch2.freq &^ 0x0700) | (uint16(val&0x07) << 8)
		a.ch2.lengthOn = val&0x40 != 0
		if val&0x80 != 0 {
			a.ch2.trigger()
		}

	case 0xFF1A:
		a.ch3.dacOn = val&0x80 != 0
		if !a.ch3.dacOn {
			a.ch3.enabled = false
		}
	case 0xFF1B:
		a.ch3.lengthTimer = 256 - uint16(val)
	case 0xFF1C:
		a.ch3.volumeCode = (val >> 5) & 0x03
	case 0xFF1D:
		a.ch3.freq = (a.ch3.freq &^ 0x00FF) | uint16(val)
	case 0xFF1E:
		a.ch3.freq = (a.ch3.freq &^ 0x0700) | (uint16(val&0x07) << 8)
		a.ch3.lengthOn = val&0x40 != 0
		if val&0x80 != 0 {
			a.ch3.trigger()
		}

	case 0xFF20:
		a.ch4.lengthTimer = 64 - uint16(val&0x3F)
	case 0xFF21:
		a.ch4.env.initialVolume = val >> 4
		a.ch4.env.addMode = val&0x08 != 0
		a.ch4.env.period = val & 0x07
		a.ch4.dacOn = val&0xF8 != 0
		if !a.ch4.dacOn {
			a.ch4.enabled = false
		}
	case 0xFF22:
		a.ch4.shiftAmount = val >> 4
		a.ch4.widthMode = val&0x08 != 0
		a.ch4.divisorCode = val & 0x07
	case 0xFF23:
		if val&0x80 != 0 {
			a.ch4.trigger()
		}

	case 0xFF24:
		a.leftVolume = (val >> 4) & 0x07
		a.rightVolume = val & 0x07
	case 0xFF25:
		for i := 0; i < 4; i++ {
			a.rightEnable[i] = val&(1<<i) != 0
			a.leftEnable[i] = val&(1<<(i+4)) != 0
		}
	case 0xFF26:
		a.masterEnable = val&0x80 != 0
		if !a.masterEnable {
			*a = APU{cpuClock: a.cpuClock, clocksPerSample: a.clocksPerSample, ring: a.ring, render: a.render}
			a.ch1.hasSweep = true
		}
	}
	if addr >= 0xFF30 && addr <= 0xFF3F {
		a.ch3.table[addr-0xFF30] = val
	}
}

// stepFrameSequencer runs the 512Hz 8-step sequencer: length clocks on
// every even step, sweep every 4th step (2 and 6), envelope every 8th
// (step 7) — the DMG's documented schedule (spec.md §4.5).
func (a *APU) stepFrameSequencer() {
	switch a.frameSeqStep {
	case 0, 4:
		a.clockLength()
	case 2, 6:
		a.clockLength()
		a.ch1.clockSweep()
	case 7:
		a.clockEnvelopes()
	}
	a.frameSeqStep = (a.frameSeqStep + 1) & 7
}

func (a *APU) clockLength() {
	a.ch1.clockLength()
	a.ch2.clockLength()
	a.ch3.clockLength()
	a.ch4.clockLength()
}

func (a *APU) clockEnvelopes() {
	a.ch1.env.clock()
	a.ch2.env.clock()
	a.ch4.env.clock()
}

// Tick advances every channel's timer by cpuCycles CPU cycles and, each
// time the 512Hz frame-sequencer divider rolls over, clocks length/sweep/
// envelope; it then pushes stereo samples into the ring at sampleRate.
func (a *APU) Tick(cpuCycles int) {
	for i := 0; i < cpuCycles; i++ {
		a.ch1.clockTimer()
		a.ch2.clockTimer()
		a.ch3.clockTimer()
		a.ch4.clockTimer()

		a.frameSeqCounter++
		if a.frameSeqCounter >= frameSequencerDivider {
			a.frameSeqCounter -= frameSequencerDivider
			a.stepFrameSequencer()
		}

		a.clockCounter++
		if a.clockCounter >= a.clocksPerSample {
			a.clockCounter -= a.clocksPerSample
			if a.render && a.masterEnable {
				l, r := a.mix()
				a.ring.PushStereo(l, r)
			} else {
				a.ring.PushStereo(0, 0)
			}
		}
	}
}

func (a *APU) mix() (int16, int16) {
	c1, c2, c3, c4 := float32(a.ch1.sample()), float32(a.ch2.sample()), float32(a.ch3.sample()), float32(a.ch4.sample())

	var left, right float32
	if a.leftEnable[0] {
		left += c1
	}
	if a.leftEnable[1] {
		left += c2
	}
	if a.leftEnable[2] {
		left += c3
	}
	if a.leftEnable[3] {
		left += c4
	}
	if a.rightEnable[0] {
		right += c1
	}
	if a.rightEnable[1] {
		right += c2
	}
	if a.rightEnable[2] {
		right += c3
	}
	if a.rightEnable[3] {
		right += c4
	}

	left = left / 4 * (float32(a.leftVolume) + 1) / 8 * 32767
	right = right / 4 * (float32(a.rightVolume) + 1) / 8 * 32767

	return clampSample(left), clampSample(right)
}

func clampSample(v float32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
