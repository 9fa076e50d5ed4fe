package genesis

import "github.com/user-none/multicore/internal/audio"

// FM is a functional stub of the YM2612: it accepts the two-port
// register-select/data write protocol, tracks the status byte real
// software polls (busy flag, timer overflow flags), and passes the DAC
// channel (register 0x2A writes on part 1 when channel 6's CSM/DAC-enable
// bit, register 0x2B, is set) straight through to the mix. The six FM
// operators themselves are not synthesized — spec.md §4.5/§9 lists this
// as an intentional, documented accuracy compromise rather than an
// omission to fix later.
type FM struct {
	selectedReg [2]uint8
	regs        [2][256]uint8

	dacEnabled bool
	dacSample  uint8

	timerAOverflow bool
	timerBOverflow bool

	ring *audio.Ring
}

func NewFM(ringSamples int) *FM {
	return &FM{ring: audio.NewRing(ringSamples)}
}

func (f *FM) Ring() *audio.Ring { return f.ring }

// SelectRegister / WriteData serve $4000/$4001 (part 1 register
// select/data) and $4002/$4003 (part 2); the caller takes the part from
// address bit 1 and picks between the two calls by address bit 0.
func (f *FM) SelectRegister(part int, reg uint8) { f.selectedReg[part] = reg }

func (f *FM) WriteData(part int, value uint8) {
	reg := f.selectedReg[part]
	f.regs[part][reg] = value

	if part == 0 {
		switch reg {
		case 0x2A:
			f.dacSample = value
		case 0x2B:
			f.dacEnabled = value&0x80 != 0
		case 0x27:
			// Timer control: bits 4/5 reset the overflow flags this stub tracks.
			if value&0x10 != 0 {
				f.timerAOverflow = false
			}
			if value&0x20 != 0 {
				f.timerBOverflow = false
			}
		}
	}
}

// Status returns the busy/timer-overflow status byte read back from $4000.
// A real OPN2 clears busy almost immediately; this stub never sets it,
// since no operation here takes measurable time.
func (f *FM) Status() uint8 {
	var s uint8
	if f.timerAOverflow {
		s |= 0x01
	}
	if f.timerBOverflow {
		s |= 0x02
	}
	return s
}

// Tick emits silence for the unsynthesized FM channels, with the DAC
// sample passed through when channel 6 is in DAC mode — this is the only
// audible output this stub produces.
func (f *FM) Tick(cycles int, clocksPerSample float64, clockCounter *float64) {
	for i := 0; i < cycles; i++ {
		*clockCounter++
		if *clockCounter >= clocksPerSample {
			*clockCounter -= clocksPerSample
			var s int16
			if f.dacEnabled {
				s = (int16(f.dacSample) - 128) * 128
			}
			f.ring.PushStereo(s, s)
		}
	}
}
