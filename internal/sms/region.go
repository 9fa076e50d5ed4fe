package sms

import "hash/crc32"

// Region selects NTSC or PAL timing (SPEC_FULL.md SUPPLEMENTED FEATURES;
// spec.md itself is silent on PAL but the pack's region handling is carried
// forward for SMS since it drives real scanline-count/clock differences).
type Region int

const (
	RegionNTSC Region = iota
	RegionPAL
)

func (r Region) String() string {
	if r == RegionPAL {
		return "PAL"
	}
	return "NTSC"
}

// Timing holds the clock/scanline/fps constants for a region.
type Timing struct {
	CPUClockHz int
	Scanlines  int
	FPS        int
}

var ntscTiming = Timing{CPUClockHz: 3579545, Scanlines: 262, FPS: 60}
var palTiming = Timing{CPUClockHz: 3546893, Scanlines: 313, FPS: 50}

func TimingForRegion(r Region) Timing {
	if r == RegionPAL {
		return palTiming
	}
	return ntscTiming
}

// DetectRegion looks the ROM's CRC32 up in the cartridge database; SMS
// headers carry no region bit for export carts, so CRC lookup is the only
// signal available (spec.md §6.3 names header-only detection for NES/GB;
// SMS needs this fallback, per SPEC_FULL.md).
func DetectRegion(rom []byte) (Region, bool) {
	crc := crc32.ChecksumIEEE(rom)
	if info, ok := romDatabase[crc]; ok {
		return info.Region, true
	}
	return RegionNTSC, false
}
