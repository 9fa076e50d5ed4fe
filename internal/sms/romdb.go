package sms

// ROMInfo carries the mapper and region a known cartridge needs when the
// header alone is ambiguous (SMS headers do not distinguish Sega from
// Codemasters mapper, or NTSC from PAL for export-region carts).
type ROMInfo struct {
	Mapper MapperType
	Region Region
}

// romDatabase is a CRC32-keyed lookup for carts whose header is
// insufficient to select mapper/region. It is intentionally a small,
// representative subset (not the full multi-hundred-entry database a
// shipped front end would carry) — entries are added as specific titles
// are found to need them; everything else falls back to MapperSega/NTSC
// via detectMapper/DetectRegion.
var romDatabase = map[uint32]ROMInfo{
	// Sonic the Hedgehog (World)
	0x4f40c7c0: {MapperSega, RegionNTSC},
	// Sonic the Hedgehog (Europe)
	0xd6f2bf9a: {MapperSega, RegionPAL},
	// Alex Kidd in Miracle World
	0x50a8e8a7: {MapperSega, RegionNTSC},
	// Micro Machines (Codemasters)
	0x2f2215e1: {MapperCodemasters, RegionPAL},
	// Cosmic Spacehead (Codemasters)
	0xf0c41ba5: {MapperCodemasters, RegionPAL},
}
