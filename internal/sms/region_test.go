package sms

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimingForRegion(t *testing.T) {
	ntsc := TimingForRegion(RegionNTSC)
	assert.Equal(t, 60, ntsc.FPS)
	assert.Equal(t, 262, ntsc.Scanlines)

	pal := TimingForRegion(RegionPAL)
	assert.Equal(t, 50, pal.FPS)
	assert.Equal(t, 313, pal.Scanlines)
}

func TestDetectRegion_UnknownROMFallsBackToNTSC(t *testing.T) {
	region, ok := DetectRegion(makeTestROM(2))
	assert.False(t, ok)
	assert.Equal(t, RegionNTSC, region)
}

func TestDetectRegion_DatabaseHitReturnsItsRegion(t *testing.T) {
	rom := makeTestROM(2)
	crc := crc32.ChecksumIEEE(rom)
	romDatabase[crc] = ROMInfo{Mapper: MapperSega, Region: RegionPAL}
	defer delete(romDatabase, crc)

	region, ok := DetectRegion(rom)
	assert.True(t, ok)
	assert.Equal(t, RegionPAL, region)
}
