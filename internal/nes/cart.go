package nes

import "errors"

// parseINES decodes an iNES (or NES 2.0, read compatibly) header and
// selects a mapper, grounded on sms/mapper.go's CRC-keyed-lookup idea but
// using the cartridge's own header fields rather than a checksum database
// since iNES carries mapper number and mirroring directly.
func parseINES(rom []byte) (Mapper, error) {
	if len(rom) < 16 || rom[0] != 'N' || rom[1] != 'E' || rom[2] != 'S' || rom[3] != 0x1A {
		return nil, errors.New("nes: missing iNES header")
	}

	prgUnits := int(rom[4])
	chrUnits := int(rom[5])
	flags6 := rom[6]
	flags7 := rom[7]

	mapperNum := (flags7 & 0xF0) | (flags6 >> 4)
	fourScreen := flags6&0x08 != 0
	hasTrainer := flags6&0x04 != 0

	mirror := MirrorHorizontal
	if flags6&0x01 != 0 {
		mirror = MirrorVertical
	}
	if fourScreen {
		mirror = MirrorFourScreen
	}

	offset := 16
	if hasTrainer {
		offset += 512
	}

	prgSize := prgUnits * 0x4000
	if prgSize == 0 {
		prgSize = 0x4000
	}
	if offset+prgSize > len(rom) {
		return nil, errors.New("nes: rom truncated before end of PRG data")
	}
	prg := rom[offset : offset+prgSize]
	offset += prgSize

	chrSize := chrUnits * 0x2000
	var chr []byte
	if chrSize > 0 {
		if offset+chrSize > len(rom) {
			return nil, errors.New("nes: rom truncated before end of CHR data")
		}
		chr = rom[offset : offset+chrSize]
	}

	rb := splitROM(append([]byte(nil), prg...), append([]byte(nil), chr...))

	switch mapperNum {
	case 0:
		return newNROM(rb, mirror), nil
	case 1:
		return newMMC1(rb), nil
	case 2:
		return newUxROM(rb, mirror), nil
	case 4:
		m := newMMC3(rb)
		m.mirror = mirror
		return m, nil
	case 7:
		return newAxROM(rb), nil
	default:
		return nil, errors.New("nes: unsupported mapper")
	}
}
