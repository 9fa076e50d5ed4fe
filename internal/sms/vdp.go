package sms

import (
	"image"
	"image/color"
)

// VDP timing constants (in CPU cycles within a scanline), grounded on the
// SMS VDP's documented horizontal timing.
const (
	VBlankInterruptCycle = 4
	LineInterruptCycle   = 8
	CRAMLatchCycle       = 14
)

// hCounterTable maps CPU-cycle offset within a scanline (0-227) to the
// 8-bit H-counter value games read via port $7E/$7F. The SMS VDP master
// clock runs at 3x the CPU clock; one scanline is 228 CPU cycles.
var hCounterTable = func() [228]uint8 {
	var table [228]uint8
	for cycle := 0; cycle < 228; cycle++ {
		masterClock := cycle * 3
		var hValue int
		switch {
		case masterClock < 256:
			hValue = masterClock / 2
		case masterClock < 512:
			progress := masterClock - 256
			hValue = 0x80 + (progress * 20 / 256)
			if hValue > 0x93 {
				hValue = 0x93
			}
		default:
			progress := masterClock - 512
			hValue = 0xE9 + (progress * 32 / 172)
			if hValue > 0xFF {
				hValue -= 0x100
			}
		}
		table[cycle] = uint8(hValue)
	}
	return table
}()

func hCounterForCycle(cycle int) uint8 {
	if cycle < 0 {
		return 0
	}
	if cycle >= 228 {
		return hCounterTable[227]
	}
	return hCounterTable[cycle]
}

// VDP is the SMS mode-4 video processor: 16 KiB VRAM, 32-byte CRAM palette,
// 16 registers, and the scanline rendering pipeline of spec.md §4.4.
type VDP struct {
	vram       [0x4000]uint8
	cram       [0x20]uint8
	cramLatch  [0x20]uint8
	register   [16]uint8
	addr       uint16
	addrLatch  uint8
	writeLatch bool
	codeReg    uint8
	readBuffer uint8
	status     uint8

	vCounter       uint16
	hCounter       uint8
	lineCounter    int16
	lineIntPending bool
	bgPriority     [256]bool
	framebuffer    *image.RGBA

	hScrollLatch uint8
	reg2Latch    uint8
	reg7Latch    uint8
	vScrollLatch uint8

	totalScanlines int

	statusWasRead          bool
	interruptCheckRequired bool

	spritePixels []bool

	renderGraphics bool
}

var paletteScale = []uint8{0, 85, 170, 255}

func NewVDP() *VDP {
	return &VDP{
		framebuffer:    image.NewRGBA(image.Rect(0, 0, ScreenWidth, MaxScreenHeight)),
		totalScanlines: 262,
		lineCounter:    255,
		spritePixels:   make([]bool, ScreenWidth),
		renderGraphics: true,
	}
}

func (v *VDP) SetTotalScanlines(scanlines int) { v.totalScanlines = scanlines }
func (v *VDP) SetRenderGraphics(on bool)       { v.renderGraphics = on }

// ReadVCounter returns the V-counter with the region-dependent non-linear
// wraparound real hardware exhibits once the active scanline count is
// exceeded (spec.md's general "raise interrupts/counters at documented
// cycles" contract, supplemented per SPEC_FULL.md).
func (v *VDP) ReadVCounter() uint8 {
	line := int(v.vCounter)
	activeHeight := v.ActiveHeight()

	if v.totalScanlines == 313 {
		switch activeHeight {
		case 192:
			if line <= 242 {
				return uint8(line)
			}
			return uint8(line - 57)
		case 224:
			if line <= 258 {
				return uint8(line)
			}
			return uint8(line - 57)
		}
	} else {
		switch activeHeight {
		case 192:
			if line <= 218 {
				return uint8(line)
			}
			return uint8(line - 6)
		case 224:
			if line <= 234 {
				return uint8(line)
			}
			return uint8(line - 6)
		}
	}
	return uint8(line)
}

func (v *VDP) ReadHCounter() uint8    { return v.hCounter }
func (v *VDP) SetHCounter(h uint8)    { v.hCounter = h }

// ActiveHeight reports 192 or 224 visible scanlines depending on mode bits
// M2 (register 0 bit 1) and M1 (register 1 bit 4).
func (v *VDP) ActiveHeight() int {
	m2 := v.register[0]&0x02 != 0
	m1 := v.register[1]&0x10 != 0
	if m2 && m1 {
		return 224
	}
	return 192
}

func (v *VDP) ReadControl() uint8 {
	status := v.status
	v.status &^= 0xE0
	v.lineIntPending = false
	v.writeLatch = false
	v.statusWasRead = true
	return status
}

func (v *VDP) StatusWasRead() bool {
	if v.statusWasRead {
		v.statusWasRead = false
		return true
	}
	return false
}

func (v *VDP) InterruptCheckRequired() bool {
	if v.interruptCheckRequired {
		v.interruptCheckRequired = false
		return true
	}
	return false
}

func (v *VDP) WriteControl(value uint8) {
	if !v.writeLatch {
		v.addrLatch = value
		v.writeLatch = true
		return
	}
	v.writeLatch = false
	v.addr = uint16(v.addrLatch) | (uint16(value&0x3F) << 8)
	v.codeReg = (value >> 6) & 0x03

	switch v.codeReg {
	case 0:
		v.readBuffer = v.vram[v.addr&0x3FFF]
		v.addr = (v.addr + 1) & 0x3FFF
	case 1:
		// VRAM write setup: nothing further required.
	case 2:
		regNum := value & 0x0F
		if regNum < 16 {
			v.register[regNum] = v.addrLatch
			if regNum == 0 || regNum == 1 {
				v.interruptCheckRequired = true
			}
		}
	case 3:
		// CRAM write setup.
	}
}

func (v *VDP) ReadData() uint8 {
	v.writeLatch = false
	data := v.readBuffer
	v.readBuffer = v.vram[v.addr&0x3FFF]
	v.addr = (v.addr + 1) & 0x3FFF
	return data
}

func (v *VDP) WriteData(value uint8) {
	v.writeLatch = false
	v.readBuffer = value
	if v.codeReg == 3 {
		v.cram[v.addr&0x1F] = value
	} else {
		v.vram[v.addr&0x3FFF] = value
	}
	v.addr = (v.addr + 1) & 0x3FFF
}

func (v *VDP) cramToColor(index uint8) color.RGBA {
	c := v.cramLatch[index&0x1F]
	r := (c >> 0) & 0x03
	g := (c >> 2) & 0x03
	b := (c >> 4) & 0x03
	return color.RGBA{R: paletteScale[r], G: paletteScale[g], B: paletteScale[b], A: 255}
}

func (v *VDP) SetVBlank() { v.status |= 0x80 }

// InterruptPending reports whether either the frame (V-blank) or line
// interrupt condition is currently asserted and enabled, per spec.md §4.4.
func (v *VDP) InterruptPending() bool {
	frameInt := (v.status&0x80 != 0) && (v.register[1]&0x20 != 0)
	lineInt := v.lineIntPending && (v.register[0]&0x10 != 0)
	return frameInt || lineInt
}

func (v *VDP) SetVCounter(line uint16) { v.vCounter = line }

func (v *VDP) LatchVScrollForFrame() { v.vScrollLatch = v.register[9] }
func (v *VDP) LatchCRAM()            { copy(v.cramLatch[:], v.cram[:]) }
func (v *VDP) LatchPerLineRegisters() {
	v.hScrollLatch = v.register[8]
	v.reg2Latch = v.register[2]
	v.reg7Latch = v.register[7]
}

// UpdateLineCounter implements the scanline-approximated line-interrupt
// counter (spec.md §9 Open Question 3's SMS analogue: the line-counter
// underflow behavior, not the scanline-collision one — that one is
// handled separately in renderSprites).
func (v *VDP) UpdateLineCounter() {
	activeHeight := uint16(v.ActiveHeight())
	if v.vCounter <= activeHeight {
		v.lineCounter--
		if v.lineCounter < 0 {
			v.lineCounter = int16(v.register[10])
			v.lineIntPending = true
		}
	} else {
		v.lineCounter = int16(v.register[10])
	}
}

// RenderScanline executes the shared rendering pipeline shape from
// spec.md §4.4 steps 1-5 (clear/background/sprites; SMS has no window
// plane) for the current scanline.
func (v *VDP) RenderScanline() {
	line := v.vCounter
	activeHeight := v.ActiveHeight()
	if int(line) >= activeHeight {
		return
	}
	if !v.renderGraphics {
		return
	}

	for i := range v.bgPriority {
		v.bgPriority[i] = false
	}

	if v.register[1]&0x40 == 0 {
		bgColor := v.cramToColor(16 + (v.reg7Latch & 0x0F))
		for x := 0; x < ScreenWidth; x++ {
			v.framebuffer.SetRGBA(x, int(line), bgColor)
		}
		return
	}

	v.renderBackground(line)
	v.renderSprites(line)

	if v.register[0]&0x20 != 0 {
		bgColor := v.cramToColor(16 + (v.reg7Latch & 0x0F))
		for x := 0; x < 8; x++ {
			v.framebuffer.SetRGBA(x, int(line), bgColor)
		}
	}
}

func (v *VDP) renderBackground(line uint16) {
	var nameTableBase uint16
	activeHeight := v.ActiveHeight()
	reg2 := v.reg2Latch
	if activeHeight == 192 {
		nameTableBase = uint16(reg2&0x0E) << 10
	} else {
		nameTableBase = (uint16(reg2&0x0C) << 10) | 0x0700
	}

	hScroll := v.hScrollLatch
	vScroll := v.vScrollLatch
	topRowLock := v.register[0]&0x40 != 0
	rightColLock := v.register[0]&0x80 != 0

	for x := 0; x < ScreenWidth; x++ {
		effectiveHScroll := hScroll
		effectiveVScroll := vScroll
		if topRowLock && line < 16 {
			effectiveHScroll = 0
		}
		if rightColLock && x >= 192 {
			effectiveVScroll = 0
		}

		var effectiveY uint16
		if activeHeight == 224 {
			effectiveY = (uint16(line) + uint16(effectiveVScroll)) & 0xFF
		} else {
			effectiveY = uint16(line) + uint16(effectiveVScroll)
			if effectiveY >= 224 {
				effectiveY -= 224
			}
		}

		tileRow := effectiveY / 8
		tileLine := effectiveY % 8
		effectiveX := (uint16(x) - uint16(effectiveHScroll)) & 0xFF
		tileCol := effectiveX / 8
		tilePixel := effectiveX % 8

		nameTableAddr := nameTableBase + (tileRow*32+tileCol)*2
		entryLo := v.vram[nameTableAddr&0x3FFF]
		entryHi := v.vram[(nameTableAddr+1)&0x3FFF]

		patternIndex := uint16(entryLo) | (uint16(entryHi&0x01) << 8)
		hFlip := entryHi&0x02 != 0
		vFlip := entryHi&0x04 != 0
		paletteSelect := (entryHi & 0x08) >> 3
		priority := entryHi&0x10 != 0

		patternLine := tileLine
		if vFlip {
			patternLine = 7 - tileLine
		}
		pixelPos := tilePixel
		if hFlip {
			pixelPos = 7 - tilePixel
		}

		patternAddr := patternIndex*32 + patternLine*4
		bp0 := v.vram[patternAddr&0x3FFF]
		bp1 := v.vram[(patternAddr+1)&0x3FFF]
		bp2 := v.vram[(patternAddr+2)&0x3FFF]
		bp3 := v.vram[(patternAddr+3)&0x3FFF]

		shift := 7 - pixelPos
		colorIndex := ((bp0 >> shift) & 1) |
			(((bp1 >> shift) & 1) << 1) |
			(((bp2 >> shift) & 1) << 2) |
			(((bp3 >> shift) & 1) << 3)

		cramIndex := uint8(paletteSelect)*16 + colorIndex
		v.framebuffer.SetRGBA(x, int(line), v.cramToColor(cramIndex))

		if priority && colorIndex != 0 {
			v.bgPriority[x] = true
		}
	}
}

func (v *VDP) renderSprites(line uint16) {
	satBase := uint16(v.register[5]&0x7E) << 7

	spriteHeight := 8
	if v.register[1]&0x02 != 0 {
		spriteHeight = 16
	}
	zoom := 1
	zoomShift := 0
	if v.register[1]&0x01 != 0 {
		zoom = 2
		zoomShift = 1
	}
	effectiveHeight := spriteHeight * zoom
	patternBase := uint16(v.register[6]&0x04) << 11
	spriteShift := 0
	if v.register[0]&0x08 != 0 {
		spriteShift = 8
	}
	activeHeight := v.ActiveHeight()

	type spriteInfo struct {
		x       int
		pattern uint8
		line    int
	}
	var sprites [8]spriteInfo
	spriteCount := 0

	for i := 0; i < 64; i++ {
		y := int(v.vram[(satBase+uint16(i))&0x3FFF])
		if activeHeight == 192 && y == 208 {
			break
		}
		spriteY := y + 1
		if int(line) >= spriteY && int(line) < spriteY+effectiveHeight {
			if spriteCount >= 8 {
				v.status |= 0x40
				break
			}
			satAddr2 := satBase + 0x80 + uint16(i)*2
			spriteX := int(v.vram[satAddr2&0x3FFF]) - spriteShift
			pattern := v.vram[(satAddr2+1)&0x3FFF]
			if spriteHeight == 16 {
				pattern &= 0xFE
			}
			spriteLine := (int(line) - spriteY) >> zoomShift
			sprites[spriteCount] = spriteInfo{x: spriteX, pattern: pattern, line: spriteLine}
			spriteCount++
		}
	}

	for i := range v.spritePixels {
		v.spritePixels[i] = false
	}

	for i := spriteCount - 1; i >= 0; i-- {
		spr := sprites[i]
		pattern := uint16(spr.pattern)
		spriteLine := spr.line
		if spriteHeight == 16 && spriteLine >= 8 {
			pattern++
			spriteLine -= 8
		}
		patternAddr := patternBase + pattern*32 + uint16(spriteLine)*4
		bp0 := v.vram[patternAddr&0x3FFF]
		bp1 := v.vram[(patternAddr+1)&0x3FFF]
		bp2 := v.vram[(patternAddr+2)&0x3FFF]
		bp3 := v.vram[(patternAddr+3)&0x3FFF]

		for px := 0; px < 8*zoom; px++ {
			screenX := spr.x + px
			if screenX < 0 || screenX >= ScreenWidth {
				continue
			}
			patternPx := px >> zoomShift
			shift := uint(7 - patternPx)
			colorIndex := ((bp0 >> shift) & 1) |
				(((bp1 >> shift) & 1) << 1) |
				(((bp2 >> shift) & 1) << 2) |
				(((bp3 >> shift) & 1) << 3)
			if colorIndex == 0 {
				continue
			}
			if v.spritePixels[screenX] {
				v.status |= 0x20
			}
			v.spritePixels[screenX] = true
			if v.bgPriority[screenX] {
				continue
			}
			v.framebuffer.SetRGBA(screenX, int(line), v.cramToColor(colorIndex+16))
		}
	}
}

func (v *VDP) Framebuffer() *image.RGBA       { return v.framebuffer }
func (v *VDP) VRAM() []uint8                  { return v.vram[:] }
func (v *VDP) CRAM() []uint8                  { return v.cram[:] }
func (v *VDP) Register(n int) uint8 {
	if n < 0 || n >= len(v.register) {
		return 0
	}
	return v.register[n]
}
func (v *VDP) Address() uint16    { return v.addr }
func (v *VDP) CodeReg() uint8     { return v.codeReg }
func (v *VDP) WriteLatch() bool   { return v.writeLatch }
func (v *VDP) Status() uint8      { return v.status }
func (v *VDP) LineCounter() int16 { return v.lineCounter }
func (v *VDP) LineIntPending() bool { return v.lineIntPending }

func (v *VDP) LeftColumnBlankEnabled() bool { return v.register[0]&0x20 != 0 }
