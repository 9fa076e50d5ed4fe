package nes

import (
	"image"
	"image/color"
)

const (
	ScreenWidth  = 256
	ScreenHeight = 240
)

// nesPalette is the fixed 64-entry NTSC palette; indices are the PPU's
// 6-bit color codes read out of the pattern/attribute pipeline.
var nesPalette = [64]color.RGBA{
	{84, 84, 84, 255}, {0, 30, 116, 255}, {8, 16, 144, 255}, {48, 0, 136, 255},
	{68, 0, 100, 255}, {92, 0, 48, 255}, {84, 4, 0, 255}, {60, 24, 0, 255},
	{32, 42, 0, 255}, {8, 58, 0, 255}, {0, 64, 0, 255}, {0, 60, 0, 255},
	{0, 50, 60, 255}, {0, 0, 0, 255}, {0, 0, 0, 255}, {0, 0, 0, 255},
	{152, 150, 152, 255}, {8, 76, 196, 255}, {48, 50, 236, 255}, {92, 30, 228, 255},
	{136, 20, 176, 255}, {160, 20, 100, 255}, {152, 34, 32, 255}, {120, 60, 0, 255},
	{84, 90, 0, 255}, {40, 114, 0, 255}, {8, 124, 0, 255}, {0, 118, 40, 255},
	{0, 102, 120, 255}, {0, 0, 0, 255}, {0, 0, 0, 255}, {0, 0, 0, 255},
	{236, 238, 236, 255}, {76, 154, 236, 255}, {120, 124, 236, 255}, {176, 98, 236, 255},
	{228, 84, 236, 255}, {236, 88, 180, 255}, {236, 106, 100, 255}, {212, 136, 32, 255},
	{160, 170, 0, 255}, {116, 196, 0, 255}, {76, 208, 32, 255}, {56, 204, 108, 255},
	{56, 180, 204, 255}, {60, 60, 60, 255}, {0, 0, 0, 255}, {0, 0, 0, 255},
	{236, 238, 236, 255}, {168, 204, 236, 255}, {188, 188, 236, 255}, {212, 178, 236, 255},
	{236, 174, 236, 255}, {236, 174, 212, 255}, {236, 180, 176, 255}, {228, 196, 144, 255},
	{204, 210, 120, 255}, {180, 222, 120, 255}, {168, 226, 144, 255}, {152, 226, 180, 255},
	{160, 214, 228, 255}, {160, 162, 160, 255}, {0, 0, 0, 255}, {0, 0, 0, 255},
}

// CartridgeVRAM is the mapper hook the PPU reads/writes pattern tables and
// nametables through, letting CHR-RAM/CHR-ROM and nametable mirroring live
// entirely in the mapper (spec.md's per-mapper addressing contract).
type CartridgeVRAM interface {
	ReadCHR(addr uint16) uint8
	WriteCHR(addr uint16, val uint8)
	MirrorNametable(addr uint16) uint16
}

// PPU is the NES 2C02: a per-pixel background/sprite compositor with the
// documented VBlank/NMI timing, OAM DMA, and sprite-zero-hit/overflow flags
// (spec.md §3 shared rendering pipeline, generalized from the SMS mode-4
// pipeline in user-none-eMkIII/emu/vdp.go into the NES's tile+attribute
// addressing and its separate OAM).
type PPU struct {
	vram CartridgeVRAM

	paletteRAM [32]uint8
	oam        [256]uint8
	oamAddr    uint8

	ctrl   uint8
	mask   uint8
	status uint8

	vramAddr    uint16
	tempAddr    uint16
	fineX       uint8
	writeLatch  bool
	readBuffer  uint8
	oddFrame    bool

	scanline int
	cycle    int

	nmiOccurred bool
	nmiOutput   bool
	nmiPrevious bool
	nmiDelay    int

	spriteZeroHit    bool
	spriteOverflow   bool
	spriteZeroOnLine bool

	framebuffer *image.RGBA
	renderGraphics bool
}

func NewPPU() *PPU {
	return &PPU{
		framebuffer:    image.NewRGBA(image.Rect(0, 0, ScreenWidth, ScreenHeight)),
		renderGraphics: true,
		scanline:       261,
	}
}

func (p *PPU) AttachVRAM(vram CartridgeVRAM) { p.vram = vram }
func (p *PPU) SetRenderGraphics(on bool)     { p.renderGraphics = on }
func (p *PPU) Framebuffer() *image.RGBA      { return p.framebuffer }

func (p *PPU) renderingEnabled() bool { return p.mask&0x18 != 0 }

// ReadRegister implements CPU-visible reads of $2002/$2004/$2007; other PPU
// register addresses are write-only and read as 0 (no open-bus latch is kept).
func (p *PPU) ReadRegister(n uint8) uint8 {
	switch n {
	case 2:
		v := p.status & 0x80
		if p.spriteZeroHit {
			v |= 0x40
		}
		if p.spriteOverflow {
			v |= 0x20
		}
		p.status &^= 0x80
		p.writeLatch = false
		return v
	case 4:
		return p.oam[p.oamAddr]
	case 7:
		return p.readData()
	default:
		return 0
	}
}

// WriteRegister implements CPU-visible writes to $2000-$2007.
func (p *PPU) WriteRegister(n uint8, val uint8) {
	switch n {
	case 0:
		p.ctrl = val
		p.nmiOutput = val&0x80 != 0
		p.tempAddr = (p.tempAddr &^ 0x0C00) | (uint16(val&0x03) << 10)
	case 1:
		p.mask = val
	case 3:
		p.oamAddr = val
	case 4:
		p.oam[p.oamAddr] = val
		p.oamAddr++
	case 5:
		if !p.writeLatch {
			p.fineX = val & 0x07
			p.tempAddr = (p.tempAddr &^ 0x001F) | uint16(val>>3)
		} else {
			p.tempAddr = (p.tempAddr &^ 0x73E0) | (uint16(val&0x07) << 12) | (uint16(val&0xF8) << 2)
		}
		p.writeLatch = !p.writeLatch
	case 6:
		if !p.writeLatch {
			p.tempAddr = (p.tempAddr &^ 0xFF00) | (uint16(val&0x3F) << 8)
		} else {
			p.tempAddr = (p.tempAddr &^ 0x00FF) | uint16(val)
			p.vramAddr = p.tempAddr
		}
		p.writeLatch = !p.writeLatch
	case 7:
		p.writeData(val)
	}
}

func (p *PPU) readData() uint8 {
	addr := p.vramAddr & 0x3FFF
	var val uint8
	if addr < 0x3F00 {
		val = p.readBuffer
		p.readBuffer = p.readVRAM(addr)
	} else {
		val = p.readVRAM(addr)
		p.readBuffer = p.readVRAM(addr - 0x1000)
	}
	p.advanceAddr()
	return val
}

func (p *PPU) writeData(val uint8) {
	addr := p.vramAddr & 0x3FFF
	p.writeVRAM(addr, val)
	p.advanceAddr()
}

func (p *PPU) advanceAddr() {
	if p.ctrl&0x04 != 0 {
		p.vramAddr += 32
	} else {
		p.vramAddr++
	}
}

func (p *PPU) readVRAM(addr uint16) uint8 {
	switch {
	case addr < 0x2000:
		return p.vram.ReadCHR(addr)
	case addr < 0x3F00:
		return p.vram.ReadCHR(p.vram.MirrorNametable(addr))
	default:
		return p.readPalette(addr)
	}
}

func (p *PPU) writeVRAM(addr uint16, val uint8) {
	switch {
	case addr < 0x2000:
		p.vram.WriteCHR(addr, val)
	case addr < 0x3F00:
		p.vram.WriteCHR(p.vram.MirrorNametable(addr), val)
	default:
		p.writePalette(addr, val)
	}
}

func (p *PPU) paletteIndex(addr uint16) uint16 {
	idx := addr & 0x1F
	if idx >= 0x10 && idx&0x03 == 0 {
		idx -= 0x10
	}
	return idx
}

func (p *PPU) readPalette(addr uint16) uint8  { return p.paletteRAM[p.paletteIndex(addr)] }
func (p *PPU) writePalette(addr uint16, val uint8) { p.paletteRAM[p.paletteIndex(addr)] = val & 0x3F }

// Step advances the PPU by one pixel clock and returns whether this step
// completed a frame (the caller's cue to stop looping, matching the
// SMS core's scanline-driven Frame loop shape but at per-dot granularity,
// since the 2C02 has no fixed-point scanline budget to approximate).
func (p *PPU) Step() (frameDone bool) {
	p.updateNMI()

	renderLine := p.scanline < 240
	if renderLine && p.renderingEnabled() && p.cycle >= 1 && p.cycle <= 256 {
		p.renderPixel()
	}

	if p.scanline == 241 && p.cycle == 1 {
		p.status |= 0x80
		p.nmiOccurred = true
	}
	if p.scanline == 261 && p.cycle == 1 {
		p.status &^= 0xE0
		p.nmiOccurred = false
		p.spriteZeroHit = false
		p.spriteOverflow = false
	}

	p.cycle++
	if p.cycle > 340 {
		p.cycle = 0
		p.scanline++
		if p.scanline > 261 {
			p.scanline = 0
			p.oddFrame = !p.oddFrame
			if p.oddFrame && p.renderingEnabled() {
				p.cycle = 1 // skip the idle cycle on odd frames, per hardware
			}
			frameDone = true
		}
	}
	return frameDone
}

// updateNMI reproduces the one-CPU-cycle NMI-suppression window: an NMI
// raised and then immediately disabled within the same instruction must
// never fire, which games exploit near vblank start.
func (p *PPU) updateNMI() {
	nmi := p.nmiOccurred && p.nmiOutput
	if nmi && !p.nmiPrevious {
		p.nmiDelay = 1
	} else if !nmi {
		p.nmiDelay = 0
	}
	p.nmiPrevious = nmi
}

// PendingNMI reports (and clears) a one-shot NMI edge for System to deliver
// to the CPU.
func (p *PPU) PendingNMI() bool {
	if p.nmiDelay == 1 {
		p.nmiDelay = 0
		return true
	}
	return false
}

func (p *PPU) renderPixel() {
	x := p.cycle - 1
	y := p.scanline

	bgColor, bgOpaque := p.backgroundPixel(x, y)
	sprColor, sprOpaque, sprPriority, isSpriteZero := p.spritePixel(x, y)

	var idx uint8
	switch {
	case !bgOpaque && !sprOpaque:
		idx = p.paletteRAM[0]
	case !bgOpaque && sprOpaque:
		idx = sprColor
	case bgOpaque && !sprOpaque:
		idx = bgColor
	default:
		if isSpriteZero && x != 255 {
			p.spriteZeroHit = true
		}
		if sprPriority {
			idx = bgColor
		} else {
			idx = sprColor
		}
	}

	p.framebuffer.Set(x, y, nesPalette[idx&0x3F])
}

// backgroundPixel samples the nametable/attribute/pattern stack for screen
// position (x, y) using the scroll state latched into vramAddr/fineX,
// implementing the loopy-register scroll model the 2C02 uses.
func (p *PPU) backgroundPixel(x, y int) (idx uint8, opaque bool) {
	if p.mask&0x08 == 0 {
		return 0, false
	}
	scrollX := x + int(p.fineX) + int(p.ctrl&0x01)*256
	scrollY := y
	coarseX := (scrollX / 8) % 64
	coarseY := (scrollY / 8) % 60
	fineYInTile := scrollY % 8

	ntBase := uint16(0x2000)
	nametableSel := uint16(0)
	if coarseX >= 32 {
		nametableSel ^= 1
	}
	ntAddr := ntBase + (nametableSel^uint16((p.ctrl>>0)&0x01))*0x400 + uint16(coarseY%30)*32 + uint16(coarseX%32)
	tileIndex := p.readVRAM(ntAddr)

	attrAddr := ntBase + (nametableSel^uint16((p.ctrl>>0)&0x01))*0x400 + 0x3C0 + uint16(coarseY/4)*8 + uint16(coarseX/4)
	attr := p.readVRAM(attrAddr)
	shift := uint((coarseY%4)/2*4 + (coarseX%4)/2*2)
	paletteNum := (attr >> shift) & 0x03

	patternBase := uint16(0)
	if p.ctrl&0x10 != 0 {
		patternBase = 0x1000
	}
	patternAddr := patternBase + uint16(tileIndex)*16 + uint16(fineYInTile)
	lo := p.readVRAM(patternAddr)
	hi := p.readVRAM(patternAddr + 8)
	bit := uint(7 - (scrollX % 8))
	colorBits := (lo>>bit)&1 | ((hi>>bit)&1)<<1
	if colorBits == 0 {
		return 0, false
	}
	return (paletteNum << 2) + colorBits, true
}

// spritePixel evaluates up to 8 sprites per scanline (setting the overflow
// flag past that) and returns the foreground pixel at (x, y), if any.
func (p *PPU) spritePixel(x, y int) (idx uint8, opaque, priority, isSpriteZero bool) {
	if p.mask&0x10 == 0 {
		return 0, false, false, false
	}
	height := 8
	if p.ctrl&0x20 != 0 {
		height = 16
	}

	evaluated := 0
	for i := 0; i < 64; i++ {
		spriteY := int(p.oam[i*4]) + 1
		if y < spriteY || y >= spriteY+height {
			continue
		}
		if evaluated >= 8 {
			p.spriteOverflow = true
			break
		}
		tile := p.oam[i*4+1]
		attr := p.oam[i*4+2]
		spriteX := int(p.oam[i*4+3])
		if x < spriteX || x >= spriteX+8 {
			evaluated++
			continue
		}

		row := y - spriteY
		if attr&0x80 != 0 {
			row = height - 1 - row
		}
		col := x - spriteX
		if attr&0x40 != 0 {
			col = 7 - col
		}

		var patternAddr uint16
		if height == 16 {
			table := uint16(tile&0x01) * 0x1000
			tileNum := uint16(tile &^ 0x01)
			if row >= 8 {
				tileNum++
				row -= 8
			}
			patternAddr = table + tileNum*16 + uint16(row)
		} else {
			table := uint16(0)
			if p.ctrl&0x08 != 0 {
				table = 0x1000
			}
			patternAddr = table + uint16(tile)*16 + uint16(row)
		}
		lo := p.readVRAM(patternAddr)
		hi := p.readVRAM(patternAddr + 8)
		bit := uint(7 - col)
		colorBits := (lo>>bit)&1 | ((hi>>bit)&1)<<1
		evaluated++
		if colorBits == 0 {
			continue
		}
		paletteNum := attr & 0x03
		return 0x10 + (paletteNum << 2) + colorBits, true, attr&0x20 != 0, i == 0
	}
	return 0, false, false, false
}

func (p *PPU) VRAMAddr() uint16 { return p.vramAddr }
func (p *PPU) TempAddr() uint16 { return p.tempAddr }
func (p *PPU) FineX() uint8     { return p.fineX }
func (p *PPU) OAM() []uint8     { return p.oam[:] }
func (p *PPU) PaletteRAM() []uint8 { return p.paletteRAM[:] }
func (p *PPU) Scanline() int    { return p.scanline }
func (p *PPU) Cycle() int       { return p.cycle }
