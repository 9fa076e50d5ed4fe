package gb

const (
	ScreenWidth  = 160
	ScreenHeight = 144
)

// STAT mode constants (spec.md §4.4 shared scanline pipeline, GB variant).
const (
	modeHBlank = 0
	modeVBlank = 1
	modeOAM    = 2
	modeTransfer = 3
)

const (
	cyclesOAM      = 80
	cyclesTransfer = 172
	cyclesHBlank   = 204
	cyclesScanline = cyclesOAM + cyclesTransfer + cyclesHBlank // 456
	totalScanlines = 154
)

type oamEntry struct {
	y, x, tile, attr uint8
}

// PPU is the DMG video unit: a 456-cycle-per-scanline mode-0/1/2/3 state
// machine producing a 160×144 buffer of 2-bit palette indices (spec.md
// §6.5 — distinct from the other three systems' 32-bit pixel formats), one
// background/window/sprite compositor per scanline rather than the NES's
// per-dot pipeline, since the DMG has no mid-scanline scroll tricks this
// core needs to honor (spec.md §4.4). Grounded on sms/vdp.go's
// register/latch shape and RenderScanline entry point, generalized from
// mode-4's CRAM+VRAM split into the DMG's single VRAM bank plus BGP/OBP0/1
// palette registers.
type PPU struct {
	vram [0x2000]uint8
	oam  [40]oamEntry

	lcdc, stat        uint8
	scy, scx          uint8
	ly, lyc           uint8
	wy, wx            uint8
	bgp, obp0, obp1   uint8

	mode        uint8
	modeClock   int
	windowLine  int

	statIRQLine bool
	vblankPending bool
	statPending   bool

	framebuffer    []uint8 // 160*144 bytes, values 0-3
	renderGraphics bool
}

func NewPPU() *PPU {
	p := &PPU{
		framebuffer:    make([]uint8, ScreenWidth*ScreenHeight),
		renderGraphics: true,
		lcdc:           0x91,
		bgp:            0xFC,
		mode:           modeOAM,
	}
	return p
}

func (p *PPU) SetRenderGraphics(on bool) { p.renderGraphics = on }
func (p *PPU) Framebuffer() []uint8      { return p.framebuffer }
func (p *PPU) VRAM() []uint8             { return p.vram[:] }

func (p *PPU) lcdEnabled() bool { return p.lcdc&0x80 != 0 }

func (p *PPU) ReadVRAM(addr uint16) uint8 {
	if p.mode == modeTransfer && p.lcdEnabled() {
		return 0xFF
	}
	return p.vram[addr&0x1FFF]
}

func (p *PPU) WriteVRAM(addr uint16, val uint8) {
	if p.mode == modeTransfer && p.lcdEnabled() {
		return
	}
	p.vram[addr&0x1FFF] = val
}

func (p *PPU) ReadOAM(addr uint8) uint8 {
	if (p.mode == modeOAM || p.mode == modeTransfer) && p.lcdEnabled() {
		return 0xFF
	}
	i := addr / 4
	if int(i) >= len(p.oam) {
		return 0xFF
	}
	switch addr % 4 {
	case 0:
		return p.oam[i].y
	case 1:
		return p.oam[i].x
	case 2:
		return p.oam[i].tile
	default:
		return p.oam[i].attr
	}
}

func (p *PPU) WriteOAM(addr uint8, val uint8) {
	if (p.mode == modeOAM || p.mode == modeTransfer) && p.lcdEnabled() {
		return
	}
	i := addr / 4
	if int(i) >= len(p.oam) {
		return
	}
	switch addr % 4 {
	case 0:
		p.oam[i].y = val
	case 1:
		p.oam[i].x = val
	case 2:
		p.oam[i].tile = val
	default:
		p.oam[i].attr = val
	}
}

// DMATransfer copies 160 bytes from src (already resolved by Bus) into OAM,
// implementing the $FF46 OAM DMA register.
func (p *PPU) DMATransfer(src []uint8) {
	for i := 0; i < 160 && i < len(src); i++ {
		p.WriteOAM(uint8(i), src[i])
	}
}

func (p *PPU) ReadRegister(addr uint16) uint8 {
	switch addr {
	case 0xFF40:
		return p.lcdc
	case 0xFF41:
		return p.stat | 0x80 | p.mode
	case 0xFF42:
		return p.scy
	case 0xFF43:
		return p.scx
	case 0xFF44:
		return p.ly
	case 0xFF45:
		return p.lyc
	case 0xFF47:
		return p.bgp
	case 0xFF48:
		return p.obp0
	case 0xFF49:
		return p.obp1
	case 0xFF4A:
		return p.wy
	case 0xFF4B:
		return p.wx
	}
	return 0xFF
}

func (p *PPU) WriteRegister(addr uint16, val uint8) {
	switch addr {
	case 0xFF40:
		wasEnabled := p.lcdEnabled()
		p.lcdc = val
		if wasEnabled && !p.lcdEnabled() {
			p.ly = 0
			p.mode = modeHBlank
			p.modeClock = 0
		}
	case 0xFF41:
		p.stat = val &^ 0x07
	case 0xFF42:
		p.scy = val
	case 0xFF43:
		p.scx = val
	case 0xFF45:
		p.lyc = val
	case 0xFF47:
		p.bgp = val
	case 0xFF48:
		p.obp0 = val
	case 0xFF49:
		p.obp1 = val
	case 0xFF4A:
		p.wy = val
	case 0xFF4B:
		p.wx = val
	}
}

// VBlankPending and StatPending report (and clear) one-shot interrupt
// requests for System to OR into IF, mirroring nes PPU's PendingNMI shape.
func (p *PPU) VBlankPending() bool {
	v := p.vblankPending
	p.vblankPending = false
	return v
}

func (p *PPU) StatPending() bool {
	v := p.statPending
	p.statPending = false
	return v
}

func (p *PPU) checkLYC() {
	coincidence := p.ly == p.lyc
	if coincidence {
		p.stat |= 0x04
	} else {
		p.stat &^= 0x04
	}
	p.updateStatLine(coincidence)
}

// updateStatLine reproduces the DMG STAT-interrupt "line" behavior: the
// interrupt fires on the rising edge of the OR of all enabled STAT
// conditions, not on each condition independently (spec.md §4.4).
func (p *PPU) updateStatLine(lycMatch bool) {
	line := false
	if p.stat&0x40 != 0 && lycMatch {
		line = true
	}
	switch p.mode {
	case modeHBlank:
		line = line || p.stat&0x08 != 0
	case modeVBlank:
		line = line || p.stat&0x10 != 0
	case modeOAM:
		line = line || p.stat&0x20 != 0
	}
	if line && !p.statIRQLine {
		p.statPending = true
	}
	p.statIRQLine = line
}

func (p *PPU) setMode(m uint8) {
	p.mode = m
	p.updateStatLine(p.stat&0x04 != 0)
}

// Tick advances the PPU by cycles CPU T-states, driving the mode-0/1/2/3
// state machine and rendering a scanline's worth of pixels the instant mode
// 3 ends, the way sms/vdp.go's RenderScanline is called once per line from
// System.Frame rather than per dot.
func (p *PPU) Tick(cycles int) {
	if !p.lcdEnabled() {
		return
	}
	p.modeClock += cycles

	// A while loop rather than a single check: callers are expected to
	// pass one instruction's cycle count at a time (always well under a
	// single mode's length), but looping keeps larger ticks correct too.
	for p.stepMode() {
	}
}

// stepMode performs at most one mode transition and reports whether
// modeClock still has enough left over to warrant checking for another.
func (p *PPU) stepMode() bool {
	switch p.mode {
	case modeOAM:
		if p.modeClock >= cyclesOAM {
			p.modeClock -= cyclesOAM
			p.setMode(modeTransfer)
			return true
		}
	case modeTransfer:
		if p.modeClock >= cyclesTransfer {
			p.modeClock -= cyclesTransfer
			p.setMode(modeHBlank)
			if p.renderGraphics {
				p.renderScanline()
			}
			return true
		}
	case modeHBlank:
		if p.modeClock >= cyclesHBlank {
			p.modeClock -= cyclesHBlank
			p.ly++
			if p.ly == ScreenHeight {
				p.setMode(modeVBlank)
				p.vblankPending = true
				p.windowLine = 0
			} else {
				p.setMode(modeOAM)
			}
			p.checkLYC()
			return true
		}
	case modeVBlank:
		if p.modeClock >= cyclesScanline {
			p.modeClock -= cyclesScanline
			p.ly++
			if p.ly >= totalScanlines {
				p.ly = 0
				p.setMode(modeOAM)
			}
			p.checkLYC()
			return true
		}
	}
	return false
}

var bitPairs = [8]uint8{7, 6, 5, 4, 3, 2, 1, 0}

// renderScanline fills one row of the framebuffer: background, window, then
// sprites, the same three-layer composite order as nes/ppu.go's
// renderPixel, but computed a full row at a time per spec.md §4.4's shared
// pipeline (fetch tile -> fetch attr -> fetch pattern -> shift -> composite).
func (p *PPU) renderScanline() {
	y := int(p.ly)
	if y >= ScreenHeight {
		return
	}

	var bgIndex [ScreenWidth]uint8
	bgEnabled := p.lcdc&0x01 != 0

	if bgEnabled {
		p.renderBackground(y, &bgIndex)
	}
	if p.lcdc&0x20 != 0 && bgEnabled {
		p.renderWindow(y, &bgIndex)
	}
	for x := 0; x < ScreenWidth; x++ {
		p.framebuffer[y*ScreenWidth+x] = palette4(p.bgp, bgIndex[x])
	}
	if p.lcdc&0x02 != 0 {
		p.renderSprites(y, &bgIndex)
	}
}

func (p *PPU) renderBackground(y int, out *[ScreenWidth]uint8) {
	mapBase := uint16(0x1800)
	if p.lcdc&0x08 != 0 {
		mapBase = 0x1C00
	}
	scrolledY := (y + int(p.scy)) & 0xFF
	tileRow := scrolledY / 8
	fineY := scrolledY % 8

	for x := 0; x < ScreenWidth; x++ {
		scrolledX := (x + int(p.scx)) & 0xFF
		tileCol := scrolledX / 8
		fineX := scrolledX % 8

		tileIdx := p.vram[mapBase+uint16(tileRow)*32+uint16(tileCol)]
		addr := p.tileDataAddr(tileIdx)
		lo := p.vram[addr+uint16(fineY)*2]
		hi := p.vram[addr+uint16(fineY)*2+1]
		bit := bitPairs[fineX]
		out[x] = (lo>>bit)&1 | ((hi>>bit)&1)<<1
	}
}

func (p *PPU) renderWindow(y int, out *[ScreenWidth]uint8) {
	if y < int(p.wy) {
		return
	}
	wx := int(p.wx) - 7
	if wx >= ScreenWidth {
		return
	}

	mapBase := uint16(0x1800)
	if p.lcdc&0x40 != 0 {
		mapBase = 0x1C00
	}
	tileRow := p.windowLine / 8
	fineY := p.windowLine % 8
	drew := false

	for x := 0; x < ScreenWidth; x++ {
		wxPos := x - wx
		if wxPos < 0 {
			continue
		}
		drew = true
		tileCol := wxPos / 8
		fineX := wxPos % 8

		tileIdx := p.vram[mapBase+uint16(tileRow)*32+uint16(tileCol)]
		addr := p.tileDataAddr(tileIdx)
		lo := p.vram[addr+uint16(fineY)*2]
		hi := p.vram[addr+uint16(fineY)*2+1]
		bit := bitPairs[fineX]
		out[x] = (lo>>bit)&1 | ((hi>>bit)&1)<<1
	}
	if drew {
		p.windowLine++
	}
}

// tileDataAddr resolves LCDC.4's two addressing modes: unsigned from
// $8000, or signed from $9000 (tile index treated as int8).
func (p *PPU) tileDataAddr(tileIdx uint8) uint16 {
	if p.lcdc&0x10 != 0 {
		return uint16(tileIdx) * 16
	}
	return uint16(0x1000 + int16(int8(tileIdx))*16)
}

func (p *PPU) renderSprites(y int, bg *[ScreenWidth]uint8) {
	height := 8
	if p.lcdc&0x04 != 0 {
		height = 16
	}

	drawn := 0
	for i := 0; i < len(p.oam) && drawn < 10; i++ {
		s := p.oam[i]
		spriteY := int(s.y) - 16
		if y < spriteY || y >= spriteY+height {
			continue
		}
		drawn++

		row := y - spriteY
		if s.attr&0x40 != 0 {
			row = height - 1 - row
		}
		tile := s.tile
		if height == 16 {
			tile &^= 0x01
			if row >= 8 {
				tile++
				row -= 8
			}
		}
		addr := uint16(tile) * 16

		lo := p.vram[addr+uint16(row)*2]
		hi := p.vram[addr+uint16(row)*2+1]

		palette := p.obp0
		if s.attr&0x10 != 0 {
			palette = p.obp1
		}
		behindBG := s.attr&0x80 != 0

		spriteX := int(s.x) - 8
		for col := 0; col < 8; col++ {
			x := spriteX + col
			if x < 0 || x >= ScreenWidth {
				continue
			}
			srcCol := col
			if s.attr&0x20 != 0 {
				srcCol = 7 - col
			}
			bit := bitPairs[srcCol]
			idx := (lo>>bit)&1 | ((hi>>bit)&1)<<1
			if idx == 0 {
				continue
			}
			if behindBG && bg[x] != 0 {
				continue
			}
			p.framebuffer[y*ScreenWidth+x] = palette4(palette, idx)
		}
	}
}

func palette4(reg uint8, idx uint8) uint8 {
	return (reg >> (idx * 2)) & 0x03
}

func (p *PPU) Mode() uint8   { return p.mode }
func (p *PPU) LY() uint8     { return p.ly }
func (p *PPU) ModeClock() int { return p.modeClock }
