package genesis

import (
	"image"
	"image/color"
)

const (
	ScreenWidth  = 320
	ScreenHeight = 224
	vramSize     = 0x10000
	cramColors   = 64
	vsramSize    = 40
)

// Timing constants in 68000-clock units within a scanline, matching the
// documented V-int-at-224 / H-int-underflow contract of spec.md §4.4.
const (
	hBlankStartCycle = 3420 * 2 / 3 / 7 // active display ends ~2/3 into the line
	lineCycles       = 3420 / 7         // approximate 68000 cycles per scanline at NTSC rates (3420 master clocks / 7), scaled by the caller's cycle budget
)

// VDP is the Genesis video display processor: dual scrolling planes (the
// window plane is not drawn), an H40 sprite pipeline (20 sprites/line),
// and a three-mode DMA engine, structured after user-none-eMkIII/emu/vdp.go's SMS mode-4
// pipeline but generalized to the dual-plane/priority-buffer model
// spec.md §4.4 describes for Genesis.
type VDP struct {
	vram  [vramSize]uint8
	cram  [cramColors * 2]uint8
	vsram [vsramSize]uint8

	registers [24]uint8

	addr             uint32
	code             uint8
	pendingFirstWord bool
	firstWord        uint16

	readBuffer uint16

	status uint16

	vCounter int
	hCounter int

	lineCounter    int
	lineIntPending bool
	vblankPending  bool

	totalScanlines int
	activeLines    int

	framebuffer *image.RGBA

	priority [ScreenWidth]uint8

	bus dmaBus

	dmaFillPending bool
	dmaFillLength  int

	renderGraphics bool
}

// dmaBus is the 68000-address-space reader the VDP's 68K→VRAM/CRAM/VSRAM
// DMA mode walks; the CPU's own bus implements it.
type dmaBus interface {
	ReadByte(addr uint32) uint8
}

func NewVDP() *VDP {
	return &VDP{
		framebuffer:    image.NewRGBA(image.Rect(0, 0, ScreenWidth, ScreenHeight)),
		totalScanlines: 262,
		activeLines:    224,
		renderGraphics: true,
	}
}

func (v *VDP) AttachBus(bus dmaBus)      { v.bus = bus }
func (v *VDP) SetRenderGraphics(on bool) { v.renderGraphics = on }
func (v *VDP) SetTotalScanlines(n int)   { v.totalScanlines = n }

func (v *VDP) Register(n int) uint8 {
	if n < 0 || n >= len(v.registers) {
		return 0
	}
	return v.registers[n]
}

func (v *VDP) displayEnabled() bool { return v.registers[1]&0x40 != 0 }

// WriteControl implements the two-word control-port protocol: a register
// write (top two bits 10) completes in one word, everything else is the
// first half of an address/code setup pair completed by the next word.
func (v *VDP) WriteControl(word uint16) {
	if !v.pendingFirstWord {
		if word&0xC000 == 0x8000 {
			reg := (word >> 8) & 0x1F
			if int(reg) < len(v.registers) {
				v.registers[reg] = uint8(word)
			}
			return
		}
		v.firstWord = word
		v.pendingFirstWord = true
		return
	}

	v.pendingFirstWord = false
	cd01 := uint8(v.firstWord>>14) & 0x03
	cd25 := uint8(word>>2) & 0x0F
	v.code = cd01 | (cd25 << 2)
	v.addr = (uint32(v.firstWord) & 0x3FFF) | (uint32(word&0x03) << 14)

	if v.code&0x20 != 0 {
		v.startDMA()
	}
}

// ReadControl returns the status register and clears the frame/line
// interrupt and sprite overflow/collision flags it reports, per spec.md
// §4.4's "a status-register read clears both pending flags... in one
// read" contract.
func (v *VDP) ReadControl() uint16 {
	s := v.status
	v.status &^= 0x003C // clear overflow/collision/vblank-latched/frame bits this stub tracks as sticky
	v.lineIntPending = false
	v.vblankPending = false
	return s
}

func (v *VDP) WriteData(value uint16) {
	if v.dmaFillPending {
		v.dmaFillPending = false
		fillByte := uint8(value >> 8)
		for i := 0; i < v.dmaFillLength; i++ {
			v.vram[(v.addr+uint32(i))&0xFFFF] = fillByte
		}
		v.addr += uint32(v.registers[15])
		return
	}
	switch v.code & 0x0F {
	case 0x01: // VRAM write
		v.vram[v.addr&0xFFFF] = uint8(value >> 8)
		v.vram[(v.addr+1)&0xFFFF] = uint8(value)
	case 0x03: // CRAM write
		v.cram[v.addr&0x7F] = uint8(value >> 8)
		v.cram[(v.addr+1)&0x7F] = uint8(value)
	case 0x05: // VSRAM write
		v.vsram[v.addr%vsramSize] = uint8(value >> 8)
		v.vsram[(v.addr+1)%vsramSize] = uint8(value)
	}
	v.addr += uint32(v.registers[15]) // auto-increment register
}

func (v *VDP) ReadData() uint16 {
	var value uint16
	switch v.code & 0x0F {
	case 0x00: // VRAM read
		value = uint16(v.vram[v.addr&0xFFFF])<<8 | uint16(v.vram[(v.addr+1)&0xFFFF])
	case 0x08: // CRAM read
		value = uint16(v.cram[v.addr&0x7F])<<8 | uint16(v.cram[(v.addr+1)&0x7F])
	case 0x04: // VSRAM read
		value = uint16(v.vsram[v.addr%vsramSize])<<8 | uint16(v.vsram[(v.addr+1)%vsramSize])
	}
	v.addr += uint32(v.registers[15])
	return value
}

// startDMA dispatches to one of the three modes DMA mode register (reg
// 23 bits 7-6) selects: 68K→VRAM/CRAM/VSRAM transfer, VRAM fill, or VRAM
// copy (spec.md §4.4's DMA paragraph).
func (v *VDP) startDMA() {
	length := int(v.registers[19]) | int(v.registers[20])<<8
	if length == 0 {
		length = 0x10000
	}
	mode := v.registers[23] >> 6

	switch {
	case mode == 2: // VRAM fill: consumes the next data-port write
		v.dmaFillLength = length
		v.dmaFillPending = true
	case mode == 3: // VRAM copy
		src := int(v.registers[21]) | int(v.registers[22])<<8
		dst := v.addr
		for i := 0; i < length; i++ {
			v.vram[(uint32(dst)+uint32(i))&0xFFFF] = v.vram[(uint32(src)+uint32(i))&0xFFFF]
		}
	default: // 68K memory -> VRAM/CRAM/VSRAM
		if v.bus == nil {
			return
		}
		src := uint32(v.registers[21]) | uint32(v.registers[22])<<8 | uint32(v.registers[23]&0x7F)<<16
		src <<= 1
		dst := v.addr
		for i := 0; i < length; i++ {
			b := v.bus.ReadByte(src + uint32(i))
			switch v.code & 0x0F {
			case 0x01:
				v.vram[(dst+uint32(i))&0xFFFF] = b
			case 0x03:
				v.cram[(dst+uint32(i))&0x7F] = b
			case 0x05:
				v.vsram[(dst+uint32(i))%vsramSize] = b
			}
		}
	}
}

func (v *VDP) SetVCounter(line int) { v.vCounter = line }
func (v *VDP) SetHCounter(h int)    { v.hCounter = h }

func (v *VDP) InterruptPending() (vint bool, hint bool) {
	vint = v.vblankPending && v.registers[1]&0x20 != 0
	hint = v.lineIntPending && v.registers[0]&0x10 != 0
	return
}

func (v *VDP) SetVBlankFlag() {
	v.vblankPending = true
	v.status |= 0x08
}

func (v *VDP) ClearVBlankFlagLatch() { v.vblankPending = false }

func (v *VDP) UpdateLineCounter() {
	if v.vCounter <= v.activeLines {
		v.lineCounter--
		if v.lineCounter < 0 {
			v.lineCounter = int(v.registers[10])
			v.lineIntPending = true
		}
	} else {
		v.lineCounter = int(v.registers[10])
	}
}

func (v *VDP) cramColor(index int) color.RGBA {
	hi := v.cram[(index*2)&0x7F]
	lo := v.cram[(index*2+1)&0x7F]
	word := uint16(hi)<<8 | uint16(lo)
	r := uint8((word >> 1) & 0x07)
	g := uint8((word >> 5) & 0x07)
	b := uint8((word >> 9) & 0x07)
	scale := func(c uint8) uint8 { return c * 36 } // 0-7 -> 0-252
	return color.RGBA{R: scale(r), G: scale(g), B: scale(b), A: 255}
}

// RenderScanline paints one visible line: plane B, then plane A, then
// sprites (the window plane is not drawn; plane A shows inside the window
// rectangle too),
// resolving overlaps through the documented priority-buffer values
// (spec.md §4.4: 0 backdrop, 1 low plane, 2 high plane/low sprite, 3 high
// sprite).
func (v *VDP) RenderScanline() {
	line := v.vCounter
	if line < 0 || line >= v.activeLines || !v.renderGraphics {
		return
	}
	if !v.displayEnabled() {
		backdrop := v.cramColor(16 + int(v.registers[7]&0x0F))
		for x := 0; x < ScreenWidth; x++ {
			v.framebuffer.SetRGBA(x, line, backdrop)
		}
		return
	}

	for i := range v.priority {
		v.priority[i] = 0
	}
	backdrop := v.cramColor(16 + int(v.registers[7]&0x0F))
	for x := 0; x < ScreenWidth; x++ {
		v.framebuffer.SetRGBA(x, line, backdrop)
	}

	v.renderPlane(line, planeB, 1)
	v.renderPlane(line, planeA, 2)
	v.renderSprites(line)
}

type planeSelect int

const (
	planeA planeSelect = iota
	planeB
)

// renderPlane draws one 64x32-tile scrolling nametable, honoring
// horizontal/vertical scroll but not the per-column/per-row fine-scroll
// modes real hardware also supports (reg 11 scroll mode is treated as
// full-screen scroll only).
func (v *VDP) renderPlane(line int, plane planeSelect, priLevel uint8) {
	var nameTableBase uint16
	switch plane {
	case planeA:
		nameTableBase = uint16(v.registers[2]&0x38) << 10
	case planeB:
		nameTableBase = uint16(v.registers[4]&0x07) << 13
	}

	hScrollTable := uint16(v.registers[13]&0x3F) << 10

	var hScroll, vScroll uint16
	entryOffset := 0
	if plane == planeB {
		entryOffset = 2
	}
	hScroll = uint16(v.vram[(hScrollTable+uint16(entryOffset))&0xFFFF])<<8 | uint16(v.vram[(hScrollTable+uint16(entryOffset)+1)&0xFFFF])
	vsramIdx := entryOffset
	vScroll = uint16(v.vsram[vsramIdx])<<8 | uint16(v.vsram[vsramIdx+1])

	const tilesWide, tilesTall = 64, 32

	for x := 0; x < ScreenWidth; x++ {
		effX := (uint16(x) - (hScroll & 0x3FF)) & (tilesWide*8 - 1)
		effY := (uint16(line) + (vScroll & 0x3FF)) & (tilesTall*8 - 1)

		tileCol := effX / 8
		tileRow := effY / 8
		px := effX % 8
		py := effY % 8

		entryAddr := nameTableBase + (tileRow*tilesWide+tileCol)*2
		hi := v.vram[entryAddr&0xFFFF]
		lo := v.vram[(entryAddr+1)&0xFFFF]
		entry := uint16(hi)<<8 | uint16(lo)

		tileIndex := entry & 0x07FF
		hFlip := entry&0x0800 != 0
		vFlip := entry&0x1000 != 0
		palette := (entry >> 13) & 0x03
		highPriority := entry&0x8000 != 0

		if hFlip {
			px = 7 - px
		}
		if vFlip {
			py = 7 - py
		}

		tileAddr := uint32(tileIndex)*32 + uint32(py)*4 + uint32(px/2)
		b := v.vram[tileAddr&0xFFFF]
		var colorIndex uint8
		if px%2 == 0 {
			colorIndex = b >> 4
		} else {
			colorIndex = b & 0x0F
		}
		if colorIndex == 0 {
			continue
		}

		level := priLevel
		if highPriority {
			level++
		}
		if level < v.priority[x] {
			continue
		}
		v.priority[x] = level

		cramIndex := int(palette)*16 + int(colorIndex)
		v.framebuffer.SetRGBA(x, line, v.cramColor(cramIndex))
	}
}

// renderSprites evaluates up to 20 sprites per line (H40 mode) from the
// linked sprite attribute table, the documented Genesis sprite-pipeline
// limit (spec.md §4.4 step 4).
func (v *VDP) renderSprites(line int) {
	satBase := uint16(v.registers[5]&0x7F) << 9

	type spriteInfo struct {
		x, y, w, h int
		tileBase   uint16
		palette    int
		priority   bool
		hFlip      bool
		vFlip      bool
	}
	var sprites []spriteInfo
	link := 0
	for i := 0; i < 80 && len(sprites) < 20; i++ {
		addr := satBase + uint16(link)*8
		yWord := uint16(v.vram[addr&0xFFFF])<<8 | uint16(v.vram[(addr+1)&0xFFFF])
		sizeLink := uint16(v.vram[(addr+2)&0xFFFF])<<8 | uint16(v.vram[(addr+3)&0xFFFF])
		entryWord := uint16(v.vram[(addr+4)&0xFFFF])<<8 | uint16(v.vram[(addr+5)&0xFFFF])
		xWord := uint16(v.vram[(addr+6)&0xFFFF])<<8 | uint16(v.vram[(addr+7)&0xFFFF])

		y := int(yWord&0x3FF) - 128
		hTiles := int((sizeLink>>8)&0x03) + 1
		wTiles := int((sizeLink>>10)&0x03) + 1
		height := hTiles * 8

		if line >= y && line < y+height {
			sprites = append(sprites, spriteInfo{
				x:        int(xWord&0x3FF) - 128,
				y:        y,
				w:        wTiles * 8,
				h:        height,
				tileBase: entryWord & 0x07FF,
				palette:  int((entryWord >> 13) & 0x03),
				priority: entryWord&0x8000 != 0,
				hFlip:    entryWord&0x0800 != 0,
				vFlip:    entryWord&0x1000 != 0,
			})
		}

		link = int(sizeLink & 0x7F)
		if link == 0 {
			break
		}
	}

	for _, s := range sprites {
		rowInSprite := line - s.y
		if s.vFlip {
			rowInSprite = s.h - 1 - rowInSprite
		}
		tileRow := rowInSprite / 8
		py := rowInSprite % 8

		for px := 0; px < s.w; px++ {
			screenX := s.x + px
			if screenX < 0 || screenX >= ScreenWidth {
				continue
			}
			col := px
			if s.hFlip {
				col = s.w - 1 - px
			}
			tileCol := col / 8
			tx := col % 8

			tileIndex := s.tileBase + uint16(tileCol)*uint16(s.h/8) + uint16(tileRow)
			tileAddr := uint32(tileIndex)*32 + uint32(py)*4 + uint32(tx/2)
			b := v.vram[tileAddr&0xFFFF]
			var colorIndex uint8
			if tx%2 == 0 {
				colorIndex = b >> 4
			} else {
				colorIndex = b & 0x0F
			}
			if colorIndex == 0 {
				continue
			}

			level := uint8(2)
			if s.priority {
				level = 3
			}
			if level < v.priority[screenX] {
				continue
			}
			v.priority[screenX] = level

			cramIndex := s.palette*16 + int(colorIndex)
			v.framebuffer.SetRGBA(screenX, line, v.cramColor(cramIndex))
		}
	}
}

func (v *VDP) Framebuffer() *image.RGBA { return v.framebuffer }
func (v *VDP) VRAM() []uint8            { return v.vram[:] }
func (v *VDP) CRAM() []uint8            { return v.cram[:] }
func (v *VDP) VSRAM() []uint8           { return v.vsram[:] }
