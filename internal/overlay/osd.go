// Package overlay composites OSD glyphs and telemetry text onto raw frames.
package overlay

import (
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/fpvtools/osdrender/internal/font"
	"github.com/fpvtools/osdrender/internal/osd"
)

// GlyphSource provides character cell images by index and size class.
// font.File implements it.
type GlyphSource interface {
	Glyph(index int, size font.CharacterSize) *image.RGBA
}

// CharacterSizeFor returns the character cell size class for an output
// resolution. Preview and final render must use it identically.
func CharacterSizeFor(width, height int) font.CharacterSize {
	is4x3 := float64(width)/float64(height) < 1.5

	switch height {
	case 540:
		return font.SizeRace
	case 720:
		return font.SizeSmall
	case 1080:
		if is4x3 {
			return font.SizeSmall
		}
		return font.SizeLarge
	case 1440:
		if is4x3 {
			return font.SizeLarge
		}
		return font.SizeXLarge
	case 2160:
		return font.SizeUltra
	default:
		return font.SizeLarge
	}
}

func scaledCellSize(base font.CharacterSize, scalePercent float64) (int, int) {
	factor := scalePercent / 100
	return int(math.Round(float64(base.Width()) * factor)),
		int(math.Round(float64(base.Height()) * factor))
}

// OverlayOSD composites a frame's glyphs onto the image. Glyphs are resized
// per call when the effective scale differs from 100%; use a GlyphCache for
// repeated frames.
func OverlayOSD(img *image.RGBA, frame *osd.Frame, source GlyphSource, opts *osd.Options, offset image.Point) {
	base := CharacterSizeFor(img.Bounds().Dx(), img.Bounds().Dy())
	scaledW, scaledH := scaledCellSize(base, opts.Scale)

	for _, glyph := range frame.Glyphs {
		if glyph.Index == 0 || opts.Masked(glyph.GridPosition) {
			continue
		}

		cell := source.Glyph(int(glyph.Index), base)
		if cell == nil {
			continue
		}
		if scaledW != base.Width() || scaledH != base.Height() {
			cell = resizeGlyph(cell, scaledW, scaledH)
		}

		compositeGlyph(img, cell, glyph.GridPosition, scaledW, scaledH, opts, offset)
	}
}

// GlyphCache maps glyph indices to pre-scaled images, populated lazily, so
// each unique glyph is fetched and resized at most once per render session.
type GlyphCache struct {
	source  GlyphSource
	base    font.CharacterSize
	scaledW int
	scaledH int
	images  map[uint16]*image.RGBA
}

// NewGlyphCache allocates a GlyphCache for one render session.
func NewGlyphCache(source GlyphSource, base font.CharacterSize, scalePercent float64) *GlyphCache {
	scaledW, scaledH := scaledCellSize(base, scalePercent)
	return &GlyphCache{
		source:  source,
		base:    base,
		scaledW: scaledW,
		scaledH: scaledH,
		images:  make(map[uint16]*image.RGBA),
	}
}

// CellSize returns the scaled cell dimensions.
func (c *GlyphCache) CellSize() (int, int) {
	return c.scaledW, c.scaledH
}

// Get returns the scaled image for a glyph index. A missing source glyph
// yields a fully transparent placeholder so the grid layout stays stable.
func (c *GlyphCache) Get(index uint16) *image.RGBA {
	if img, ok := c.images[index]; ok {
		return img
	}

	var img *image.RGBA
	cell := c.source.Glyph(int(index), c.base)
	switch {
	case cell == nil:
		img = image.NewRGBA(image.Rect(0, 0, c.scaledW, c.scaledH))
	case c.scaledW != c.base.Width() || c.scaledH != c.base.Height():
		img = resizeGlyph(cell, c.scaledW, c.scaledH)
	default:
		img = cell
	}

	c.images[index] = img
	return img
}

// OverlayOSDCached composites a frame's glyphs using a per-render cache.
func OverlayOSDCached(img *image.RGBA, frame *osd.Frame, cache *GlyphCache, opts *osd.Options, offset image.Point) {
	for _, glyph := range frame.Glyphs {
		if glyph.Index == 0 || opts.Masked(glyph.GridPosition) {
			continue
		}
		cell := cache.Get(glyph.Index)
		compositeGlyph(img, cell, glyph.GridPosition, cache.scaledW, cache.scaledH, opts, offset)
	}
}

func compositeGlyph(img *image.RGBA, cell *image.RGBA, pos osd.GridPosition, scaledW, scaledH int, opts *osd.Options, offset image.Point) {
	x := int(pos.X)*scaledW + opts.PositionX + offset.X
	y := int(pos.Y)*scaledH + opts.PositionY + offset.Y
	draw.Draw(img, image.Rect(x, y, x+scaledW, y+scaledH), cell, cell.Bounds().Min, draw.Over)
}

func resizeGlyph(cell *image.RGBA, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), cell, cell.Bounds(), xdraw.Src, nil)
	return dst
}
