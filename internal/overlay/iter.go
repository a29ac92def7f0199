package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"

	xfont "golang.org/x/image/font"

	"github.com/fpvtools/osdrender/internal/font"
	"github.com/fpvtools/osdrender/internal/osd"
	"github.com/fpvtools/osdrender/internal/srt"
)

// FrameOverlayIter is a lazily evaluated, single-pass sequence of composited
// frames. It is not restartable: the decoded frame stream cannot be re-read.
type FrameOverlayIter struct {
	// Reader yields the decoder's raw RGBA pixel stream.
	Reader io.Reader

	// CloseDecoder releases the decoder's resources. Called on exhaustion
	// and on Close, at most once.
	CloseDecoder func()

	// Source frame geometry.
	Width     int
	Height    int
	FrameRate float64

	// Canvas geometry. Differs from the source when padding 4:3 video onto
	// a 16:9 canvas; OffsetX centers the source horizontally.
	CanvasWidth  int
	CanvasHeight int
	OffsetX      int

	OSDFrames []osd.Frame
	SRTFrames []srt.Frame

	Glyphs     GlyphSource
	TextFont   *font.TextFont
	OSDOptions *osd.Options
	SRTOptions *srt.Options

	// ChromaKey, when set, replaces decoded pixels with a flat key color.
	ChromaKey *color.RGBA

	cache  *GlyphCache
	face   xfont.Face
	buf    []byte
	canvas *image.RGBA

	frameIndex int
	osdIndex   int
	srtIndex   int
	currentOSD *osd.Frame
	closed     bool
}

// Initialize sets up the iterator.
func (it *FrameOverlayIter) Initialize() error {
	if it.CanvasWidth == 0 {
		it.CanvasWidth = it.Width
	}
	if it.CanvasHeight == 0 {
		it.CanvasHeight = it.Height
	}

	if it.OSDOptions == nil {
		it.OSDOptions = osd.DefaultOptions()
	}
	if it.SRTOptions == nil {
		it.SRTOptions = srt.DefaultOptions()
	}

	it.buf = make([]byte, it.Width*it.Height*4)
	it.canvas = image.NewRGBA(image.Rect(0, 0, it.CanvasWidth, it.CanvasHeight))

	if it.Glyphs != nil {
		base := CharacterSizeFor(it.CanvasWidth, it.CanvasHeight)
		it.cache = NewGlyphCache(it.Glyphs, base, it.OSDOptions.Scale)
	}

	if it.TextFont != nil {
		var err error
		it.face, err = it.TextFont.Face(FontPixelSize(it.SRTOptions, it.CanvasHeight))
		if err != nil {
			return fmt.Errorf("failed to create telemetry font face: %w", err)
		}
	}

	return nil
}

// Next decodes, composites and returns the next frame's raw bytes. The
// returned slice is reused by the following call. It returns io.EOF when the
// decoder stream ends, after releasing the decoder's resources.
func (it *FrameOverlayIter) Next() ([]byte, error) {
	if it.closed {
		return nil, io.EOF
	}

	if _, err := io.ReadFull(it.Reader, it.buf); err != nil {
		it.Close()
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}

	presentationSecs := float64(it.frameIndex) / it.FrameRate
	it.frameIndex++

	it.drawBase()

	if osdFrame := it.advanceOSD(presentationSecs); osdFrame != nil && it.cache != nil {
		OverlayOSDCached(it.canvas, osdFrame, it.cache, it.OSDOptions, image.Point{X: it.OffsetX})
	}

	if rec := it.advanceSRT(presentationSecs); rec != nil && it.face != nil {
		OverlaySRT(it.canvas, rec, it.face, it.SRTOptions, image.Point{X: it.OffsetX})
	}

	return it.canvas.Pix, nil
}

// Close releases the decoder's resources. Safe to call more than once.
func (it *FrameOverlayIter) Close() {
	if it.closed {
		return
	}
	it.closed = true
	if it.CloseDecoder != nil {
		it.CloseDecoder()
	}
}

// drawBase fills the canvas with this frame's background: the chroma key
// color, the decoded pixels directly, or the decoded pixels centered on a
// wider canvas.
func (it *FrameOverlayIter) drawBase() {
	if it.ChromaKey != nil {
		draw.Draw(it.canvas, it.canvas.Bounds(), image.NewUniform(*it.ChromaKey), image.Point{}, draw.Src)
		return
	}

	src := &image.RGBA{
		Pix:    it.buf,
		Stride: it.Width * 4,
		Rect:   image.Rect(0, 0, it.Width, it.Height),
	}

	if it.CanvasWidth == it.Width && it.CanvasHeight == it.Height {
		copy(it.canvas.Pix, it.buf)
		return
	}

	draw.Draw(it.canvas, it.canvas.Bounds(), image.Black, image.Point{}, draw.Src)
	draw.Draw(it.canvas,
		image.Rect(it.OffsetX, 0, it.OffsetX+it.Width, it.Height),
		src, image.Point{}, draw.Src)
}

// advanceOSD selects the OSD frame with the greatest time not after the
// presentation time, holding the last known state between updates.
func (it *FrameOverlayIter) advanceOSD(presentationSecs float64) *osd.Frame {
	millis := uint32(presentationSecs * 1000)
	for it.osdIndex < len(it.OSDFrames) && it.OSDFrames[it.osdIndex].TimeMillis <= millis {
		it.currentOSD = &it.OSDFrames[it.osdIndex]
		it.osdIndex++
	}
	return it.currentOSD
}

// advanceSRT selects the telemetry record whose [start, end) interval
// contains the presentation time, if any.
func (it *FrameOverlayIter) advanceSRT(presentationSecs float64) *srt.Record {
	for it.srtIndex < len(it.SRTFrames) && it.SRTFrames[it.srtIndex].EndTimeSecs <= presentationSecs {
		it.srtIndex++
	}
	if it.srtIndex >= len(it.SRTFrames) {
		return nil
	}
	frame := &it.SRTFrames[it.srtIndex]
	if frame.StartTimeSecs > presentationSecs {
		return nil
	}
	return frame.Data
}
