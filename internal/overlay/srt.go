package overlay

import (
	"fmt"
	"image"
	"image/color"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/fpvtools/osdrender/internal/srt"
)

var (
	srtTextColor   = color.RGBA{R: 240, G: 240, B: 240, A: 240}
	srtShadowColor = color.RGBA{A: 180}
)

const srtSeparator = "  "

// FontPixelSize returns the telemetry font size in pixels for a canvas
// height, so that the configured scale is resolution independent.
func FontPixelSize(opts *srt.Options, canvasHeight int) float64 {
	return opts.Scale / 1080 * float64(canvasHeight)
}

// OverlaySRT draws the formatted telemetry text block onto the image. The
// face must be sized with FontPixelSize for the same canvas.
func OverlaySRT(img *image.RGBA, rec *srt.Record, face xfont.Face, opts *srt.Options, offset image.Point) {
	segments := formatSegments(rec, opts)
	if len(segments) == 0 {
		return
	}

	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	scale := FontPixelSize(opts, height)

	xStart := int(opts.PositionX/100*float64(width)) + offset.X
	yStart := int(opts.PositionY/100*float64(height)) + offset.Y

	padding := int(10.0 / 1080 * float64(height))
	maxWidth := width - xStart - padding
	if maxWidth < 100 {
		maxWidth = 100
	}

	lines := wrapSegments(segments, face, maxWidth)

	lineHeight := int(scale * 1.2)
	ascent := face.Metrics().Ascent.Ceil()

	for i, line := range lines {
		y := yStart + i*lineHeight

		// shadow first so it sits underneath
		drawLine(img, face, line, xStart+1, y+1, srtShadowColor, ascent)
		drawLine(img, face, line, xStart, y, srtTextColor, ascent)
	}
}

func drawLine(img *image.RGBA, face xfont.Face, line string, x, y int, col color.RGBA, ascent int) {
	d := xfont.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y+ascent),
	}
	d.DrawString(line)
}

// wrapSegments greedily packs segments into lines: a segment that would push
// the measured pixel width of a non-empty line past maxWidth starts a new
// line instead.
func wrapSegments(segments []string, face xfont.Face, maxWidth int) []string {
	var lines []string
	current := ""

	for _, segment := range segments {
		candidate := segment
		if current != "" {
			candidate = current + srtSeparator + segment
		}

		if xfont.MeasureString(face, candidate).Ceil() > maxWidth && current != "" {
			lines = append(lines, current)
			current = segment
		} else {
			current = candidate
		}
	}

	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// formatSegments builds the ordered list of text segments, one per enabled
// field that is present in the record.
func formatSegments(rec *srt.Record, opts *srt.Options) []string {
	var segments []string

	if opts.ShowTime && rec.FlightTime != nil {
		segments = append(segments, fmt.Sprintf("Time:%d:%02d", *rec.FlightTime/60, *rec.FlightTime%60))
	}
	if opts.ShowSkyBat && rec.SkyBat != nil {
		segments = append(segments, fmt.Sprintf("SBat:%4.1fV", *rec.SkyBat))
	}
	if opts.ShowGroundBat && rec.GroundBat != nil {
		segments = append(segments, fmt.Sprintf("GBat:%4.1fV", *rec.GroundBat))
	}
	if opts.ShowSignal && rec.Signal != nil {
		segments = append(segments, fmt.Sprintf("Signal:%d", *rec.Signal))
	}
	if opts.ShowChannel && rec.Channel != nil {
		segments = append(segments, fmt.Sprintf("CH:%s", *rec.Channel))
	}
	if opts.ShowFrequency && rec.Frequency != nil {
		segments = append(segments, fmt.Sprintf("Hz:%d", *rec.Frequency))
	}
	if opts.ShowSp && rec.Sp != nil {
		segments = append(segments, fmt.Sprintf("Sp:%d", *rec.Sp))
	}
	if opts.ShowGp && rec.Gp != nil {
		segments = append(segments, fmt.Sprintf("Gp:%d", *rec.Gp))
	}
	if opts.ShowLatency && rec.Latency != nil {
		segments = append(segments, fmt.Sprintf("Latency:%3dms", *rec.Latency))
	}
	if opts.ShowBitrate && rec.BitrateMbps != nil {
		segments = append(segments, fmt.Sprintf("Bitrate:%4.1fMbps", *rec.BitrateMbps))
	}
	if opts.ShowDistance && rec.Distance != nil {
		if *rec.Distance > 999 {
			segments = append(segments, fmt.Sprintf("Distance:%.2fkm", float64(*rec.Distance)/1000))
		} else {
			segments = append(segments, fmt.Sprintf("Distance:%3dm", *rec.Distance))
		}
	}
	if opts.ShowAirTemp && rec.AirTemp != nil {
		segments = append(segments, fmt.Sprintf("AirTemp:%d", *rec.AirTemp))
	}
	if opts.ShowGndTemp && rec.GndTemp != nil {
		segments = append(segments, fmt.Sprintf("GndTemp:%d", *rec.GndTemp))
	}
	if opts.ShowSTYMode && rec.STYMode != nil {
		segments = append(segments, fmt.Sprintf("Mode:%d", *rec.STYMode))
	}

	return segments
}
