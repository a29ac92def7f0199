package overlay

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/basicfont"

	"github.com/fpvtools/osdrender/internal/srt"
)

func record() *srt.Record {
	signal := 4
	channel := "8"
	latency := 32
	bitrate := 25.0
	distance := 7
	sbat := 4.7
	return &srt.Record{
		Signal:      &signal,
		Channel:     &channel,
		Latency:     &latency,
		BitrateMbps: &bitrate,
		Distance:    &distance,
		SkyBat:      &sbat,
	}
}

func TestFormatSegments(t *testing.T) {
	opts := &srt.Options{
		ShowSignal:   true,
		ShowChannel:  true,
		ShowLatency:  true,
		ShowBitrate:  true,
		ShowDistance: true,
		ShowSkyBat:   true,
	}

	segments := formatSegments(record(), opts)
	require.Equal(t, []string{
		"SBat: 4.7V",
		"Signal:4",
		"CH:8",
		"Latency: 32ms",
		"Bitrate:25.0Mbps",
		"Distance:  7m",
	}, segments)
}

func TestFormatSegmentsDistanceKilometers(t *testing.T) {
	distance := 1534
	rec := &srt.Record{Distance: &distance}

	segments := formatSegments(rec, &srt.Options{ShowDistance: true})
	require.Equal(t, []string{"Distance:1.53km"}, segments)
}

func TestFormatSegmentsAbsentFieldsSkipped(t *testing.T) {
	rec := record()
	rec.Latency = nil

	opts := &srt.Options{ShowLatency: true, ShowFrequency: true}
	require.Empty(t, formatSegments(rec, opts))
}

func TestFormatSegmentsFlightTime(t *testing.T) {
	ft := 125
	rec := &srt.Record{FlightTime: &ft}

	segments := formatSegments(rec, &srt.Options{ShowTime: true})
	require.Equal(t, []string{"Time:2:05"}, segments)
}

func TestWrapSegmentsGreedy(t *testing.T) {
	face := basicfont.Face7x13 // fixed 7px advance

	segments := []string{"aaaa", "bbbb", "cccc"}

	// "aaaa  bbbb" is 70px; adding "  cccc" would reach 112px
	lines := wrapSegments(segments, face, 80)
	require.Equal(t, []string{"aaaa  bbbb", "cccc"}, lines)
}

func TestWrapSegmentsOversizedSegmentKeepsOwnLine(t *testing.T) {
	face := basicfont.Face7x13

	// a single segment wider than the budget is still emitted: lines only
	// break when the current line is non-empty
	lines := wrapSegments([]string{"aaaaaaaaaaaaaaaaaaaa", "bb"}, face, 50)
	require.Equal(t, []string{"aaaaaaaaaaaaaaaaaaaa", "bb"}, lines)
}

func TestOverlaySRTDrawsNothingWithoutSegments(t *testing.T) {
	canvas := image.NewRGBA(image.Rect(0, 0, 200, 100))
	before := make([]byte, len(canvas.Pix))
	copy(before, canvas.Pix)

	OverlaySRT(canvas, &srt.Record{}, basicfont.Face7x13, srt.DefaultOptions(), image.Point{})
	require.Equal(t, before, canvas.Pix)
}

func TestOverlaySRTDrawsTextAndShadow(t *testing.T) {
	canvas := image.NewRGBA(image.Rect(0, 0, 400, 120))

	opts := srt.DefaultOptions()
	opts.PositionX = 0
	opts.PositionY = 10

	OverlaySRT(canvas, record(), basicfont.Face7x13, opts, image.Point{})

	touched := false
	for i := 3; i < len(canvas.Pix); i += 4 {
		if canvas.Pix[i] != 0 {
			touched = true
			break
		}
	}
	require.True(t, touched)
}
