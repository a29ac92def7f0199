package render

import (
	"errors"
	"fmt"
	"os"
	"time"

	mp4 "github.com/abema/go-mp4"
)

// VideoInfo is the source video geometry, derived once from the container
// and consumed by every sizing decision.
type VideoInfo struct {
	Width     int
	Height    int
	FrameRate float64
	Duration  time.Duration
}

// ErrNoVideoTrack is returned when the container carries no video track.
var ErrNoVideoTrack = errors.New("no video track found")

// ProbeError is an error tied to a specific video file.
type ProbeError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	return fmt.Sprintf("video file %s: %v", e.Path, e.Err)
}

// Unwrap returns the wrapped error.
func (e *ProbeError) Unwrap() error {
	return e.Err
}

type trackProbe struct {
	width       int
	height      int
	isVideo     bool
	timescale   uint32
	sampleCount uint64
	sampleDelta uint64
}

// ProbeVideoInfo reads the video geometry from an MP4/MOV container: track
// dimensions from tkhd, the nominal frame rate from the mdhd timescale and
// the stts sample table.
func ProbeVideoInfo(path string) (*VideoInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ProbeError{Path: path, Err: err}
	}
	defer f.Close()

	var tracks []*trackProbe
	var current *trackProbe

	_, err = mp4.ReadBoxStructure(f, func(h *mp4.ReadHandle) (interface{}, error) {
		switch h.BoxInfo.Type {
		case mp4.BoxTypeMoov(), mp4.BoxTypeMdia(), mp4.BoxTypeMinf(), mp4.BoxTypeStbl():
			return h.Expand()

		case mp4.BoxTypeTrak():
			current = &trackProbe{}
			tracks = append(tracks, current)
			return h.Expand()

		case mp4.BoxTypeTkhd():
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			if tkhd, ok := box.(*mp4.Tkhd); ok && current != nil {
				current.width = int(tkhd.Width >> 16)
				current.height = int(tkhd.Height >> 16)
			}

		case mp4.BoxTypeHdlr():
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			if hdlr, ok := box.(*mp4.Hdlr); ok && current != nil {
				current.isVideo = hdlr.HandlerType == [4]byte{'v', 'i', 'd', 'e'}
			}

		case mp4.BoxTypeMdhd():
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			if mdhd, ok := box.(*mp4.Mdhd); ok && current != nil {
				current.timescale = mdhd.Timescale
			}

		case mp4.BoxTypeStts():
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			if stts, ok := box.(*mp4.Stts); ok && current != nil {
				for _, entry := range stts.Entries {
					current.sampleCount += uint64(entry.SampleCount)
					current.sampleDelta += uint64(entry.SampleCount) * uint64(entry.SampleDelta)
				}
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, &ProbeError{Path: path, Err: err}
	}

	for _, track := range tracks {
		if !track.isVideo || track.width == 0 || track.height == 0 {
			continue
		}

		info := &VideoInfo{
			Width:  track.width,
			Height: track.height,
		}
		if track.sampleDelta > 0 && track.timescale > 0 {
			info.FrameRate = float64(track.timescale) * float64(track.sampleCount) / float64(track.sampleDelta)
			info.Duration = time.Duration(float64(track.sampleDelta) / float64(track.timescale) * float64(time.Second))
		}
		if info.FrameRate == 0 {
			return nil, &ProbeError{Path: path, Err: errors.New("cannot derive frame rate")}
		}
		return info, nil
	}

	return nil, &ProbeError{Path: path, Err: ErrNoVideoTrack}
}
