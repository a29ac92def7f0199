package srt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asticode/go-astisub"
)

// ErrNoTelemetry is returned when no cue in a whole file matches any schema.
var ErrNoTelemetry = errors.New("no telemetry records found")

// FileError is an error tied to a specific telemetry file.
type FileError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	return fmt.Sprintf("telemetry file %s: %v", e.Path, e.Err)
}

// Unwrap returns the wrapped error.
func (e *FileError) Unwrap() error {
	return e.Err
}

// Frame is one timed telemetry cue.
type Frame struct {
	StartTimeSecs float64
	EndTimeSecs   float64
	Data          *Record
	DebugData     *DebugRecord
}

// Capabilities records which optional fields were ever observed in a file.
// It is recomputed fully on load and never mutated per frame afterwards.
type Capabilities struct {
	Signal     bool
	Channel    bool
	FlightTime bool
	SkyBat     bool
	GroundBat  bool
	Latency    bool
	Bitrate    bool
	Distance   bool
	Frequency  bool
	Sp         bool
	Gp         bool
	AirTemp    bool
	GndTemp    bool
	STYMode    bool
	Debug      bool
}

func (c *Capabilities) merge(rec *Record) {
	c.Signal = c.Signal || rec.Signal != nil
	c.Channel = c.Channel || rec.Channel != nil
	c.FlightTime = c.FlightTime || rec.FlightTime != nil
	c.SkyBat = c.SkyBat || rec.SkyBat != nil
	c.GroundBat = c.GroundBat || rec.GroundBat != nil
	c.Latency = c.Latency || rec.Latency != nil
	c.Bitrate = c.Bitrate || rec.BitrateMbps != nil
	c.Distance = c.Distance || rec.Distance != nil
	c.Frequency = c.Frequency || rec.Frequency != nil
	c.Sp = c.Sp || rec.Sp != nil
	c.Gp = c.Gp || rec.Gp != nil
	c.AirTemp = c.AirTemp || rec.AirTemp != nil
	c.GndTemp = c.GndTemp || rec.GndTemp != nil
	c.STYMode = c.STYMode || rec.STYMode != nil
}

// File is a loaded telemetry sidecar file.
type File struct {
	Path         string
	Capabilities Capabilities
	Duration     time.Duration
	Frames       []Frame
}

// OpenFile loads a subtitle-style telemetry file. Cues that match no schema
// contribute nothing; a file in which nothing matches at all yields
// ErrNoTelemetry, distinct from an I/O failure opening the file.
func OpenFile(path string) (*File, error) {
	subs, err := astisub.OpenFile(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}

	file := &File{Path: path}

	for _, item := range subs.Items {
		text := itemText(item)

		frame := Frame{
			StartTimeSecs: item.StartAt.Seconds(),
			EndTimeSecs:   item.EndAt.Seconds(),
		}

		// Schema priority: debug, then extended, then generic. First
		// success wins; the others are not attempted.
		if debug, ok := ParseDebugRecord(text); ok {
			frame.DebugData = debug
			file.Capabilities.Debug = true
		} else if rec, ok := ParseRecord(text); ok {
			frame.Data = rec
			file.Capabilities.merge(rec)
		} else {
			continue
		}

		file.Frames = append(file.Frames, frame)
	}

	if len(file.Frames) == 0 {
		return nil, &FileError{Path: path, Err: ErrNoTelemetry}
	}

	last := file.Frames[len(file.Frames)-1]
	file.Duration = time.Duration(last.EndTimeSecs * float64(time.Second))
	return file, nil
}

func itemText(item *astisub.Item) string {
	var lines []string
	for _, line := range item.Lines {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}
