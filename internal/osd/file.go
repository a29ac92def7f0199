package osd

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// File layout constants.
const (
	fileMagic      = "WSOF"
	fileHeaderSize = 40
)

// ErrNoFrames is returned when an OSD source contains no usable frames.
var ErrNoFrames = errors.New("no OSD frames found")

// FileError is an error tied to a specific OSD file.
type FileError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	return fmt.Sprintf("osd file %s: %v", e.Path, e.Err)
}

// Unwrap returns the wrapped error.
func (e *FileError) Unwrap() error {
	return e.Err
}

// File is a loaded sequence of OSD frames.
type File struct {
	Path       string
	Firmware   Firmware
	FrameCount int
	Duration   time.Duration
	Frames     []Frame
}

// OpenFile loads a sidecar OSD file.
//
// The format is a 40-byte header (magic, version, firmware code, grid
// dimensions) followed by one record per frame: a little-endian u32 time in
// milliseconds and a full row-major grid of u16 glyph indices. Empty cells
// (index 0) are dropped on load.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	defer f.Close()

	file, err := readFile(bufio.NewReader(f))
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	file.Path = path
	return file, nil
}

func readFile(r io.Reader) (*File, error) {
	header := make([]byte, fileHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("truncated header: %w", err)
	}

	if string(header[:4]) != fileMagic {
		return nil, fmt.Errorf("bad magic %q", header[:4])
	}

	gridWidth := int(header[10])
	gridHeight := int(header[11])
	if gridWidth == 0 || gridHeight == 0 || gridWidth > GridWidth || gridHeight > GridHeight {
		return nil, fmt.Errorf("invalid grid dimensions %dx%d", gridWidth, gridHeight)
	}

	file := &File{
		Firmware: FirmwareFromCode(string(header[6:10])),
	}

	record := make([]byte, 4+gridWidth*gridHeight*2)
	for {
		_, err := io.ReadFull(r, record)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("truncated frame record: %w", err)
		}

		frame := Frame{
			TimeMillis: binary.LittleEndian.Uint32(record[:4]),
		}
		for cell := 0; cell < gridWidth*gridHeight; cell++ {
			index := binary.LittleEndian.Uint16(record[4+cell*2:])
			if index == 0 {
				continue
			}
			frame.Glyphs = append(frame.Glyphs, Glyph{
				Index: index,
				GridPosition: GridPosition{
					X: uint32(cell % gridWidth),
					Y: uint32(cell / gridWidth),
				},
			})
		}
		file.Frames = append(file.Frames, frame)
	}

	if len(file.Frames) == 0 {
		return nil, ErrNoFrames
	}

	file.FrameCount = len(file.Frames)
	file.Duration = frameSequenceDuration(file.Frames)
	return file, nil
}

// frameSequenceDuration derives a total duration from a frame sequence,
// extending past the last frame by the mean frame interval.
func frameSequenceDuration(frames []Frame) time.Duration {
	last := frames[len(frames)-1].TimeMillis

	interval := 33.0 // ~30 fps default when a single frame exists
	if len(frames) > 1 {
		first := frames[0].TimeMillis
		interval = float64(last-first) / float64(len(frames)-1)
	}

	return time.Duration(last)*time.Millisecond +
		time.Duration(interval*float64(time.Millisecond))
}
