package osd

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFileHeader(buf *bytes.Buffer, firmware string, gridW, gridH byte) {
	header := make([]byte, fileHeaderSize)
	copy(header, fileMagic)
	binary.LittleEndian.PutUint16(header[4:], 1)
	copy(header[6:], firmware)
	header[10] = gridW
	header[11] = gridH
	buf.Write(header)
}

func writeGridFrame(buf *bytes.Buffer, timeMillis uint32, gridW, gridH int, cells map[int]uint16) {
	record := make([]byte, 4+gridW*gridH*2)
	binary.LittleEndian.PutUint32(record, timeMillis)
	for cell, index := range cells {
		binary.LittleEndian.PutUint16(record[4+cell*2:], index)
	}
	buf.Write(record)
}

func TestReadFile(t *testing.T) {
	var buf bytes.Buffer
	writeFileHeader(&buf, "INAV", GridWidth, GridHeight)
	writeGridFrame(&buf, 0, GridWidth, GridHeight, map[int]uint16{0: 0x30})
	writeGridFrame(&buf, 100, GridWidth, GridHeight, map[int]uint16{GridWidth + 2: 0x41})

	file, err := readFile(&buf)
	require.NoError(t, err)
	require.Equal(t, FirmwareInav, file.Firmware)
	require.Equal(t, 2, file.FrameCount)

	// cell GridWidth+2 is row 1, column 2
	require.Equal(t, GridPosition{X: 2, Y: 1}, file.Frames[1].Glyphs[0].GridPosition)
	require.Equal(t, uint16(0x41), file.Frames[1].Glyphs[0].Index)

	// last frame time plus the mean 100 ms interval
	require.Equal(t, 200*time.Millisecond, file.Duration)
}

func TestReadFileBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("nope")
	buf.Write(make([]byte, fileHeaderSize))

	_, err := readFile(&buf)
	require.Error(t, err)
}

func TestReadFileEmpty(t *testing.T) {
	var buf bytes.Buffer
	writeFileHeader(&buf, "BTFL", GridWidth, GridHeight)

	_, err := readFile(&buf)
	require.ErrorIs(t, err, ErrNoFrames)
}
