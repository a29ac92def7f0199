package osd

import (
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// buildPayload assembles a de-interleaved MSP DisplayPort payload and
// re-interleaves it with one filler byte per 2 data bytes, as found in SEI.
func buildPayload(t *testing.T, commands ...[]byte) string {
	t.Helper()

	data := []byte{byte(len(commands))}
	data = append(data, make([]byte, mspPreambleSize-1)...)
	for _, cmd := range commands {
		data = append(data, cmd...)
	}

	var interleaved []byte
	for i, b := range data {
		interleaved = append(interleaved, b)
		if i%2 == 1 {
			interleaved = append(interleaved, 0xff)
		}
	}
	return hex.EncodeToString(interleaved)
}

func command(row, col, attribute byte, glyphs ...byte) []byte {
	cmd := []byte{byte(len(glyphs) + 4), 0, 0, row, col, attribute}
	return append(cmd, glyphs...)
}

func TestParseMSPPayloadGlyphIndex(t *testing.T) {
	payload := buildPayload(t, command(5, 10, 0b10, 0x05))

	glyphs := parseMSPPayload(payload)
	require.Len(t, glyphs, 1)
	require.Equal(t, uint16(0x205), glyphs[0].Index)
	require.Equal(t, GridPosition{X: 10, Y: 5}, glyphs[0].GridPosition)
}

func TestParseMSPPayloadSuccessiveColumns(t *testing.T) {
	payload := buildPayload(t, command(3, 7, 0, 0x41, 0x42, 0x43))

	glyphs := parseMSPPayload(payload)
	require.Len(t, glyphs, 3)
	for i, g := range glyphs {
		require.Equal(t, uint32(7+i), g.GridPosition.X)
		require.Equal(t, uint32(3), g.GridPosition.Y)
	}
}

func TestParseMSPPayloadFiltering(t *testing.T) {
	payload := buildPayload(t,
		command(2, 1, 0, 0x00, 0x20, 0x41), // empty and space dropped
		command(25, 1, 0, 0x41),            // row out of range
		command(2, 52, 0, 0x41, 0x42),      // second glyph spills past the grid
	)

	glyphs := parseMSPPayload(payload)
	require.Len(t, glyphs, 2)
	require.Equal(t, GridPosition{X: 3, Y: 2}, glyphs[0].GridPosition)
	require.Equal(t, GridPosition{X: 52, Y: 2}, glyphs[1].GridPosition)
}

func TestParseMSPPayloadOffsetPrefixes(t *testing.T) {
	raw := buildPayload(t, command(1, 1, 0, 0x41))

	// showinfo dumps payloads as address-prefixed hex lines.
	formatted := ""
	for i := 0; i < len(raw); i += 16 {
		end := i + 16
		if end > len(raw) {
			end = len(raw)
		}
		formatted += fmt.Sprintf("%08x: %s\n", i/2, raw[i:end])
	}

	glyphs := parseMSPPayload(formatted)
	require.Len(t, glyphs, 1)
	require.Equal(t, uint16(0x41), glyphs[0].Index)
}

func showinfoReport(entries ...string) string {
	out := ""
	for i, payload := range entries {
		out += fmt.Sprintf("[Parsed_showinfo_0 @ 0x1] n:%d pts:%d pts_time:%.3f\n", i, i*512, float64(i)*0.033)
		out += fmt.Sprintf("[Parsed_showinfo_0 @ 0x1] side data - User Data=%s\n", payload)
	}
	return out
}

func TestExtractShortCircuitsWithoutSEI(t *testing.T) {
	fullScans := 0
	ex := &Extractor{
		RunFilter: func(_ string, maxDuration time.Duration) (string, error) {
			if maxDuration == 0 {
				fullScans++
			}
			return "[Parsed_showinfo_0 @ 0x1] n:0 pts:0\n", nil
		},
	}
	ex.Initialize()

	file, err := ex.Extract("flight.mp4")
	require.NoError(t, err)
	require.Nil(t, file)
	require.Zero(t, fullScans)
}

func TestExtractSkipsKnownFirmwares(t *testing.T) {
	calls := 0
	ex := &Extractor{
		RunFilter: func(string, time.Duration) (string, error) {
			calls++
			return "", nil
		},
	}
	ex.Initialize()

	file, err := ex.Extract("/flights/Avatar_0012.mp4")
	require.NoError(t, err)
	require.Nil(t, file)
	require.Zero(t, calls)
}

func TestExtractAssemblesFrames(t *testing.T) {
	report := showinfoReport(
		buildPayload(t, command(1, 1, 0, 0x41)),
		buildPayload(t, command(1, 1, 0, 0x00)), // filtered empty, frame dropped
		buildPayload(t, command(2, 2, 0b01, 0x10)),
	)

	ex := &Extractor{
		RunFilter: func(string, time.Duration) (string, error) {
			return report, nil
		},
	}
	ex.Initialize()

	file, err := ex.Extract("flight.mp4")
	require.NoError(t, err)
	require.NotNil(t, file)
	require.Equal(t, 2, file.FrameCount)
	require.Equal(t, FirmwareBetaflight, file.Firmware)
	require.Equal(t, uint16(0x110), file.Frames[1].Glyphs[0].Index)
	require.Equal(t, uint32(66), file.Frames[1].TimeMillis)
}
