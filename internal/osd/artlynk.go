package osd

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fpvtools/osdrender/internal/logger"
)

// Artlynk SEI payload layout.
const (
	mspPreambleSize  = 9
	mspCommandHeader = 6
)

// Filenames produced by firmwares that never embed OSD data in SEI.
var skippedFirmwareMarkers = []string{"ascent", "avatar"}

var seiEntryRE = regexp.MustCompile(`(?s)pts_time:([\d.]+).*?User Data=([0-9a-fA-F\s:]+)`)

// seiEntry is one (presentation time, hex payload) pair reported by the
// showinfo filter.
type seiEntry struct {
	ptsSecs float64
	hexData string
}

// Extractor recovers OSD frames embedded in a video's SEI metadata.
type Extractor struct {
	FFmpegPath string
	Parent     logger.Writer

	// RunFilter overrides the showinfo filter invocation. A zero maxDuration
	// scans the whole file.
	RunFilter func(videoPath string, maxDuration time.Duration) (string, error)
}

// Initialize sets up the extractor.
func (ex *Extractor) Initialize() {
	if ex.RunFilter == nil {
		ex.RunFilter = ex.runShowinfo
	}
}

// Log implements logger.Writer.
func (ex *Extractor) Log(level logger.Level, format string, args ...interface{}) {
	if ex.Parent != nil {
		ex.Parent.Log(level, "[osd extractor] "+format, args...)
	}
}

// Extract scans a video for embedded OSD data. It returns nil when the video
// carries none, which is not an error.
func (ex *Extractor) Extract(videoPath string) (*File, error) {
	name := strings.ToLower(videoPath)
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	for _, marker := range skippedFirmwareMarkers {
		if strings.Contains(name, marker) {
			ex.Log(logger.Debug, "skipping extraction for %s (firmware marker %q)", videoPath, marker)
			return nil, nil
		}
	}

	// Cheap negative fast-path: probe only the first two seconds.
	probe, err := ex.scanEntries(videoPath, 2*time.Second)
	if err != nil {
		return nil, &FileError{Path: videoPath, Err: err}
	}
	if len(probe) == 0 {
		ex.Log(logger.Debug, "no SEI user data in first 2 seconds of %s", videoPath)
		return nil, nil
	}

	entries, err := ex.scanEntries(videoPath, 0)
	if err != nil {
		return nil, &FileError{Path: videoPath, Err: err}
	}

	var frames []Frame
	for _, entry := range entries {
		glyphs := parseMSPPayload(entry.hexData)
		if len(glyphs) == 0 {
			continue
		}
		frames = append(frames, Frame{
			TimeMillis: uint32(entry.ptsSecs * 1000),
			Glyphs:     glyphs,
		})
	}

	if len(frames) == 0 {
		ex.Log(logger.Info, "SEI data found in %s but no valid OSD frames parsed", videoPath)
		return nil, nil
	}

	ex.Log(logger.Info, "extracted %d OSD frames from %s", len(frames), videoPath)

	return &File{
		Path:       videoPath,
		Firmware:   FirmwareBetaflight,
		FrameCount: len(frames),
		Duration:   frameSequenceDuration(frames),
		Frames:     frames,
	}, nil
}

// scanEntries runs the showinfo filter pass and parses its report.
func (ex *Extractor) scanEntries(videoPath string, maxDuration time.Duration) ([]seiEntry, error) {
	out, err := ex.RunFilter(videoPath, maxDuration)
	if err != nil {
		return nil, err
	}

	var entries []seiEntry
	for _, m := range seiEntryRE.FindAllStringSubmatch(out, -1) {
		pts, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		entries = append(entries, seiEntry{ptsSecs: pts, hexData: m[2]})
	}
	return entries, nil
}

func (ex *Extractor) runShowinfo(videoPath string, maxDuration time.Duration) (string, error) {
	var args []string
	if maxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", maxDuration.Seconds()))
	}
	args = append(args, "-i", videoPath, "-vf", "showinfo", "-f", "null", "-")

	cmd := exec.Command(ex.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// The filter report goes to stderr; ffmpeg exits non-zero on undecodable
	// inputs, in which case the report is empty anyway.
	if err := cmd.Run(); err != nil && stderr.Len() == 0 {
		return "", fmt.Errorf("showinfo filter failed: %w", err)
	}
	return stderr.String(), nil
}

// parseMSPPayload decodes one MSP DisplayPort SEI payload into glyphs,
// keeping only those that survive grid and index filtering.
func parseMSPPayload(hexData string) []Glyph {
	data := deinterleave(decodePayloadHex(hexData))
	if len(data) < mspPreambleSize {
		return nil
	}

	numCommands := int(data[0])
	offset := mspPreambleSize

	var glyphs []Glyph
	for cmd := 0; cmd < numCommands && offset < len(data); cmd++ {
		if offset+mspCommandHeader > len(data) {
			break
		}

		payloadLen := int(data[offset])
		row := data[offset+3]
		col := data[offset+4]
		attribute := data[offset+5]
		offset += mspCommandHeader

		numGlyphs := payloadLen - 4
		for i := 0; i < numGlyphs && offset < len(data); i++ {
			// The character index is 10 bits: the low 2 attribute bits plus
			// the glyph byte. Successive glyphs occupy successive columns.
			index := uint16(attribute&0x03)<<8 | uint16(data[offset])
			c := uint32(col) + uint32(i)
			r := uint32(row)
			offset++

			if c >= GridWidth || r >= GridHeight || index == 0x00 || index == 0x20 {
				continue
			}
			glyphs = append(glyphs, Glyph{
				Index:        index,
				GridPosition: GridPosition{X: c, Y: r},
			})
		}
	}
	return glyphs
}

// decodePayloadHex strips showinfo's per-line "offset:" address prefixes and
// any non-hex characters, then decodes the rest.
func decodePayloadHex(hexData string) []byte {
	var cleaned strings.Builder
	for _, line := range strings.Split(hexData, "\n") {
		line = strings.TrimSpace(line)
		if pos := strings.Index(line, ": "); pos >= 0 {
			line = line[pos+2:]
		}
		for _, c := range line {
			if isHexDigit(c) {
				cleaned.WriteRune(c)
			}
		}
	}

	clean := cleaned.String()
	if len(clean)%2 != 0 {
		clean = clean[:len(clean)-1]
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return nil
	}
	return raw
}

// deinterleave drops every third byte: the scheme packs 2 data bytes and
// 1 filler byte per triplet.
func deinterleave(raw []byte) []byte {
	data := make([]byte, 0, len(raw)*2/3+2)
	for i, b := range raw {
		if (i+1)%3 != 0 {
			data = append(data, b)
		}
	}
	return data
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
