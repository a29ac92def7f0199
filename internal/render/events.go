package render

import (
	"strconv"
	"strings"

	"github.com/fpvtools/osdrender/internal/logger"
)

// Log substrings that identify a render-terminating encoder fault.
var encoderFatalMarkers = []string{
	"Error initializing output stream",
	"Cannot load",
}

// logLevel is the severity tag carried by a transcoder log line.
type logLevel int

const (
	levelNone logLevel = iota
	levelInfo
	levelWarning
	levelError
	levelFatal
)

// lineLevel extracts the severity tag from a log line. The subprocesses are
// spawned with level-tagged logging enabled.
func lineLevel(line string) logLevel {
	switch {
	case strings.Contains(line, "[fatal]") || strings.Contains(line, "[panic]"):
		return levelFatal
	case strings.Contains(line, "[error]"):
		return levelError
	case strings.Contains(line, "[warning]"):
		return levelWarning
	case strings.Contains(line, "[info]"):
		return levelInfo
	default:
		return levelNone
	}
}

// parseProgress recovers a progress report from a log line. Progress is
// sometimes emitted only as text (log-only builds of the transcoder), so a
// line carrying both a frame and an fps token is mined for the six known
// keys; missing optional keys yield distinguished defaults.
func parseProgress(line string) (Progress, bool) {
	if !strings.Contains(line, "frame=") || !strings.Contains(line, "fps=") {
		return Progress{}, false
	}

	frame, ok := parseIntVal(line, "frame=")
	if !ok {
		return Progress{}, false
	}
	fps, ok := parseFloatVal(line, "fps=")
	if !ok {
		return Progress{}, false
	}
	speed, ok := parseFloatVal(line, "speed=")
	if !ok {
		return Progress{}, false
	}

	p := Progress{
		Frame: frame,
		FPS:   fps,
		Speed: speed,
		Raw:   line,
	}
	p.SizeKB, _ = parseIntVal(line, "size=")
	p.BitrateKbps, _ = parseFloatVal(line, "bitrate=")
	if v, ok := parseVal(line, "time="); ok {
		p.Time = v
	}
	return p, true
}

// parseVal extracts the contiguous numeric token following a key: digits,
// '.' and '-' are accepted, whitespace before the token is skipped, and the
// scan stops at the first other character after the token started.
func parseVal(s, key string) (string, bool) {
	start := strings.Index(s, key)
	if start < 0 {
		return "", false
	}

	var b strings.Builder
	found := false
	for _, c := range s[start+len(key):] {
		switch {
		case c == ' ' || c == '\t':
			if found {
				return b.String(), true
			}
		case (c >= '0' && c <= '9') || c == '.' || c == '-':
			b.WriteRune(c)
			found = true
		default:
			if found {
				return b.String(), true
			}
			return "", false
		}
	}

	if !found {
		return "", false
	}
	return b.String(), true
}

func parseIntVal(s, key string) (int, bool) {
	v, ok := parseVal(s, key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseFloatVal(s, key string) (float64, bool) {
	v, ok := parseVal(s, key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// classifyEncoderLine translates one encoder log line into messages.
// Non-fatal diagnostics are recorded locally and never forwarded.
func (r *Render) classifyEncoderLine(line string) {
	if p, ok := parseProgress(line); ok {
		r.sendProgress(p)
		return
	}

	for _, marker := range encoderFatalMarkers {
		if strings.Contains(line, marker) {
			r.Log(logger.Error, "encoder fatal error: %s", line)
			r.send(EncoderFatalError{Text: line})
			return
		}
	}

	switch lineLevel(line) {
	case levelWarning, levelError, levelFatal:
		r.Log(logger.Warn, "encoder: %s", line)
	default:
		r.Log(logger.Debug, "encoder: %s", line)
	}
}

// classifyDecoderLine translates one decoder log line into messages using
// the same rules, except that fatal severity itself is render-terminating.
func (r *Render) classifyDecoderLine(line string) {
	if p, ok := parseProgress(line); ok {
		r.sendProgress(p)
		return
	}

	switch lineLevel(line) {
	case levelFatal:
		r.Log(logger.Error, "decoder fatal error: %s", line)
		r.send(DecoderFatalError{Text: line})
	case levelWarning, levelError:
		r.Log(logger.Warn, "decoder: %s", line)
	default:
		r.Log(logger.Debug, "decoder: %s", line)
	}
}
