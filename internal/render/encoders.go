package render

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// minimum ffmpeg version known to carry every filter the pipeline uses.
var minimumFFmpegVersion = semver.MustParse("4.3.0")

var ffmpegVersionRE = regexp.MustCompile(`ffmpeg version n?(\d+\.\d+(?:\.\d+)?)`)

var hardwareEncoderMarkers = []string{"nvenc", "qsv", "amf", "vaapi", "videotoolbox"}

// DetectEncoders runs ffmpeg and returns every usable H.264/H.265 video
// encoder it reports, software and hardware alike.
func DetectEncoders(ffmpegPath string) ([]Encoder, error) {
	out, err := exec.Command(ffmpegPath, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", ffmpegPath, err)
	}
	return parseEncoderList(string(out)), nil
}

// parseEncoderList extracts video encoders from the output of
// "ffmpeg -encoders". Lines before the dashed separator are headers.
func parseEncoderList(out string) []Encoder {
	var encoders []Encoder
	inList := false

	for _, line := range strings.Split(out, "\n") {
		if !inList {
			if strings.Contains(line, "------") {
				inList = true
			}
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		flags := fields[0]
		name := fields[1]
		if len(flags) == 0 || flags[0] != 'V' {
			continue
		}

		codec := codecFamily(name, strings.Join(fields[2:], " "))
		if codec == "" {
			continue
		}

		encoders = append(encoders, Encoder{
			Name:     name,
			Codec:    codec,
			Hardware: isHardwareEncoder(name),
			Detected: true,
		})
	}
	return encoders
}

func codecFamily(name string, description string) string {
	switch {
	case strings.Contains(name, "264") || strings.Contains(description, "H.264"):
		return "h264"
	case strings.Contains(name, "265") || strings.Contains(name, "hevc") ||
		strings.Contains(description, "H.265") || strings.Contains(description, "HEVC"):
		return "h265"
	}
	return ""
}

func isHardwareEncoder(name string) bool {
	for _, marker := range hardwareEncoderMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

func parseVersionOutput(out string) string {
	m := ffmpegVersionRE.FindStringSubmatch(out)
	if m == nil {
		return ""
	}
	return m[1]
}

// CheckVersion verifies that the given ffmpeg binary is recent enough for
// the render pipeline. Banners without a parseable release number pass,
// since git and distribution builds often report hashes instead.
func CheckVersion(ffmpegPath string) error {
	out, err := exec.Command(ffmpegPath, "-version").CombinedOutput()
	if err != nil {
		return fmt.Errorf("running %s: %w", ffmpegPath, err)
	}
	return checkVersionBanner(string(out))
}

func checkVersionBanner(banner string) error {
	version := parseVersionOutput(banner)
	if version == "" {
		return nil
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil
	}
	if v.LessThan(minimumFFmpegVersion) {
		return fmt.Errorf("ffmpeg %s is too old, %s or newer is required", version, minimumFFmpegVersion)
	}
	return nil
}
