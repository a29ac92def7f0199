package render

import (
	"fmt"
	"image/color"
)

// UpscaleTarget selects an optional encoder-side upscale filter.
type UpscaleTarget int

// Upscale targets.
const (
	UpscaleNone UpscaleTarget = iota
	Upscale1440p
	Upscale2160p
)

// String implements fmt.Stringer.
func (t UpscaleTarget) String() string {
	switch t {
	case Upscale1440p:
		return "1440p"
	case Upscale2160p:
		return "2160p"
	default:
		return "none"
	}
}

// ParseUpscaleTarget parses an upscale target name.
func ParseUpscaleTarget(s string) (UpscaleTarget, error) {
	switch s {
	case "", "none":
		return UpscaleNone, nil
	case "1440p":
		return Upscale1440p, nil
	case "2160p":
		return Upscale2160p, nil
	}
	return UpscaleNone, fmt.Errorf("invalid upscale target %q", s)
}

// MarshalYAML implements yaml.Marshaler.
func (t UpscaleTarget) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *UpscaleTarget) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := ParseUpscaleTarget(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// filterArg returns the scale filter argument, if any.
func (t UpscaleTarget) filterArg() string {
	switch t {
	case Upscale1440p:
		return "scale=2560x1440:flags=bicubic"
	case Upscale2160p:
		return "scale=3840x2160:flags=bicubic"
	default:
		return ""
	}
}

// Encoder describes a video encoder offered by the transcoder tool.
type Encoder struct {
	// Codec name passed to the encoder subprocess (e.g. "libx264").
	Name string `yaml:"name"`

	// Codec family (e.g. "h264", "hevc", "av1").
	Codec string `yaml:"codec"`

	// Whether this is a hardware encoder.
	Hardware bool `yaml:"hardware"`

	// Whether the installed transcoder tool offers this encoder.
	Detected bool `yaml:"-"`

	// Extra encoder arguments, shell-quoted.
	ExtraArgs string `yaml:"extraArgs"`
}

// Settings is the immutable configuration snapshot for one render.
type Settings struct {
	Encoder      Encoder       `yaml:"encoder"`
	BitrateMbps  int           `yaml:"bitrateMbps"`
	Upscale      UpscaleTarget `yaml:"upscale"`
	UseChromaKey bool          `yaml:"useChromaKey"`

	// Chroma key as RGB components in [0, 1].
	ChromaKey [3]float64 `yaml:"chromaKey"`

	// Pad 4:3 sources onto a 16:9 canvas.
	Pad43 bool `yaml:"pad43"`
}

// DefaultSettings returns the default render settings.
func DefaultSettings() *Settings {
	return &Settings{
		Encoder: Encoder{
			Name:  "libx264",
			Codec: "h264",
		},
		BitrateMbps: 40,
		ChromaKey:   [3]float64{1.0 / 255, 177.0 / 255, 64.0 / 255},
	}
}

// ChromaKeyColor returns the chroma key as a color.
func (s *Settings) ChromaKeyColor() color.RGBA {
	return color.RGBA{
		R: uint8(s.ChromaKey[0]*255 + 0.5),
		G: uint8(s.ChromaKey[1]*255 + 0.5),
		B: uint8(s.ChromaKey[2]*255 + 0.5),
		A: 255,
	}
}
