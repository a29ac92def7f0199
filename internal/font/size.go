// Package font contains OSD glyph sheets and the telemetry text font.
package font

// CharacterSize is a character cell size class. It is the single source of
// truth for how large one cell is at a given output resolution.
type CharacterSize int

// Size classes.
const (
	SizeRace CharacterSize = iota
	SizeSmall
	SizeLarge
	SizeXLarge
	SizeUltra
)

// Width returns the cell width in pixels.
func (s CharacterSize) Width() int {
	switch s {
	case SizeRace:
		return 18
	case SizeSmall:
		return 24
	case SizeXLarge:
		return 48
	case SizeUltra:
		return 72
	default:
		return 36
	}
}

// Height returns the cell height in pixels. Cells have a 2:3 aspect ratio.
func (s CharacterSize) Height() int {
	return s.Width() * 3 / 2
}

// String implements fmt.Stringer.
func (s CharacterSize) String() string {
	switch s {
	case SizeRace:
		return "race"
	case SizeSmall:
		return "small"
	case SizeXLarge:
		return "xlarge"
	case SizeUltra:
		return "ultra"
	default:
		return "large"
	}
}
