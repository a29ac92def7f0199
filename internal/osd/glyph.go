// Package osd contains OSD glyph frames and their loaders.
package osd

// Character grid dimensions used by the flight controller OSD.
const (
	GridWidth  = 53
	GridHeight = 20
)

// GridPosition is a position on the OSD character grid.
type GridPosition struct {
	X uint32 `yaml:"x"`
	Y uint32 `yaml:"y"`
}

// Glyph is a single character cell placement.
type Glyph struct {
	// Font index of the character. 0 is empty/transparent.
	Index uint16

	// Position on the character grid.
	GridPosition GridPosition
}

// Frame is the OSD state at a given point in time.
type Frame struct {
	// Time since the start of the video, in milliseconds.
	// Monotonically non-decreasing across a sequence.
	TimeMillis uint32

	// Glyphs to draw, in order.
	Glyphs []Glyph
}
