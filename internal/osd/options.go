package osd

// Options are the glyph overlay settings for one render.
type Options struct {
	// Horizontal offset of the grid, in pixels.
	PositionX int `yaml:"positionX"`

	// Vertical offset of the grid, in pixels.
	PositionY int `yaml:"positionY"`

	// Character scale in percent. 100 draws glyphs at their base size.
	Scale float64 `yaml:"scale"`

	// Grid positions to suppress entirely, regardless of glyph identity.
	Mask []GridPosition `yaml:"mask"`
}

// DefaultOptions returns the default glyph overlay settings.
func DefaultOptions() *Options {
	return &Options{
		Scale: 100,
	}
}

// Masked reports whether a grid position is masked.
func (o *Options) Masked(pos GridPosition) bool {
	for _, m := range o.Mask {
		if m == pos {
			return true
		}
	}
	return false
}

// ToggleMask adds or removes a grid position from the mask.
func (o *Options) ToggleMask(pos GridPosition) {
	for i, m := range o.Mask {
		if m == pos {
			o.Mask = append(o.Mask[:i], o.Mask[i+1:]...)
			return
		}
	}
	o.Mask = append(o.Mask, pos)
}
