package font

import (
	"fmt"
	"os"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
)

// TextFont is the vector font used for the telemetry text block.
type TextFont struct {
	font *opentype.Font
}

// LoadTextFont loads a TTF or OTF font file.
func LoadTextFont(path string) (*TextFont, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return nil, &FileError{Path: path, Err: fmt.Errorf("failed to parse: %w", err)}
	}

	return &TextFont{font: f}, nil
}

// Face creates a face sized to the given pixel height.
func (tf *TextFont) Face(pixels float64) (xfont.Face, error) {
	return opentype.NewFace(tf.font, &opentype.FaceOptions{
		Size:    pixels,
		DPI:     72,
		Hinting: xfont.HintingFull,
	})
}
