package font

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/fpvtools/osdrender/internal/osd"
)

// Glyph sheet widths the firmwares ship fonts in.
var nativeWidths = []int{24, 36}

// FileError is an error tied to a specific font file.
type FileError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	return fmt.Sprintf("font file %s: %v", e.Path, e.Err)
}

// Unwrap returns the wrapped error.
func (e *FileError) Unwrap() error {
	return e.Err
}

type glyphKey struct {
	index int
	size  CharacterSize
}

// File is a loaded glyph sheet: a vertical strip of character cells indexed
// top to bottom. Glyph lookups are cached per requested size, so it can be
// read concurrently during a render.
type File struct {
	Name       string
	GlyphCount int

	glyphWidth  int
	glyphHeight int
	sheet       *image.RGBA

	mutex sync.Mutex
	cache map[glyphKey]*image.RGBA
}

// LoadFile loads a glyph sheet PNG.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, &FileError{Path: path, Err: fmt.Errorf("failed to decode: %w", err)}
	}

	file, err := fromImage(filepath.Base(path), img)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return file, nil
}

func fromImage(name string, img image.Image) (*File, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	valid := false
	for _, w := range nativeWidths {
		if width == w {
			valid = true
		}
	}
	if !valid {
		return nil, fmt.Errorf("invalid glyph sheet width %d", width)
	}

	glyphHeight := width * 3 / 2
	if height == 0 || height%glyphHeight != 0 {
		return nil, fmt.Errorf("invalid glyph sheet height %d", height)
	}

	sheet := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(sheet, sheet.Bounds(), img, bounds.Min, draw.Src)

	return &File{
		Name:        name,
		GlyphCount:  height / glyphHeight,
		glyphWidth:  width,
		glyphHeight: glyphHeight,
		sheet:       sheet,
		cache:       make(map[glyphKey]*image.RGBA),
	}, nil
}

// Glyph returns the character cell image at the given index, scaled to the
// requested size class. It returns nil when the index is out of range.
func (f *File) Glyph(index int, size CharacterSize) *image.RGBA {
	if index < 0 || index >= f.GlyphCount {
		return nil
	}

	key := glyphKey{index: index, size: size}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	if img, ok := f.cache[key]; ok {
		return img
	}

	src := f.sheet.SubImage(image.Rect(
		0, index*f.glyphHeight,
		f.glyphWidth, (index+1)*f.glyphHeight,
	)).(*image.RGBA)

	dst := image.NewRGBA(image.Rect(0, 0, size.Width(), size.Height()))
	if size.Width() == f.glyphWidth {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	} else {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	}

	f.cache[key] = dst
	return dst
}

// Firmware codes used in glyph sheet file names.
var firmwareFileCodes = map[osd.Firmware]string{
	osd.FirmwareBetaflight: "BTFL",
	osd.FirmwareInav:       "INAV",
	osd.FirmwareArduPilot:  "ARDU",
	osd.FirmwareKiss:       "BTFL",
	osd.FirmwareKissUltra:  "BTFL",
	osd.FirmwareUnknown:    "BTFL",
}

// BundledPath returns the glyph sheet path for a firmware and size class
// inside a font directory. Small sheets serve the Small and Race classes,
// large sheets everything else.
func BundledPath(dir string, firmware osd.Firmware, size CharacterSize) string {
	width := 36
	if size == SizeSmall || size == SizeRace {
		width = 24
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%d.png", firmwareFileCodes[firmware], width))
}
