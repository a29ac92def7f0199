// Package conf contains the persisted application configuration.
package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/fpvtools/osdrender/internal/logger"
	"github.com/fpvtools/osdrender/internal/osd"
	"github.com/fpvtools/osdrender/internal/render"
	"github.com/fpvtools/osdrender/internal/srt"
)

// Conf is the application configuration.
type Conf struct {
	// Log level: "debug", "info", "warn" or "error"
	LogLevel string `yaml:"logLevel"`

	// Optional log file path; empty disables file logging
	LogFile string `yaml:"logFile"`

	// Path of the ffmpeg binary
	FFmpegPath string `yaml:"ffmpegPath"`

	// Directory holding the bundled OSD font sheets
	FontDirectory string `yaml:"fontDirectory"`

	// OSD overlay options
	OSD osd.Options `yaml:"osd"`

	// Telemetry overlay options
	SRT srt.Options `yaml:"srt"`

	// Render settings
	Render render.Settings `yaml:"render"`
}

// Default returns the default configuration.
func Default() *Conf {
	return &Conf{
		LogLevel:      "info",
		FFmpegPath:    "ffmpeg",
		FontDirectory: "fonts",
		OSD:           *osd.DefaultOptions(),
		SRT:           *srt.DefaultOptions(),
		Render:        *render.DefaultSettings(),
	}
}

// Load reads the configuration from the given file. A missing file yields
// the defaults rather than an error; a malformed file is an error.
func Load(fpath string) (*Conf, error) {
	conf := Default()

	byts, err := os.ReadFile(fpath)
	if err != nil {
		if os.IsNotExist(err) {
			return conf, nil
		}
		return nil, err
	}

	if err := yaml.UnmarshalStrict(byts, conf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", fpath, err)
	}

	if err := conf.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", fpath, err)
	}
	return conf, nil
}

// Save writes the configuration to the given file, creating parent
// directories as needed.
func (c *Conf) Save(fpath string) error {
	if err := c.validate(); err != nil {
		return err
	}

	byts, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(fpath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(fpath, byts, 0o644)
}

func (c *Conf) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}

	if c.FFmpegPath == "" {
		return fmt.Errorf("ffmpegPath must not be empty")
	}
	if c.Render.BitrateMbps <= 0 {
		return fmt.Errorf("bitrateMbps must be positive")
	}
	if c.OSD.Scale <= 0 {
		return fmt.Errorf("osd scale must be positive")
	}
	for _, comp := range c.Render.ChromaKey {
		if comp < 0 || comp > 1 {
			return fmt.Errorf("chroma key components must be in [0, 1]")
		}
	}
	return nil
}

// LoggerLevel maps the configured log level name to a logger level.
func (c *Conf) LoggerLevel() logger.Level {
	switch c.LogLevel {
	case "debug":
		return logger.Debug
	case "warn":
		return logger.Warn
	case "error":
		return logger.Error
	default:
		return logger.Info
	}
}
