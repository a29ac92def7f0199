// Package core contains the main application struct.
package core

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/alecthomas/kong"

	"github.com/fpvtools/osdrender/internal/conf"
	"github.com/fpvtools/osdrender/internal/font"
	"github.com/fpvtools/osdrender/internal/logger"
	"github.com/fpvtools/osdrender/internal/osd"
	"github.com/fpvtools/osdrender/internal/overlay"
	"github.com/fpvtools/osdrender/internal/render"
	"github.com/fpvtools/osdrender/internal/srt"
)

var version = "v0.0.0"

var cli struct {
	Version bool `help:"print version."`

	Confpath string `help:"path of the configuration file." default:"osdrender.yml"`

	Input  string `arg:"" optional:"" help:"input video file."`
	Output string `arg:"" optional:"" help:"output video file. Defaults to <input>_with_osd.mp4."`

	Osd  string `help:"OSD sidecar file. Defaults to <input>.osd; embedded extraction is used when absent."`
	Srt  string `help:"telemetry sidecar file. Defaults to <input>.srt."`
	Font string `help:"directory holding the bundled glyph sheets and text font." type:"path"`

	Encoder string `help:"video encoder to use."`
	Bitrate int    `help:"output bitrate in Mbps."`
	Upscale string `help:"upscale target: none, 1440p or 2160p."`

	ChromaKey bool `help:"render the OSD over a flat chroma key background."`
	Pad43     bool `help:"pad 4:3 video onto a 16:9 canvas."`

	HideOsd bool `help:"skip the glyph overlay."`
	HideSrt bool `help:"skip the telemetry text overlay."`

	ListEncoders bool `help:"list detected encoders and exit."`
}

// Core is an instance of the renderer.
type Core struct {
	conf   *conf.Conf
	logger *logger.Logger

	done chan struct{}
	ok   bool
}

// New allocates a Core.
func New(args []string) (*Core, bool) {
	parser, err := kong.New(&cli,
		kong.Description("FPV OSD and telemetry overlay renderer."),
		kong.UsageOnError())
	if err != nil {
		panic(err)
	}
	if _, err := parser.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, false
	}

	if cli.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	p := &Core{
		done: make(chan struct{}),
	}

	p.conf, err = conf.Load(cli.Confpath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, false
	}
	applyFlags(p.conf)

	p.logger, err = logger.New(p.conf.LoggerLevel(), p.conf.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, false
	}

	go p.run()

	return p, true
}

// Log implements logger.Writer.
func (p *Core) Log(level logger.Level, format string, args ...interface{}) {
	p.logger.Log(level, format, args...)
}

// Wait blocks until the render finishes, reporting success.
func (p *Core) Wait() bool {
	<-p.done
	return p.ok
}

// Close closes the Core's resources.
func (p *Core) Close() {
	p.logger.Close()
}

// applyFlags overrides loaded configuration with command line flags.
func applyFlags(cnf *conf.Conf) {
	if cli.Font != "" {
		cnf.FontDirectory = cli.Font
	}
	if cli.Encoder != "" {
		cnf.Render.Encoder.Name = cli.Encoder
	}
	if cli.Bitrate > 0 {
		cnf.Render.BitrateMbps = cli.Bitrate
	}
	if cli.ChromaKey {
		cnf.Render.UseChromaKey = true
	}
	if cli.Pad43 {
		cnf.Render.Pad43 = true
	}
}

func (p *Core) run() {
	defer close(p.done)

	p.Log(logger.Info, "osdrender %s", version)

	err := p.runInner()
	if err != nil {
		p.Log(logger.Error, "%v", err)
		return
	}
	p.ok = true
}

func (p *Core) runInner() error {
	if cli.Upscale != "" {
		target, err := render.ParseUpscaleTarget(cli.Upscale)
		if err != nil {
			return err
		}
		p.conf.Render.Upscale = target
	}

	if err := render.CheckVersion(p.conf.FFmpegPath); err != nil {
		return err
	}

	if cli.ListEncoders {
		return p.listEncoders()
	}

	if cli.Input == "" {
		return errors.New("no input video given")
	}
	output := cli.Output
	if output == "" {
		ext := filepath.Ext(cli.Input)
		output = strings.TrimSuffix(cli.Input, ext) + "_with_osd.mp4"
	}

	info, err := render.ProbeVideoInfo(cli.Input)
	if err != nil {
		return err
	}
	p.Log(logger.Info, "input: %dx%d @ %.2f fps, %s",
		info.Width, info.Height, info.FrameRate, info.Duration.Round(time.Second))

	job := render.Job{
		FFmpegPath:  p.conf.FFmpegPath,
		InputVideo:  cli.Input,
		OutputVideo: output,
		VideoInfo:   *info,
		Settings:    &p.conf.Render,
		OSDOptions:  &p.conf.OSD,
		SRTOptions:  &p.conf.SRT,
		Parent:      p,
	}

	if !cli.HideOsd {
		if err := p.loadOSD(&job, info); err != nil {
			return err
		}
	}
	if !cli.HideSrt {
		if err := p.loadSRT(&job); err != nil {
			return err
		}
	}

	if err := p.checkEncoder(); err != nil {
		return err
	}

	return p.runRender(job, info)
}

func (p *Core) listEncoders() error {
	encoders, err := render.DetectEncoders(p.conf.FFmpegPath)
	if err != nil {
		return err
	}
	for _, enc := range encoders {
		kind := "software"
		if enc.Hardware {
			kind = "hardware"
		}
		p.Log(logger.Info, "%-20s %-6s %s", enc.Name, enc.Codec, kind)
	}
	return nil
}

// checkEncoder verifies that the configured encoder is offered by the
// installed transcoder tool.
func (p *Core) checkEncoder() error {
	encoders, err := render.DetectEncoders(p.conf.FFmpegPath)
	if err != nil {
		return err
	}
	for _, enc := range encoders {
		if enc.Name == p.conf.Render.Encoder.Name {
			return nil
		}
	}
	return fmt.Errorf("encoder %q is not offered by %s",
		p.conf.Render.Encoder.Name, p.conf.FFmpegPath)
}

// loadOSD fills the job's glyph overlay inputs: the sidecar OSD file when
// one exists, otherwise glyph placements extracted from the video's own
// metadata stream.
func (p *Core) loadOSD(job *render.Job, info *render.VideoInfo) error {
	osdPath := cli.Osd
	if osdPath == "" {
		osdPath = strings.TrimSuffix(cli.Input, filepath.Ext(cli.Input)) + ".osd"
	}

	var file *osd.File
	if _, err := os.Stat(osdPath); err == nil {
		file, err = osd.OpenFile(osdPath)
		if err != nil {
			if errors.Is(err, osd.ErrNoFrames) {
				p.Log(logger.Warn, "OSD file %s holds no frames", osdPath)
				return nil
			}
			return err
		}
		p.Log(logger.Info, "OSD file: %s (%s, %d frames)", osdPath, file.Firmware, file.FrameCount)
	} else {
		ex := &osd.Extractor{
			FFmpegPath: p.conf.FFmpegPath,
			Parent:     p,
		}
		ex.Initialize()

		file, err = ex.Extract(cli.Input)
		if err != nil {
			return err
		}
		if file == nil {
			p.Log(logger.Info, "no embedded OSD data found")
			return nil
		}
		p.Log(logger.Info, "embedded OSD: %d frames", file.FrameCount)
	}

	canvasHeight := info.Height
	size := overlay.CharacterSizeFor(info.Width, canvasHeight)
	fontPath := font.BundledPath(p.conf.FontDirectory, file.Firmware, size)
	glyphFont, err := font.LoadFile(fontPath)
	if err != nil {
		return err
	}
	p.Log(logger.Info, "glyph sheet: %s (%d glyphs)", fontPath, glyphFont.GlyphCount)

	job.OSDFrames = file.Frames
	job.Font = glyphFont
	return nil
}

// loadSRT fills the job's telemetry overlay inputs from the sidecar
// subtitle file, when one exists.
func (p *Core) loadSRT(job *render.Job) error {
	srtPath := cli.Srt
	if srtPath == "" {
		srtPath = strings.TrimSuffix(cli.Input, filepath.Ext(cli.Input)) + ".srt"
	}
	if _, err := os.Stat(srtPath); err != nil {
		return nil
	}

	file, err := srt.OpenFile(srtPath)
	if err != nil {
		if errors.Is(err, srt.ErrNoTelemetry) {
			p.Log(logger.Warn, "telemetry file %s holds no recognized records", srtPath)
			return nil
		}
		return err
	}
	p.Log(logger.Info, "telemetry file: %s (%d records, %s)",
		srtPath, len(file.Frames), file.Duration.Round(time.Second))

	textFont, err := font.LoadTextFont(filepath.Join(p.conf.FontDirectory, "font.ttf"))
	if err != nil {
		return err
	}

	job.SRTFrames = file.Frames
	job.TextFont = textFont
	return nil
}

// runRender drives one render to completion, forwarding progress to the
// log and translating an interrupt signal into an abort.
func (p *Core) runRender(job render.Job, info *render.VideoInfo) error {
	r, err := render.StartRender(job)
	if err != nil {
		return err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	totalFrames := int(info.Duration.Seconds() * info.FrameRate)
	start := time.Now()
	lastProgress := time.Time{}
	var renderErr error

	messages := r.Messages()
	for {
		select {
		case <-interrupt:
			p.Log(logger.Info, "interrupted, aborting render")
			r.Control() <- render.AbortRender
			renderErr = errors.New("render aborted")

		case msg, ok := <-messages:
			if !ok {
				if renderErr != nil {
					return renderErr
				}
				p.Log(logger.Info, "done in %s: %s", time.Since(start).Round(time.Second), job.OutputVideo)
				return nil
			}

			switch m := msg.(type) {
			case render.ProgressUpdate:
				if time.Since(lastProgress) < time.Second {
					continue
				}
				lastProgress = time.Now()
				p.logProgress(m.Progress, totalFrames)

			case render.DecoderFatalError:
				if renderErr == nil {
					renderErr = fmt.Errorf("decoder failed: %s", m.Text)
				}
				r.Control() <- render.AbortRender

			case render.EncoderFatalError:
				if renderErr == nil {
					renderErr = fmt.Errorf("encoder failed: %s", m.Text)
				}
				r.Control() <- render.AbortRender

			case render.DecoderFinished:
				p.Log(logger.Debug, "decoder finished")

			case render.EncoderFinished:
				p.Log(logger.Debug, "encoder finished")
			}
		}
	}
}

func (p *Core) logProgress(progress render.Progress, totalFrames int) {
	percent := ""
	if totalFrames > 0 {
		percent = fmt.Sprintf(" (%d%%)", progress.Frame*100/totalFrames)
	}
	p.Log(logger.Info, "frame %d%s, %s, %.0f fps, %.2fx",
		progress.Frame, percent,
		bytefmt.ByteSize(uint64(progress.SizeKB)*1024),
		progress.FPS, progress.Speed)
}
