package render

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"

	"github.com/fpvtools/osdrender/internal/font"
	"github.com/fpvtools/osdrender/internal/logger"
	"github.com/fpvtools/osdrender/internal/osd"
	"github.com/fpvtools/osdrender/internal/overlay"
	"github.com/fpvtools/osdrender/internal/srt"
)

const (
	outQueueSize     = 256
	controlQueueSize = 16
	stopGracePeriod  = 2 * time.Second
)

// Job describes one render: the input and output files, the overlay data
// and the settings snapshot.
type Job struct {
	FFmpegPath  string
	InputVideo  string
	OutputVideo string

	OSDFrames []osd.Frame
	SRTFrames []srt.Frame

	Font     *font.File
	TextFont *font.TextFont

	OSDOptions *osd.Options
	SRTOptions *srt.Options

	VideoInfo VideoInfo
	Settings  *Settings

	Parent logger.Writer
}

// process wraps a subprocess whose exit status may be awaited from more
// than one place. Wait must not run while the stdout pipe is still being
// read, so waiting is explicit rather than started alongside the process.
type process struct {
	cmd      *exec.Cmd
	waitOnce sync.Once
	waitErr  error
	exited   chan struct{}
}

func newProcess(cmd *exec.Cmd) *process {
	return &process{
		cmd:    cmd,
		exited: make(chan struct{}),
	}
}

func (p *process) start() error {
	return p.cmd.Start()
}

// wait reaps the subprocess. Safe to call more than once.
func (p *process) wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
		close(p.exited)
	})
	<-p.exited
	return p.waitErr
}

// stop asks the subprocess to terminate, escalating to a kill after a
// grace period.
func (p *process) stop() {
	if p.cmd.Process == nil {
		return
	}

	p.cmd.Process.Signal(os.Interrupt)

	select {
	case <-p.exited:
	case <-time.After(stopGracePeriod):
		p.cmd.Process.Kill()
	}
}

// Render is a running render: a decoder subprocess, the frame overlay
// pipeline and an encoder subprocess. Status flows out on Messages,
// control flows in on Control.
type Render struct {
	id     string
	parent logger.Writer

	decoder   *process
	encoder   *process
	encoderIn io.WriteCloser

	out chan Message
	in  chan ControlMessage

	stdinOnce sync.Once
	abortOnce sync.Once
	abortCh   chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
}

// StartRender spawns the decoder and encoder subprocesses and starts the
// overlay pipeline between them. Construction errors are returned
// synchronously; everything after that is reported through Messages.
func StartRender(job Job) (*Render, error) {
	info := job.VideoInfo
	if info.Width <= 0 || info.Height <= 0 || info.FrameRate <= 0 {
		return nil, fmt.Errorf("invalid video geometry %dx%d @ %g", info.Width, info.Height, info.FrameRate)
	}

	settings := job.Settings
	if settings == nil {
		settings = DefaultSettings()
	}

	canvasWidth, offsetX := canvasGeometry(info, settings)

	r := &Render{
		id:      uuid.NewString()[:8],
		parent:  job.Parent,
		out:     make(chan Message, outQueueSize),
		in:      make(chan ControlMessage, controlQueueSize),
		abortCh: make(chan struct{}),
		done:    make(chan struct{}),
	}

	decoderCmd := exec.Command(job.FFmpegPath, decoderArgs(job.InputVideo)...)
	decoderOut, err := decoderCmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	decoderErr, err := decoderCmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	encoderCmd := exec.Command(job.FFmpegPath,
		encoderArgs(job.OutputVideo, canvasWidth, info.Height, info.FrameRate, settings)...)
	encoderIn, err := encoderCmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	encoderErr, err := encoderCmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	r.decoder = newProcess(decoderCmd)
	r.encoder = newProcess(encoderCmd)
	r.encoderIn = encoderIn

	it := &overlay.FrameOverlayIter{
		Reader:       bufio.NewReaderSize(decoderOut, info.Width*4),
		Width:        info.Width,
		Height:       info.Height,
		FrameRate:    info.FrameRate,
		CanvasWidth:  canvasWidth,
		CanvasHeight: info.Height,
		OffsetX:      offsetX,
		OSDFrames:    job.OSDFrames,
		SRTFrames:    job.SRTFrames,
		TextFont:     job.TextFont,
		OSDOptions:   job.OSDOptions,
		SRTOptions:   job.SRTOptions,
	}
	if job.Font != nil {
		it.Glyphs = job.Font
	}
	if settings.UseChromaKey {
		key := settings.ChromaKeyColor()
		it.ChromaKey = &key
	}

	if err := it.Initialize(); err != nil {
		return nil, err
	}

	if err := r.decoder.start(); err != nil {
		return nil, fmt.Errorf("starting decoder: %w", err)
	}
	if err := r.encoder.start(); err != nil {
		r.decoder.cmd.Process.Kill()
		r.decoder.wait()
		return nil, fmt.Errorf("starting encoder: %w", err)
	}

	r.Log(logger.Info, "decoder started: %s %s",
		job.FFmpegPath, strings.Join(decoderCmd.Args[1:], " "))
	r.Log(logger.Info, "encoder started: %s %s",
		job.FFmpegPath, strings.Join(encoderCmd.Args[1:], " "))

	r.wg.Add(3)
	go r.runPipeline(it)
	go r.monitorDecoder(decoderErr)
	go r.monitorEncoder(encoderErr)
	go r.watchControl()
	go func() {
		r.wg.Wait()
		close(r.out)
		close(r.done)
	}()

	return r, nil
}

// Messages returns the outbound status channel. It is closed once both
// subprocess event streams have finished.
func (r *Render) Messages() <-chan Message {
	return r.out
}

// Control returns the inbound control channel.
func (r *Render) Control() chan<- ControlMessage {
	return r.in
}

// Log implements logger.Writer.
func (r *Render) Log(level logger.Level, format string, args ...interface{}) {
	if r.parent == nil {
		return
	}
	r.parent.Log(level, "[render %s] "+format, append([]interface{}{r.id}, args...)...)
}

// canvasGeometry returns the encoder canvas width and the horizontal pixel
// offset of the source within it. Padding applies only to sources narrower
// than 3:2.
func canvasGeometry(info VideoInfo, settings *Settings) (int, int) {
	aspect := float64(info.Width) / float64(info.Height)
	if !settings.Pad43 || aspect >= 1.5 {
		return info.Width, 0
	}

	canvasWidth := info.Height * 16 / 9
	if canvasWidth%2 == 1 {
		canvasWidth++
	}
	return canvasWidth, (canvasWidth - info.Width) / 2
}

// decoderArgs builds the decoder command line: decode the input to raw
// RGBA frames on stdout, with level-tagged logging on stderr.
func decoderArgs(inputPath string) []string {
	return []string{
		"-loglevel", "repeat+level+info",
		"-i", inputPath,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}
}

// encoderArgs builds the encoder command line: raw RGBA frames on stdin,
// encoded to the output file.
func encoderArgs(outputPath string, width int, height int, frameRate float64, settings *Settings) []string {
	args := []string{
		"-loglevel", "repeat+level+info",
		"-stats",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.FormatFloat(frameRate, 'f', -1, 64),
		"-i", "-",
	}

	if filter := settings.Upscale.filterArg(); filter != "" {
		args = append(args, "-vf", filter)
	}

	args = append(args,
		"-pix_fmt", "yuv420p",
		"-c:v", settings.Encoder.Name,
		"-b:v", fmt.Sprintf("%dM", settings.BitrateMbps),
	)

	if settings.Encoder.ExtraArgs != "" {
		if extra, err := shellquote.Split(settings.Encoder.ExtraArgs); err == nil {
			args = append(args, extra...)
		}
	}

	return append(args, "-y", outputPath)
}

// runPipeline feeds composited frames into the encoder until the decoder
// stream ends or the render is aborted. Backpressure comes from the
// blocking pipe write.
func (r *Render) runPipeline(it *overlay.FrameOverlayIter) {
	defer r.wg.Done()

	for {
		select {
		case <-r.abortCh:
			it.Close()
			return
		default:
		}

		frame, err := it.Next()
		if err != nil {
			if err != io.EOF {
				r.Log(logger.Error, "decoder stream: %v", err)
			}
			r.closeEncoderIn()
			return
		}

		if _, err := r.encoderIn.Write(frame); err != nil {
			r.Log(logger.Error, "encoder pipe: %v", err)
			it.Close()
			r.abort()
			return
		}
	}
}

// monitorDecoder reads the decoder's log stream line by line and reaps the
// subprocess once the stream ends. Reaping earlier would close the stderr
// pipe and discard buffered log lines, fatal ones included.
func (r *Render) monitorDecoder(stderr io.Reader) {
	defer r.wg.Done()

	sc := bufio.NewScanner(stderr)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Split(scanLogLines)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			r.classifyDecoderLine(line)
		}
	}

	r.decoder.wait()
	r.send(DecoderFinished{})
}

// monitorEncoder reads the encoder's log stream line by line and reaps the
// subprocess once the stream ends.
func (r *Render) monitorEncoder(stderr io.Reader) {
	defer r.wg.Done()

	sc := bufio.NewScanner(stderr)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Split(scanLogLines)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			r.classifyEncoderLine(line)
		}
	}

	r.encoder.wait()
	r.send(EncoderFinished{})
}

// watchControl services the inbound control channel until the render is
// done.
func (r *Render) watchControl() {
	for {
		select {
		case <-r.done:
			return

		case msg, ok := <-r.in:
			if !ok {
				return
			}
			if msg == AbortRender {
				r.Log(logger.Info, "abort requested")
				r.abort()
			}
		}
	}
}

// abort stops feeding the encoder and terminates both subprocesses. At
// most once.
func (r *Render) abort() {
	r.abortOnce.Do(func() {
		close(r.abortCh)
		r.closeEncoderIn()
		r.decoder.stop()
		r.encoder.stop()
	})
}

func (r *Render) closeEncoderIn() {
	r.stdinOnce.Do(func() {
		r.encoderIn.Close()
	})
}

// send delivers a message, blocking until delivered or the render is
// aborted. A caller that stopped receiving therefore stops the render
// quietly rather than losing a terminal message.
func (r *Render) send(msg Message) {
	select {
	case r.out <- msg:
	case <-r.abortCh:
		select {
		case r.out <- msg:
		default:
		}
	}
}

// sendProgress delivers a progress update, silently dropping it when the
// queue is full. Progress is high-volume and any single report is
// dispensable.
func (r *Render) sendProgress(p Progress) {
	select {
	case r.out <- ProgressUpdate{Progress: p}:
	default:
	}
}

// scanLogLines is a bufio.SplitFunc that treats both LF and the bare CR of
// in-place progress updates as line terminators.
func scanLogLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
