package render

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testRender() *Render {
	return &Render{
		id:      "test0000",
		out:     make(chan Message, 16),
		abortCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func TestDecoderArgs(t *testing.T) {
	require.Equal(t, []string{
		"-loglevel", "repeat+level+info",
		"-i", "in.mp4",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}, decoderArgs("in.mp4"))
}

func TestEncoderArgs(t *testing.T) {
	settings := DefaultSettings()
	args := encoderArgs("out.mp4", 1920, 1080, 59.94, settings)
	require.Equal(t, []string{
		"-loglevel", "repeat+level+info",
		"-stats",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", "1920x1080",
		"-r", "59.94",
		"-i", "-",
		"-pix_fmt", "yuv420p",
		"-c:v", "libx264",
		"-b:v", "40M",
		"-y", "out.mp4",
	}, args)
}

func TestEncoderArgsUpscaleAndExtra(t *testing.T) {
	settings := DefaultSettings()
	settings.Upscale = Upscale1440p
	settings.Encoder.Name = "h264_nvenc"
	settings.Encoder.ExtraArgs = "-preset p5 -rc vbr"

	args := encoderArgs("out.mp4", 1280, 720, 60, settings)
	joined := strings.Join(args, " ")
	require.Contains(t, joined, "-vf scale=2560x1440:flags=bicubic")
	require.Contains(t, joined, "-c:v h264_nvenc")
	require.Contains(t, joined, "-preset p5 -rc vbr")
	require.Equal(t, "out.mp4", args[len(args)-1])
}

func TestCanvasGeometry(t *testing.T) {
	settings := DefaultSettings()

	width, offset := canvasGeometry(VideoInfo{Width: 1280, Height: 960, FrameRate: 60}, settings)
	require.Equal(t, 1280, width)
	require.Equal(t, 0, offset)

	settings.Pad43 = true
	width, offset = canvasGeometry(VideoInfo{Width: 1280, Height: 960, FrameRate: 60}, settings)
	require.Equal(t, 1706, width)
	require.Equal(t, 213, offset)

	// 16:9 sources never pad.
	width, offset = canvasGeometry(VideoInfo{Width: 1920, Height: 1080, FrameRate: 60}, settings)
	require.Equal(t, 1920, width)
	require.Equal(t, 0, offset)
}

func TestClassifyEncoderLine(t *testing.T) {
	r := testRender()

	r.classifyEncoderLine("frame=100 fps=60 speed=2.0x")
	msg := <-r.out
	progress, ok := msg.(ProgressUpdate)
	require.True(t, ok)
	require.Equal(t, 100, progress.Progress.Frame)

	r.classifyEncoderLine("[error] Error initializing output stream 0:0")
	msg = <-r.out
	fatal, ok := msg.(EncoderFatalError)
	require.True(t, ok)
	require.Contains(t, fatal.Text, "Error initializing output stream")

	// Ordinary diagnostics never surface.
	r.classifyEncoderLine("[warning] deprecated pixel format used")
	select {
	case msg := <-r.out:
		t.Fatalf("unexpected message %T", msg)
	default:
	}
}

func TestClassifyDecoderLine(t *testing.T) {
	r := testRender()

	r.classifyDecoderLine("[fatal] Invalid data found when processing input")
	msg := <-r.out
	fatal, ok := msg.(DecoderFatalError)
	require.True(t, ok)
	require.Contains(t, fatal.Text, "Invalid data")

	r.classifyDecoderLine("[error] corrupt frame, skipping")
	select {
	case msg := <-r.out:
		t.Fatalf("unexpected message %T", msg)
	default:
	}
}

func TestScanLogLines(t *testing.T) {
	input := "line one\nframe=1 fps=30\rframe=2 fps=30\nlast"
	sc := bufio.NewScanner(strings.NewReader(input))
	sc.Split(scanLogLines)

	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Equal(t, []string{"line one", "frame=1 fps=30", "frame=2 fps=30", "last"}, lines)
}

// fakeTranscoderScript stands in for ffmpeg: the encoder invocation
// (recognized by -stats) drains stdin and exits cleanly, the decoder
// invocation writes a fatal diagnostic to stderr and dies.
const fakeTranscoderScript = `#!/bin/sh
for a in "$@"; do
	if [ "$a" = "-stats" ]; then
		cat >/dev/null
		exit 0
	fi
done
echo "[fatal] Invalid data found when processing input" >&2
exit 1
`

func TestStartRenderSurfacesDecoderFatal(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script in place of the transcoder")
	}

	dir := t.TempDir()
	ffmpeg := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(ffmpeg, []byte(fakeTranscoderScript), 0o755))

	// The fatal line may still sit in the stderr pipe buffer when the
	// decoder exits; it must reach the message stream on every run, not
	// just when the monitor goroutine wins the race with process reaping.
	for i := 0; i < 20; i++ {
		r, err := StartRender(Job{
			FFmpegPath:  ffmpeg,
			InputVideo:  "in.mp4",
			OutputVideo: filepath.Join(dir, "out.mp4"),
			VideoInfo:   VideoInfo{Width: 8, Height: 8, FrameRate: 30},
		})
		require.NoError(t, err)

		var fatal bool
		for msg := range r.Messages() {
			if m, ok := msg.(DecoderFatalError); ok {
				require.Contains(t, m.Text, "Invalid data")
				fatal = true
			}
		}
		require.True(t, fatal, "run %d lost the decoder fatal error", i)
	}
}

func TestSendWaitsForSlowReceiver(t *testing.T) {
	r := testRender()
	r.out = make(chan Message)

	received := make(chan Message)
	go func() {
		time.Sleep(1200 * time.Millisecond)
		received <- <-r.out
	}()

	r.send(EncoderFatalError{Text: "x"})
	require.IsType(t, EncoderFatalError{}, <-received)
}

func TestSendReturnsOnAbort(t *testing.T) {
	r := testRender()
	r.out = make(chan Message)
	close(r.abortCh)

	done := make(chan struct{})
	go func() {
		r.send(DecoderFinished{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send did not return after abort")
	}
}

func TestParseEncoderList(t *testing.T) {
	out := `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 V....D libx265              libx265 H.265 / HEVC (codec hevc)
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder (codec h264)
 V....D mjpeg                MJPEG (Motion JPEG)
 A....D aac                  AAC (Advanced Audio Coding)
`
	encoders := parseEncoderList(out)
	require.Len(t, encoders, 3)

	require.Equal(t, "libx264", encoders[0].Name)
	require.Equal(t, "h264", encoders[0].Codec)
	require.False(t, encoders[0].Hardware)
	require.True(t, encoders[0].Detected)

	require.Equal(t, "libx265", encoders[1].Name)
	require.Equal(t, "h265", encoders[1].Codec)

	require.Equal(t, "h264_nvenc", encoders[2].Name)
	require.True(t, encoders[2].Hardware)
}

func TestParseVersionOutput(t *testing.T) {
	require.Equal(t, "6.1.1",
		parseVersionOutput("ffmpeg version 6.1.1 Copyright (c) 2000-2023 the FFmpeg developers"))
	require.Equal(t, "4.4",
		parseVersionOutput("ffmpeg version n4.4"))
	require.Equal(t, "", parseVersionOutput("not ffmpeg"))
}

func TestCheckVersionBanner(t *testing.T) {
	require.NoError(t, checkVersionBanner("ffmpeg version 6.1.1 Copyright (c) 2000-2023 the FFmpeg developers"))
	require.Error(t, checkVersionBanner("ffmpeg version 4.2.7 Copyright (c) 2000-2022 the FFmpeg developers"))

	// git and distribution builds report hashes, not release numbers
	require.NoError(t, checkVersionBanner("ffmpeg version N-109613-g629esc2dab Copyright (c) 2000-2023 the FFmpeg developers"))
}
