package srt

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleSRT = `1
00:00:00,000 --> 00:00:01,000
Signal:4 CH:8 FlightTime:0 SBat:4.7V GBat:7.2V Delay:32ms Bitrate:25Mbps Distance:7m

2
00:00:01,000 --> 00:00:02,000
not telemetry at all

3
00:00:02,000 --> 00:00:03,500
Signal:4 CH:AUTO Hz:5805000 FlightTime:1 Sp=19 Gp=17 SBat:5.0V GBat:11.6V Delay:37ms Bitrate:25.0Mbps Distance:0m
`

func writeSRT(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flight.srt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOpenFile(t *testing.T) {
	file, err := OpenFile(writeSRT(t, sampleSRT))
	require.NoError(t, err)

	// the unrecognized cue contributes nothing
	require.Len(t, file.Frames, 2)

	require.Equal(t, 0.0, file.Frames[0].StartTimeSecs)
	require.Equal(t, 1.0, file.Frames[0].EndTimeSecs)
	require.NotNil(t, file.Frames[0].Data)
	require.Nil(t, file.Frames[0].DebugData)

	// capabilities are OR-reduced across frames: frequency only appears in
	// the extended cue, battery fields in both
	require.True(t, file.Capabilities.Frequency)
	require.True(t, file.Capabilities.Sp)
	require.True(t, file.Capabilities.SkyBat)
	require.True(t, file.Capabilities.Latency)
	require.False(t, file.Capabilities.AirTemp)
	require.False(t, file.Capabilities.Debug)

	// duration is the exact end of the last cue
	require.Equal(t, 3500*time.Millisecond, file.Duration)
}

func TestOpenFileNoTelemetry(t *testing.T) {
	_, err := OpenFile(writeSRT(t, "1\n00:00:00,000 --> 00:00:01,000\njust words\n"))
	require.ErrorIs(t, err, ErrNoTelemetry)

	var fileErr *FileError
	require.ErrorAs(t, err, &fileErr)
}

func TestOpenFileMissing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "absent.srt"))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoTelemetry)
}
