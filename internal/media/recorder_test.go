package media

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"wechat/internal/constants"
	"wechat/internal/errors"
	"wechat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Stands in for ffmpeg: writes to the last argument and exits on "q".
const fakeFFmpegScript = `#!/bin/sh
for last; do :; done
printf 'webm' > "$last"
read q
exit 0
`

const failingFFmpegScript = `#!/bin/sh
echo "Unknown input format: 'pulse'" >&2
exit 1
`

func writeScript(t *testing.T, content string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(content), 0700))
	return path
}

func newTestRecorder(t *testing.T, script string) (*FFmpegRecorder, string) {
	t.Helper()
	dir := t.TempDir()
	r := NewFFmpegRecorder(models.RecorderConfig{
		FFmpegPath:  writeScript(t, script),
		InputFormat: "pulse",
		Device:      "default",
	}, dir, nil)
	r.StartupGrace = 200 * time.Millisecond
	r.StopTimeout = 2 * time.Second
	return r, dir
}

func TestFFmpegRecorder_StartStop(t *testing.T) {
	r, dir := newTestRecorder(t, fakeFFmpegScript)

	capture, err := r.Start(context.Background())
	require.NoError(t, err)

	att, err := capture.Stop()
	require.NoError(t, err)

	assert.Equal(t, constants.RecordingFilename, att.Filename)
	assert.Equal(t, constants.RecordingContentType, att.ContentType)
	assert.Equal(t, int64(4), att.Size)
	assert.Equal(t, dir, filepath.Dir(att.Path))

	require.NoError(t, att.Discard())
	_, err = os.Stat(att.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestFFmpegRecorder_Abort(t *testing.T) {
	r, dir := newTestRecorder(t, fakeFFmpegScript)

	capture, err := r.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, capture.Abort())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFFmpegRecorder_DeviceFailure(t *testing.T) {
	r, dir := newTestRecorder(t, failingFFmpegScript)

	_, err := r.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodePermissionDenied, errors.GetCode(err))
	assert.Contains(t, err.Error(), "Unknown input format")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFFmpegRecorder_MissingBinary(t *testing.T) {
	r := NewFFmpegRecorder(models.RecorderConfig{
		FFmpegPath: filepath.Join(t.TempDir(), "no-such-ffmpeg"),
	}, t.TempDir(), nil)

	_, err := r.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodePermissionDenied, errors.GetCode(err))
	assert.Equal(t, "Could not access microphone", errors.GetUserMessage(err))
}

func TestFFmpegRecorder_Args(t *testing.T) {
	r := NewFFmpegRecorder(models.RecorderConfig{InputFormat: "alsa", Device: "hw:0"}, "", nil)

	args := r.args("/tmp/out.webm")
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "alsa", "-i", "hw:0",
		"-c:a", "libopus",
		"-f", "webm", "/tmp/out.webm",
	}, args)
}

func TestNewFFmpegRecorder_Defaults(t *testing.T) {
	r := NewFFmpegRecorder(models.RecorderConfig{}, "", nil)

	format, device := defaultInput()
	assert.Equal(t, "ffmpeg", r.config.FFmpegPath)
	assert.Equal(t, format, r.config.InputFormat)
	assert.Equal(t, device, r.config.Device)
	assert.Equal(t, os.TempDir(), r.tempDir)
}

func TestCleanupStaleRecordings(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, recordingPrefix+"old.webm")
	fresh := filepath.Join(dir, recordingPrefix+"new.webm")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{stale, fresh, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0600))
	}
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(other, old, old))

	removed, err := CleanupStaleRecordings(dir, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
	_, err = os.Stat(other)
	assert.NoError(t, err)
}

func TestAttachmentFromFile(t *testing.T) {
	path := writeTempFile(t, "clip.mp4", "0123456789")

	att, err := AttachmentFromFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", att.Filename)
	assert.Equal(t, "video/mp4", att.ContentType)
	assert.Equal(t, int64(10), att.Size)

	// Not temporary, so discarding keeps the file
	require.NoError(t, att.Discard())
	_, err = os.Stat(path)
	assert.NoError(t, err)

	_, err = AttachmentFromFile(filepath.Dir(path), "")
	assert.Error(t, err)

	_, err = AttachmentFromFile("../../etc/passwd", "")
	assert.Error(t, err)
}
