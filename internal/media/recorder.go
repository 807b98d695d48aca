package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"wechat/internal/constants"
	"wechat/internal/errors"
	"wechat/internal/models"

	"github.com/sirupsen/logrus"
)

const (
	recordingPrefix     = "wechat-recording-"
	defaultStartupGrace = 300 * time.Millisecond
	maxStderrBytes      = 4096
)

// Recorder acquires the audio capture device.
type Recorder interface {
	Start(ctx context.Context) (Capture, error)
}

// Capture is an in-progress recording.
type Capture interface {
	// Stop finalizes the recording into a playable artifact
	Stop() (*Attachment, error)
	// Abort ends the recording and discards whatever was captured
	Abort() error
}

// FFmpegRecorder captures audio from the system input device with ffmpeg and
// encodes it to opus in a webm container.
type FFmpegRecorder struct {
	config       models.RecorderConfig
	tempDir      string
	logger       *logrus.Logger
	StartupGrace time.Duration
	StopTimeout  time.Duration
}

// NewFFmpegRecorder writes captures to tempDir, or the OS temp dir when empty.
func NewFFmpegRecorder(config models.RecorderConfig, tempDir string, logger *logrus.Logger) *FFmpegRecorder {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	if config.FFmpegPath == "" {
		config.FFmpegPath = "ffmpeg"
	}
	if config.InputFormat == "" || config.Device == "" {
		format, device := defaultInput()
		if config.InputFormat == "" {
			config.InputFormat = format
		}
		if config.Device == "" {
			config.Device = device
		}
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	return &FFmpegRecorder{
		config:       config,
		tempDir:      tempDir,
		logger:       logger,
		StartupGrace: defaultStartupGrace,
		StopTimeout:  constants.DefaultRecorderStopTimeoutSec * time.Second,
	}
}

func defaultInput() (format, device string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", ":0"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

func (r *FFmpegRecorder) args(output string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", r.config.InputFormat, "-i", r.config.Device,
		"-c:a", "libopus",
		"-f", "webm", output,
	}
}

// Start launches ffmpeg and waits a short grace period so that a device that
// cannot be opened is reported here rather than at Stop.
func (r *FFmpegRecorder) Start(ctx context.Context) (Capture, error) {
	device := r.config.InputFormat + ":" + r.config.Device

	bin, err := exec.LookPath(r.config.FFmpegPath)
	if err != nil {
		return nil, errors.NewPermissionError(device, fmt.Errorf("ffmpeg not available: %w", err))
	}

	out, err := os.CreateTemp(r.tempDir, recordingPrefix+"*.webm")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to create recording file")
	}
	output := out.Name()
	out.Close()

	// The capture outlives ctx, which only bounds startup
	cmd := exec.Command(bin, r.args(output)...) // #nosec G204 - binary resolved via LookPath from configuration
	stdin, err := cmd.StdinPipe()
	if err != nil {
		os.Remove(output)
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to open recorder stdin")
	}
	stderr := &limitedBuffer{limit: maxStderrBytes}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		os.Remove(output)
		return nil, errors.NewPermissionError(device, err)
	}

	c := &ffmpegCapture{
		cmd:         cmd,
		stdin:       stdin,
		stderr:      stderr,
		output:      output,
		stopTimeout: r.StopTimeout,
		logger:      r.logger,
		done:        make(chan struct{}),
	}
	go func() {
		c.waitErr = cmd.Wait()
		close(c.done)
	}()

	select {
	case <-c.done:
		os.Remove(output)
		return nil, errors.NewPermissionError(device, fmt.Errorf("recorder exited: %s", c.stderrText()))
	case <-ctx.Done():
		_ = c.Abort()
		return nil, ctx.Err()
	case <-time.After(r.StartupGrace):
	}

	r.logger.WithFields(logrus.Fields{
		"device": device,
		"pid":    cmd.Process.Pid,
	}).Debug("Audio capture started")

	return c, nil
}

type ffmpegCapture struct {
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	stderr      *limitedBuffer
	output      string
	stopTimeout time.Duration
	logger      *logrus.Logger

	once    sync.Once
	done    chan struct{}
	waitErr error
}

func (c *ffmpegCapture) Stop() (*Attachment, error) {
	var stopErr error
	c.once.Do(func() {
		// "q" asks ffmpeg to flush and close the container
		_, _ = c.stdin.Write([]byte("q\n"))
		_ = c.stdin.Close()
		stopErr = c.wait()
	})
	if stopErr != nil {
		os.Remove(c.output)
		return nil, stopErr
	}

	info, err := os.Stat(c.output)
	if err != nil || info.Size() == 0 {
		os.Remove(c.output)
		return nil, errors.New(errors.ErrCodeInternalError, "recording produced no audio").
			WithContext("stderr", c.stderrText()).
			WithUserMessage("Recording failed")
	}

	if c.waitErr != nil {
		c.logger.WithError(c.waitErr).Warn("Recorder exited with error after stop")
	}

	return &Attachment{
		Path:        c.output,
		Filename:    constants.RecordingFilename,
		ContentType: constants.RecordingContentType,
		Size:        info.Size(),
		temporary:   true,
	}, nil
}

func (c *ffmpegCapture) Abort() error {
	c.once.Do(func() {
		_ = c.stdin.Close()
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		<-c.done
	})
	if err := os.Remove(c.output); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove recording: %w", err)
	}
	return nil
}

func (c *ffmpegCapture) wait() error {
	select {
	case <-c.done:
		return nil
	case <-time.After(c.stopTimeout):
		c.logger.Warn("Recorder did not stop in time, killing")
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		<-c.done
		return errors.New(errors.ErrCodeInternalError, "recorder did not stop in time").
			WithUserMessage("Recording failed")
	}
}

func (c *ffmpegCapture) stderrText() string {
	return strings.TrimSpace(c.stderr.String())
}

type limitedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
