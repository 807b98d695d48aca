package media

import (
	"context"
	"strings"
	"sync"
	"time"

	"wechat/internal/errors"
	"wechat/internal/models"
	"wechat/internal/privacy"
	"wechat/pkg/chatapi/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// State is the media pipeline state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StatePreviewing
	StateUploading
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePreviewing:
		return "previewing"
	case StateUploading:
		return "uploading"
	default:
		return "unknown"
	}
}

// Sink receives the message produced by a successful upload.
type Sink interface {
	AppendLocal(contactID string, msg models.Message)
}

// Target addresses an upload.
type Target struct {
	SenderID   string
	ReceiverID string
}

// UploadProgress is the transient state of the upload in flight.
type UploadProgress struct {
	Uploading bool
	Sent      int64
	Total     int64
}

func (p UploadProgress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	pct := int(p.Sent * 100 / p.Total)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Pipeline drives recording and file uploads:
//
//	audio: Idle -> Recording -> Previewing -> Uploading -> Idle
//	file:  Idle -> Uploading -> Idle
type Pipeline struct {
	policy   Policy
	recorder Recorder
	uploader types.Uploader
	sink     Sink
	logger   *logrus.Logger
	now      func() time.Time

	mu       sync.Mutex
	state    State
	capture  Capture
	pending  *Attachment
	progress UploadProgress
}

// NewPipeline returns an Idle pipeline. A nil recorder disables recording.
func NewPipeline(policy Policy, recorder Recorder, uploader types.Uploader, sink Sink, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &Pipeline{
		policy:   policy,
		recorder: recorder,
		uploader: uploader,
		sink:     sink,
		logger:   logger,
		now:      time.Now,
	}
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) Progress() UploadProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// Pending returns the recording awaiting send, if any.
func (p *Pipeline) Pending() *Attachment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// StartRecording acquires the capture device. On failure the pipeline stays
// Idle.
func (p *Pipeline) StartRecording(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateIdle {
		state := p.state
		p.mu.Unlock()
		return errors.NewStateError("start recording", state.String())
	}
	if p.recorder == nil {
		p.mu.Unlock()
		return errors.NewPermissionError("none", nil)
	}
	p.state = StateRecording
	p.mu.Unlock()

	capture, err := p.recorder.Start(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		if p.state == StateRecording {
			p.state = StateIdle
		}
		return err
	}
	if p.state != StateRecording {
		// Cancelled while the device was opening
		if abortErr := capture.Abort(); abortErr != nil {
			p.logger.WithError(abortErr).Warn("Failed to abort recording")
		}
		return errors.NewStateError("start recording", p.state.String())
	}
	p.capture = capture
	p.logger.Debug("Recording started")
	return nil
}

// StopRecording finalizes the capture and moves to Previewing.
func (p *Pipeline) StopRecording() (*Attachment, error) {
	p.mu.Lock()
	if p.state != StateRecording || p.capture == nil {
		state := p.state
		p.mu.Unlock()
		return nil, errors.NewStateError("stop recording", state.String())
	}
	capture := p.capture
	p.mu.Unlock()

	att, err := capture.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.capture != capture {
		// Cancelled while stopping
		_ = att.Discard()
		return nil, errors.NewStateError("stop recording", p.state.String())
	}
	p.capture = nil
	if err != nil {
		p.state = StateIdle
		return nil, err
	}
	p.pending = att
	p.state = StatePreviewing
	p.logger.WithField("size", att.Size).Debug("Recording ready for preview")
	return att, nil
}

// Cancel discards any capture or pending recording and returns to Idle
// without touching the network. An upload in flight cannot be cancelled.
func (p *Pipeline) Cancel() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateUploading:
		return errors.NewStateError("cancel", p.state.String())
	case StateRecording:
		if p.capture != nil {
			if err := p.capture.Abort(); err != nil {
				p.logger.WithError(err).Warn("Failed to abort recording")
			}
		}
	case StatePreviewing:
		if err := p.pending.Discard(); err != nil {
			p.logger.WithError(err).Warn("Failed to discard recording")
		}
	}

	p.capture = nil
	p.pending = nil
	p.state = StateIdle
	return nil
}

// SendRecording uploads the previewed recording.
func (p *Pipeline) SendRecording(ctx context.Context, target Target) (*models.Message, error) {
	p.mu.Lock()
	if p.state != StatePreviewing || p.pending == nil {
		state := p.state
		p.mu.Unlock()
		return nil, errors.NewStateError("send recording", state.String())
	}
	att := p.pending
	p.pending = nil
	p.state = StateUploading
	p.progress = UploadProgress{Uploading: true, Total: att.Size}
	p.mu.Unlock()

	msg, err := p.upload(ctx, target, att)
	if appErr, ok := errors.As(err); ok && appErr.Code == errors.ErrCodeUploadFailed {
		appErr.UserMessage = "Error uploading audio message"
	}
	return msg, err
}

// SendFile uploads a user-selected file.
func (p *Pipeline) SendFile(ctx context.Context, target Target, att *Attachment) (*models.Message, error) {
	if att == nil {
		return nil, errors.NewValidationError("file", "", "no file selected")
	}

	p.mu.Lock()
	if p.state != StateIdle {
		state := p.state
		p.mu.Unlock()
		return nil, errors.NewStateError("send file", state.String())
	}
	p.state = StateUploading
	p.progress = UploadProgress{Uploading: true, Total: att.Size}
	p.mu.Unlock()

	return p.upload(ctx, target, att)
}

func (p *Pipeline) upload(ctx context.Context, target Target, att *Attachment) (*models.Message, error) {
	defer func() {
		p.mu.Lock()
		p.state = StateIdle
		p.progress = UploadProgress{}
		p.mu.Unlock()
		if err := att.Discard(); err != nil {
			p.logger.WithError(err).Warn("Failed to discard artifact")
		}
	}()

	if strings.TrimSpace(target.SenderID) == "" {
		return nil, errors.NewValidationError("senderId", "", "sender is required")
	}
	if strings.TrimSpace(target.ReceiverID) == "" {
		return nil, errors.NewValidationError("receiverId", "", "no contact selected")
	}

	msgType, err := p.policy.Validate(att.ContentType, att.Size)
	if err != nil {
		return nil, err
	}

	body, err := att.Open()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to read attachment").
			WithUserMessage("Error uploading file")
	}
	defer body.Close()

	logger := p.logger.WithFields(logrus.Fields{
		"receiver": privacy.MaskID(target.ReceiverID),
		"type":     msgType.String(),
		"size":     att.Size,
	})
	logger.Debug("Uploading attachment")

	resp, err := p.uploader.Upload(ctx, types.UploadRequest{
		Filename:    att.Filename,
		ContentType: att.ContentType,
		Body:        body,
		Size:        att.Size,
		SenderID:    target.SenderID,
		ReceiverID:  target.ReceiverID,
		Progress:    p.reportProgress,
	})
	if err != nil {
		errors.Log(logger, err, "Upload failed")
		return nil, err
	}

	msg := models.Message{
		ID:         uuid.NewString(),
		SenderID:   target.SenderID,
		ReceiverID: target.ReceiverID,
		Content:    resp.URL,
		Type:       msgType,
		Timestamp:  p.now(),
	}
	if p.sink != nil {
		p.sink.AppendLocal(target.ReceiverID, msg)
	}
	logger.Info("Attachment sent")
	return &msg, nil
}

func (p *Pipeline) reportProgress(sent, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateUploading {
		return
	}
	p.progress.Sent = sent
	if total > 0 {
		p.progress.Total = total
	}
}
