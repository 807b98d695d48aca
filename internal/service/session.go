// Package service ties the realtime channel, conversation store, moderation
// filter and media pipeline into one chat session.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"wechat/internal/conversation"
	"wechat/internal/errors"
	"wechat/internal/media"
	"wechat/internal/metrics"
	"wechat/internal/models"
	"wechat/internal/moderation"
	"wechat/internal/privacy"
	"wechat/internal/realtime"
	"wechat/internal/tracing"
	"wechat/internal/validation"
	"wechat/pkg/chatapi/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// RealtimeChannel is the event connection to the backend.
type RealtimeChannel interface {
	Connect(ctx context.Context) error
	OnMessage(h realtime.MessageHandler)
	SendPrivateMessage(ctx context.Context, msg models.PrivateMessage) error
	Close() error
	Done() <-chan struct{}
}

// MediaPipeline records audio and uploads attachments.
type MediaPipeline interface {
	State() media.State
	Progress() media.UploadProgress
	Pending() *media.Attachment
	StartRecording(ctx context.Context) error
	StopRecording() (*media.Attachment, error)
	Cancel() error
	SendRecording(ctx context.Context, target media.Target) (*models.Message, error)
	SendFile(ctx context.Context, target media.Target, att *media.Attachment) (*models.Message, error)
}

// Directory is the backend's user and history lookup.
type Directory interface {
	types.HistoryFetcher
	types.UserLister
}

// AuditLog records moderation flags.
type AuditLog interface {
	RecordFlag(ctx context.Context, event *models.FlagEvent) error
}

// SessionDeps are the collaborators of a ChatSession. Filter, Directory and
// Audit may be nil: a nil Filter disables moderation and a nil Audit skips
// flag recording.
type SessionDeps struct {
	UserID    string
	Channel   RealtimeChannel
	Store     *conversation.Store
	Filter    *moderation.Filter
	Pipeline  MediaPipeline
	Directory Directory
	Notifier  Notifier
	Audit     AuditLog
	Logger    *logrus.Logger
}

// ChatSession is the client side of one authenticated user's chat.
type ChatSession struct {
	userID    string
	channel   RealtimeChannel
	store     *conversation.Store
	filter    *moderation.Filter
	pipeline  MediaPipeline
	directory Directory
	notifier  Notifier
	audit     AuditLog
	logger    *logrus.Logger
	metrics   *metrics.Registry
	now       func() time.Time

	mu      sync.Mutex
	started bool
	logCtx  context.Context
}

// NewChatSession validates deps and subscribes the session to inbound
// messages. Notifier and Logger are optional.
func NewChatSession(deps SessionDeps) (*ChatSession, error) {
	if err := validation.ValidateUserID("userId", deps.UserID); err != nil {
		return nil, err
	}
	if deps.Channel == nil || deps.Store == nil || deps.Pipeline == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "session needs a channel, a store and a media pipeline")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}

	s := &ChatSession{
		userID:    deps.UserID,
		channel:   deps.Channel,
		store:     deps.Store,
		filter:    deps.Filter,
		pipeline:  deps.Pipeline,
		directory: deps.Directory,
		notifier:  notifier,
		audit:     deps.Audit,
		logger:    logger,
		metrics:   metrics.GetRegistry(),
		now:       time.Now,
		logCtx:    context.Background(),
	}
	s.channel.OnMessage(s.handleIncoming)
	s.store.Subscribe(func(string, models.Message) {
		s.updateStoreGauges()
	})
	return s, nil
}

// UserID is the local user the session registers as.
func (s *ChatSession) UserID() string {
	return s.userID
}

// Start connects the realtime channel. Inbound messages are appended to the
// store from then on.
func (s *ChatSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.NewStateError("start session", "started")
	}
	s.started = true
	s.logCtx = context.WithoutCancel(ctx)
	s.mu.Unlock()

	if err := s.channel.Connect(ctx); err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		s.report(ctx, "connect", err)
		return err
	}
	s.metrics.SetGauge(metrics.RealtimeConnected, 1, nil, "Realtime channel connected")

	done := s.channel.Done()
	go func() {
		<-done
		s.metrics.SetGauge(metrics.RealtimeConnected, 0, nil, "Realtime channel connected")
		s.logger.WithField(LogFieldUserID, privacy.MaskID(s.userID)).Info("Realtime channel closed")
	}()

	s.logger.WithField(LogFieldUserID, privacy.MaskID(s.userID)).Info("Chat session started")
	return nil
}

// Stop closes the realtime channel. An upload in flight is not cancelled.
func (s *ChatSession) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	if err := s.channel.Close(); err != nil {
		return fmt.Errorf("failed to close realtime channel: %w", err)
	}
	return nil
}

// Disconnected is closed when the realtime channel ends.
func (s *ChatSession) Disconnected() <-chan struct{} {
	return s.channel.Done()
}

func (s *ChatSession) handleIncoming(in models.IncomingMessage) {
	msg := in.ToMessage(s.userID, s.now())
	msg.ID = uuid.NewString()
	s.store.AppendRemote(in.SenderID, msg)

	s.metrics.IncrementCounter(metrics.MessagesReceived, map[string]string{"type": msg.Type.String()}, "Messages received")

	s.mu.Lock()
	ctx := s.logCtx
	s.mu.Unlock()
	LogMessage(ctx, s.logger, "incoming", in.SenderID, msg)
}

// SendText is the single send path for typed text. Leading and trailing
// whitespace is trimmed and empty text is ignored. Moderation runs before the
// message is emitted; a warning does not block sending. The message is
// appended locally only after the emit succeeded.
func (s *ChatSession) SendText(ctx context.Context, contactID, text string) (_ *models.Message, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	ctx, span := tracing.StartSpan(ctx, "chat.send_text", attribute.Int("message.length", len(text)))
	defer func() { tracing.EndSpan(span, err) }()

	if err = validation.ValidateUserID("receiverId", contactID); err != nil {
		s.report(ctx, "send message", err)
		return nil, err
	}
	if err = validation.ValidateMessageText(text); err != nil {
		s.report(ctx, "send message", err)
		return nil, err
	}

	s.moderate(ctx, contactID, text)

	err = s.channel.SendPrivateMessage(ctx, models.PrivateMessage{
		SenderID:   s.userID,
		ReceiverID: contactID,
		Message:    text,
	})
	if err != nil {
		s.metrics.IncrementCounter(metrics.MessagesFailed, map[string]string{"type": "text"}, "Messages that could not be sent")
		s.report(ctx, "send message", err)
		return nil, err
	}

	msg := models.Message{
		ID:         uuid.NewString(),
		SenderID:   s.userID,
		ReceiverID: contactID,
		Content:    text,
		Type:       models.MessageTypeText,
		Timestamp:  s.now(),
	}
	s.store.AppendLocal(contactID, msg)
	s.metrics.IncrementCounter(metrics.MessagesSent, map[string]string{"type": "text"}, "Messages sent")
	LogMessage(ctx, s.logger, "outgoing", contactID, msg)
	return &msg, nil
}

func (s *ChatSession) moderate(ctx context.Context, contactID, text string) {
	if s.filter == nil {
		return
	}
	matches := s.filter.ScanMatches(text)
	if len(matches) == 0 {
		return
	}

	warned := s.filter.Overused()
	if warned {
		s.metrics.IncrementCounter(metrics.ModerationWarnings, nil, "Moderation warnings shown")
		s.notifier.Alert(ctx, models.Alert{Kind: models.AlertModeration, Message: ModerationWarning})
	}

	for _, m := range matches {
		s.metrics.IncrementCounter(metrics.ModerationFlags, map[string]string{"term": m.Term}, "Flagged terms detected")
		LogWithContext(ctx, s.logger).WithFields(logrus.Fields{
			LogFieldContactID: privacy.MaskID(contactID),
			LogFieldTerm:      m.Term,
			LogFieldCount:     m.Count,
		}).Debug("Flagged term detected")

		if s.audit == nil {
			continue
		}
		event := &models.FlagEvent{
			ContactID: contactID,
			Term:      m.Term,
			Count:     m.Count,
			Warned:    warned,
			CreatedAt: s.now(),
		}
		if err := s.audit.RecordFlag(ctx, event); err != nil {
			errors.Log(LogWithContext(ctx, s.logger), err, "Failed to record moderation flag")
		}
	}
}

// SendFile uploads the file at path to contactID.
func (s *ChatSession) SendFile(ctx context.Context, contactID, path string) (*models.Message, error) {
	att, err := media.AttachmentFromFile(path, "")
	if err != nil {
		appErr := errors.Wrap(err, errors.ErrCodeValidationFailed, "cannot read attachment").
			WithContext("path", path).
			WithUserMessage("Cannot read file")
		s.report(ctx, "send file", appErr)
		return nil, appErr
	}
	return s.upload(ctx, "chat.upload_file", att.Size, func(ctx context.Context) (*models.Message, error) {
		return s.pipeline.SendFile(ctx, s.target(contactID), att)
	})
}

func (s *ChatSession) StartRecording(ctx context.Context) error {
	if err := s.pipeline.StartRecording(ctx); err != nil {
		s.report(ctx, "start recording", err)
		return err
	}
	return nil
}

func (s *ChatSession) StopRecording(ctx context.Context) (*media.Attachment, error) {
	att, err := s.pipeline.StopRecording()
	if err != nil {
		s.report(ctx, "stop recording", err)
		return nil, err
	}
	return att, nil
}

// SendRecording uploads the previewed recording to contactID.
func (s *ChatSession) SendRecording(ctx context.Context, contactID string) (*models.Message, error) {
	var size int64
	if pending := s.pipeline.Pending(); pending != nil {
		size = pending.Size
	}
	return s.upload(ctx, "chat.upload_recording", size, func(ctx context.Context) (*models.Message, error) {
		return s.pipeline.SendRecording(ctx, s.target(contactID))
	})
}

func (s *ChatSession) CancelRecording(ctx context.Context) error {
	if err := s.pipeline.Cancel(); err != nil {
		s.report(ctx, "cancel recording", err)
		return err
	}
	return nil
}

func (s *ChatSession) upload(ctx context.Context, spanName string, size int64, send func(context.Context) (*models.Message, error)) (msg *models.Message, err error) {
	ctx, span := tracing.StartSpan(ctx, spanName)
	defer func() { tracing.EndSpan(span, err) }()

	start := s.now()
	msg, err = send(ctx)
	if err != nil {
		s.metrics.IncrementCounter(metrics.UploadsFailed, map[string]string{"code": string(errors.GetCode(err))}, "Failed uploads")
		s.report(ctx, "upload", err)
		return nil, err
	}

	s.metrics.IncrementCounter(metrics.UploadsCompleted, map[string]string{"type": msg.Type.String()}, "Completed uploads")
	s.metrics.AddToCounter(metrics.UploadBytes, float64(size), nil, "Bytes uploaded")
	s.metrics.RecordTimer(metrics.UploadDuration, s.now().Sub(start), map[string]string{"type": msg.Type.String()})
	tracing.AddSpanAttributes(ctx, attribute.String("message.type", msg.Type.String()), attribute.Int64("upload.size", size))
	LogMessage(ctx, s.logger, "outgoing", msg.ReceiverID, *msg)
	return msg, nil
}

func (s *ChatSession) target(contactID string) media.Target {
	return media.Target{SenderID: s.userID, ReceiverID: contactID}
}

// LoadHistory replaces the store with the backend's persisted history. On
// failure the store is left untouched.
func (s *ChatSession) LoadHistory(ctx context.Context) (_ int, err error) {
	ctx, span := tracing.StartSpan(ctx, "chat.load_history")
	defer func() { tracing.EndSpan(span, err) }()

	if s.directory == nil {
		err = errors.NewStateError("load history", "offline")
		return 0, err
	}

	history, err := s.directory.FetchHistory(ctx, s.userID)
	if err != nil {
		s.report(ctx, "load history", err)
		return 0, err
	}

	msgs := make([]models.Message, 0, len(history))
	for _, h := range history {
		msg := h.ToMessage()
		msg.ID = uuid.NewString()
		msgs = append(msgs, msg)
	}
	s.store.Hydrate(s.userID, msgs)
	s.updateStoreGauges()

	LogWithContext(ctx, s.logger).WithField(LogFieldCount, len(msgs)).Info("Chat history loaded")
	return len(msgs), nil
}

// Contacts lists the users the local user can chat with.
func (s *ChatSession) Contacts(ctx context.Context) ([]models.Contact, error) {
	if s.directory == nil {
		return nil, errors.NewStateError("list contacts", "offline")
	}
	contacts, err := s.directory.ListUsers(ctx, s.userID)
	if err != nil {
		s.report(ctx, "list contacts", err)
		return nil, err
	}
	return contacts, nil
}

// Messages returns the conversation with contactID in arrival order.
func (s *ChatSession) Messages(contactID string) []models.Message {
	return s.store.MessagesFor(contactID)
}

// Conversations returns the contacts with messages, first seen first.
func (s *ChatSession) Conversations() []string {
	return s.store.Contacts()
}

// ModerationCounts returns the per-term counts, or nil when moderation is off.
func (s *ChatSession) ModerationCounts() map[string]int {
	if s.filter == nil {
		return nil
	}
	return s.filter.Counts()
}

func (s *ChatSession) MediaState() media.State {
	return s.pipeline.State()
}

func (s *ChatSession) UploadProgress() media.UploadProgress {
	return s.pipeline.Progress()
}

func (s *ChatSession) updateStoreGauges() {
	s.metrics.SetGauge(metrics.Conversations, float64(len(s.store.Contacts())), nil, "Contacts with at least one message")
	s.metrics.SetGauge(metrics.StoredMessages, float64(s.store.Len()), nil, "Messages held in memory")
}

func (s *ChatSession) report(ctx context.Context, operation string, err error) {
	errors.Log(LogWithContext(ctx, s.logger).WithField(LogFieldOperation, operation), err, "Failed to "+operation)
	s.notifier.Alert(ctx, AlertFor(err))
}
