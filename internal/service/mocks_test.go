package service

import (
	"context"
	"sync"

	"wechat/internal/media"
	"wechat/internal/models"
	"wechat/internal/realtime"

	"github.com/stretchr/testify/mock"
)

type mockChannel struct {
	mock.Mock
	mu      sync.Mutex
	handler realtime.MessageHandler
	done    chan struct{}
}

func newMockChannel() *mockChannel {
	return &mockChannel{done: make(chan struct{})}
}

func (m *mockChannel) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockChannel) OnMessage(h realtime.MessageHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

func (m *mockChannel) SendPrivateMessage(ctx context.Context, msg models.PrivateMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockChannel) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *mockChannel) Done() <-chan struct{} {
	return m.done
}

// deliver simulates an inbound receive-message event
func (m *mockChannel) deliver(msg models.IncomingMessage) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	h(msg)
}

type mockPipeline struct {
	mock.Mock
}

func (m *mockPipeline) State() media.State {
	args := m.Called()
	return args.Get(0).(media.State)
}

func (m *mockPipeline) Progress() media.UploadProgress {
	args := m.Called()
	return args.Get(0).(media.UploadProgress)
}

func (m *mockPipeline) Pending() *media.Attachment {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*media.Attachment)
}

func (m *mockPipeline) StartRecording(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockPipeline) StopRecording() (*media.Attachment, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*media.Attachment), args.Error(1)
}

func (m *mockPipeline) Cancel() error {
	args := m.Called()
	return args.Error(0)
}

func (m *mockPipeline) SendRecording(ctx context.Context, target media.Target) (*models.Message, error) {
	args := m.Called(ctx, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *mockPipeline) SendFile(ctx context.Context, target media.Target, att *media.Attachment) (*models.Message, error) {
	args := m.Called(ctx, target, att)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) FetchHistory(ctx context.Context, userID string) ([]models.HistoryMessage, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.HistoryMessage), args.Error(1)
}

func (m *mockDirectory) ListUsers(ctx context.Context, userID string) ([]models.Contact, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Contact), args.Error(1)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) RecordFlag(ctx context.Context, event *models.FlagEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type mockRetentionStore struct {
	mock.Mock
}

func (m *mockRetentionStore) CleanupOldRecords(ctx context.Context, retentionDays int) (int64, error) {
	args := m.Called(ctx, retentionDays)
	return args.Get(0).(int64), args.Error(1)
}

// alertRecorder collects alerts in order
type alertRecorder struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (r *alertRecorder) Alert(_ context.Context, alert models.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
}

func (r *alertRecorder) all() []models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}
