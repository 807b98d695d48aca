package media

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"wechat/internal/models"
	"wechat/pkg/chatapi/types"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUploader struct {
	mock.Mock
	mu       sync.Mutex
	received []byte
}

func (m *mockUploader) Upload(ctx context.Context, req types.UploadRequest) (*types.UploadResponse, error) {
	data, _ := io.ReadAll(req.Body)
	m.mu.Lock()
	m.received = data
	m.mu.Unlock()
	if req.Progress != nil {
		req.Progress(int64(len(data)), req.Size)
	}

	args := m.Called(ctx, req.Filename, req.ContentType, req.SenderID, req.ReceiverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UploadResponse), args.Error(1)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) Start(ctx context.Context) (Capture, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Capture), args.Error(1)
}

type mockCapture struct {
	mock.Mock
}

func (m *mockCapture) Stop() (*Attachment, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Attachment), args.Error(1)
}

func (m *mockCapture) Abort() error {
	args := m.Called()
	return args.Error(0)
}

type recordingSink struct {
	mu       sync.Mutex
	contacts []string
	messages []models.Message
}

func (s *recordingSink) AppendLocal(contactID string, msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = append(s.contacts, contactID)
	s.messages = append(s.messages, msg)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// tempRecording builds a temporary attachment as the recorder would.
func tempRecording(t *testing.T) *Attachment {
	t.Helper()
	path := writeTempFile(t, recordingPrefix+"test.webm", "webm-audio")
	return &Attachment{
		Path:        path,
		Filename:    "audio-message.webm",
		ContentType: "audio/webm",
		Size:        int64(len("webm-audio")),
		temporary:   true,
	}
}
