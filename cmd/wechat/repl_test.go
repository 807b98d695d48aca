package main

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"wechat/internal/media"
	"wechat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSession struct {
	mock.Mock
}

func (m *mockSession) UserID() string { return "me" }

func (m *mockSession) SendText(ctx context.Context, contactID, text string) (*models.Message, error) {
	args := m.Called(ctx, contactID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *mockSession) SendFile(ctx context.Context, contactID, path string) (*models.Message, error) {
	args := m.Called(ctx, contactID, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *mockSession) StartRecording(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockSession) StopRecording(ctx context.Context) (*media.Attachment, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*media.Attachment), args.Error(1)
}

func (m *mockSession) SendRecording(ctx context.Context, contactID string) (*models.Message, error) {
	args := m.Called(ctx, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *mockSession) CancelRecording(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockSession) LoadHistory(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockSession) Contacts(ctx context.Context) ([]models.Contact, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Contact), args.Error(1)
}

func (m *mockSession) Messages(contactID string) []models.Message {
	args := m.Called(contactID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]models.Message)
}

func (m *mockSession) Conversations() []string {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

func (m *mockSession) UploadProgress() media.UploadProgress {
	args := m.Called()
	return args.Get(0).(media.UploadProgress)
}

func newTestREPL() (*repl, *mockSession, *bytes.Buffer) {
	session := &mockSession{}
	var out bytes.Buffer
	return newREPL(session, newConsole(&out, "me"), strings.NewReader("")), session, &out
}

func TestREPL_TextGoesToOpenConversation(t *testing.T) {
	r, session, out := newTestREPL()
	session.On("Messages", "bob").Return([]models.Message{
		{SenderID: "bob", ReceiverID: "me", Content: "hi", Type: models.MessageTypeText},
	})
	session.On("SendText", mock.Anything, "bob", "hello bob").Return(&models.Message{}, nil).Once()

	assert.False(t, r.handle(context.Background(), "/to bob"))
	assert.False(t, r.handle(context.Background(), "  hello bob  "))

	assert.Contains(t, out.String(), "Chatting with bob")
	assert.Contains(t, out.String(), "--:-- bob: hi")
	session.AssertExpectations(t)
}

func TestREPL_TextWithoutConversation(t *testing.T) {
	r, session, _ := newTestREPL()
	// The session reports the missing contact through its notifier
	session.On("SendText", mock.Anything, "", "hello").Return(nil, stderrors.New("no contact")).Once()

	assert.False(t, r.handle(context.Background(), "hello"))
	session.AssertExpectations(t)
}

func TestREPL_BlankLineIsIgnored(t *testing.T) {
	r, session, out := newTestREPL()

	assert.False(t, r.handle(context.Background(), "   "))
	session.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, out.String())
}

func TestREPL_Usage(t *testing.T) {
	r, _, out := newTestREPL()

	r.handle(context.Background(), "/to")
	r.handle(context.Background(), "/file")
	r.handle(context.Background(), "/bogus")

	assert.Contains(t, out.String(), "usage: /to <contact>")
	assert.Contains(t, out.String(), "usage: /file <path>")
	assert.Contains(t, out.String(), "Unknown command /bogus")
}

func TestREPL_File(t *testing.T) {
	r, session, _ := newTestREPL()
	r.contact = "bob"
	session.On("UploadProgress").Return(media.UploadProgress{}).Maybe()
	session.On("SendFile", mock.Anything, "bob", "/tmp/photo.png").Return(&models.Message{}, nil).Once()

	r.handle(context.Background(), "/file /tmp/photo.png")
	session.AssertExpectations(t)
}

func TestREPL_UploadProgress(t *testing.T) {
	r, session, out := newTestREPL()
	r.contact = "bob"
	session.On("UploadProgress").Return(media.UploadProgress{Uploading: true, Sent: 50, Total: 100})
	session.On("SendRecording", mock.Anything, "bob").
		Run(func(mock.Arguments) { time.Sleep(progressInterval + 200*time.Millisecond) }).
		Return(&models.Message{}, nil).Once()

	r.handle(context.Background(), "/send")

	assert.Equal(t, 1, strings.Count(out.String(), "Uploading... 50%"))
}

func TestREPL_RecordingCommands(t *testing.T) {
	r, session, out := newTestREPL()
	session.On("StartRecording", mock.Anything).Return(nil).Once()
	session.On("StopRecording", mock.Anything).Return(&media.Attachment{Size: 3 << 10}, nil).Once()
	session.On("CancelRecording", mock.Anything).Return(nil).Once()

	r.handle(context.Background(), "/record")
	r.handle(context.Background(), "/stop")
	r.handle(context.Background(), "/cancel")

	assert.Contains(t, out.String(), "Recording...")
	assert.Contains(t, out.String(), "Recorded 3.0 KB")
	assert.Contains(t, out.String(), "Recording discarded")
	session.AssertExpectations(t)
}

func TestREPL_RecordingFailureIsSilent(t *testing.T) {
	r, session, out := newTestREPL()
	session.On("StartRecording", mock.Anything).Return(stderrors.New("no microphone")).Once()

	r.handle(context.Background(), "/record")
	assert.Empty(t, out.String())
}

func TestREPL_ContactsAndList(t *testing.T) {
	r, session, out := newTestREPL()
	r.contact = "bob"
	session.On("Contacts", mock.Anything).Return([]models.Contact{{ID: "bob", FirstName: "Bob"}}, nil).Once()
	session.On("Conversations").Return([]string{"alice", "bob"}).Once()
	session.On("Messages", "alice").Return([]models.Message{{}}).Once()
	session.On("Messages", "bob").Return([]models.Message{{}, {}}).Once()

	r.handle(context.Background(), "/contacts")
	r.handle(context.Background(), "/list")

	assert.Contains(t, out.String(), "bob  Bob\n")
	assert.Contains(t, out.String(), "  alice (1)\n")
	assert.Contains(t, out.String(), "* bob (2)\n")
}

func TestREPL_History(t *testing.T) {
	r, session, out := newTestREPL()
	session.On("LoadHistory", mock.Anything).Return(4, nil).Once()

	r.handle(context.Background(), "/history")
	assert.Contains(t, out.String(), "Loaded 4 messages")
}

func TestREPL_Run(t *testing.T) {
	session := &mockSession{}
	var out bytes.Buffer
	r := newREPL(session, newConsole(&out, "me"), strings.NewReader("/help\n/quit\n/to never\n"))

	require.NoError(t, r.run(context.Background()))
	assert.Contains(t, out.String(), "/record")
	assert.NotContains(t, out.String(), "Chatting with never")
}

func TestREPL_RunEndsAtEOF(t *testing.T) {
	session := &mockSession{}
	r := newREPL(session, newConsole(&bytes.Buffer{}, "me"), strings.NewReader("/help\n"))

	assert.NoError(t, r.run(context.Background()))
}

func TestFormatMessage(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)

	assert.Equal(t, "10:30 bob: hi", formatMessage("me", "bob", models.Message{SenderID: "bob", Content: "hi", Timestamp: ts}))
	assert.Equal(t, "10:30 me -> bob: hi", formatMessage("me", "bob", models.Message{SenderID: "me", Content: "hi", Timestamp: ts}))
	assert.Equal(t, "--:-- bob: [audio] http://cdn/a.webm", formatMessage("me", "bob", models.Message{SenderID: "bob", Content: "http://cdn/a.webm", Type: models.MessageTypeAudio}))
}

func TestFormatMessage_MediaNeedsFileURL(t *testing.T) {
	// Typed as media but not a link to a known file type
	assert.Equal(t, "--:-- bob: http://cdn/view?id=7", formatMessage("me", "bob", models.Message{SenderID: "bob", Content: "http://cdn/view?id=7", Type: models.MessageTypeImage}))
	assert.Equal(t, "--:-- bob: holiday.png", formatMessage("me", "bob", models.Message{SenderID: "bob", Content: "holiday.png", Type: models.MessageTypeImage}))
	// A text message that happens to be a file link stays text
	assert.Equal(t, "--:-- bob: https://cdn/a.png", formatMessage("me", "bob", models.Message{SenderID: "bob", Content: "https://cdn/a.png", Type: models.MessageTypeText}))
	assert.Equal(t, "--:-- bob: [image] https://cdn/a.PNG", formatMessage("me", "bob", models.Message{SenderID: "bob", Content: "https://cdn/a.PNG", Type: models.MessageTypeImage}))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "2.0 MB", formatSize(2<<20))
}
