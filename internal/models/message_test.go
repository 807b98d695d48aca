package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigError_Error(t *testing.T) {
	err := ConfigError{Message: "test error"}
	assert.Equal(t, "test error", err.Error())
}

func TestParseMessageType(t *testing.T) {
	tests := []struct {
		input    string
		expected MessageType
	}{
		{"text", MessageTypeText},
		{"image", MessageTypeImage},
		{"VIDEO", MessageTypeVideo},
		{" audio ", MessageTypeAudio},
		{"document", MessageTypeDocument},
		{"sticker", MessageTypeUnknown},
		{"", MessageTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseMessageType(tt.input))
		})
	}
}

func TestMessageType_IsMedia(t *testing.T) {
	assert.False(t, MessageTypeText.IsMedia())
	assert.False(t, MessageTypeUnknown.IsMedia())
	assert.True(t, MessageTypeImage.IsMedia())
	assert.True(t, MessageTypeDocument.IsMedia())
}

func TestMessageType_JSON(t *testing.T) {
	data, err := json.Marshal(Message{Content: "hi", Type: MessageTypeAudio})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"audio"`)

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"content":"x","type":"image"}`), &msg))
	assert.Equal(t, MessageTypeImage, msg.Type)
}

func TestMessage_ContactFor(t *testing.T) {
	out := Message{SenderID: "me", ReceiverID: "bob"}
	in := Message{SenderID: "bob", ReceiverID: "me"}

	assert.Equal(t, "bob", out.ContactFor("me"))
	assert.Equal(t, "bob", in.ContactFor("me"))
	assert.True(t, out.IsOutgoing("me"))
	assert.False(t, in.IsOutgoing("me"))
}

func TestFlexTimestamp_Unmarshal(t *testing.T) {
	t.Run("rfc3339", func(t *testing.T) {
		var in IncomingMessage
		require.NoError(t, json.Unmarshal([]byte(`{"senderId":"a","message":"m","timestamp":"2024-05-01T10:00:00Z"}`), &in))
		assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), in.Timestamp.UTC())
	})

	t.Run("epoch millis", func(t *testing.T) {
		var in IncomingMessage
		require.NoError(t, json.Unmarshal([]byte(`{"timestamp":1714557600000}`), &in))
		assert.Equal(t, int64(1714557600000), in.Timestamp.UnixMilli())
	})

	t.Run("numeric string", func(t *testing.T) {
		var in IncomingMessage
		require.NoError(t, json.Unmarshal([]byte(`{"timestamp":"1714557600000"}`), &in))
		assert.Equal(t, int64(1714557600000), in.Timestamp.UnixMilli())
	})

	t.Run("null and missing", func(t *testing.T) {
		var in IncomingMessage
		require.NoError(t, json.Unmarshal([]byte(`{"timestamp":null}`), &in))
		assert.True(t, in.Timestamp.IsZero())
	})

	t.Run("float epoch millis", func(t *testing.T) {
		var in IncomingMessage
		require.NoError(t, json.Unmarshal([]byte(`{"senderId":"bob","message":"hi","timestamp":1760000000000.5}`), &in))
		assert.Equal(t, int64(1760000000000), in.Timestamp.UnixMilli())
		assert.Equal(t, "hi", in.Message)
	})

	t.Run("space separated layout", func(t *testing.T) {
		var in IncomingMessage
		require.NoError(t, json.Unmarshal([]byte(`{"timestamp":"2026-10-17 10:00:00"}`), &in))
		assert.Equal(t, time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC), in.Timestamp.UTC())
	})

	t.Run("js date string", func(t *testing.T) {
		var in IncomingMessage
		require.NoError(t, json.Unmarshal([]byte(`{"timestamp":"Sat Oct 17 2026 12:00:00 GMT+0200 (Central European Summer Time)"}`), &in))
		assert.Equal(t, time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC), in.Timestamp.UTC())
	})

	t.Run("unparseable decodes as missing", func(t *testing.T) {
		var in IncomingMessage
		require.NoError(t, json.Unmarshal([]byte(`{"senderId":"bob","message":"hi","timestamp":"yesterday"}`), &in))
		assert.True(t, in.Timestamp.IsZero())
		assert.Equal(t, "bob", in.SenderID)

		require.NoError(t, json.Unmarshal([]byte(`{"senderId":"bob","timestamp":{"seconds":1}}`), &in))
		assert.True(t, in.Timestamp.IsZero())
	})
}

func TestIncomingMessage_ToMessage(t *testing.T) {
	now := time.Now()

	msg := IncomingMessage{SenderID: "bob", Message: "hello"}.ToMessage("me", now)
	assert.Equal(t, MessageTypeText, msg.Type)
	assert.Equal(t, now, msg.Timestamp)
	assert.Equal(t, "bob", msg.SenderID)
	assert.Equal(t, "me", msg.ReceiverID)

	media := IncomingMessage{SenderID: "bob", Message: "https://x/a.png", Type: "image"}.ToMessage("me", now)
	assert.Equal(t, MessageTypeImage, media.Type)
}

func TestContact_DisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", Contact{ID: "1", FirstName: "Ada", LastName: "Lovelace"}.DisplayName())
	assert.Equal(t, "ada@example.com", Contact{ID: "1", Email: "ada@example.com"}.DisplayName())
	assert.Equal(t, "1", Contact{ID: "1"}.DisplayName())
}
