package models

import (
	"encoding/json"
	"strings"
	"time"
)

// MessageType is the closed set of message kinds a conversation can hold.
type MessageType int

const (
	MessageTypeUnknown MessageType = iota
	MessageTypeText
	MessageTypeImage
	MessageTypeVideo
	MessageTypeAudio
	MessageTypeDocument
)

var messageTypeNames = map[MessageType]string{
	MessageTypeUnknown:  "unknown",
	MessageTypeText:     "text",
	MessageTypeImage:    "image",
	MessageTypeVideo:    "video",
	MessageTypeAudio:    "audio",
	MessageTypeDocument: "document",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsMedia reports whether the content of a message of this type is a URL.
func (t MessageType) IsMedia() bool {
	switch t {
	case MessageTypeImage, MessageTypeVideo, MessageTypeAudio, MessageTypeDocument:
		return true
	}
	return false
}

// ParseMessageType maps a wire type name to a MessageType. Unrecognised names
// map to MessageTypeUnknown.
func ParseMessageType(s string) MessageType {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range messageTypeNames {
		if n == name {
			return t
		}
	}
	return MessageTypeUnknown
}

func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = ParseMessageType(s)
	return nil
}

// Message is one entry of a conversation. Content holds the text for text
// messages and the uploaded URL for media messages.
type Message struct {
	ID         string      `json:"id,omitempty"`
	SenderID   string      `json:"senderId"`
	ReceiverID string      `json:"receiverId,omitempty"`
	Content    string      `json:"content"`
	Type       MessageType `json:"type"`
	Timestamp  time.Time   `json:"timestamp"`
}

// IsOutgoing reports whether the message was sent by userID.
func (m Message) IsOutgoing(userID string) bool {
	return m.SenderID == userID
}

// ContactFor returns the other participant of the message from the point of
// view of localUserID.
func (m Message) ContactFor(localUserID string) string {
	if m.SenderID == localUserID {
		return m.ReceiverID
	}
	return m.SenderID
}
