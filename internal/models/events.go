package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Realtime event names.
const (
	EventRegister       = "register"
	EventPrivateMessage = "private-message"
	EventReceiveMessage = "receive-message"
)

// PrivateMessage is the outbound private-message payload.
type PrivateMessage struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
	Type       string `json:"type,omitempty"`
}

// IncomingMessage is the inbound receive-message payload.
type IncomingMessage struct {
	SenderID  string        `json:"senderId"`
	Message   string        `json:"message"`
	Type      string        `json:"type"`
	Timestamp FlexTimestamp `json:"timestamp"`
}

// ToMessage converts the payload into a conversation entry addressed to
// localUserID. A missing type means text; a missing timestamp is replaced by
// receivedAt.
func (in IncomingMessage) ToMessage(localUserID string, receivedAt time.Time) Message {
	msgType := MessageTypeText
	if in.Type != "" {
		msgType = ParseMessageType(in.Type)
	}
	ts := in.Timestamp.Time
	if ts.IsZero() {
		ts = receivedAt
	}
	return Message{
		SenderID:   in.SenderID,
		ReceiverID: localUserID,
		Content:    in.Message,
		Type:       msgType,
		Timestamp:  ts,
	}
}

// HistoryMessage is one persisted message returned by the history endpoint.
type HistoryMessage struct {
	SenderID   string        `json:"senderId"`
	ReceiverID string        `json:"receiverId"`
	Content    string        `json:"content"`
	Type       string        `json:"type"`
	Timestamp  FlexTimestamp `json:"timestamp"`
}

func (h HistoryMessage) ToMessage() Message {
	msgType := MessageTypeText
	if h.Type != "" {
		msgType = ParseMessageType(h.Type)
	}
	return Message{
		SenderID:   h.SenderID,
		ReceiverID: h.ReceiverID,
		Content:    h.Content,
		Type:       msgType,
		Timestamp:  h.Timestamp.Time,
	}
}

// FlexTimestamp decodes RFC3339 strings, a few common date layouts, epoch
// milliseconds (integer, float or numeric string) and null. A value in no
// known form decodes to the zero time so the rest of the payload survives.
type FlexTimestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	time.RFC1123Z,
	time.RFC1123,
}

func (f *FlexTimestamp) UnmarshalJSON(data []byte) error {
	f.Time = time.Time{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			return nil
		}
	}

	if t, ok := parseEpochMillis(raw); ok {
		f.Time = t
		return nil
	}
	// JS Date.toString appends a zone name: "... GMT+0200 (Central European Summer Time)"
	if i := strings.Index(raw, " ("); i > 0 {
		raw = raw[:i]
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			f.Time = t
			return nil
		}
	}
	return nil
}

func parseEpochMillis(s string) (time.Time, bool) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), true
	}
	ms, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)), true
}

func (f FlexTimestamp) MarshalJSON() ([]byte, error) {
	if f.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(f.Time.Format(time.RFC3339Nano))
}
