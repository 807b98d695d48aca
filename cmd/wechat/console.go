package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"wechat/internal/media"
	"wechat/internal/models"
)

// console serializes everything the client prints: incoming and outgoing
// messages from the store, alerts, and command output.
type console struct {
	mu     sync.Mutex
	out    io.Writer
	userID string
}

func newConsole(out io.Writer, userID string) *console {
	return &console{out: out, userID: userID}
}

func (c *console) Printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// Alert implements service.Notifier.
func (c *console) Alert(_ context.Context, alert models.Alert) {
	c.Printf("! %s\n", alert.Message)
}

// Message prints one conversation entry; it is subscribed to the store.
func (c *console) Message(contactID string, msg models.Message) {
	c.Printf("%s\n", formatMessage(c.userID, contactID, msg))
}

// formatMessage renders a media message as "[type] url" only when its content
// links to a known file type; anything else prints as plain text.
func formatMessage(userID, contactID string, msg models.Message) string {
	body := msg.Content
	if msg.Type.IsMedia() && media.IsMediaURL(msg.Content) {
		body = fmt.Sprintf("[%s] %s", msg.Type, msg.Content)
	}

	stamp := "--:--"
	if !msg.Timestamp.IsZero() {
		stamp = msg.Timestamp.Local().Format("15:04")
	}

	if msg.IsOutgoing(userID) {
		return fmt.Sprintf("%s me -> %s: %s", stamp, contactID, body)
	}
	return fmt.Sprintf("%s %s: %s", stamp, contactID, body)
}
