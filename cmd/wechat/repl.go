package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"wechat/internal/media"
	"wechat/internal/models"
)

const progressInterval = 500 * time.Millisecond

// chatSession is the part of service.ChatSession the prompt drives.
type chatSession interface {
	UserID() string
	SendText(ctx context.Context, contactID, text string) (*models.Message, error)
	SendFile(ctx context.Context, contactID, path string) (*models.Message, error)
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) (*media.Attachment, error)
	SendRecording(ctx context.Context, contactID string) (*models.Message, error)
	CancelRecording(ctx context.Context) error
	LoadHistory(ctx context.Context) (int, error)
	Contacts(ctx context.Context) ([]models.Contact, error)
	Messages(contactID string) []models.Message
	Conversations() []string
	UploadProgress() media.UploadProgress
}

const replHelp = `Commands:
  /to <contact>    open the conversation with a contact
  /file <path>     send a file to the open conversation
  /record          start recording a voice message
  /stop            stop recording and preview it
  /send            send the previewed recording
  /cancel          discard the recording
  /history         reload the chat history
  /contacts        list contacts
  /list            list conversations
  /quit            exit
Any other line is sent as text to the open conversation.
`

// repl is the line-oriented chat prompt. Failed actions are reported by the
// session's notifier, so commands only print successful results.
type repl struct {
	session chatSession
	console *console
	in      io.Reader
	contact string
}

func newREPL(session chatSession, c *console, in io.Reader) *repl {
	return &repl{session: session, console: c, in: in}
}

// run reads commands until /quit, end of input or ctx is cancelled.
func (r *repl) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-readErr
			}
			if quit := r.handle(ctx, line); quit {
				return nil
			}
		}
	}
}

// handle executes one input line and reports whether the prompt should exit.
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		_, _ = r.session.SendText(ctx, r.contact, line)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		r.console.Printf("%s", replHelp)
	case "/to":
		r.openConversation(arg)
	case "/file":
		if arg == "" {
			r.console.Printf("usage: /file <path>\n")
			return false
		}
		r.withProgress(ctx, func() {
			_, _ = r.session.SendFile(ctx, r.contact, arg)
		})
	case "/record":
		if err := r.session.StartRecording(ctx); err == nil {
			r.console.Printf("Recording... /stop to finish, /cancel to discard\n")
		}
	case "/stop":
		if att, err := r.session.StopRecording(ctx); err == nil {
			r.console.Printf("Recorded %s. /send to send, /cancel to discard\n", formatSize(att.Size))
		}
	case "/send":
		r.withProgress(ctx, func() {
			_, _ = r.session.SendRecording(ctx, r.contact)
		})
	case "/cancel":
		if err := r.session.CancelRecording(ctx); err == nil {
			r.console.Printf("Recording discarded\n")
		}
	case "/history":
		if n, err := r.session.LoadHistory(ctx); err == nil {
			r.console.Printf("Loaded %d messages\n", n)
			if r.contact != "" {
				r.printConversation()
			}
		}
	case "/contacts":
		r.listContacts(ctx)
	case "/list":
		r.listConversations()
	default:
		r.console.Printf("Unknown command %s, /help lists commands\n", cmd)
	}
	return false
}

func (r *repl) openConversation(contactID string) {
	if contactID == "" {
		r.console.Printf("usage: /to <contact>\n")
		return
	}
	r.contact = contactID
	r.console.Printf("Chatting with %s\n", contactID)
	r.printConversation()
}

func (r *repl) printConversation() {
	userID := r.session.UserID()
	for _, msg := range r.session.Messages(r.contact) {
		r.console.Printf("%s\n", formatMessage(userID, r.contact, msg))
	}
}

func (r *repl) listContacts(ctx context.Context) {
	contacts, err := r.session.Contacts(ctx)
	if err != nil {
		return
	}
	if len(contacts) == 0 {
		r.console.Printf("No contacts\n")
		return
	}
	for _, c := range contacts {
		r.console.Printf("%s  %s\n", c.ID, c.DisplayName())
	}
}

func (r *repl) listConversations() {
	ids := r.session.Conversations()
	if len(ids) == 0 {
		r.console.Printf("No conversations yet\n")
		return
	}
	for _, id := range ids {
		marker := " "
		if id == r.contact {
			marker = "*"
		}
		r.console.Printf("%s %s (%d)\n", marker, id, len(r.session.Messages(id)))
	}
}

// withProgress runs an upload and prints its progress while it is in flight.
func (r *repl) withProgress(ctx context.Context, upload func()) {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		last := -1
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				p := r.session.UploadProgress()
				if p.Uploading && p.Percent() != last {
					last = p.Percent()
					r.console.Printf("Uploading... %d%%\n", last)
				}
			}
		}
	}()
	upload()
	close(done)
	<-stopped
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
