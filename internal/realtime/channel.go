package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"wechat/internal/constants"
	"wechat/internal/errors"
	"wechat/internal/models"
	"wechat/internal/privacy"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// MessageHandler receives inbound receive-message payloads on the read loop
// goroutine.
type MessageHandler func(msg models.IncomingMessage)

// Channel is a single websocket connection to the backend's event channel.
// It does not reconnect: once the connection drops, Done is closed and no
// further messages are delivered.
type Channel struct {
	baseURL     string
	userID      string
	codec       Codec
	logger      *logrus.Logger
	readLimit   int64
	dialTimeout time.Duration

	mu       sync.RWMutex
	conn     *websocket.Conn
	handlers []MessageHandler
	cancel   context.CancelFunc
	done     chan struct{}

	writeMu sync.Mutex
}

// NewChannel returns an unconnected channel using the codec named by
// cfg.Protocol.
func NewChannel(cfg models.RealtimeConfig, userID string, logger *logrus.Logger) (*Channel, error) {
	codec, err := NewCodec(cfg.Protocol)
	if err != nil {
		return nil, errors.NewConfigError("realtime.protocol", err.Error())
	}
	return NewChannelWithCodec(cfg, userID, codec, logger), nil
}

func NewChannelWithCodec(cfg models.RealtimeConfig, userID string, codec Codec, logger *logrus.Logger) *Channel {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	readLimit := cfg.ReadLimitKB
	if readLimit <= 0 {
		readLimit = constants.DefaultReadLimitKB
	}
	dialTimeout := cfg.DialTimeoutS
	if dialTimeout <= 0 {
		dialTimeout = constants.DefaultDialTimeoutSec
	}

	done := make(chan struct{})
	close(done)

	return &Channel{
		baseURL:     cfg.URL,
		userID:      userID,
		codec:       codec,
		logger:      logger,
		readLimit:   int64(readLimit) * 1024,
		dialTimeout: time.Duration(dialTimeout) * time.Second,
		done:        done,
	}
}

// OnMessage registers a handler for inbound messages. Handlers registered
// after Connect still receive subsequent messages.
func (c *Channel) OnMessage(h MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// Connect dials the endpoint, runs the protocol handshake and registers the
// local user. The read loop runs until Close or until the connection drops.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return errors.NewStateError("connect", "connected")
	}
	c.mu.Unlock()

	endpoint, err := c.codec.Endpoint(c.baseURL)
	if err != nil {
		return errors.NewRealtimeError("connect", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, endpoint, nil)
	if err != nil {
		return errors.NewRealtimeError("connect", err).WithContext("endpoint", endpoint)
	}
	conn.SetReadLimit(c.readLimit)

	if err := c.codec.Handshake(dialCtx, conn); err != nil {
		conn.Close(websocket.StatusProtocolError, "handshake failed")
		return errors.NewRealtimeError("handshake", err).WithContext("endpoint", endpoint)
	}

	// The backend routes inbound messages by this registration
	frame, err := c.codec.Encode(models.EventRegister, c.userID)
	if err == nil {
		err = conn.Write(dialCtx, websocket.MessageText, frame)
	}
	if err != nil {
		conn.Close(websocket.StatusInternalError, "register failed")
		return errors.NewRealtimeError("register", err)
	}

	loopCtx, loopCancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.cancel = loopCancel
	c.done = done
	c.mu.Unlock()

	go c.readLoop(loopCtx, conn, done)

	c.logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"protocol": c.codec.Name(),
		"user":     privacy.MaskID(c.userID),
	}).Info("Connected to realtime channel")
	return nil
}

// SendPrivateMessage emits a private-message event.
func (c *Channel) SendPrivateMessage(ctx context.Context, msg models.PrivateMessage) error {
	return c.emit(ctx, models.EventPrivateMessage, msg)
}

func (c *Channel) emit(ctx context.Context, event string, payload interface{}) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return errors.NewRealtimeError("emit "+event, fmt.Errorf("not connected"))
	}

	frame, err := c.codec.Encode(event, payload)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode event").
			WithContext("event", event)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return errors.NewRealtimeError("emit "+event, err)
	}
	return nil
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		close(done)
	}()

	for {
		typ, frame, err := conn.Read(ctx)
		if err != nil {
			c.logReadError(ctx, err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		packet, err := c.codec.Decode(frame)
		if err != nil {
			c.logger.WithError(err).Warn("Dropping malformed realtime frame")
			continue
		}
		if packet.Reply != nil {
			c.writeMu.Lock()
			err := conn.Write(ctx, websocket.MessageText, packet.Reply)
			c.writeMu.Unlock()
			if err != nil {
				c.logReadError(ctx, err)
				return
			}
		}
		if packet.Close {
			c.logger.Info("Realtime channel closed by server")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
		if packet.Event == models.EventReceiveMessage {
			c.dispatch(packet.Data)
		}
	}
}

func (c *Channel) dispatch(data json.RawMessage) {
	var msg models.IncomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.WithError(err).Warn("Dropping malformed receive-message payload")
		return
	}
	if msg.SenderID == "" {
		c.logger.Warn("Dropping receive-message without senderId")
		return
	}

	c.mu.RLock()
	handlers := make([]MessageHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.RUnlock()

	c.logger.WithField("sender", privacy.MaskID(msg.SenderID)).Debug("Received message")
	for _, h := range handlers {
		h(msg)
	}
}

func (c *Channel) logReadError(ctx context.Context, err error) {
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
		c.logger.WithField("status", status).Debug("Realtime channel closed")
		return
	}
	errors.Log(c.logger, errors.NewRealtimeError("read", err), "Realtime channel dropped")
}

// Close ends the session and waits for the read loop to exit.
func (c *Channel) Close() error {
	c.mu.RLock()
	conn := c.conn
	done := c.done
	c.mu.RUnlock()
	if conn == nil {
		<-done
		return nil
	}

	if goodbye := c.codec.Goodbye(); goodbye != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		c.writeMu.Lock()
		_ = conn.Write(ctx, websocket.MessageText, goodbye)
		c.writeMu.Unlock()
		cancel()
	}

	err := c.teardown(websocket.StatusNormalClosure, "")
	<-done
	return err
}

func (c *Channel) teardown(code websocket.StatusCode, reason string) error {
	c.mu.Lock()
	conn := c.conn
	cancel := c.cancel
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close(code, reason)
	if cancel != nil {
		cancel()
	}
	if err != nil && websocket.CloseStatus(err) == -1 {
		return errors.NewRealtimeError("close", err)
	}
	return nil
}

// Connected reports whether the read loop is running.
func (c *Channel) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Done is closed when the connection ends for any reason.
func (c *Channel) Done() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done
}
