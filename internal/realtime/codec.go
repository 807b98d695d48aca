// Package realtime is the client side of the chat backend's event channel.
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"wechat/internal/constants"

	"github.com/coder/websocket"
)

// Packet is one decoded inbound frame.
type Packet struct {
	// Event and Data are set for application events
	Event string
	Data  json.RawMessage
	// Reply is a control frame to write back, such as a pong
	Reply []byte
	// Close reports that the server ended the session
	Close bool
}

// Codec frames events on the websocket. Implementations are stateless.
type Codec interface {
	Name() string
	// Endpoint derives the websocket URL from the configured base URL
	Endpoint(base string) (string, error)
	// Handshake runs after dial and before any event is emitted
	Handshake(ctx context.Context, conn *websocket.Conn) error
	Encode(event string, payload interface{}) ([]byte, error)
	Decode(frame []byte) (Packet, error)
	// Goodbye is written before a normal close, if non-nil
	Goodbye() []byte
}

// NewCodec returns the codec for a configured protocol name.
func NewCodec(protocol string) (Codec, error) {
	switch protocol {
	case "", constants.RealtimeProtocolSocketIO:
		return SocketIOCodec{}, nil
	case constants.RealtimeProtocolJSON:
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported realtime protocol %q", protocol)
	}
}

func websocketURL(base, defaultPath string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid realtime URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported realtime URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("realtime URL has no host")
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = defaultPath
	}
	return u, nil
}

// Engine.IO v4 packet types, and the Socket.IO packet types carried in
// Engine.IO message packets.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'

	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

// SocketIOCodec speaks Socket.IO v5 over an Engine.IO v4 websocket transport,
// default namespace only.
type SocketIOCodec struct{}

func (SocketIOCodec) Name() string { return constants.RealtimeProtocolSocketIO }

func (SocketIOCodec) Endpoint(base string) (string, error) {
	u, err := websocketURL(base, constants.DefaultSocketIOPath)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Handshake waits for the Engine.IO open packet, connects to the default
// namespace and waits for the server to acknowledge it.
func (c SocketIOCodec) Handshake(ctx context.Context, conn *websocket.Conn) error {
	frame, err := readText(ctx, conn)
	if err != nil {
		return fmt.Errorf("waiting for open packet: %w", err)
	}
	if len(frame) == 0 || frame[0] != eioOpen {
		return fmt.Errorf("unexpected first packet %q", truncate(frame))
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte{eioMessage, sioConnect}); err != nil {
		return fmt.Errorf("sending connect: %w", err)
	}

	for {
		frame, err := readText(ctx, conn)
		if err != nil {
			return fmt.Errorf("waiting for connect ack: %w", err)
		}
		switch {
		case len(frame) == 1 && frame[0] == eioPing:
			if err := conn.Write(ctx, websocket.MessageText, []byte{eioPong}); err != nil {
				return fmt.Errorf("sending pong: %w", err)
			}
		case len(frame) >= 2 && frame[0] == eioMessage && frame[1] == sioConnect:
			return nil
		case len(frame) >= 2 && frame[0] == eioMessage && frame[1] == sioConnectError:
			return fmt.Errorf("namespace connect refused: %s", frame[2:])
		default:
			return fmt.Errorf("unexpected packet during handshake %q", truncate(frame))
		}
	}
}

func (SocketIOCodec) Encode(event string, payload interface{}) ([]byte, error) {
	args, err := json.Marshal([]interface{}{event, payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", event, err)
	}
	return append([]byte{eioMessage, sioEvent}, args...), nil
}

func (SocketIOCodec) Decode(frame []byte) (Packet, error) {
	if len(frame) == 0 {
		return Packet{}, fmt.Errorf("empty packet")
	}

	switch frame[0] {
	case eioPing:
		return Packet{Reply: append([]byte{eioPong}, frame[1:]...)}, nil
	case eioPong, eioOpen:
		return Packet{}, nil
	case eioClose:
		return Packet{Close: true}, nil
	case eioMessage:
	default:
		return Packet{}, fmt.Errorf("unknown engine.io packet type %q", frame[0])
	}

	if len(frame) < 2 {
		return Packet{}, fmt.Errorf("truncated socket.io packet")
	}
	switch frame[1] {
	case sioDisconnect:
		return Packet{Close: true}, nil
	case sioConnect:
		return Packet{}, nil
	case sioEvent:
	default:
		// Acks and binary events are not used by the chat backend
		return Packet{}, nil
	}

	body := frame[2:]
	// Skip an optional namespace ("/chat,") and ack id
	if len(body) > 0 && body[0] == '/' {
		if i := bytes.IndexByte(body, ','); i >= 0 {
			body = body[i+1:]
		}
	}
	body = bytes.TrimLeft(body, "0123456789")

	var args []json.RawMessage
	if err := json.Unmarshal(body, &args); err != nil {
		return Packet{}, fmt.Errorf("invalid event payload: %w", err)
	}
	if len(args) == 0 {
		return Packet{}, fmt.Errorf("event without name")
	}

	var event string
	if err := json.Unmarshal(args[0], &event); err != nil {
		return Packet{}, fmt.Errorf("invalid event name: %w", err)
	}
	packet := Packet{Event: event}
	if len(args) > 1 {
		packet.Data = args[1]
	}
	return packet, nil
}

func (SocketIOCodec) Goodbye() []byte {
	return []byte{eioMessage, sioDisconnect}
}

// JSONCodec frames each event as {"event": name, "data": payload}.
type JSONCodec struct{}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func (JSONCodec) Name() string { return constants.RealtimeProtocolJSON }

func (JSONCodec) Endpoint(base string) (string, error) {
	u, err := websocketURL(base, constants.DefaultJSONSocketPath)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (JSONCodec) Handshake(ctx context.Context, conn *websocket.Conn) error {
	return nil
}

func (JSONCodec) Encode(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", event, err)
	}
	return json.Marshal(envelope{Event: event, Data: data})
}

func (JSONCodec) Decode(frame []byte) (Packet, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Packet{}, fmt.Errorf("invalid envelope: %w", err)
	}
	if strings.TrimSpace(env.Event) == "" {
		return Packet{}, fmt.Errorf("envelope without event")
	}
	return Packet{Event: env.Event, Data: env.Data}, nil
}

func (JSONCodec) Goodbye() []byte { return nil }

func readText(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return nil, err
		}
		if typ == websocket.MessageText {
			return data, nil
		}
	}
}

func truncate(b []byte) string {
	const max = 64
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
