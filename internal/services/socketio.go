package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// SocketIO is a minimal Socket.IO v5 client speaking Engine.IO v4 over a single websocket. It supports
// JSON events on the default namespace, which is all the Argus backend emits. Binary attachments,
// reconnection and polling transports are not supported.
//
// Handlers registered with On are invoked on the read goroutine, one at a time, in the order the
// server sent the events.
type SocketIO struct {
	endpoint string
	dialer   *websocket.Dialer

	handlersMu sync.RWMutex
	handlers   map[string][]func(json.RawMessage)

	connMu  sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	logger *slog.Logger
}

// ErrNotConnected is returned by Emit before Connect has completed the namespace handshake or after the
// connection has been closed.
var ErrNotConnected = errors.New("socket.io: not connected")

// ErrHeartbeatTimeout is returned by Connect when the server stops pinging within the interval and
// timeout it announced in the open packet.
var ErrHeartbeatTimeout = errors.New("socket.io: heartbeat timed out")

const (
	writeTimeout = 10 * time.Second
	// openTimeout bounds the wait for the open packet, before the server has announced its heartbeat.
	openTimeout = 20 * time.Second
)

// heartbeat keeps a read deadline on conn one ping interval plus one ping timeout ahead, so a silent
// server ends the read loop.
type heartbeat struct {
	conn   *websocket.Conn
	window time.Duration
}

func (h *heartbeat) reset(open openPayload) error {
	h.window = time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond
	return h.extend()
}

func (h *heartbeat) extend() error {
	if h.window <= 0 {
		return nil
	}
	return h.conn.SetReadDeadline(time.Now().Add(h.window))
}

// NewSocketIO creates a client for the Socket.IO server at baseURL. The base URL may use the http, https,
// ws or wss scheme; the engine path and query are appended automatically.
func NewSocketIO(baseURL string, logger *slog.Logger) (*SocketIO, error) {
	endpoint, err := socketIOEndpoint(baseURL)
	if err != nil {
		return nil, err
	}

	return &SocketIO{
		endpoint: endpoint,
		dialer:   websocket.DefaultDialer,
		handlers: make(map[string][]func(json.RawMessage)),
		logger:   logger.With(slog.String("module", "socketio")),
	}, nil
}

func socketIOEndpoint(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid backend url %q: %w", baseURL, err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported backend url scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/socket.io/"
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// On registers handler for the named event. "connect" fires once the namespace handshake completes and
// "disconnect" fires when the server closes the namespace or the connection is lost. Handlers must be
// registered before Connect.
func (s *SocketIO) On(event string, handler func(json.RawMessage)) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()

	s.handlers[event] = append(s.handlers[event], handler)
}

// Connect dials the server and serves the connection until ctx is cancelled, the server closes it, a
// read fails, or the server misses its heartbeat (ErrHeartbeatTimeout). ready is closed once the default
// namespace is connected and events may be emitted.
func (s *SocketIO) Connect(ctx context.Context, ready chan<- struct{}) error {
	conn, _, err := s.dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", s.endpoint, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// Unblocks ReadMessage below.
			_ = conn.Close()
		case <-done:
		}
	}()

	var readyOnce sync.Once
	markReady := func() {
		s.connMu.Lock()
		s.conn = conn
		s.connMu.Unlock()
		readyOnce.Do(func() { close(ready) })
	}
	defer func() {
		s.connMu.Lock()
		s.conn = nil
		s.connMu.Unlock()
	}()

	if err := conn.SetReadDeadline(time.Now().Add(openTimeout)); err != nil {
		return fmt.Errorf("failed to set read deadline: %w", err)
	}
	hb := &heartbeat{conn: conn}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.dispatch("disconnect", nil)
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return fmt.Errorf("%w: %w", ErrHeartbeatTimeout, err)
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		p, err := decodePacket(frame)
		if err != nil {
			s.logger.Warn("Dropping malformed packet",
				slog.String("frame", string(frame)),
				slog.String(errLoggerKey, err.Error()))
			continue
		}

		closed, err := s.handlePacket(conn, hb, p, markReady)
		if err != nil {
			return err
		}
		if closed {
			return nil
		}
	}
}

func (s *SocketIO) handlePacket(conn *websocket.Conn, hb *heartbeat, p packet, markReady func()) (bool, error) {
	switch p.EngineType {
	case eioOpen:
		var open openPayload
		if err := json.Unmarshal(p.Data, &open); err != nil {
			return false, fmt.Errorf("failed to unmarshal open packet: %w", err)
		}
		s.logger.Debug("Engine opened",
			slog.String("sid", open.SID),
			slog.Int("pingInterval", open.PingInterval),
			slog.Int("pingTimeout", open.PingTimeout))
		if err := hb.reset(open); err != nil {
			return false, fmt.Errorf("failed to set read deadline: %w", err)
		}
		return false, s.write(conn, encodeConnect())
	case eioPing:
		if err := hb.extend(); err != nil {
			return false, fmt.Errorf("failed to set read deadline: %w", err)
		}
		return false, s.write(conn, encodePong())
	case eioClose:
		s.dispatch("disconnect", nil)
		return true, nil
	case eioMessage:
	default:
		return false, nil
	}

	if p.Namespace != "/" {
		s.logger.Debug("Ignoring packet for foreign namespace", slog.String("namespace", p.Namespace))
		return false, nil
	}

	switch p.SocketType {
	case sioConnect:
		markReady()
		s.dispatch("connect", p.Data)
	case sioDisconnect:
		s.dispatch("disconnect", nil)
		return true, nil
	case sioConnectError:
		return false, fmt.Errorf("namespace connection refused: %s", string(p.Data))
	case sioEvent:
		s.dispatch(p.Event, p.Data)
	case sioBinaryEvent, sioBinaryAck:
		s.logger.Warn("Binary packets are not supported", slog.String("event", p.Event))
	case sioAck:
	}
	return false, nil
}

func (s *SocketIO) dispatch(event string, data json.RawMessage) {
	s.handlersMu.RLock()
	handlers := s.handlers[event]
	s.handlersMu.RUnlock()

	if len(handlers) == 0 {
		s.logger.Debug("Unhandled event", slog.String("event", event))
		return
	}
	for _, h := range handlers {
		h(data)
	}
}

// Emit sends a named event with payload. A nil payload sends the event without arguments.
func (s *SocketIO) Emit(ctx context.Context, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	frame, err := encodeEvent(event, payload)
	if err != nil {
		return err
	}

	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	if err := s.write(conn, frame); err != nil {
		return fmt.Errorf("failed to emit %s: %w", event, err)
	}
	return nil
}

func (s *SocketIO) write(conn *websocket.Conn, frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// Close politely leaves the namespace and closes the connection, which makes Connect return.
func (s *SocketIO) Close() error {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()
	if conn == nil {
		return nil
	}

	// The server may already be gone; closing the socket is what matters.
	_ = s.write(conn, []byte{eioMessage, sioDisconnect})
	_ = s.write(conn, []byte{eioClose})
	return conn.Close()
}
