package bybit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"crypto_scalper/internal/domain"
	"crypto_scalper/internal/event"

	"github.com/gorilla/websocket"
)

// Publisher hands an event to the decision loop. It blocks so that events
// from one stream keep their arrival order.
type Publisher func(ctx context.Context, ev event.Event) error

// ConnectionObserver is told about stream health. Optional.
type ConnectionObserver interface {
	IncrementConnections()
	DecrementConnections()
	RecordStreamError(stream string)
}

// stream is one reconnecting WebSocket connection. Workers supply the
// subscription and message handling.
type stream struct {
	name     string
	url      string
	onOpen   func() error
	onData   func(ctx context.Context, msg wsMessage)
	observer ConnectionObserver

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

var _ domain.ExchangeWorker = (*stream)(nil)

// Connect starts the WebSocket connection with automatic reconnection
func (s *stream) Connect(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.connectionLoop(ctx)

	return nil
}

// connectionLoop handles connection and reconnection with exponential backoff
func (s *stream) connectionLoop(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Bybit stream panic recovered", slog.String("stream", s.name), slog.Any("panic", r))
		}
	}()

	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("Bybit connection loop stopped", slog.String("stream", s.name))
			return
		default:
		}

		if err := s.connect(ctx); err != nil {
			s.recordError()
			if !domain.IsRetriable(err) {
				slog.Error("🛑 Bybit stream stopped, error is not retriable",
					slog.String("stream", s.name),
					slog.Any("error", err),
				)
				return
			}
			slog.Warn("Bybit connection failed",
				slog.String("stream", s.name),
				slog.Any("error", err),
				slog.Int("retry", retryCount),
			)

			delay := calculateBackoff(retryCount)
			retryCount++
			if retryCount > maxRetries {
				slog.Error("Bybit max retries exceeded, resetting counter", slog.String("stream", s.name))
				retryCount = 0
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		// Connection successful, reset retry counter
		retryCount = 0

		connCtx, connCancel := context.WithCancel(ctx)
		go s.pingLoop(connCtx)
		s.readLoop(connCtx)
		connCancel()
	}
}

// connect establishes the WebSocket connection and runs the open hook
func (s *stream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, resp, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err)
		// 잘못된 URL이나 4xx 핸드셰이크 거절은 재시도해도 소용없음
		if isFatalDial(err, resp) {
			return domain.NewFatalNetworkError("dial "+s.name, wrapped)
		}
		return domain.NewNetworkError("dial "+s.name, wrapped)
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	if s.observer != nil {
		s.observer.IncrementConnections()
	}

	if s.onOpen != nil {
		if err := s.onOpen(); err != nil {
			s.closeConnection()
			return domain.NewNetworkError("subscribe "+s.name, err)
		}
	}

	slog.Info("Bybit WebSocket connected", slog.String("stream", s.name))
	return nil
}

func isFatalDial(err error, resp *http.Response) bool {
	if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
		code := resp.StatusCode
		return code >= 400 && code < 500 && code != http.StatusTooManyRequests
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return strings.Contains(err.Error(), "malformed ws or wss URL")
}

func (s *stream) writeJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.threadSafeWrite(websocket.TextMessage, b)
}

// threadSafeWrite sends a message to the WebSocket connection in a thread-safe manner
func (s *stream) threadSafeWrite(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("connection is nil")
	}

	return conn.WriteMessage(messageType, data)
}

// pingLoop keeps the connection alive with application-level pings.
func (s *stream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.writeJSON(wsRequest{Op: "ping"}); err != nil {
				slog.Debug("Bybit ping failed", slog.String("stream", s.name), slog.Any("error", err))
				return
			}
		}
	}
}

// readLoop reads messages from WebSocket
func (s *stream) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.closeConnection()
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Bybit WebSocket read error", slog.String("stream", s.name), slog.Any("error", err))
				s.recordError()
			}
			s.closeConnection()
			return
		}

		s.handleMessage(ctx, message)
	}
}

func (s *stream) handleMessage(ctx context.Context, message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		slog.Debug("Bybit message parse error", slog.String("stream", s.name), slog.Any("error", err))
		s.recordError()
		return
	}

	if msg.Op != "" {
		s.handleOp(msg)
		return
	}
	if msg.Topic != "" && s.onData != nil {
		s.onData(ctx, msg)
	}
}

// handleOp processes operation acks. A failed auth or subscription drops the
// connection so the loop retries.
func (s *stream) handleOp(msg wsMessage) {
	switch msg.Op {
	case "ping", "pong":
		return
	case "auth", "subscribe":
		if msg.Success != nil && !*msg.Success {
			slog.Error("Bybit operation rejected",
				slog.String("stream", s.name),
				slog.String("op", msg.Op),
				slog.String("ret_msg", msg.RetMsg),
			)
			s.recordError()
			s.closeConnection()
			return
		}
		slog.Debug("Bybit operation acknowledged", slog.String("stream", s.name), slog.String("op", msg.Op))
	}
}

func (s *stream) recordError() {
	if s.observer != nil {
		s.observer.RecordStreamError(s.name)
	}
}

// closeConnection safely closes the WebSocket connection
func (s *stream) closeConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
		if s.observer != nil && s.connected {
			s.observer.DecrementConnections()
		}
	}
	s.connected = false
}

// Disconnect closes the WebSocket connection
func (s *stream) Disconnect() {
	if s.cancel != nil {
		s.cancel()
	}
	s.closeConnection()
	s.wg.Wait()
	slog.Info("Bybit WebSocket disconnected", slog.String("stream", s.name))
}

// IsConnected returns connection status
func (s *stream) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}
