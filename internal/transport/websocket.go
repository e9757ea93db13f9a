package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// wsDialer implements Dialer over gorilla/websocket.
type wsDialer struct {
	cfg    Config
	logger *slog.Logger
}

// NewDialer creates a WebSocket dialer.
func NewDialer(cfg Config, logger *slog.Logger) Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = DefaultConfig().HandshakeTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}

	return &wsDialer{cfg: cfg, logger: logger}
}

// Dial starts connecting in the background and returns the handle immediately.
func (d *wsDialer) Dial(url string, cb Callbacks) Handle {
	ctx, cancel := context.WithCancel(context.Background())

	h := &wsHandle{
		url:    url,
		cfg:    d.cfg,
		cb:     cb,
		logger: d.logger.With("url", url),
		cancel: cancel,
	}
	h.state.Store(int32(StateConnecting))

	go h.run(ctx)

	return h
}

// wsHandle implements Handle.
type wsHandle struct {
	url    string
	cfg    Config
	cb     Callbacks
	logger *slog.Logger
	cancel context.CancelFunc

	state atomic.Int32

	// Write serialization
	writeMu sync.Mutex

	mu        sync.Mutex
	conn      *websocket.Conn
	closed    bool // Close called by the owner
	closeOnce sync.Once
}

func (h *wsHandle) URL() string { return h.url }

func (h *wsHandle) ReadyState() ReadyState {
	return ReadyState(h.state.Load())
}

// run dials, reports open, then reads until the connection fails.
func (h *wsHandle) run(ctx context.Context) {
	header := http.Header{}
	if h.cfg.UserAgent != "" {
		header.Set("User-Agent", h.cfg.UserAgent)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: h.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, h.url, header)
	if err != nil {
		h.state.Store(int32(StateClosed))
		if h.ownerClosed() {
			return
		}
		h.logger.Debug("dial failed", "error", err)
		h.emitError(&TransportError{URL: h.url, Op: "dial", Err: err})
		h.emitClose(CloseInfo{Code: websocket.CloseAbnormalClosure})
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.conn = conn
	h.state.Store(int32(StateOpen))
	h.mu.Unlock()

	h.logger.Debug("websocket connected")
	if h.cb.Open != nil {
		h.cb.Open()
	}

	h.readLoop(conn)
}

// readLoop delivers text frames until a read fails.
func (h *wsHandle) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			h.state.Store(int32(StateClosed))
			if h.ownerClosed() {
				return
			}

			info := CloseInfo{Code: websocket.CloseAbnormalClosure}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				info = CloseInfo{Code: closeErr.Code, Reason: closeErr.Text}
			}

			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.emitError(&TransportError{URL: h.url, Op: "read", Err: err})
			}
			h.emitClose(info)
			return
		}

		if msgType != websocket.TextMessage {
			h.logger.Warn("ignoring non-text frame", "type", msgType, "bytes", len(data))
			continue
		}

		if h.ownerClosed() {
			return
		}
		if h.cb.Message != nil {
			h.cb.Message(data, receivedAt)
		}
	}
}

// Send writes a text frame.
func (h *wsHandle) Send(data []byte) error {
	if h.ReadyState() != StateOpen {
		return ErrNotOpen
	}

	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn == nil {
		return ErrNotOpen
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close gracefully closes the connection and silences all callbacks.
func (h *wsHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conn := h.conn
	h.mu.Unlock()

	// Abort an in-progress handshake
	h.cancel()

	if conn == nil {
		h.state.Store(int32(StateClosed))
		return nil
	}

	h.state.Store(int32(StateClosing))

	// Send close message
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)

	err := conn.Close()
	h.state.Store(int32(StateClosed))
	return err
}

func (h *wsHandle) ownerClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *wsHandle) emitError(err error) {
	if h.cb.Error != nil {
		h.cb.Error(err)
	}
}

func (h *wsHandle) emitClose(info CloseInfo) {
	h.closeOnce.Do(func() {
		if h.cb.Close != nil {
			h.cb.Close(info)
		}
	})
}
