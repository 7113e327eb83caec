package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	wstypes "soulchat-agent/internal/domain/websocket"
	xerrors "soulchat-agent/internal/pkg/errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512KB
)

// Connection is one logical push connection. It survives transport drops by
// redialing in place, so holders of the handle never need to swap it.
type Connection struct {
	svc    *Service
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	ws        *websocket.Conn
	token     string
	connected bool
	closed    bool

	writeMu sync.Mutex
}

func newConnection(svc *Service, token string) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		svc:    svc,
		ctx:    ctx,
		cancel: cancel,
		token:  token,
	}
}

// Connected reports whether the transport is currently up.
func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close ends the connection for good; no reconnect follows.
func (c *Connection) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.connected = false
	ws := c.ws
	c.mu.Unlock()

	c.cancel()
	if ws != nil {
		c.writeMu.Lock()
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"))
		c.writeMu.Unlock()
		ws.Close()
	}
}

func (c *Connection) setToken(token string) {
	if token == "" {
		return
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// open performs the first dial and starts the read loop.
func (c *Connection) open(ctx context.Context) error {
	ws, err := c.dial(ctx)
	if err != nil {
		c.cancel()
		return err
	}
	if !c.attach(ws) {
		ws.Close()
		return ErrClosed
	}
	c.emit(wstypes.EventTypeConnect, wstypes.ConnectionData{})
	go c.run(ws)
	return nil
}

// dial opens the socket and sends the auth handshake.
func (c *Connection) dial(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.svc.cfg.DialTimeout)
	defer cancel()

	header := http.Header{}
	for k, v := range c.svc.cfg.Header {
		header[k] = v
	}
	header.Set("Authorization", "Bearer "+token)

	ws, resp, err := c.svc.dialer.DialContext(dialCtx, c.svc.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial returned %d: %w", xerrors.ErrConnectionDown, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %w", xerrors.ErrConnectionDown, err)
	}

	ws.SetReadLimit(maxMessageSize)
	data, err := wstypes.NewMessage(wstypes.EventTypeAuth, wstypes.AuthData{Token: token}).ToJSON()
	if err == nil {
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		err = ws.WriteMessage(websocket.TextMessage, data)
	}
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	return ws, nil
}

func (c *Connection) attach(ws *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.ws = ws
	c.connected = true
	return true
}

func (c *Connection) detach() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

// run reads until the transport drops, then redials with a fixed backoff.
// When the attempts run out the connection stays down until the next Connect.
func (c *Connection) run(ws *websocket.Conn) {
	for {
		err := c.readLoop(ws)
		c.detach()
		if c.isClosed() {
			return
		}
		c.svc.logger.Warn("realtime connection dropped", zap.Error(err))
		c.emit(wstypes.EventTypeDisconnect, wstypes.ConnectionData{Reason: reason(err)})

		ws = c.reconnect()
		if ws == nil {
			return
		}
	}
}

func (c *Connection) reconnect() *websocket.Conn {
	cfg := c.svc.cfg
	for attempt := 1; attempt <= cfg.ReconnectAttempts; attempt++ {
		select {
		case <-c.ctx.Done():
			return nil
		case <-time.After(cfg.ReconnectBackoff):
		}

		ws, err := c.dial(c.ctx)
		if err != nil {
			c.svc.logger.Info("realtime reconnect attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}
		if !c.attach(ws) {
			ws.Close()
			return nil
		}
		c.svc.logger.Info("realtime reconnected", zap.Int("attempt", attempt))
		c.emit(wstypes.EventTypeConnect, wstypes.ConnectionData{Attempt: attempt})
		return ws
	}

	if c.isClosed() {
		return nil
	}
	c.svc.logger.Warn("realtime reconnect exhausted", zap.Int("attempts", cfg.ReconnectAttempts))
	c.emit(wstypes.EventTypeReconnectFailed, wstypes.ConnectionData{
		Reason:  xerrors.ErrConnectionDown.Error(),
		Attempt: cfg.ReconnectAttempts,
	})
	return nil
}

func (c *Connection) readLoop(ws *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go c.keepalive(ws, stop)

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			ws.Close()
			return err
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))

		msg, err := wstypes.ParseMessage(data)
		if err != nil || msg.Type == "" {
			c.svc.logger.Debug("dropping malformed realtime frame", zap.Error(err))
			continue
		}
		c.svc.dispatch(c.ctx, msg)
	}
}

func (c *Connection) keepalive(ws *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := ws.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Connection) emit(t wstypes.EventType, data wstypes.ConnectionData) {
	c.svc.dispatch(c.ctx, wstypes.NewMessage(t, data))
}

func reason(err error) string {
	if err == nil {
		return ""
	}
	if ce, ok := err.(*websocket.CloseError); ok {
		return fmt.Sprintf("closed (%d)", ce.Code)
	}
	return err.Error()
}
