// Package realtime owns the process-wide push connection to the backend.
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	wstypes "soulchat-agent/internal/domain/websocket"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config controls dialing and the reconnect policy.
type Config struct {
	URL               string
	ReconnectAttempts int
	ReconnectBackoff  time.Duration
	DialTimeout       time.Duration
	Header            http.Header
}

const (
	defaultReconnectAttempts = 5
	defaultReconnectBackoff  = 2 * time.Second
	defaultDialTimeout       = 10 * time.Second
)

// Service hands out the single live Connection. Connections outlive the
// callers that asked for them; only Close (sign-out or shutdown) ends one.
type Service struct {
	cfg      Config
	dialer   *websocket.Dialer
	registry *HandlerRegistry
	logger   *zap.Logger

	mu      sync.Mutex
	conn    *Connection
	dialing chan struct{}
}

func NewService(cfg Config, logger *zap.Logger) *Service {
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = defaultReconnectAttempts
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = defaultReconnectBackoff
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
		registry: NewHandlerRegistry(),
		logger:   logger,
	}
}

// RegisterHandler subscribes h to the events it supports. Handlers apply to
// the current and every later connection.
func (s *Service) RegisterHandler(h Handler) {
	s.registry.Register(h)
}

// Connect returns the live connection, dialing one if none is connected.
// Concurrent callers share a single dial.
func (s *Service) Connect(ctx context.Context, token string) (*Connection, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	if s.cfg.URL == "" {
		return nil, ErrNoURL
	}

	for {
		s.mu.Lock()
		if s.conn != nil && s.conn.Connected() {
			conn := s.conn
			s.mu.Unlock()
			return conn, nil
		}
		if wait := s.dialing; wait != nil {
			s.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		done := make(chan struct{})
		s.dialing = done
		stale := s.conn
		s.conn = nil
		s.mu.Unlock()

		if stale != nil {
			stale.Close()
		}

		conn := newConnection(s, token)
		err := conn.open(ctx)

		s.mu.Lock()
		s.dialing = nil
		if err == nil {
			s.conn = conn
		}
		s.mu.Unlock()
		close(done)

		if err != nil {
			s.logger.Warn("realtime connect failed", zap.Error(err))
			return nil, err
		}
		return conn, nil
	}
}

// Current returns the singleton connection, connected or not.
func (s *Service) Current() *Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Connected reports whether the singleton is currently connected.
func (s *Service) Connected() bool {
	conn := s.Current()
	return conn != nil && conn.Connected()
}

// SetToken replaces the token used by future reconnect attempts.
func (s *Service) SetToken(token string) {
	if conn := s.Current(); conn != nil {
		conn.setToken(token)
	}
}

// Close tears down the singleton. A later Connect dials afresh.
func (s *Service) Close() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
		s.logger.Info("realtime connection closed")
	}
}

func (s *Service) dispatch(ctx context.Context, msg *wstypes.WSMessage) {
	handlers := s.registry.GetHandlers(msg.Type)
	if len(handlers) == 0 {
		s.logger.Debug("no handler for realtime event", zap.String("type", string(msg.Type)))
		return
	}
	for _, h := range handlers {
		if err := h.HandleEvent(ctx, msg); err != nil {
			s.logger.Warn("realtime handler failed",
				zap.String("type", string(msg.Type)),
				zap.Error(err),
			)
		}
	}
}
