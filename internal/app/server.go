// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"soulchat-agent/internal/api"
	"soulchat-agent/internal/config"
	"soulchat-agent/internal/db"
	"soulchat-agent/internal/domain/auth"
	authHandler "soulchat-agent/internal/handlers/auth"
	notifyH "soulchat-agent/internal/handlers/notification"
	wsHandler "soulchat-agent/internal/handlers/websocket"
	"soulchat-agent/internal/middleware"
	"soulchat-agent/internal/pkg/session"
	"soulchat-agent/internal/realtime"
	rtHandlers "soulchat-agent/internal/realtime/handler"
	"soulchat-agent/internal/repository/postgres"
	authUsecase "soulchat-agent/internal/service/auth"
	notifyUsecase "soulchat-agent/internal/service/notification"
	"soulchat-agent/internal/state"
	"soulchat-agent/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	http   *http.Server
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	manager  *authUsecase.Manager
	realtime *realtime.Service
	notify   *notifyUsecase.NotificationService
	bridge   *sessionBridge
	closers  []func()
}

func NewServer(cfg config.AppConfig) (*Server, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{cfg: cfg, engine: gin.New(), logger: logger}, nil
}

// realtimeAdapter drops the connection handle the bridge has no use for.
type realtimeAdapter struct {
	*realtime.Service
}

func (a realtimeAdapter) Connect(ctx context.Context, token string) error {
	_, err := a.Service.Connect(ctx, token)
	return err
}

// Setup builds every component, restores the session and registers routes.
func (s *Server) Setup() error {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	ctx := s.ctx
	logger := s.logger

	// ----- Token Store -----
	kv, err := s.openStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}
	tokens := session.NewTokenStore(kv)

	deviceID, err := tokens.DeviceID(ctx)
	if err != nil {
		logger.Warn("failed to load device id", zap.Error(err))
	}

	// ----- Backend client -----
	apiClient := api.New(s.cfg.APIBaseURL, tokens, logger.Named("api"), api.WithDeviceID(deviceID))

	// ----- State + local hub -----
	st := state.NewStore()
	hub := websocket.NewHub(st, logger.Named("hub"))
	go hub.Run(ctx)

	// ----- Token lifecycle -----
	var provider authUsecase.FederatedProvider
	if s.cfg.FederatedProvider != "" && s.cfg.FederatedIDToken != "" {
		provider = authUsecase.NewStaticProvider(s.cfg.FederatedProvider, s.cfg.FederatedIDToken)
	}
	s.manager = authUsecase.NewManager(apiClient, tokens, provider, hub, st, logger.Named("auth"), authUsecase.Options{
		TokenTTL:         s.cfg.TokenTTL,
		RefreshMargin:    s.cfg.RefreshMargin,
		ExpiryFromClaims: s.cfg.TokenExpirySource == "claims",
	})

	// ----- Realtime + reconciliation -----
	header := http.Header{}
	if deviceID != "" {
		header.Set("X-Device-Id", deviceID)
	}
	s.realtime = realtime.NewService(realtime.Config{
		URL:               s.cfg.RealtimeURL,
		ReconnectAttempts: s.cfg.ReconnectAttempts,
		ReconnectBackoff:  s.cfg.ReconnectBackoff,
		Header:            header,
	}, logger.Named("realtime"))

	s.notify = notifyUsecase.NewNotificationService(apiClient, st, hub, logger.Named("notifications"), s.cfg.RecentCap, s.cfg.PollInterval)
	s.realtime.RegisterHandler(rtHandlers.NewNotificationHandler(s.notify, hub, logger.Named("realtime")))

	s.bridge = newSessionBridge(ctx, s.manager, realtimeAdapter{s.realtime}, s.notify, logger)
	s.manager.AddListener(s.bridge.handle)

	status := s.manager.Initialize(ctx)
	logger.Info("session restored", zap.String("status", string(status)))
	s.headlessSignIn(ctx)

	// ----- Handlers -----
	handlers := &Handlers{
		AuthHandler:    authHandler.NewAuthHandler(s.manager, logger),
		NotifHandler:   notifyH.NewNotificationHandler(s.notify),
		WSHandler:      wsHandler.NewWebSocketHandler(hub, logger),
		AuthMiddleware: middleware.NewAuthMiddleware(s.manager),
	}

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.RequestIDMiddleware(),
		middleware.LoggingMiddleware(logger),
	)
	SetupRouter(s.engine, handlers)

	s.http = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Start serves the consumer API until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("agent listening", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// headlessSignIn signs in from configured credentials when no session was
// restored.
func (s *Server) headlessSignIn(ctx context.Context) {
	if s.manager.Snapshot().Authenticated() {
		return
	}
	var err error
	switch {
	case s.cfg.AuthEmail != "":
		_, err = s.manager.SignIn(ctx, auth.Credentials{Email: s.cfg.AuthEmail, Password: s.cfg.AuthPassword})
	case s.cfg.FederatedProvider != "" && s.cfg.FederatedIDToken != "":
		_, err = s.manager.SignInWithFederatedProvider(ctx)
	default:
		return
	}
	if err != nil {
		s.logger.Warn("headless sign in failed", zap.Error(err))
	}
}

// openStore builds the key-value backend selected by STORE_DRIVER.
func (s *Server) openStore(ctx context.Context) (session.KeyValueStore, error) {
	switch s.cfg.StoreDriver {
	case "memory":
		return session.NewMemoryStore(), nil

	case "redis":
		client, err := db.NewRedisClient(db.RedisConfig{
			Address:  s.cfg.RedisAddr,
			Password: s.cfg.RedisPass,
			DB:       s.cfg.RedisDB,
			PoolSize: 4,
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { client.Close() })
		s.logger.Info("token store: redis", zap.String("addr", s.cfg.RedisAddr))
		return session.NewRedisStore(client, s.cfg.RedisPrefix), nil

	case "postgres":
		pool, err := postgres.Connect(ctx, s.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		repo := postgres.NewKVRepository(pool, "")
		if err := repo.Migrate(ctx); err != nil {
			return nil, err
		}
		s.logger.Info("token store: postgres")
		return repo, nil

	default:
		s.logger.Info("token store: file", zap.String("path", s.cfg.StorePath), zap.Bool("encrypted", s.cfg.StorePassphrase != ""))
		return session.NewFileStore(s.cfg.StorePath, s.cfg.StorePassphrase)
	}
}

// Shutdown stops the HTTP server first, then the session machinery, then the
// store connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	if s.manager != nil {
		s.manager.Close()
	}
	if s.notify != nil {
		s.notify.StopPolling()
	}
	if s.realtime != nil {
		s.realtime.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.bridge != nil {
		s.bridge.wait()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.logger.Sync()
	return err
}
