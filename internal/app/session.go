package app

import (
	"context"
	"sync"

	"soulchat-agent/internal/domain/auth"
	authUsecase "soulchat-agent/internal/service/auth"

	"go.uber.org/zap"
)

type realtimeLink interface {
	Connect(ctx context.Context, token string) error
	SetToken(token string)
	Close()
}

type poller interface {
	StartPolling(ctx context.Context)
	StopPolling()
	Reset()
}

type sessionReader interface {
	Snapshot() auth.Snapshot
}

// sessionBridge follows the session: it connects the realtime singleton and
// starts the unread poller once authenticated, keeps the socket token current
// across refreshes and tears both down on sign-out.
type sessionBridge struct {
	ctx      context.Context
	sessions sessionReader
	realtime realtimeLink
	notify   poller
	logger   *zap.Logger

	wg sync.WaitGroup

	// dial serializes connect attempts; epoch moves on every Started or
	// Ended so an attempt can tell it belongs to a superseded session.
	dial  sync.Mutex
	mu    sync.Mutex
	epoch uint64
}

func newSessionBridge(ctx context.Context, sessions sessionReader, rt realtimeLink, notify poller, logger *zap.Logger) *sessionBridge {
	return &sessionBridge{
		ctx:      ctx,
		sessions: sessions,
		realtime: rt,
		notify:   notify,
		logger:   logger,
	}
}

func (b *sessionBridge) handle(_ context.Context, ev authUsecase.SessionEvent) {
	switch ev.Kind {
	case authUsecase.SessionStarted:
		epoch := b.advance()
		b.notify.StartPolling(b.ctx)
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.connect(epoch, ev.Snapshot.AccessToken)
		}()

	case authUsecase.SessionRefreshed:
		b.realtime.SetToken(ev.Snapshot.AccessToken)

	case authUsecase.SessionEnded:
		b.advance()
		b.realtime.Close()
		b.notify.StopPolling()
		b.notify.Reset()
	}
}

func (b *sessionBridge) advance() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.epoch++
	return b.epoch
}

func (b *sessionBridge) current(epoch uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.epoch == epoch
}

func (b *sessionBridge) connect(epoch uint64, token string) {
	b.dial.Lock()
	defer b.dial.Unlock()
	if !b.current(epoch) {
		return
	}
	if err := b.realtime.Connect(b.ctx, token); err != nil {
		b.logger.Warn("realtime connect failed", zap.Error(err))
		return
	}
	// The session may have ended or been replaced while the dial was in
	// flight; the socket carries the old token either way.
	if !b.current(epoch) {
		b.realtime.Close()
		return
	}
	snap := b.sessions.Snapshot()
	if !snap.Authenticated() {
		b.realtime.Close()
		return
	}
	b.realtime.SetToken(snap.AccessToken)
}

// wait blocks until in-flight connect attempts return.
func (b *sessionBridge) wait() {
	b.wg.Wait()
}
