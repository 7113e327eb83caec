// Package auth keeps the client authenticated: it owns the session, persists it
// through the token store and refreshes the access token ahead of expiry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"soulchat-agent/internal/domain/auth"
	"soulchat-agent/internal/domain/websocket"
	xerrors "soulchat-agent/internal/pkg/errors"
	"soulchat-agent/internal/pkg/jwt"
	"soulchat-agent/internal/state"

	"go.uber.org/zap"
)

// API is the slice of the backend client the manager needs.
type API interface {
	SignIn(ctx context.Context, creds auth.Credentials) (*auth.TokenData, error)
	SignUp(ctx context.Context, req auth.SignUpRequest) (*auth.TokenData, error)
	FederatedSignIn(ctx context.Context, req auth.FederatedRequest) (*auth.TokenData, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenData, error)
	VerifyEmail(ctx context.Context, token string) error
}

// TokenStore persists the session. session.TokenStore implements it.
type TokenStore interface {
	Load(ctx context.Context) (*auth.Session, error)
	Save(ctx context.Context, sess *auth.Session) error
	RefreshToken(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// FederatedProvider is an external identity provider session.
type FederatedProvider interface {
	Name() string
	IDToken(ctx context.Context) (string, error)
	Revoke(ctx context.Context) error
}

// Notifier shows transient messages to the user.
type Notifier interface {
	Toast(level websocket.ToastLevel, message string)
}

// SessionEventKind tells listeners what happened to the session.
type SessionEventKind string

const (
	SessionStarted   SessionEventKind = "started"
	SessionRefreshed SessionEventKind = "refreshed"
	SessionEnded     SessionEventKind = "ended"
)

// SessionEvent is delivered to listeners after the change is committed.
type SessionEvent struct {
	Kind     SessionEventKind
	Snapshot auth.Snapshot
}

// Listener is called synchronously, outside the manager lock, in the order
// the changes were committed.
type Listener func(ctx context.Context, ev SessionEvent)

// Options tune expiry and scheduling. A zero TTL or timeout and a negative
// margin fall back to defaults.
type Options struct {
	TokenTTL         time.Duration
	RefreshMargin    time.Duration
	ExpiryFromClaims bool
	RefreshTimeout   time.Duration
	Now              func() time.Time
	AfterFunc        AfterFunc
}

const (
	DefaultTokenTTL       = 24 * time.Hour
	DefaultRefreshMargin  = 5 * time.Minute
	defaultRefreshTimeout = 30 * time.Second
)

type refreshCall struct {
	done chan struct{}
	err  error
}

type Manager struct {
	api      API
	store    TokenStore
	provider FederatedProvider
	notifier Notifier
	state    *state.Store
	logger   *zap.Logger
	opts     Options
	schedule *RefreshSchedule

	mu         sync.Mutex
	status     auth.Status
	session    *auth.Session
	federated  bool
	generation uint64
	inflight   *refreshCall
	listeners  []Listener
	initOnce   sync.Once
}

func NewManager(
	api API,
	store TokenStore,
	provider FederatedProvider,
	notifier Notifier,
	st *state.Store,
	logger *zap.Logger,
	opts Options,
) *Manager {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	if opts.RefreshMargin < 0 {
		opts.RefreshMargin = DefaultRefreshMargin
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = defaultRefreshTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		api:      api,
		store:    store,
		provider: provider,
		notifier: notifier,
		state:    st,
		logger:   logger,
		opts:     opts,
		schedule: NewRefreshSchedule(opts.AfterFunc),
		status:   auth.StatusLoading,
	}
}

// AddListener registers fn for session events.
func (m *Manager) AddListener(fn Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Snapshot returns the current session view.
func (m *Manager) Snapshot() auth.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Snapshot(m.status)
}

func (m *Manager) Status() auth.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// NextRefresh reports when the pending refresh fires.
func (m *Manager) NextRefresh() (time.Time, bool) {
	return m.schedule.Pending()
}

// ========== Startup ==========

// Initialize restores a persisted session. An expired session gets exactly one
// synchronous refresh before the status settles. Later calls are no-ops.
func (m *Manager) Initialize(ctx context.Context) auth.Status {
	m.initOnce.Do(func() { m.initialize(ctx) })
	return m.Status()
}

func (m *Manager) initialize(ctx context.Context) {
	sess, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn("failed to load persisted session", zap.Error(err))
	}
	if sess == nil {
		m.mu.Lock()
		m.status = auth.StatusUnauthenticated
		snap := m.session.Snapshot(m.status)
		m.mu.Unlock()
		m.publish(snap)
		return
	}

	now := m.opts.Now()
	if !sess.ExpiresAt.After(now) {
		m.logger.Info("persisted session expired, refreshing",
			zap.Time("expires_at", sess.ExpiresAt),
		)
		m.mu.Lock()
		m.session = sess
		m.mu.Unlock()
		if err := m.Refresh(ctx); err != nil {
			m.logger.Info("session restore failed", zap.Error(err))
		}
		return
	}

	m.mu.Lock()
	m.generation++
	m.session = sess
	m.status = auth.StatusAuthenticated
	m.scheduleLocked(sess)
	snap := sess.Snapshot(m.status)
	m.mu.Unlock()

	m.logger.Info("session restored", zap.Time("expires_at", sess.ExpiresAt))
	m.publish(snap)
	m.emit(ctx, SessionEvent{Kind: SessionStarted, Snapshot: snap})
}

// ========== Sign in ==========

// SignIn authenticates with email and password.
func (m *Manager) SignIn(ctx context.Context, creds auth.Credentials) (auth.Snapshot, error) {
	data, err := m.api.SignIn(ctx, creds)
	if err != nil {
		return m.signInFailed(err)
	}
	return m.establish(ctx, data, false)
}

// SignInWithFederatedProvider exchanges the provider's identity token for a
// backend session.
func (m *Manager) SignInWithFederatedProvider(ctx context.Context) (auth.Snapshot, error) {
	if m.provider == nil {
		return m.signInFailed(xerrors.Wrap(xerrors.ErrInvalidInput, "no federated provider configured"))
	}
	idToken, err := m.provider.IDToken(ctx)
	if err != nil {
		return m.signInFailed(fmt.Errorf("failed to obtain identity token: %w", err))
	}
	return m.exchange(ctx, auth.FederatedRequest{Provider: m.provider.Name(), IDToken: idToken}, true)
}

// SignInWithIDToken exchanges an identity token obtained by the caller. The
// provider session is not owned by the agent, so sign-out does not revoke it.
func (m *Manager) SignInWithIDToken(ctx context.Context, req auth.FederatedRequest) (auth.Snapshot, error) {
	if req.Provider == "" || req.IDToken == "" {
		return m.signInFailed(xerrors.Wrap(xerrors.ErrInvalidInput, "provider and id token are required"))
	}
	return m.exchange(ctx, req, false)
}

func (m *Manager) exchange(ctx context.Context, req auth.FederatedRequest, owned bool) (auth.Snapshot, error) {
	data, err := m.api.FederatedSignIn(ctx, req)
	if err != nil {
		return m.signInFailed(err)
	}
	return m.establish(ctx, data, owned)
}

// SignUp registers an account. When the backend defers tokens until the e-mail
// is verified the returned snapshot stays unauthenticated and err is nil.
func (m *Manager) SignUp(ctx context.Context, req auth.SignUpRequest) (auth.Snapshot, error) {
	data, err := m.api.SignUp(ctx, req)
	if err != nil {
		return m.signInFailed(err)
	}
	if data.AccessToken == "" {
		m.toast(websocket.ToastInfo, "Check your inbox to verify your e-mail")
		return m.Snapshot(), nil
	}
	return m.establish(ctx, data, false)
}

func (m *Manager) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return xerrors.ErrInvalidInput
	}
	if err := m.api.VerifyEmail(ctx, token); err != nil {
		m.toast(websocket.ToastError, "E-mail verification failed")
		return err
	}
	m.toast(websocket.ToastSuccess, "E-mail verified")
	return nil
}

func (m *Manager) signInFailed(err error) (auth.Snapshot, error) {
	m.mu.Lock()
	if m.status != auth.StatusAuthenticated {
		m.status = auth.StatusUnauthenticated
		m.session = nil
	}
	snap := m.session.Snapshot(m.status)
	m.mu.Unlock()

	m.logger.Info("sign in failed", zap.Error(err))
	m.publish(snap)
	m.toast(websocket.ToastError, signInMessage(err))
	return snap, err
}

func signInMessage(err error) string {
	switch xerrors.Category(err) {
	case xerrors.KindAuth:
		return "Invalid email or password"
	case xerrors.KindTransient:
		return "Network error, please try again"
	default:
		return "Sign in failed"
	}
}

// establish commits a fresh session from a token response.
func (m *Manager) establish(ctx context.Context, data *auth.TokenData, federated bool) (auth.Snapshot, error) {
	if data == nil || data.AccessToken == "" {
		return m.signInFailed(xerrors.ErrMalformedResponse)
	}
	sess := &auth.Session{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		ExpiresAt:    m.expiryFor(data.AccessToken),
		User:         data.User,
	}

	m.mu.Lock()
	replaced := m.status == auth.StatusAuthenticated && m.session != nil
	if replaced {
		m.dropLocked(ctx)
	}
	if err := m.store.Save(ctx, sess); err != nil {
		m.mu.Unlock()
		if replaced {
			m.announceEnded(ctx)
		}
		return m.signInFailed(err)
	}
	m.generation++
	m.session = sess
	m.federated = federated
	m.status = auth.StatusAuthenticated
	m.scheduleLocked(sess)
	snap := sess.Snapshot(m.status)
	m.mu.Unlock()

	m.logger.Info("signed in",
		zap.Bool("federated", federated),
		zap.Bool("replaced", replaced),
		zap.Time("expires_at", sess.ExpiresAt),
	)
	if replaced {
		m.announceEnded(ctx)
	}
	m.publish(snap)
	m.emit(ctx, SessionEvent{Kind: SessionStarted, Snapshot: snap})
	return snap, nil
}

// dropLocked discards the current session so nothing of it (refresh token,
// cached user, timer, in-flight refresh) carries into the next one. The
// provider is not revoked; the incoming sign-in may have come through it.
func (m *Manager) dropLocked(ctx context.Context) {
	m.generation++
	m.schedule.Cancel()
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("failed to clear previous session", zap.Error(err))
	}
	m.session = nil
	m.federated = false
	m.status = auth.StatusUnauthenticated
}

// announceEnded tells listeners the previous session is gone, ahead of the
// Started event of its replacement.
func (m *Manager) announceEnded(ctx context.Context) {
	snap := auth.Snapshot{Status: auth.StatusUnauthenticated}
	m.publish(snap)
	m.emit(ctx, SessionEvent{Kind: SessionEnded, Snapshot: snap})
}

// ========== Sign out ==========

// SignOut ends the session. Local state is always cleared; the returned error
// only reports a failed store wipe or provider revocation.
func (m *Manager) SignOut(ctx context.Context) error {
	return m.endSession(ctx, "signed out", true)
}

func (m *Manager) endSession(ctx context.Context, reason string, userInitiated bool) error {
	m.mu.Lock()
	m.generation++
	m.schedule.Cancel()
	federated := m.federated
	m.session = nil
	m.federated = false
	m.status = auth.StatusUnauthenticated
	clearErr := m.store.Clear(ctx)
	snap := m.session.Snapshot(m.status)
	m.mu.Unlock()

	var revokeErr error
	if federated && m.provider != nil {
		revokeErr = m.provider.Revoke(ctx)
	}

	m.publish(snap)
	m.emit(ctx, SessionEvent{Kind: SessionEnded, Snapshot: snap})

	err := errors.Join(clearErr, revokeErr)
	if err != nil {
		m.logger.Warn("sign out incomplete", zap.String("reason", reason), zap.Error(err))
		m.toast(websocket.ToastError, "Sign out did not complete cleanly")
		return err
	}
	m.logger.Info("session ended", zap.String("reason", reason))
	if userInitiated {
		m.toast(websocket.ToastSuccess, "Signed out")
	} else {
		m.toast(websocket.ToastInfo, "Your session expired, please sign in again")
	}
	return nil
}

// ========== Refresh ==========

// Refresh trades the stored refresh token for a new access token. Any failure
// ends the session; there is no retry. Concurrent callers share one request.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if c := m.inflight; c != nil {
		m.mu.Unlock()
		select {
		case <-c.done:
			return c.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c := &refreshCall{done: make(chan struct{})}
	m.inflight = c
	gen := m.generation
	m.mu.Unlock()

	c.err = m.refresh(ctx, gen)

	m.mu.Lock()
	m.inflight = nil
	m.mu.Unlock()
	close(c.done)
	return c.err
}

func (m *Manager) refresh(ctx context.Context, gen uint64) error {
	refreshToken, err := m.store.RefreshToken(ctx)
	if err != nil {
		m.logger.Warn("failed to read refresh token", zap.Error(err))
	}
	if refreshToken == "" {
		m.abandon(ctx, gen, "no refresh token")
		return xerrors.ErrNoRefreshToken
	}

	data, err := m.api.Refresh(ctx, refreshToken)
	if err == nil && (data == nil || data.AccessToken == "") {
		err = xerrors.ErrMalformedResponse
	}
	if err != nil {
		m.logger.Warn("token refresh failed", zap.Error(err))
		m.abandon(ctx, gen, "refresh failed")
		return fmt.Errorf("refresh: %w", err)
	}

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		m.logger.Debug("discarding refresh result for a superseded session")
		return xerrors.ErrNotAuthenticated
	}
	next := &auth.Session{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		ExpiresAt:    m.expiryFor(data.AccessToken),
		User:         data.User,
	}
	if prev := m.session; prev != nil {
		if next.RefreshToken == "" {
			next.RefreshToken = prev.RefreshToken
		}
		if next.User == nil {
			next.User = prev.User
		}
	}
	if err := m.store.Save(ctx, next); err != nil {
		m.mu.Unlock()
		m.logger.Warn("failed to persist refreshed token", zap.Error(err))
		m.abandon(ctx, gen, "persist failed")
		return err
	}
	kind := SessionRefreshed
	if m.status != auth.StatusAuthenticated {
		kind = SessionStarted
	}
	m.session = next
	m.status = auth.StatusAuthenticated
	m.scheduleLocked(next)
	snap := next.Snapshot(m.status)
	m.mu.Unlock()

	m.logger.Info("token refreshed", zap.Time("expires_at", next.ExpiresAt))
	m.publish(snap)
	m.emit(ctx, SessionEvent{Kind: kind, Snapshot: snap})
	return nil
}

// abandon ends the session unless it was already replaced or ended.
func (m *Manager) abandon(ctx context.Context, gen uint64, reason string) {
	m.mu.Lock()
	current := m.generation == gen
	m.mu.Unlock()
	if !current {
		return
	}
	_ = m.endSession(ctx, reason, false)
}

// scheduleLocked arms the single refresh timer for sess. A session already
// inside its margin is refreshed immediately.
func (m *Manager) scheduleLocked(sess *auth.Session) {
	now := m.opts.Now()
	delay := RefreshDelay(sess.ExpiresAt, now, m.opts.RefreshMargin)
	m.schedule.Schedule(now.Add(delay), delay, m.onTimer)
	m.logger.Debug("refresh scheduled", zap.Duration("in", delay))
}

func (m *Manager) onTimer() {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.RefreshTimeout)
	defer cancel()
	if err := m.Refresh(ctx); err != nil {
		m.logger.Debug("scheduled refresh ended", zap.Error(err))
	}
}

// Close stops the refresh timer without touching the session.
func (m *Manager) Close() {
	m.schedule.Cancel()
}

func (m *Manager) expiryFor(token string) time.Time {
	if m.opts.ExpiryFromClaims {
		if exp, ok := jwt.ExpiryFromToken(token); ok {
			return exp
		}
	}
	return m.opts.Now().Add(m.opts.TokenTTL)
}

// ========== Helpers ==========

func (m *Manager) publish(snap auth.Snapshot) {
	if m.state == nil {
		return
	}
	m.state.Update(func(s *state.State) {
		s.Session = snap
	})
}

func (m *Manager) emit(ctx context.Context, ev SessionEvent) {
	m.mu.Lock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(ctx, ev)
	}
}

func (m *Manager) toast(level websocket.ToastLevel, message string) {
	if m.notifier != nil {
		m.notifier.Toast(level, message)
	}
}
