package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"soulchat-agent/internal/domain/auth"
	"soulchat-agent/internal/domain/websocket"
	xerrors "soulchat-agent/internal/pkg/errors"
	"soulchat-agent/internal/pkg/session"
	"soulchat-agent/internal/state"

	"github.com/golang-jwt/jwt/v5"
)

var baseTime = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) live() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

// fire runs the newest live timer as if it had elapsed.
func (c *fakeClock) fire(t *testing.T) {
	t.Helper()
	live := c.live()
	if len(live) == 0 {
		t.Fatal("no live timer to fire")
	}
	timer := live[len(live)-1]
	timer.stopped = true
	timer.fn()
}

type fakeAPI struct {
	mu             sync.Mutex
	signIn         *auth.TokenData
	signInErr      error
	refresh        *auth.TokenData
	refreshErr     error
	refreshTokens  []string
	refreshEntered chan struct{}
	refreshGate    chan struct{}
}

func (f *fakeAPI) SignIn(context.Context, auth.Credentials) (*auth.TokenData, error) {
	return f.signIn, f.signInErr
}

func (f *fakeAPI) SignUp(context.Context, auth.SignUpRequest) (*auth.TokenData, error) {
	return &auth.TokenData{}, nil
}

func (f *fakeAPI) FederatedSignIn(context.Context, auth.FederatedRequest) (*auth.TokenData, error) {
	return f.signIn, f.signInErr
}

func (f *fakeAPI) Refresh(_ context.Context, refreshToken string) (*auth.TokenData, error) {
	f.mu.Lock()
	f.refreshTokens = append(f.refreshTokens, refreshToken)
	entered, gate := f.refreshEntered, f.refreshGate
	f.mu.Unlock()
	if entered != nil {
		close(entered)
	}
	if gate != nil {
		<-gate
	}
	return f.refresh, f.refreshErr
}

func (f *fakeAPI) VerifyEmail(context.Context, string) error { return nil }

func (f *fakeAPI) refreshCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refreshTokens...)
}

type toast struct {
	level   websocket.ToastLevel
	message string
}

type recordingNotifier struct {
	mu     sync.Mutex
	toasts []toast
}

func (n *recordingNotifier) Toast(level websocket.ToastLevel, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, toast{level, message})
}

func (n *recordingNotifier) last() toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.toasts) == 0 {
		return toast{}
	}
	return n.toasts[len(n.toasts)-1]
}

type fakeProvider struct {
	revoked int
}

func (p *fakeProvider) Name() string { return "google" }
func (p *fakeProvider) IDToken(context.Context) (string, error) { return "id-token", nil }
func (p *fakeProvider) Revoke(context.Context) error {
	p.revoked++
	return nil
}

type harness struct {
	m        *Manager
	api      *fakeAPI
	kv       *session.MemoryStore
	tokens   *session.TokenStore
	clock    *fakeClock
	notifier *recordingNotifier
	state    *state.Store
	events   *[]SessionEventKind
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		api: &fakeAPI{
			signIn:  &auth.TokenData{AccessToken: "a1", RefreshToken: "r1", User: &auth.User{ID: "u1"}},
			refresh: &auth.TokenData{AccessToken: "a2", RefreshToken: "r2"},
		},
		kv:       session.NewMemoryStore(),
		clock:    &fakeClock{now: baseTime},
		notifier: &recordingNotifier{},
		state:    state.NewStore(),
	}
	h.tokens = session.NewTokenStore(h.kv)
	opts.Now = h.clock.Now
	opts.AfterFunc = h.clock.AfterFunc
	h.m = NewManager(h.api, h.tokens, &fakeProvider{}, h.notifier, h.state, nil, opts)

	var mu sync.Mutex
	events := []SessionEventKind{}
	h.events = &events
	h.m.AddListener(func(_ context.Context, ev SessionEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev.Kind)
	})
	return h
}

func (h *harness) signIn(t *testing.T) {
	t.Helper()
	if _, err := h.m.SignIn(context.Background(), auth.Credentials{Email: "a@b.c", Password: "pw"}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
}

func TestRefreshDelay(t *testing.T) {
	margin := 5 * time.Minute
	tests := []struct {
		name    string
		expires time.Time
		want    time.Duration
	}{
		{"well ahead", baseTime.Add(time.Hour), 55 * time.Minute},
		{"inside margin", baseTime.Add(4 * time.Minute), 0},
		{"exactly at margin", baseTime.Add(margin), 0},
		{"already expired", baseTime.Add(-time.Minute), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RefreshDelay(tt.expires, baseTime, margin); got != tt.want {
				t.Errorf("RefreshDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSignInPersistsAndSchedules(t *testing.T) {
	h := newHarness(t, Options{})
	h.signIn(t)

	snap := h.m.Snapshot()
	if !snap.Authenticated() || snap.AccessToken != "a1" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if want := baseTime.Add(DefaultTokenTTL); !snap.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", snap.ExpiresAt, want)
	}
	if tok, _ := h.tokens.AccessToken(context.Background()); tok != "a1" {
		t.Errorf("stored token = %q", tok)
	}
	live := h.clock.live()
	if len(live) != 1 {
		t.Fatalf("live timers = %d, want 1", len(live))
	}
	if want := DefaultTokenTTL - DefaultRefreshMargin; live[0].delay != want {
		t.Errorf("delay = %v, want %v", live[0].delay, want)
	}
	if got := h.state.Snapshot().Session.Status; got != auth.StatusAuthenticated {
		t.Errorf("published status = %q", got)
	}
}

func TestRepeatedSchedulingKeepsOneTimer(t *testing.T) {
	h := newHarness(t, Options{})
	h.signIn(t)
	h.signIn(t)
	h.clock.fire(t)
	h.signIn(t)

	if live := h.clock.live(); len(live) != 1 {
		t.Errorf("live timers = %d, want 1", len(live))
	}
}

func TestTimerRefreshRotatesTokens(t *testing.T) {
	h := newHarness(t, Options{})
	h.signIn(t)
	h.clock.fire(t)

	if calls := h.api.refreshCalls(); len(calls) != 1 || calls[0] != "r1" {
		t.Fatalf("refresh calls = %v", calls)
	}
	snap := h.m.Snapshot()
	if snap.AccessToken != "a2" || snap.User == nil || snap.User.ID != "u1" {
		t.Errorf("snapshot = %+v", snap)
	}
	if rt, _ := h.tokens.RefreshToken(context.Background()); rt != "r2" {
		t.Errorf("stored refresh token = %q", rt)
	}
	if len(h.clock.live()) != 1 {
		t.Error("expected a follow-up refresh to be scheduled")
	}
	if got := *h.events; len(got) != 2 || got[0] != SessionStarted || got[1] != SessionRefreshed {
		t.Errorf("events = %v", got)
	}
}

func TestRefreshFailureSignsOut(t *testing.T) {
	h := newHarness(t, Options{})
	h.signIn(t)
	h.api.refreshErr = xerrors.ErrUnauthorized

	err := h.m.Refresh(context.Background())
	if !errors.Is(err, xerrors.ErrUnauthorized) {
		t.Fatalf("Refresh err = %v", err)
	}
	if got := h.m.Status(); got != auth.StatusUnauthenticated {
		t.Errorf("status = %q", got)
	}
	if h.kv.Len() != 0 {
		t.Errorf("store still holds %d keys", h.kv.Len())
	}
	if len(h.clock.live()) != 0 {
		t.Error("refresh timer still armed")
	}
	if got := *h.events; got[len(got)-1] != SessionEnded {
		t.Errorf("events = %v", got)
	}
	if calls := h.api.refreshCalls(); len(calls) != 1 {
		t.Errorf("refresh attempted %d times, want 1", len(calls))
	}
}

func TestRefreshWithoutTokenSignsOut(t *testing.T) {
	h := newHarness(t, Options{})
	h.api.signIn = &auth.TokenData{AccessToken: "a1"}
	h.signIn(t)

	if err := h.m.Refresh(context.Background()); !errors.Is(err, xerrors.ErrNoRefreshToken) {
		t.Fatalf("Refresh err = %v", err)
	}
	if len(h.api.refreshCalls()) != 0 {
		t.Error("backend should not be called without a refresh token")
	}
	if h.m.Status() != auth.StatusUnauthenticated {
		t.Error("expected unauthenticated")
	}
}

func TestSignOutDuringRefreshDiscardsResult(t *testing.T) {
	h := newHarness(t, Options{})
	h.signIn(t)
	h.api.refreshEntered = make(chan struct{})
	h.api.refreshGate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.m.Refresh(context.Background()) }()

	<-h.api.refreshEntered
	if err := h.m.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	close(h.api.refreshGate)

	if err := <-done; !errors.Is(err, xerrors.ErrNotAuthenticated) {
		t.Errorf("Refresh err = %v", err)
	}
	if h.m.Status() != auth.StatusUnauthenticated {
		t.Errorf("status = %q", h.m.Status())
	}
	if tok, _ := h.tokens.AccessToken(context.Background()); tok != "" {
		t.Errorf("late refresh persisted token %q", tok)
	}
	if len(h.clock.live()) != 0 {
		t.Error("late refresh armed a timer")
	}
}

func TestSignOutClearsEverything(t *testing.T) {
	h := newHarness(t, Options{})
	h.signIn(t)
	h.kv.Set(context.Background(), session.KeyDeviceID, "dev-1")

	if err := h.m.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if h.kv.Len() != 1 {
		t.Errorf("keys left = %d, want only the device id", h.kv.Len())
	}
	if h.m.Snapshot().AccessToken != "" {
		t.Error("token survived sign out")
	}
	if got := h.notifier.last(); got.level != websocket.ToastSuccess {
		t.Errorf("toast = %+v", got)
	}
	if got := h.state.Snapshot().Session.Status; got != auth.StatusUnauthenticated {
		t.Errorf("published status = %q", got)
	}
}

func TestSignInOverSessionEndsPrevious(t *testing.T) {
	h := newHarness(t, Options{})
	h.signIn(t)

	h.api.signIn = &auth.TokenData{AccessToken: "b1"}
	h.signIn(t)

	got := *h.events
	want := []SessionEventKind{SessionStarted, SessionEnded, SessionStarted}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}

	ctx := context.Background()
	if tok, _ := h.tokens.RefreshToken(ctx); tok != "" {
		t.Errorf("refresh token %q carried over from the previous account", tok)
	}
	sess, err := h.tokens.Load(ctx)
	if err != nil || sess == nil || sess.AccessToken != "b1" {
		t.Fatalf("Load() = %+v, %v", sess, err)
	}
	if sess.User != nil {
		t.Errorf("user %+v carried over from the previous account", sess.User)
	}
	if live := h.clock.live(); len(live) != 1 {
		t.Errorf("live timers = %d, want 1", len(live))
	}
}

func TestFederatedSignOutRevokesProvider(t *testing.T) {
	h := newHarness(t, Options{})
	provider := &fakeProvider{}
	h.m.provider = provider

	if _, err := h.m.SignInWithFederatedProvider(context.Background()); err != nil {
		t.Fatalf("SignInWithFederatedProvider: %v", err)
	}
	if err := h.m.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if provider.revoked != 1 {
		t.Errorf("revoked = %d, want 1", provider.revoked)
	}
}

func TestSignInFailure(t *testing.T) {
	h := newHarness(t, Options{})
	h.api.signInErr = xerrors.ErrInvalidCredentials

	snap, err := h.m.SignIn(context.Background(), auth.Credentials{Email: "a@b.c", Password: "bad"})
	if !errors.Is(err, xerrors.ErrInvalidCredentials) {
		t.Fatalf("err = %v", err)
	}
	if snap.Status != auth.StatusUnauthenticated {
		t.Errorf("status = %q", snap.Status)
	}
	if got := h.notifier.last(); got.level != websocket.ToastError || got.message != "Invalid email or password" {
		t.Errorf("toast = %+v", got)
	}
	if len(*h.events) != 0 {
		t.Errorf("events = %v", *h.events)
	}
}

func TestInitializeWithoutSession(t *testing.T) {
	h := newHarness(t, Options{})
	if got := h.m.Initialize(context.Background()); got != auth.StatusUnauthenticated {
		t.Errorf("status = %q", got)
	}
	if len(h.api.refreshCalls()) != 0 {
		t.Error("unexpected refresh")
	}
}

func TestInitializeRestoresValidSession(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.tokens.Save(ctx, &auth.Session{AccessToken: "a0", RefreshToken: "r0", ExpiresAt: baseTime.Add(time.Hour)})

	if got := h.m.Initialize(ctx); got != auth.StatusAuthenticated {
		t.Fatalf("status = %q", got)
	}
	if len(h.api.refreshCalls()) != 0 {
		t.Error("valid session should not refresh on startup")
	}
	live := h.clock.live()
	if len(live) != 1 || live[0].delay != 55*time.Minute {
		t.Errorf("timers = %+v", live)
	}
	h.m.Initialize(ctx)
	if got := *h.events; len(got) != 1 || got[0] != SessionStarted {
		t.Errorf("events = %v", got)
	}
}

func TestInitializeRefreshesExpiredSession(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.tokens.Save(ctx, &auth.Session{AccessToken: "a0", RefreshToken: "r0", ExpiresAt: baseTime.Add(-time.Minute)})

	if got := h.m.Initialize(ctx); got != auth.StatusAuthenticated {
		t.Fatalf("status = %q", got)
	}
	if calls := h.api.refreshCalls(); len(calls) != 1 || calls[0] != "r0" {
		t.Errorf("refresh calls = %v", calls)
	}
	if h.m.Snapshot().AccessToken != "a2" {
		t.Errorf("token = %q", h.m.Snapshot().AccessToken)
	}
	if got := *h.events; len(got) != 1 || got[0] != SessionStarted {
		t.Errorf("events = %v", got)
	}
}

func TestInitializeExpiredSessionRefreshFails(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.tokens.Save(ctx, &auth.Session{AccessToken: "a0", RefreshToken: "r0", ExpiresAt: baseTime.Add(-time.Minute)})
	h.api.refreshErr = xerrors.ErrNetwork

	if got := h.m.Initialize(ctx); got != auth.StatusUnauthenticated {
		t.Fatalf("status = %q", got)
	}
	if h.kv.Len() != 0 {
		t.Error("expired session was not cleared")
	}
}

func TestExpiryFromClaims(t *testing.T) {
	exp := baseTime.Add(2 * time.Hour)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	h := newHarness(t, Options{ExpiryFromClaims: true})
	h.api.signIn = &auth.TokenData{AccessToken: token, RefreshToken: "r1"}
	h.signIn(t)

	if got := h.m.Snapshot().ExpiresAt; !got.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", got, exp)
	}
	if live := h.clock.live(); live[0].delay != 2*time.Hour-DefaultRefreshMargin {
		t.Errorf("delay = %v", live[0].delay)
	}
}

func TestSessionInsideMarginRefreshesImmediately(t *testing.T) {
	h := newHarness(t, Options{TokenTTL: 3 * time.Minute})
	h.signIn(t)

	live := h.clock.live()
	if len(live) != 1 || live[0].delay != 0 {
		t.Fatalf("timers = %+v", live)
	}
}

func TestSignInWithIDTokenDoesNotRevoke(t *testing.T) {
	h := newHarness(t, Options{})
	provider := &fakeProvider{}
	h.m.provider = provider

	if _, err := h.m.SignInWithIDToken(context.Background(), auth.FederatedRequest{}); !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("empty request err = %v", err)
	}
	if _, err := h.m.SignInWithIDToken(context.Background(), auth.FederatedRequest{Provider: "apple", IDToken: "x"}); err != nil {
		t.Fatalf("SignInWithIDToken: %v", err)
	}
	h.m.SignOut(context.Background())
	if provider.revoked != 0 {
		t.Errorf("revoked = %d, want 0", provider.revoked)
	}
}

func TestStaticProviderRevokeForgetsToken(t *testing.T) {
	p := NewStaticProvider("google", "id-1")
	if tok, err := p.IDToken(context.Background()); err != nil || tok != "id-1" {
		t.Fatalf("IDToken = %q, %v", tok, err)
	}
	p.Revoke(context.Background())
	if _, err := p.IDToken(context.Background()); !errors.Is(err, ErrNoIDToken) {
		t.Errorf("err after revoke = %v", err)
	}
}
