package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"soulchat-agent/internal/domain/auth"
	"soulchat-agent/internal/domain/notification"
	authHandler "soulchat-agent/internal/handlers/auth"
	notifyH "soulchat-agent/internal/handlers/notification"
	wsHandler "soulchat-agent/internal/handlers/websocket"
	"soulchat-agent/internal/middleware"
	notifyUsecase "soulchat-agent/internal/service/notification"
	"soulchat-agent/internal/state"
	"soulchat-agent/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type stubSessions struct {
	mutableSession
}

func (s *stubSessions) SignIn(context.Context, auth.Credentials) (auth.Snapshot, error) {
	s.set(authed("A"))
	return s.Snapshot(), nil
}

func (s *stubSessions) SignUp(context.Context, auth.SignUpRequest) (auth.Snapshot, error) {
	return s.Snapshot(), nil
}

func (s *stubSessions) SignInWithFederatedProvider(context.Context) (auth.Snapshot, error) {
	return s.SignIn(context.Background(), auth.Credentials{})
}

func (s *stubSessions) SignInWithIDToken(context.Context, auth.FederatedRequest) (auth.Snapshot, error) {
	return s.SignIn(context.Background(), auth.Credentials{})
}

func (s *stubSessions) SignOut(context.Context) error {
	s.set(auth.Snapshot{Status: auth.StatusUnauthenticated})
	return nil
}

func (s *stubSessions) VerifyEmail(context.Context, string) error { return nil }

type emptyAPI struct{}

func (emptyAPI) SocialUnreadCounts(context.Context) (*notification.SocialCounts, error) {
	return &notification.SocialCounts{}, nil
}

func (emptyAPI) ThreadUnreadCounts(context.Context) (*notification.ThreadCounts, error) {
	return &notification.ThreadCounts{}, nil
}

func (emptyAPI) MarkThreadRead(context.Context, notification.ChatKind, string) error { return nil }
func (emptyAPI) Feed(context.Context) ([]notification.Event, error)                  { return nil, nil }
func (emptyAPI) MarkNotificationRead(context.Context, string) error                  { return nil }

func newTestRouter(sessions *stubSessions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	st := state.NewStore()
	hub := websocket.NewHub(st, zap.NewNop())
	svc := notifyUsecase.NewNotificationService(emptyAPI{}, st, hub, zap.NewNop(), 0, 0)

	r := gin.New()
	SetupRouter(r, &Handlers{
		AuthHandler:    authHandler.NewAuthHandler(sessions, zap.NewNop()),
		NotifHandler:   notifyH.NewNotificationHandler(svc),
		WSHandler:      wsHandler.NewWebSocketHandler(hub, zap.NewNop()),
		AuthMiddleware: middleware.NewAuthMiddleware(sessions),
	})
	return r
}

func TestRoutes(t *testing.T) {
	sessions := &stubSessions{}
	sessions.set(auth.Snapshot{Status: auth.StatusUnauthenticated})
	r := newTestRouter(sessions)

	tests := []struct {
		name   string
		method string
		path   string
		signIn bool
		want   int
	}{
		{"health", http.MethodGet, "/api/v1/health", false, http.StatusOK},
		{"session", http.MethodGet, "/api/v1/auth/session", false, http.StatusOK},
		{"unread requires session", http.MethodGet, "/api/v1/notifications/unread", false, http.StatusUnauthorized},
		{"thread read requires session", http.MethodPost, "/api/v1/threads/whisper/t1/read", false, http.StatusUnauthorized},
		{"unread", http.MethodGet, "/api/v1/notifications/unread", true, http.StatusOK},
		{"list", http.MethodGet, "/api/v1/notifications", true, http.StatusOK},
		{"thread read", http.MethodPost, "/api/v1/threads/whisper/t1/read", true, http.StatusOK},
		{"ws stats", http.MethodGet, "/api/v1/ws/stats", false, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.signIn {
				sessions.set(authed("A"))
			} else {
				sessions.set(auth.Snapshot{Status: auth.StatusUnauthenticated})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			if w.Code != tt.want {
				t.Errorf("%s %s = %d, want %d (%s)", tt.method, tt.path, w.Code, tt.want, w.Body.String())
			}
		})
	}
}
