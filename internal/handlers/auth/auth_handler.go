// internal/handlers/auth/auth_handler.go
package auth

import (
	"context"
	"errors"
	"io"
	"net/http"

	"soulchat-agent/internal/domain/auth"
	xerrors "soulchat-agent/internal/pkg/errors"
	"soulchat-agent/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionService is the token lifecycle manager as seen by the API.
type SessionService interface {
	SignIn(ctx context.Context, creds auth.Credentials) (auth.Snapshot, error)
	SignUp(ctx context.Context, req auth.SignUpRequest) (auth.Snapshot, error)
	SignInWithFederatedProvider(ctx context.Context) (auth.Snapshot, error)
	SignInWithIDToken(ctx context.Context, req auth.FederatedRequest) (auth.Snapshot, error)
	SignOut(ctx context.Context) error
	VerifyEmail(ctx context.Context, token string) error
	Snapshot() auth.Snapshot
}

type AuthHandler struct {
	sessions SessionService
	logger   *zap.Logger
}

func NewAuthHandler(sessions SessionService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// ========== Sign in ==========

// SignIn handles password sign in
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req auth.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	snap, err := h.sessions.SignIn(c.Request.Context(), req)
	if err != nil {
		h.logger.Info("sign in failed", zap.String("email", req.Email), zap.Error(err))
		response.FromError(c, "sign in failed", err)
		return
	}

	response.Success(c, http.StatusOK, "signed in", auth.NewSessionResponse(snap))
}

// SignUp handles account registration
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req auth.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	snap, err := h.sessions.SignUp(c.Request.Context(), req)
	if err != nil {
		h.logger.Info("sign up failed", zap.String("email", req.Email), zap.Error(err))
		response.FromError(c, "sign up failed", err)
		return
	}

	message := "account created"
	if !snap.Authenticated() {
		message = "account created, verify your e-mail to continue"
	}
	response.Success(c, http.StatusCreated, message, auth.NewSessionResponse(snap))
}

// Federated signs in with an identity token from the body, or with the
// configured provider when the body is empty.
func (h *AuthHandler) Federated(c *gin.Context) {
	var req auth.FederatedRequest
	err := c.ShouldBindJSON(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		response.ValidationError(c, "invalid request", err)
		return
	}

	var snap auth.Snapshot
	if err == nil {
		snap, err = h.sessions.SignInWithIDToken(c.Request.Context(), req)
	} else {
		snap, err = h.sessions.SignInWithFederatedProvider(c.Request.Context())
	}
	if err != nil {
		h.logger.Info("federated sign in failed", zap.String("provider", req.Provider), zap.Error(err))
		response.FromError(c, "federated sign in failed", err)
		return
	}

	response.Success(c, http.StatusOK, "signed in", auth.NewSessionResponse(snap))
}

// ========== Session ==========

// SignOut ends the session. The local state is cleared even when the response
// reports a failed cleanup step.
func (h *AuthHandler) SignOut(c *gin.Context) {
	if err := h.sessions.SignOut(c.Request.Context()); err != nil {
		h.logger.Warn("sign out incomplete", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "signed out locally, cleanup failed", err)
		return
	}

	response.Success(c, http.StatusOK, "signed out", nil)
}

// Session returns the current session view
func (h *AuthHandler) Session(c *gin.Context) {
	response.Success(c, http.StatusOK, "session", auth.NewSessionResponse(h.sessions.Snapshot()))
}

// VerifyEmail confirms an e-mail verification token
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.ValidationError(c, "token is required", xerrors.Wrap(xerrors.ErrInvalidInput, "missing token"))
		return
	}

	if err := h.sessions.VerifyEmail(c.Request.Context(), token); err != nil {
		response.FromError(c, "verification failed", err)
		return
	}

	response.Success(c, http.StatusOK, "e-mail verified", nil)
}
