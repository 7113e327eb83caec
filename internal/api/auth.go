package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"soulchat-agent/internal/domain/auth"
	xerrors "soulchat-agent/internal/pkg/errors"
	"soulchat-agent/internal/pkg/response"
)

// SignIn posts credentials to /auth/signin.
func (c *Client) SignIn(ctx context.Context, creds auth.Credentials) (*auth.TokenData, error) {
	data, err := c.tokenCall(ctx, "/auth/signin", creds)
	if err != nil {
		return nil, fmt.Errorf("client.SignIn: %w", credentialError(err))
	}
	return data, nil
}

// SignUp registers an account. Backends that require e-mail verification first
// answer without tokens; the returned data then has an empty AccessToken.
func (c *Client) SignUp(ctx context.Context, req auth.SignUpRequest) (*auth.TokenData, error) {
	var data auth.TokenData
	if err := c.doRequest(ctx, http.MethodPost, "/auth/signup", req, &data, false); err != nil {
		return nil, fmt.Errorf("client.SignUp: %w", credentialError(err))
	}
	return &data, nil
}

// FederatedSignIn exchanges an identity provider token for a backend session.
func (c *Client) FederatedSignIn(ctx context.Context, req auth.FederatedRequest) (*auth.TokenData, error) {
	data, err := c.tokenCall(ctx, "/auth/federated", req)
	if err != nil {
		return nil, fmt.Errorf("client.FederatedSignIn: %w", credentialError(err))
	}
	return data, nil
}

// Refresh trades a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*auth.TokenData, error) {
	data, err := c.tokenCall(ctx, "/auth/refresh", auth.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, fmt.Errorf("client.Refresh: %w", err)
	}
	return data, nil
}

// VerifyEmail confirms an e-mail verification token.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	path := "/auth/verify-email?" + url.Values{"token": {token}}.Encode()
	if err := c.doRequest(ctx, http.MethodGet, path, nil, nil, false); err != nil {
		return fmt.Errorf("client.VerifyEmail: %w", err)
	}
	return nil
}

func (c *Client) tokenCall(ctx context.Context, path string, body any) (*auth.TokenData, error) {
	var data auth.TokenData
	if err := c.doRequest(ctx, http.MethodPost, path, body, &data, false); err != nil {
		return nil, err
	}
	if data.AccessToken == "" {
		return nil, fmt.Errorf("%w: response carries no access token", xerrors.ErrMalformedResponse)
	}
	return &data, nil
}

// credentialError turns a rejected sign-in into ErrInvalidCredentials while
// leaving network failures alone.
func credentialError(err error) error {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && (httpErr.StatusCode == http.StatusBadRequest || httpErr.StatusCode == http.StatusUnauthorized) {
		return fmt.Errorf("%w: %s", xerrors.ErrInvalidCredentials, httpErr.Message)
	}
	var failure *response.Failure
	if errors.As(err, &failure) {
		return fmt.Errorf("%w: %s", xerrors.ErrInvalidCredentials, failure.Message)
	}
	return err
}
