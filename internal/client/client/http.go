package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/common"
)

const maxResponseBytes = 1 << 20

type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type apiError struct {
	Error  string `json:"error"`
	Resend string `json:"resend"`
}

// do sends in as JSON (when non-nil) and decodes a 2xx body into out (when
// non-nil). token, when set, goes into the Authorization header.
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, token string, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ae apiError
		_ = json.Unmarshal(data, &ae)
		return &APIError{Status: resp.StatusCode, Message: ae.Error, Resend: ae.Resend}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: %w", ErrUnexpectedAPI, err)
		}
	}
	return nil
}

func (c *HTTPClient) Register(ctx context.Context, r Registration) (*Account, error) {
	var acc Account
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, "", r, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (c *HTTPClient) Verify(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodGet, "/api/auth/verify", url.Values{"token": {token}}, "", nil, nil)
}

func (c *HTTPClient) IsVerified(ctx context.Context, email string) (bool, error) {
	var resp struct {
		Verified bool `json:"verified"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/is-verified", url.Values{"email": {email}}, "", nil, &resp); err != nil {
		return false, err
	}
	return resp.Verified, nil
}

func (c *HTTPClient) ResendVerification(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodGet, "/api/auth/resend-verification", url.Values{"email": {email}}, "", nil, nil)
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (string, error) {
	in := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{email, password}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, "", in, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: empty token", ErrUnexpectedAPI)
	}
	return resp.Token, nil
}

func (c *HTTPClient) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, token, nil, nil)
}

func (c *HTTPClient) ValidateToken(ctx context.Context, token string) (*Principal, error) {
	var p Principal
	if err := c.do(ctx, http.MethodGet, "/api/auth/validate-token", nil, token, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error {
	in := struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}{oldPassword, newPassword}
	return c.do(ctx, http.MethodPost, "/api/auth/change-password", nil, token, in, nil)
}

func (c *HTTPClient) Me(ctx context.Context, token string) (*Account, error) {
	var acc Account
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, token, nil, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (c *HTTPClient) UpdateMe(ctx context.Context, token string, patch ProfilePatch) (*Account, error) {
	var acc Account
	if err := c.do(ctx, http.MethodPatch, "/api/users/me", nil, token, patch, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, "", nil, nil)
}
