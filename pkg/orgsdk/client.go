package orgsdk

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
)

// Client is a minimal HTTP client for the identity service. The zero value is
// not usable; construct with NewClient.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) url(path string) string {
	u, err := url.JoinPath(c.BaseURL, path)
	if err != nil {
		return c.BaseURL + path
	}
	return u
}

// do issues a JSON request and decodes the body into out when the status
// matches. Non-matching statuses are parsed into an *APIError.
func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any, wantStatus int) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return parseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Code: "unreadable_response"}
	}

	var validation ValidationErrorResponse
	if err := json.Unmarshal(raw, &validation); err == nil && len(validation.Fields) > 0 {
		return &APIError{StatusCode: resp.StatusCode, Code: validation.Error, Fields: validation.Fields}
	}

	var generic ErrorResponse
	if err := json.Unmarshal(raw, &generic); err == nil && generic.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Code: generic.Error, Description: generic.ErrorDescription}
	}
	return &APIError{StatusCode: resp.StatusCode, Code: "unexpected_response", Description: string(raw)}
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var out RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/register", "", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", "", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Invite(ctx context.Context, bearer string, req InviteRequest) (*InviteResponse, error) {
	var out InviteResponse
	if err := c.do(ctx, http.MethodPost, "/v1/users/invite", bearer, req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Activate(ctx context.Context, req ActivateRequest) (*ActivateResponse, error) {
	var out ActivateResponse
	if err := c.do(ctx, http.MethodPost, "/v1/users/activate", "", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RequestPasswordReset(ctx context.Context, req PasswordResetRequestRequest) (*PasswordResetRequestResponse, error) {
	var out PasswordResetRequestResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/password-reset-request", "", req, &out, http.StatusAccepted); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ConfirmPasswordReset(ctx context.Context, req PasswordResetConfirmRequest) (*PasswordResetConfirmResponse, error) {
	var out PasswordResetConfirmResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/password-reset-confirm", "", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ChangePassword(ctx context.Context, bearer string, req PasswordChangeRequest) (*PasswordChangeResponse, error) {
	var out PasswordChangeResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/password-change", bearer, req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PutPaymentCredentials(ctx context.Context, bearer string, req PaymentCredentialsRequest) (*PaymentCredentialsResponse, error) {
	var out PaymentCredentialsResponse
	if err := c.do(ctx, http.MethodPut, "/v1/tenant/payment-credentials", bearer, req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetMaskedPaymentCredentials(ctx context.Context, bearer string) (*MaskedCredentialsResponse, error) {
	var out MaskedCredentialsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/tenant/payment-credentials", bearer, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPublicPaymentCredentials(ctx context.Context, bearer string) (*PublicCredentialsResponse, error) {
	var out PublicCredentialsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/tenant/payment-credentials/public", bearer, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Me(ctx context.Context, bearer string) (*UserProfile, error) {
	var out UserProfile
	if err := c.do(ctx, http.MethodGet, "/v1/me", bearer, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
