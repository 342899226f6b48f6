package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.paystack.co"
	defaultTimeout              = 10 * time.Second
	responseBodyReadLimit int64 = 1024
)

var errSecretKeyRequired = errors.New("payment gateway secret key is required")

// HTTPClient verifies references against a Paystack-compatible REST gateway.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

// Option configures optional client behavior.
type Option func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the gateway base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *HTTPClient) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout bounds every verification round trip.
func WithTimeout(timeout time.Duration) Option {
	return func(c *HTTPClient) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewHTTPClient builds the gateway client given a secret key.
func NewHTTPClient(secretKey string, opts ...Option) (*HTTPClient, error) {
	trimmedKey := strings.TrimSpace(secretKey)
	if trimmedKey == "" {
		return nil, errSecretKeyRequired
	}

	client := &HTTPClient{
		secretKey:  trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Verify fetches the gateway's record for reference.
func (c *HTTPClient) Verify(ctx context.Context, reference string) (Verification, error) {
	if c == nil {
		return Verification{}, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway client not configured")
	}
	trimmed := strings.TrimSpace(reference)
	if trimmed == "" {
		return Verification{}, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}

	endpoint := fmt.Sprintf("%s/transaction/verify/%s", strings.TrimRight(c.baseURL, "/"), url.PathEscape(trimmed))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Verification{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build payment verification request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Verification{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute payment verification request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Verification{Reference: trimmed, Status: StatusNotFound}, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return Verification{}, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "payment verification request failed")
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return Verification{}, pkgerrors.Wrap(pkgerrors.CodeValidation, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "payment verification rejected")
	}

	var apiResp struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Status    string `json:"status"`
			Reference string `json:"reference"`
			Amount    int64  `json:"amount"`
			Currency  string `json:"currency"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&apiResp); err != nil {
		return Verification{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment verification response")
	}
	if !apiResp.Status {
		return Verification{Reference: trimmed, Status: StatusFailed, GatewayStatus: apiResp.Message}, nil
	}

	ref := apiResp.Data.Reference
	if ref == "" {
		ref = trimmed
	}
	return Verification{
		Reference:     ref,
		Status:        normalizeStatus(apiResp.Data.Status),
		AmountMinor:   apiResp.Data.Amount,
		Currency:      strings.ToUpper(apiResp.Data.Currency),
		GatewayStatus: apiResp.Data.Status,
	}, nil
}
