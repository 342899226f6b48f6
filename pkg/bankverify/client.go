package bankverify

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

	"github.com/angelmondragon/storefront-settlement/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
)

const responseBodyReadLimit int64 = 1024

var errSecretKeyRequired = errors.New("bank verification secret key is required")

// Result is the provider's answer for an account lookup.
type Result struct {
	Verified      bool
	AccountNumber string
	AccountName   string
}

// Client resolves seller bank accounts against a Paystack-compatible API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

// NewClient builds the bank verification client from config. A custom
// http.Client may be supplied for tests.
func NewClient(cfg config.BankVerifyConfig, httpClient *http.Client) (*Client, error) {
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return nil, errSecretKeyRequired
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		secretKey:  secret,
	}, nil
}

// Resolve looks up the account holder name for an account number and bank code.
// An unknown account is reported as Verified=false rather than an error.
func (c *Client) Resolve(ctx context.Context, accountNumber, bankCode string) (Result, error) {
	if c == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeDependency, "bank verification client not configured")
	}
	accountNumber = strings.TrimSpace(accountNumber)
	bankCode = strings.TrimSpace(bankCode)
	if accountNumber == "" || bankCode == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "account number and bank code are required")
	}

	q := url.Values{}
	q.Set("account_number", accountNumber)
	q.Set("bank_code", bankCode)
	endpoint := fmt.Sprintf("%s/bank/resolve?%s", c.baseURL, q.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build bank resolve request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute bank resolve request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		return Result{AccountNumber: accountNumber}, nil
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "bank resolve request failed")
	}

	var apiResp struct {
		Status bool `json:"status"`
		Data   struct {
			AccountNumber string `json:"account_number"`
			AccountName   string `json:"account_name"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode bank resolve response")
	}
	name := strings.TrimSpace(apiResp.Data.AccountName)
	return Result{
		Verified:      apiResp.Status && name != "",
		AccountNumber: accountNumber,
		AccountName:   name,
	}, nil
}
