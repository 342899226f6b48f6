package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/storefront-settlement/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("square logger is required")
)

var squareBaseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

type squarePayments interface {
	Get(ctx context.Context, request *sq.GetPaymentsRequest, opts ...sqoption.RequestOption) (*sq.GetPaymentResponse, error)
}

// SquareClient verifies Square payment IDs used as checkout references.
type SquareClient struct {
	payments    squarePayments
	environment string
	logger      *logger.Logger
}

// NewSquareClient initializes the Square verifier and validates the credentials.
func NewSquareClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*SquareClient, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}

	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(squareBaseURLs[env]),
		sqoption.WithToken(accessToken),
	)

	logg.Info(ctx, "square verifier initialized")
	return &SquareClient{payments: sdk.Payments, environment: env, logger: logg}, nil
}

// Environment reports the normalized Square environment.
func (c *SquareClient) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// Verify loads the Square payment whose ID is reference.
func (c *SquareClient) Verify(ctx context.Context, reference string) (Verification, error) {
	if c == nil || c.payments == nil {
		return Verification{}, pkgerrors.New(pkgerrors.CodeDependency, "square verifier not configured")
	}
	trimmed := strings.TrimSpace(reference)
	if trimmed == "" {
		return Verification{}, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}

	c.log(ctx, "request", "get_payment", map[string]any{"payment_id": trimmed})
	resp, err := c.payments.Get(ctx, &sq.GetPaymentsRequest{PaymentID: trimmed})
	if err != nil {
		var apiErr *sqcore.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return Verification{Reference: trimmed, Status: StatusNotFound}, nil
		}
		c.log(ctx, "error", "get_payment", map[string]any{"error": err.Error()})
		return Verification{}, mapSquareError(err, "get payment")
	}

	payment := resp.GetPayment()
	if payment == nil {
		return Verification{Reference: trimmed, Status: StatusNotFound}, nil
	}
	raw := stringValue(payment.GetStatus())
	out := Verification{
		Reference:     trimmed,
		Status:        normalizeStatus(raw),
		GatewayStatus: raw,
	}
	if money := payment.GetAmountMoney(); money != nil {
		if amount := money.GetAmount(); amount != nil {
			out.AmountMinor = *amount
		}
		if cur := money.GetCurrency(); cur != nil {
			out.Currency = string(*cur)
		}
	}
	c.log(ctx, "response", "get_payment", map[string]any{"payment_id": trimmed, "status": raw})
	return out, nil
}

func (c *SquareClient) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("square %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Debug(ctx, fmt.Sprintf("square %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "token", "secret", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func mapSquareError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		code := domainCodeForStatus(apiErr.StatusCode)
		for _, sqErr := range extractSquareErrors(apiErr) {
			if sqErr != nil && sqErr.Category == sq.ErrorCategoryAuthenticationError {
				code = pkgerrors.CodeDependency
				break
			}
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("square %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("square %s failed", op))
}

func extractSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

// Credential failures map to CodeDependency.
func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeDependency
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return pkgerrors.CodeValidation
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidSquareEnv
	}
}
