package gateway

import (
	"context"
	"errors"
	"net/http"
	"testing"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
)

type stubPayments struct {
	resp *sq.GetPaymentResponse
	err  error
	got  string
}

func (s *stubPayments) Get(_ context.Context, req *sq.GetPaymentsRequest, _ ...sqoption.RequestOption) (*sq.GetPaymentResponse, error) {
	s.got = req.PaymentID
	return s.resp, s.err
}

func TestSquareVerifyCompleted(t *testing.T) {
	status := "COMPLETED"
	amount := int64(2500)
	cur := sq.CurrencyUsd
	stub := &stubPayments{resp: &sq.GetPaymentResponse{Payment: &sq.Payment{
		Status:      &status,
		AmountMoney: &sq.Money{Amount: &amount, Currency: &cur},
	}}}
	client := &SquareClient{payments: stub}

	got, err := client.Verify(context.Background(), "pay_1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if stub.got != "pay_1" {
		t.Fatalf("unexpected payment id %q", stub.got)
	}
	if !got.Succeeded() || got.AmountMinor != 2500 || got.Currency != "USD" {
		t.Fatalf("unexpected verification %+v", got)
	}
}

func TestSquareVerifyNotFound(t *testing.T) {
	stub := &stubPayments{err: sqcore.NewAPIError(http.StatusNotFound, errors.New(`{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"NOT_FOUND"}]}`))}
	client := &SquareClient{payments: stub}
	got, err := client.Verify(context.Background(), "pay_missing")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.Status != StatusNotFound {
		t.Fatalf("expected not_found, got %+v", got)
	}
}

func TestMapSquareError(t *testing.T) {
	auth := sqcore.NewAPIError(http.StatusUnauthorized, errors.New(`{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`))
	if typed := pkgerrors.As(mapSquareError(auth, "get payment")); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency code for auth failure, got %v", typed)
	}
	limited := sqcore.NewAPIError(http.StatusTooManyRequests, errors.New(`{}`))
	if typed := pkgerrors.As(mapSquareError(limited, "get payment")); typed == nil || typed.Code() != pkgerrors.CodeRateLimit {
		t.Fatalf("expected rate limit code, got %v", typed)
	}
	plain := mapSquareError(errors.New("boom"), "get payment")
	if typed := pkgerrors.As(plain); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency code, got %v", typed)
	}
}

func TestRedactSensitiveKeys(t *testing.T) {
	if redact("access_token", "abc") != "[REDACTED]" {
		t.Fatal("expected token to be redacted")
	}
	if redact("payment_id", "pay_1") != "pay_1" {
		t.Fatal("payment id should not be redacted")
	}
}

func TestNormalizeEnv(t *testing.T) {
	if env, err := normalizeEnv(""); err != nil || env != sandboxEnv {
		t.Fatalf("expected sandbox default, got %q %v", env, err)
	}
	if _, err := normalizeEnv("staging"); err == nil {
		t.Fatal("expected unknown env to fail")
	}
}
