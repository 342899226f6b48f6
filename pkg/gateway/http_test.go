package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc) *HTTPClient {
	t.Helper()
	client, err := NewHTTPClient("sk_test", WithBaseURL("http://gateway.test/"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestHTTPClientVerifySuccess(t *testing.T) {
	var capturedURL, capturedAuth string
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedAuth = req.Header.Get("Authorization")
		return jsonResponse(http.StatusOK, `{"status":true,"message":"ok","data":{"status":"success","reference":"ref_1","amount":1080000,"currency":"ngn"}}`), nil
	})

	got, err := client.Verify(context.Background(), " ref_1 ")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if capturedURL != "http://gateway.test/transaction/verify/ref_1" {
		t.Fatalf("unexpected url %q", capturedURL)
	}
	if capturedAuth != "Bearer sk_test" {
		t.Fatalf("unexpected auth header %q", capturedAuth)
	}
	if !got.Succeeded() || got.AmountMinor != 1080000 || got.Currency != "NGN" || got.Reference != "ref_1" {
		t.Fatalf("unexpected verification %+v", got)
	}
}

func TestHTTPClientVerifyNotFound(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{"status":false,"message":"Transaction reference not found"}`), nil
	})
	got, err := client.Verify(context.Background(), "missing")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.Status != StatusNotFound || got.Succeeded() {
		t.Fatalf("expected not_found, got %+v", got)
	}
}

func TestHTTPClientVerifyFailedCharge(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"status":true,"data":{"status":"failed","amount":500,"currency":"NGN"}}`), nil
	})
	got, err := client.Verify(context.Background(), "ref_failed")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.Status != StatusFailed || got.Reference != "ref_failed" {
		t.Fatalf("unexpected verification %+v", got)
	}
}

func TestHTTPClientVerifyDependencyErrors(t *testing.T) {
	cases := map[string]roundTripFunc{
		"server error": func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusBadGateway, "upstream down"), nil
		},
		"transport error": func(*http.Request) (*http.Response, error) {
			return nil, errors.New("dial tcp: i/o timeout")
		},
		"bad json": func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, "{not json"), nil
		},
	}
	for name, rt := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, rt)
			_, err := client.Verify(context.Background(), "ref")
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeDependency {
				t.Fatalf("expected dependency error, got %v", err)
			}
		})
	}
}

func TestHTTPClientRejectsEmptyReference(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})
	_, err := client.Verify(context.Background(), "  ")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewHTTPClientRequiresSecret(t *testing.T) {
	if _, err := NewHTTPClient(" "); err == nil {
		t.Fatal("expected missing secret to fail")
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]string{
		"success":   StatusSuccess,
		"COMPLETED": StatusSuccess,
		"pending":   StatusPending,
		"ongoing":   StatusPending,
		"abandoned": StatusAbandoned,
		"CANCELED":  StatusAbandoned,
		"failed":    StatusFailed,
		"FAILED":    StatusFailed,
		"":          StatusNotFound,
	}
	for raw, want := range cases {
		if got := normalizeStatus(raw); got != want {
			t.Fatalf("normalizeStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}
