package bankverify

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-settlement/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newClient(t *testing.T, status int, body string, captured *http.Request) *Client {
	t.Helper()
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if captured != nil {
			*captured = *req
		}
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: http.Header{}}, nil
	})
	c, err := NewClient(config.BankVerifyConfig{BaseURL: "http://bank.test/", SecretKey: "sk"}, &http.Client{Transport: rt})
	require.NoError(t, err)
	return c
}

func TestResolveVerified(t *testing.T) {
	var req http.Request
	c := newClient(t, http.StatusOK, `{"status":true,"data":{"account_number":"0123456789","account_name":"ADA STORES LTD"}}`, &req)

	res, err := c.Resolve(context.Background(), "0123456789", "058")
	require.NoError(t, err)
	require.True(t, res.Verified)
	require.Equal(t, "ADA STORES LTD", res.AccountName)
	require.Equal(t, "/bank/resolve", req.URL.Path)
	require.Equal(t, "058", req.URL.Query().Get("bank_code"))
	require.Equal(t, "Bearer sk", req.Header.Get("Authorization"))
}

func TestResolveUnknownAccount(t *testing.T) {
	c := newClient(t, http.StatusUnprocessableEntity, `{"status":false,"message":"Could not resolve account name"}`, nil)
	res, err := c.Resolve(context.Background(), "0000000000", "058")
	require.NoError(t, err)
	require.False(t, res.Verified)
}

func TestResolveProviderOutage(t *testing.T) {
	c := newClient(t, http.StatusServiceUnavailable, "down", nil)
	_, err := c.Resolve(context.Background(), "0123456789", "058")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeDependency, typed.Code())
}

func TestResolveRequiresInputs(t *testing.T) {
	c := newClient(t, http.StatusOK, "{}", nil)
	_, err := c.Resolve(context.Background(), "", "058")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestNewClientRequiresSecret(t *testing.T) {
	_, err := NewClient(config.BankVerifyConfig{}, nil)
	require.Error(t, err)
}
