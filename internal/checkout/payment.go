package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-settlement/pkg/gateway"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
	"github.com/angelmondragon/storefront-settlement/pkg/money"
)

const defaultVerificationTTL = 24 * time.Hour

type verificationCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	VerificationKey(reference string) string
}

type verifyMetrics interface {
	ObserveGatewayVerify(result string, d time.Duration)
}

// PaymentVerifier confirms a gateway reference covers an expected charge.
// Successful lookups are cached per reference so repeated confirmations of
// the same charge see the same answer without calling the gateway again.
type PaymentVerifier struct {
	gateway gateway.Verifier
	cache   verificationCache
	ttl     time.Duration
	metrics verifyMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// PaymentVerifierParams wires a PaymentVerifier. Cache and Metrics are optional.
type PaymentVerifierParams struct {
	Gateway  gateway.Verifier
	Cache    verificationCache
	CacheTTL time.Duration
	Metrics  verifyMetrics
	Logger   *logger.Logger
}

// NewPaymentVerifier validates params and builds the verifier.
func NewPaymentVerifier(params PaymentVerifierParams) (*PaymentVerifier, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = defaultVerificationTTL
	}
	return &PaymentVerifier{
		gateway: params.Gateway,
		cache:   params.Cache,
		ttl:     ttl,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     time.Now,
	}, nil
}

// Confirm returns the gateway's record when it reports success for an amount
// within one minor unit of expectedCents in currency.
func (p *PaymentVerifier) Confirm(ctx context.Context, reference string, expectedCents int64, currency string) (gateway.Verification, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return gateway.Verification{}, pkgerrors.NewWithReason(pkgerrors.CodeValidation, pkgerrors.ReasonPaymentVerificationFailed,
			"payment reference is required", pkgerrors.ReasonDetails{Field: "payment_reference"})
	}

	result, err := p.lookup(ctx, reference)
	if err != nil {
		return gateway.Verification{}, err
	}
	if !result.Succeeded() {
		return result, pkgerrors.NewWithReason(pkgerrors.CodeValidation, pkgerrors.ReasonPaymentVerificationFailed,
			"payment was not completed", pkgerrors.ReasonDetails{Field: "payment_reference", Actual: result.Status})
	}
	if result.Currency != "" && !strings.EqualFold(result.Currency, currency) {
		return result, pkgerrors.NewWithReason(pkgerrors.CodeValidation, pkgerrors.ReasonPaymentAmountMismatch,
			"payment currency does not match order", pkgerrors.ReasonDetails{Field: "currency", Expected: currency, Actual: result.Currency})
	}
	if !money.WithinTolerance(result.AmountMinor, expectedCents) {
		return result, pkgerrors.NewWithReason(pkgerrors.CodeValidation, pkgerrors.ReasonPaymentAmountMismatch,
			"payment amount does not match order total", pkgerrors.ReasonDetails{Field: "total_amount", Expected: expectedCents, Actual: result.AmountMinor})
	}
	return result, nil
}

func (p *PaymentVerifier) lookup(ctx context.Context, reference string) (gateway.Verification, error) {
	if cached, ok := p.cached(ctx, reference); ok {
		return cached, nil
	}

	started := p.now()
	result, err := p.gateway.Verify(ctx, reference)
	outcome := "error"
	if err == nil {
		outcome = result.Status
	}
	if p.metrics != nil {
		p.metrics.ObserveGatewayVerify(outcome, p.now().Sub(started))
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return gateway.Verification{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway timed out")
		}
		if pkgerrors.As(err) != nil {
			return gateway.Verification{}, err
		}
		return gateway.Verification{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify payment")
	}

	if result.Succeeded() {
		p.store(ctx, reference, result)
	}
	return result, nil
}

func (p *PaymentVerifier) cached(ctx context.Context, reference string) (gateway.Verification, bool) {
	if p.cache == nil {
		return gateway.Verification{}, false
	}
	raw, err := p.cache.Get(ctx, p.cache.VerificationKey(reference))
	if err != nil {
		if !errors.Is(err, goredis.Nil) && p.logg != nil {
			p.logg.Warn(p.logg.WithField(ctx, "payment_reference", reference), "verification cache read failed: "+err.Error())
		}
		return gateway.Verification{}, false
	}
	var result gateway.Verification
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return gateway.Verification{}, false
	}
	return result, true
}

func (p *PaymentVerifier) store(ctx context.Context, reference string, result gateway.Verification) {
	if p.cache == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, p.cache.VerificationKey(reference), string(raw), p.ttl); err != nil && p.logg != nil {
		p.logg.Warn(p.logg.WithField(ctx, "payment_reference", reference), "verification cache write failed: "+err.Error())
	}
}
