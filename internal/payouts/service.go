package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-settlement/internal/commission"
	"github.com/angelmondragon/storefront-settlement/internal/ledger"
	"github.com/angelmondragon/storefront-settlement/internal/sellers"
	"github.com/angelmondragon/storefront-settlement/pkg/bankverify"
	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
	"github.com/angelmondragon/storefront-settlement/pkg/metrics"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-settlement/pkg/pagination"
)

const maxRejectionReasonLen = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type bankResolver interface {
	Resolve(ctx context.Context, accountNumber, bankCode string) (bankverify.Result, error)
}

type payoutMetrics interface {
	IncPayout(outcome string)
}

// Service drives the payout state machine: pending or approved records move
// once to paid or rejected and never again.
type Service interface {
	ApprovePayout(ctx context.Context, input ApproveInput) (*Payout, error)
	RejectPayout(ctx context.Context, input RejectInput) (*Payout, error)
	VerifyBankAccount(ctx context.Context, sellerID uuid.UUID) (*BankCheck, error)
	ListPayouts(ctx context.Context, filter commission.Filter, params pagination.Params) (pagination.Page[Payout], error)
}

// ServiceParams wires the payout service. Bank, Metrics and Logger are optional.
type ServiceParams struct {
	Tx          txRunner
	Commissions commission.Repository
	Sellers     sellers.Repository
	Ledger      ledger.Service
	Outbox      outboxPublisher
	Bank        bankResolver
	Metrics     payoutMetrics
	Logger      *logger.Logger
}

type service struct {
	tx          txRunner
	commissions commission.Repository
	sellers     sellers.Repository
	ledger      ledger.Service
	outbox      outboxPublisher
	bank        bankResolver
	metrics     payoutMetrics
	logg        *logger.Logger
	now         func() time.Time
}

// NewService validates params and builds the payout service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Commissions == nil:
		return nil, fmt.Errorf("commission repository required")
	case params.Sellers == nil:
		return nil, fmt.Errorf("sellers repository required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("ledger service required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:          params.Tx,
		commissions: params.Commissions,
		sellers:     params.Sellers,
		ledger:      params.Ledger,
		outbox:      params.Outbox,
		bank:        params.Bank,
		metrics:     params.Metrics,
		logg:        params.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// ApprovePayout marks the record paid, credits the seller's counters and
// debits the held wallet balance in one transaction. A second approval of
// the same record fails with an invalid state transition.
func (s *service) ApprovePayout(ctx context.Context, input ApproveInput) (*Payout, error) {
	reference := strings.TrimSpace(input.PaymentReference)
	if err := validateActor(input.CommissionID, input.ActorUserID); err != nil {
		return nil, err
	}
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_reference is required").
			WithDetails(pkgerrors.ReasonDetails{Field: "payment_reference"})
	}

	var out *models.CommissionTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		record, err := s.settle(ctx, tx, input.CommissionID, commission.Settlement{
			Target:           enums.CommissionStatusPaid,
			PaymentReference: &reference,
			At:               now,
		})
		if err != nil {
			return err
		}

		if err := s.sellers.WithTx(tx).CreditPayout(ctx, record.SellerID, record.TotalCents, record.CommissionCents); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "credit seller counters")
		}
		if err := s.sellers.WithTx(tx).DebitWallet(ctx, record.Currency, record.SellerAmountCents); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "debit platform wallet")
		}
		if _, err := s.ledger.Record(ctx, tx, ledger.RecordInput{
			OrderID:      record.OrderID,
			CommissionID: record.ID,
			SellerID:     record.SellerID,
			ActorUserID:  &input.ActorUserID,
			Type:         enums.LedgerEventTypePayoutPaid,
			AmountCents:  record.SellerAmountCents,
			Metadata:     map[string]any{"payment_reference": reference},
		}); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutPaid,
			AggregateType: enums.AggregateCommissionTransaction,
			AggregateID:   record.ID,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: string(enums.RoleAdmin)},
			Data: payloads.PayoutPaidEvent{
				CommissionID:      record.ID,
				OrderID:           record.OrderID,
				SellerID:          record.SellerID,
				Currency:          record.Currency,
				TotalCents:        record.TotalCents,
				CommissionCents:   record.CommissionCents,
				SellerAmountCents: record.SellerAmountCents,
				PaymentReference:  reference,
				PaidAt:            now,
			},
			OccurredAt: now,
		}); err != nil {
			return err
		}
		out = record
		return nil
	})
	if err != nil {
		s.observe(ctx, input.CommissionID, err, "")
		return nil, err
	}
	s.observe(ctx, input.CommissionID, nil, metrics.PayoutOutcomePaid)
	payout := newPayout(out)
	return &payout, nil
}

// RejectPayout marks the record rejected. No money moves.
func (s *service) RejectPayout(ctx context.Context, input RejectInput) (*Payout, error) {
	if err := validateActor(input.CommissionID, input.ActorUserID); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(input.Reason)
	if len(reason) > maxRejectionReasonLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is too long").
			WithDetails(pkgerrors.ReasonDetails{Field: "reason"})
	}
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	var out *models.CommissionTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		record, err := s.settle(ctx, tx, input.CommissionID, commission.Settlement{
			Target:          enums.CommissionStatusRejected,
			RejectionReason: reasonPtr,
			At:              now,
		})
		if err != nil {
			return err
		}
		if _, err := s.ledger.Record(ctx, tx, ledger.RecordInput{
			OrderID:      record.OrderID,
			CommissionID: record.ID,
			SellerID:     record.SellerID,
			ActorUserID:  &input.ActorUserID,
			Type:         enums.LedgerEventTypePayoutRejected,
			AmountCents:  0,
			Metadata:     map[string]any{"reason": reason},
		}); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutRejected,
			AggregateType: enums.AggregateCommissionTransaction,
			AggregateID:   record.ID,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: string(enums.RoleAdmin)},
			Data: payloads.PayoutRejectedEvent{
				CommissionID: record.ID,
				OrderID:      record.OrderID,
				SellerID:     record.SellerID,
				Reason:       reason,
				RejectedAt:   now,
			},
			OccurredAt: now,
		}); err != nil {
			return err
		}
		out = record
		return nil
	})
	if err != nil {
		s.observe(ctx, input.CommissionID, err, "")
		return nil, err
	}
	s.observe(ctx, input.CommissionID, nil, metrics.PayoutOutcomeRejected)
	payout := newPayout(out)
	return &payout, nil
}

// settle applies the conditional transition and reloads the record. When no
// row changes the current status explains why.
func (s *service) settle(ctx context.Context, tx *gorm.DB, id uuid.UUID, settlement commission.Settlement) (*models.CommissionTransaction, error) {
	repo := s.commissions.WithTx(tx)
	changed, err := repo.Transition(ctx, id, settlement)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update commission status")
	}
	record, err := repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, commission.ErrNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load commission transaction")
	}
	if !changed {
		return nil, pkgerrors.NewWithReason(pkgerrors.CodeStateConflict, pkgerrors.ReasonInvalidStateTransition,
			fmt.Sprintf("payout already %s", record.Status),
			pkgerrors.ReasonDetails{Field: "status", Expected: settlement.Target, Actual: record.Status})
	}
	return record, nil
}

// VerifyBankAccount checks the seller's payout destination. The result is
// advisory: a failed lookup is returned, not stored, and never touches any
// commission record.
func (s *service) VerifyBankAccount(ctx context.Context, sellerID uuid.UUID) (*BankCheck, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if s.bank == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "bank verification is not configured")
	}
	profile, err := s.sellers.Get(ctx, sellerID)
	if err != nil {
		if errors.Is(err, sellers.ErrNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "seller not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller")
	}
	accountNumber, bankCode := deref(profile.AccountNumber), deref(profile.BankCode)
	if accountNumber == "" || bankCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller has no bank details on file")
	}

	check := &BankCheck{
		SellerID:      sellerID,
		BankName:      deref(profile.BankName),
		AccountNumber: maskAccount(accountNumber),
	}
	result, err := s.bank.Resolve(ctx, accountNumber, bankCode)
	if err != nil {
		return nil, err
	}
	if !result.Verified {
		return check, nil
	}

	now := s.now()
	if err := s.sellers.MarkBankVerified(ctx, sellerID, sellers.BankVerification{AccountName: result.AccountName, VerifiedAt: now}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store bank verification")
	}
	check.Verified = true
	check.AccountName = result.AccountName
	check.VerifiedAt = &now
	return check, nil
}

func (s *service) ListPayouts(ctx context.Context, filter commission.Filter, params pagination.Params) (pagination.Page[Payout], error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return pagination.Page[Payout]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	page, err := s.commissions.List(ctx, filter, params)
	switch {
	case errors.Is(err, pagination.ErrInvalidCursor):
		return pagination.Page[Payout]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	case err != nil:
		return pagination.Page[Payout]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	out := pagination.Page[Payout]{Items: make([]Payout, 0, len(page.Items)), NextCursor: page.NextCursor}
	for i := range page.Items {
		out.Items = append(out.Items, newPayout(&page.Items[i]))
	}
	return out, nil
}

func (s *service) observe(ctx context.Context, commissionID uuid.UUID, err error, outcome string) {
	if err != nil && pkgerrors.HasReason(err, pkgerrors.ReasonInvalidStateTransition) {
		outcome = metrics.PayoutOutcomeConflict
	}
	if outcome != "" && s.metrics != nil {
		s.metrics.IncPayout(outcome)
	}
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithField(ctx, "commission_id", commissionID.String())
	switch {
	case err == nil:
		s.logg.Info(s.logg.WithField(logCtx, "outcome", outcome), "payout settled")
	case outcome == metrics.PayoutOutcomeConflict:
		s.logg.Warn(logCtx, err.Error())
	default:
		s.logg.Error(logCtx, "payout transition failed", err)
	}
}

func validateActor(commissionID, actorID uuid.UUID) error {
	if commissionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "commission id required")
	}
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

func maskAccount(number string) string {
	if len(number) <= 4 {
		return number
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}
