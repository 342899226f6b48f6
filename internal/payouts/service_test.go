package payouts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-settlement/internal/commission"
	"github.com/angelmondragon/storefront-settlement/internal/ledger"
	"github.com/angelmondragon/storefront-settlement/internal/sellers"
	"github.com/angelmondragon/storefront-settlement/internal/testdb"
	"github.com/angelmondragon/storefront-settlement/pkg/bankverify"
	pkgdb "github.com/angelmondragon/storefront-settlement/pkg/db"
	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
	"github.com/angelmondragon/storefront-settlement/pkg/metrics"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox"
	"github.com/angelmondragon/storefront-settlement/pkg/pagination"
)

type countingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (m *countingMetrics) IncPayout(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[string]int{}
	}
	m.outcomes[outcome]++
}

func (m *countingMetrics) count(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[outcome]
}

type stubBank struct {
	result bankverify.Result
	err    error
	calls  int
}

func (s *stubBank) Resolve(_ context.Context, accountNumber, _ string) (bankverify.Result, error) {
	s.calls++
	if s.err != nil {
		return bankverify.Result{}, s.err
	}
	res := s.result
	res.AccountNumber = accountNumber
	return res, nil
}

type harness struct {
	db      *gorm.DB
	svc     Service
	bank    *stubBank
	metrics *countingMetrics
	seller  models.SellerProfile
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testdb.Open(t)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)
	bank := &stubBank{}
	counter := &countingMetrics{}
	svc, err := NewService(ServiceParams{
		Tx:          pkgdb.NewFromConn(db),
		Commissions: commission.NewRepository(db),
		Sellers:     sellers.NewRepository(db),
		Ledger:      ledgerSvc,
		Outbox:      outbox.NewService(outbox.NewRepository(db), nil),
		Bank:        bank,
		Metrics:     counter,
	})
	require.NoError(t, err)
	return &harness{
		db:      db,
		svc:     svc,
		bank:    bank,
		metrics: counter,
		seller:  testdb.SeedSeller(t, db, "Ada Crafts", nil),
	}
}

// seedPending writes a 10,000 NGN split at 15% and the wallet accrual that
// checkout would have made alongside it.
func (h *harness) seedPending(t *testing.T) models.CommissionTransaction {
	t.Helper()
	record := models.CommissionTransaction{
		OrderID:           uuid.New(),
		SellerID:          h.seller.ID,
		Currency:          "NGN",
		TotalCents:        1_000_000,
		CommissionRate:    decimal.RequireFromString("15"),
		CommissionCents:   150_000,
		SellerAmountCents: 850_000,
	}
	ctx := context.Background()
	require.NoError(t, commission.NewRepository(h.db).Create(ctx, &record))
	require.NoError(t, sellers.NewRepository(h.db).AccrueWallet(ctx, "NGN", record.CommissionCents, record.SellerAmountCents))
	return record
}

func (h *harness) ledgerTypes(t *testing.T, commissionID uuid.UUID) []enums.LedgerEventType {
	t.Helper()
	var rows []models.LedgerEvent
	require.NoError(t, h.db.Where("commission_transaction_id = ?", commissionID).Order("created_at").Find(&rows).Error)
	types := make([]enums.LedgerEventType, 0, len(rows))
	for _, row := range rows {
		types = append(types, row.Type)
	}
	return types
}

func (h *harness) outboxCount(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestApprovePayoutSettlesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	record := h.seedPending(t)
	admin := uuid.New()

	payout, err := h.svc.ApprovePayout(ctx, ApproveInput{CommissionID: record.ID, ActorUserID: admin, PaymentReference: " TRF-001 "})
	require.NoError(t, err)
	require.Equal(t, enums.CommissionStatusPaid, payout.Status)
	require.NotNil(t, payout.PaidAt)
	require.Equal(t, "TRF-001", *payout.PaymentReference)
	require.Equal(t, "15.00", payout.CommissionRate)

	seller, err := sellers.NewRepository(h.db).Get(ctx, h.seller.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), seller.TotalSalesCents)
	require.Equal(t, int64(150_000), seller.TotalCommissionCents)

	wallet, err := sellers.NewRepository(h.db).GetWallet(ctx, "NGN")
	require.NoError(t, err)
	require.Equal(t, int64(0), wallet.WithdrawableBalanceCents)
	require.Equal(t, int64(150_000), wallet.TotalCommissionCents)

	require.Equal(t, []enums.LedgerEventType{enums.LedgerEventTypePayoutPaid}, h.ledgerTypes(t, record.ID))
	require.Equal(t, int64(1), h.outboxCount(t, enums.EventPayoutPaid))
	require.Equal(t, 1, h.metrics.count(metrics.PayoutOutcomePaid))

	_, err = h.svc.ApprovePayout(ctx, ApproveInput{CommissionID: record.ID, ActorUserID: admin, PaymentReference: "TRF-002"})
	require.Error(t, err)
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonInvalidStateTransition))
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	require.Contains(t, err.Error(), "already paid")
	require.Equal(t, 1, h.metrics.count(metrics.PayoutOutcomeConflict))

	seller, err = sellers.NewRepository(h.db).Get(ctx, h.seller.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), seller.TotalSalesCents)
	require.Equal(t, int64(1), h.outboxCount(t, enums.EventPayoutPaid))
}

func TestApprovePayoutConcurrentCallsDebitOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	record := h.seedPending(t)

	const callers = 5
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.ApprovePayout(ctx, ApproveInput{
				CommissionID:     record.ID,
				ActorUserID:      uuid.New(),
				PaymentReference: "TRF-RACE",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonInvalidStateTransition), "unexpected error: %v", err)
	}
	require.Equal(t, 1, succeeded)

	seller, err := sellers.NewRepository(h.db).Get(ctx, h.seller.ID)
	require.NoError(t, err)
	require.Equal(t, int64(150_000), seller.TotalCommissionCents)
	wallet, err := sellers.NewRepository(h.db).GetWallet(ctx, "NGN")
	require.NoError(t, err)
	require.Equal(t, int64(0), wallet.WithdrawableBalanceCents)
	require.Len(t, h.ledgerTypes(t, record.ID), 1)
	require.Equal(t, callers-1, h.metrics.count(metrics.PayoutOutcomeConflict))
}

func TestApprovePayoutValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	record := h.seedPending(t)

	_, err := h.svc.ApprovePayout(ctx, ApproveInput{CommissionID: record.ID, ActorUserID: uuid.New(), PaymentReference: "  "})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = h.svc.ApprovePayout(ctx, ApproveInput{CommissionID: record.ID, PaymentReference: "TRF"})
	require.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())

	_, err = h.svc.ApprovePayout(ctx, ApproveInput{CommissionID: uuid.New(), ActorUserID: uuid.New(), PaymentReference: "TRF"})
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	stored, err := commission.NewRepository(h.db).Get(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, enums.CommissionStatusPending, stored.Status)
}

func TestApprovePayoutFromApprovedStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	record := h.seedPending(t)
	require.NoError(t, h.db.Model(&models.CommissionTransaction{}).Where("id = ?", record.ID).Update("status", enums.CommissionStatusApproved).Error)

	payout, err := h.svc.ApprovePayout(ctx, ApproveInput{CommissionID: record.ID, ActorUserID: uuid.New(), PaymentReference: "TRF-9"})
	require.NoError(t, err)
	require.Equal(t, enums.CommissionStatusPaid, payout.Status)
}

func TestRejectPayoutIsTerminal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	record := h.seedPending(t)
	admin := uuid.New()

	payout, err := h.svc.RejectPayout(ctx, RejectInput{CommissionID: record.ID, ActorUserID: admin, Reason: "bank details mismatch"})
	require.NoError(t, err)
	require.Equal(t, enums.CommissionStatusRejected, payout.Status)
	require.NotNil(t, payout.RejectedAt)
	require.Equal(t, "bank details mismatch", *payout.RejectionReason)
	require.Equal(t, []enums.LedgerEventType{enums.LedgerEventTypePayoutRejected}, h.ledgerTypes(t, record.ID))
	require.Equal(t, int64(1), h.outboxCount(t, enums.EventPayoutRejected))

	wallet, err := sellers.NewRepository(h.db).GetWallet(ctx, "NGN")
	require.NoError(t, err)
	require.Equal(t, int64(850_000), wallet.WithdrawableBalanceCents)

	_, err = h.svc.ApprovePayout(ctx, ApproveInput{CommissionID: record.ID, ActorUserID: admin, PaymentReference: "TRF"})
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonInvalidStateTransition))
	require.Contains(t, err.Error(), "already rejected")

	_, err = h.svc.RejectPayout(ctx, RejectInput{CommissionID: record.ID, ActorUserID: admin})
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonInvalidStateTransition))
}

func TestRejectAfterPaidFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	record := h.seedPending(t)
	admin := uuid.New()

	_, err := h.svc.ApprovePayout(ctx, ApproveInput{CommissionID: record.ID, ActorUserID: admin, PaymentReference: "TRF"})
	require.NoError(t, err)
	_, err = h.svc.RejectPayout(ctx, RejectInput{CommissionID: record.ID, ActorUserID: admin, Reason: "late"})
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonInvalidStateTransition))

	stored, err := commission.NewRepository(h.db).Get(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, enums.CommissionStatusPaid, stored.Status)
	require.Nil(t, stored.RejectionReason)
}

func TestApprovePayoutWithoutWalletRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	record := h.seedPending(t)
	require.NoError(t, h.db.Where("currency = ?", "NGN").Delete(&models.PlatformWallet{}).Error)

	_, err := h.svc.ApprovePayout(ctx, ApproveInput{CommissionID: record.ID, ActorUserID: uuid.New(), PaymentReference: "TRF"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
	require.ErrorIs(t, err, sellers.ErrWalletNotFound)

	stored, err := commission.NewRepository(h.db).Get(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, enums.CommissionStatusPending, stored.Status)
	require.Empty(t, h.ledgerTypes(t, record.ID))
	require.Zero(t, h.outboxCount(t, enums.EventPayoutPaid))
}

func withBankDetails(t *testing.T, db *gorm.DB, sellerID uuid.UUID) {
	t.Helper()
	require.NoError(t, db.Model(&models.SellerProfile{}).Where("id = ?", sellerID).Updates(map[string]any{
		"bank_name":      "First Bank",
		"bank_code":      "011",
		"account_number": "3012345678",
	}).Error)
}

func TestVerifyBankAccountStoresSuccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	withBankDetails(t, h.db, h.seller.ID)
	h.bank.result = bankverify.Result{Verified: true, AccountName: "ADA CRAFTS LTD"}

	check, err := h.svc.VerifyBankAccount(ctx, h.seller.ID)
	require.NoError(t, err)
	require.True(t, check.Verified)
	require.Equal(t, "ADA CRAFTS LTD", check.AccountName)
	require.Equal(t, "******5678", check.AccountNumber)

	seller, err := sellers.NewRepository(h.db).Get(ctx, h.seller.ID)
	require.NoError(t, err)
	require.NotNil(t, seller.BankVerifiedAt)
	require.Equal(t, "ADA CRAFTS LTD", *seller.AccountName)
}

func TestVerifyBankAccountFailureLeavesPayoutsAlone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	withBankDetails(t, h.db, h.seller.ID)
	record := h.seedPending(t)

	check, err := h.svc.VerifyBankAccount(ctx, h.seller.ID)
	require.NoError(t, err)
	require.False(t, check.Verified)

	h.bank.err = pkgerrors.New(pkgerrors.CodeDependency, "bank lookup unavailable")
	_, err = h.svc.VerifyBankAccount(ctx, h.seller.ID)
	require.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())

	seller, err := sellers.NewRepository(h.db).Get(ctx, h.seller.ID)
	require.NoError(t, err)
	require.Nil(t, seller.BankVerifiedAt)

	stored, err := commission.NewRepository(h.db).Get(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, enums.CommissionStatusPending, stored.Status)

	_, err = h.svc.ApprovePayout(ctx, ApproveInput{CommissionID: record.ID, ActorUserID: uuid.New(), PaymentReference: "TRF"})
	require.NoError(t, err)
}

func TestVerifyBankAccountRequiresDetails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.VerifyBankAccount(ctx, h.seller.ID)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	require.Zero(t, h.bank.calls)

	_, err = h.svc.VerifyBankAccount(ctx, uuid.New())
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestListPayoutsFiltersByStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.seedPending(t)
	time.Sleep(2 * time.Millisecond)
	h.seedPending(t)
	_, err := h.svc.RejectPayout(ctx, RejectInput{CommissionID: first.ID, ActorUserID: uuid.New()})
	require.NoError(t, err)

	pending := enums.CommissionStatusPending
	page, err := h.svc.ListPayouts(ctx, commission.Filter{Status: &pending}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, enums.CommissionStatusPending, page.Items[0].Status)

	bogus := enums.CommissionStatus("settled")
	_, err = h.svc.ListPayouts(ctx, commission.Filter{Status: &bogus}, pagination.Params{})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = h.svc.ListPayouts(ctx, commission.Filter{}, pagination.Params{Cursor: "not-a-cursor"})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	require.ErrorIs(t, err, pagination.ErrInvalidCursor)
}

func TestObserveIgnoresUnrelatedErrors(t *testing.T) {
	counter := &countingMetrics{}
	s := &service{metrics: counter}
	s.observe(context.Background(), uuid.New(), errors.New("boom"), "")
	require.Zero(t, counter.count(metrics.PayoutOutcomeConflict))
}
