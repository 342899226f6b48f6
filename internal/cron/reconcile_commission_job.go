package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-settlement/internal/commission"
	"github.com/angelmondragon/storefront-settlement/internal/ledger"
	"github.com/angelmondragon/storefront-settlement/internal/orders"
	"github.com/angelmondragon/storefront-settlement/internal/sellers"
	"github.com/angelmondragon/storefront-settlement/internal/settings"
	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox/payloads"
)

const (
	defaultReconcileGrace = 10 * time.Minute
	defaultReconcileBatch = 100
)

type backfillEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ReconcileCommissionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Orders      orders.Repository
	Commissions commission.Repository
	Sellers     sellers.Repository
	Ledger      ledger.Service
	Outbox      backfillEmitter
	Settings    settings.Resolver
	Grace       time.Duration
	BatchSize   int
}

// NewReconcileCommissionJob backfills commission rows for committed orders
// whose sellers have none. Orders younger than the grace window are left to
// their in-flight writer.
func NewReconcileCommissionJob(params ReconcileCommissionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Commissions == nil:
		return nil, fmt.Errorf("commission repository required")
	case params.Sellers == nil:
		return nil, fmt.Errorf("sellers repository required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("ledger service required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox required")
	case params.Settings == nil:
		return nil, fmt.Errorf("settings resolver required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultReconcileGrace
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &reconcileCommissionJob{
		logg:        params.Logger,
		db:          params.DB,
		orders:      params.Orders,
		commissions: params.Commissions,
		sellers:     params.Sellers,
		ledger:      params.Ledger,
		outbox:      params.Outbox,
		settings:    params.Settings,
		grace:       grace,
		batch:       batch,
		now:         time.Now,
	}, nil
}

type reconcileCommissionJob struct {
	logg        *logger.Logger
	db          txRunner
	orders      orders.Repository
	commissions commission.Repository
	sellers     sellers.Repository
	ledger      ledger.Service
	outbox      backfillEmitter
	settings    settings.Resolver
	grace       time.Duration
	batch       int
	now         func() time.Time
}

func (j *reconcileCommissionJob) Name() string { return "commission-reconcile" }

func (j *reconcileCommissionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)
	pending, err := j.orders.ListMissingCommission(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list orders missing commission: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	cfg, err := j.settings.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolve settings: %w", err)
	}

	var errs error
	written := 0
	for i := range pending {
		order := &pending[i]
		orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
		n, err := j.backfill(orderCtx, order, cfg)
		if err != nil {
			j.logg.Error(orderCtx, "commission backfill failed", err)
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		written += n
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"orders_scanned": len(pending),
		"splits_written": written,
		"cutoff":         cutoff,
	})
	if written > 0 {
		j.logg.Warn(logCtx, "commission reconciliation backfilled missing splits")
	} else {
		j.logg.Info(logCtx, "commission reconciliation found nothing to backfill")
	}
	return errs
}

// backfill writes the missing split for every seller on the order in one
// transaction. Sellers that already have a row are skipped. The rate
// snapshotted on the order's items wins; the seller's current rate applies
// only to items written without one.
func (j *reconcileCommissionJob) backfill(ctx context.Context, order *models.Order, cfg settings.Settings) (int, error) {
	shares := sellerSubtotals(order.Items)
	written := 0
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		written = 0
		existing, err := j.commissions.WithTx(tx).ListByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		have := make(map[uuid.UUID]bool, len(existing))
		for _, row := range existing {
			have[row.SellerID] = true
		}

		ids := make([]uuid.UUID, 0, len(shares))
		for _, share := range shares {
			if !have[share.sellerID] {
				ids = append(ids, share.sellerID)
			}
		}
		if len(ids) == 0 {
			return nil
		}
		profiles, err := j.sellers.WithTx(tx).GetMany(ctx, ids)
		if err != nil {
			return err
		}

		currency := order.Currency
		if currency == "" {
			currency = cfg.Currency
		}
		var commissionSum, sellerSum int64
		for _, share := range shares {
			if have[share.sellerID] {
				continue
			}
			profile, ok := profiles[share.sellerID]
			if !ok {
				return fmt.Errorf("seller %s not registered", share.sellerID)
			}
			rate := commission.ResolveRate(profile.CommissionRate, cfg.DefaultCommissionRate)
			if share.rate != nil {
				rate = *share.rate
			}
			commissionCents, sellerCents, err := commission.Split(share.subtotal, rate)
			if err != nil {
				return err
			}
			record := models.CommissionTransaction{
				OrderID:           order.ID,
				SellerID:          share.sellerID,
				Currency:          currency,
				TotalCents:        share.subtotal,
				CommissionRate:    rate,
				CommissionCents:   commissionCents,
				SellerAmountCents: sellerCents,
			}
			if err := j.commissions.WithTx(tx).Create(ctx, &record); err != nil {
				return err
			}
			if err := j.sellers.WithTx(tx).AccrueWallet(ctx, currency, commissionCents, sellerCents); err != nil {
				return err
			}
			if _, err := j.ledger.Record(ctx, tx, ledger.RecordInput{
				OrderID:      order.ID,
				CommissionID: record.ID,
				SellerID:     share.sellerID,
				Type:         enums.LedgerEventTypeCommissionAccrued,
				AmountCents:  commissionCents,
				Metadata:     map[string]any{"backfilled": true, "rate": rate.StringFixed(2)},
			}); err != nil {
				return err
			}
			if err := j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCommissionBackfill,
				AggregateType: enums.AggregateCommissionTransaction,
				AggregateID:   record.ID,
				Data: payloads.CommissionBackfilledEvent{
					CommissionID:      record.ID,
					OrderID:           order.ID,
					SellerID:          share.sellerID,
					CommissionCents:   commissionCents,
					SellerAmountCents: sellerCents,
				},
			}); err != nil {
				return err
			}
			commissionSum += commissionCents
			sellerSum += sellerCents
			written++
		}
		return j.orders.WithTx(tx).AddCommission(ctx, order.ID, commissionSum, sellerSum)
	})
	return written, err
}

type sellerSubtotal struct {
	sellerID uuid.UUID
	subtotal int64
	rate     *decimal.Decimal
}

func sellerSubtotals(items []models.OrderItem) []sellerSubtotal {
	var out []sellerSubtotal
	index := map[uuid.UUID]int{}
	for _, item := range items {
		if item.SellerID == nil {
			continue
		}
		pos, ok := index[*item.SellerID]
		if !ok {
			pos = len(out)
			index[*item.SellerID] = pos
			out = append(out, sellerSubtotal{sellerID: *item.SellerID})
		}
		out[pos].subtotal += item.LineTotalCents
		if out[pos].rate == nil && item.CommissionRate != nil {
			out[pos].rate = item.CommissionRate
		}
	}
	return out
}
