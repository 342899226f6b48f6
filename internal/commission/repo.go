package commission

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-settlement/internal/repo"
	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	"github.com/angelmondragon/storefront-settlement/pkg/pagination"
)

// ErrNotFound signals a missing commission transaction.
var ErrNotFound = errors.New("commission transaction not found")

// Filter narrows payout listings.
type Filter struct {
	Status   *enums.CommissionStatus
	SellerID *uuid.UUID
}

// Settlement carries the columns written by a terminal payout transition.
type Settlement struct {
	Target           enums.CommissionStatus
	PaymentReference *string
	RejectionReason  *string
	At               time.Time
}

// Repository persists commission transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.CommissionTransaction) error
	Get(ctx context.Context, id uuid.UUID) (*models.CommissionTransaction, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.CommissionTransaction, error)
	List(ctx context.Context, filter Filter, params pagination.Params) (pagination.Page[models.CommissionTransaction], error)
	Transition(ctx context.Context, id uuid.UUID, settlement Settlement) (bool, error)
}

type repository struct {
	repo.Base
}

// NewRepository binds a commission repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, record *models.CommissionTransaction) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Status == "" {
		record.Status = enums.CommissionStatusPending
	}
	return r.DB(ctx).Create(record).Error
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.CommissionTransaction, error) {
	var record models.CommissionTransaction
	if err := r.First(ctx, &record, ErrNotFound, "id = ?", id); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.CommissionTransaction, error) {
	var records []models.CommissionTransaction
	if err := r.DB(ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) List(ctx context.Context, filter Filter, params pagination.Params) (pagination.Page[models.CommissionTransaction], error) {
	query := r.DB(ctx).Model(&models.CommissionTransaction{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.SellerID != nil {
		query = query.Where("seller_id = ?", *filter.SellerID)
	}
	query, err := pagination.Apply(query, params, "")
	if err != nil {
		return pagination.Page[models.CommissionTransaction]{}, err
	}

	var rows []models.CommissionTransaction
	if err := query.Find(&rows).Error; err != nil {
		return pagination.Page[models.CommissionTransaction]{}, err
	}
	return pagination.BuildPage(rows, params.Limit, func(row models.CommissionTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	}), nil
}

// Transition moves the record to settlement.Target only while it sits in a
// status that may legally reach it. It reports whether a row changed.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, settlement Settlement) (bool, error) {
	sources := enums.CommissionStatusSourcesFor(settlement.Target)
	if len(sources) == 0 {
		return false, nil
	}
	updates := map[string]any{
		"status":     settlement.Target,
		"updated_at": settlement.At,
	}
	switch settlement.Target {
	case enums.CommissionStatusPaid:
		updates["paid_at"] = settlement.At
		updates["payment_reference"] = settlement.PaymentReference
	case enums.CommissionStatusRejected:
		updates["rejected_at"] = settlement.At
		updates["rejection_reason"] = settlement.RejectionReason
	}
	res := r.DB(ctx).Model(&models.CommissionTransaction{}).
		Where("id = ? AND status IN ?", id, sources).
		Updates(updates)
	return repo.Swapped(res)
}
