package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-settlement/internal/repo"
	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
)

// ErrNotFound signals a missing order.
var ErrNotFound = errors.New("order not found")

// Repository persists orders, their items and payment records. Orders are
// never deleted. Amounts paid by the buyer have no update path; commission
// sums only grow through AddCommission.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	CreatePayment(ctx context.Context, payment *models.PaymentTransaction) error
	PaymentReferenceUsed(ctx context.Context, reference string) (bool, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByTrackingHash(ctx context.Context, hash string) (*models.Order, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, at time.Time) (bool, error)
	ListMissingCommission(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
	AddCommission(ctx context.Context, id uuid.UUID, commissionCents, sellerCents int64) error
}

type repository struct {
	repo.Base
}

// NewRepository binds an order repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
	}
	return r.DB(ctx).Create(order).Error
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.PaymentTransaction) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	return r.DB(ctx).Create(payment).Error
}

func (r *repository) PaymentReferenceUsed(ctx context.Context, reference string) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Order{}).Where("payment_reference = ?", reference).Count(&count).Error
	return count > 0, err
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) GetByTrackingHash(ctx context.Context, hash string) (*models.Order, error) {
	return r.first(ctx, "tracking_token_hash = ?", hash)
}

func (r *repository) first(ctx context.Context, query string, arg any) (*models.Order, error) {
	var order models.Order
	err := r.DB(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where(query, arg).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// TransitionStatus moves the order from one status to another only if it is
// still in from. It reports whether a row changed.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, at time.Time) (bool, error) {
	res := r.DB(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": at})
	return repo.Swapped(res)
}

// ListMissingCommission returns non-cancelled orders created before the cutoff
// that hold a seller's items without a commission record for that seller.
func (r *repository) ListMissingCommission(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []uuid.UUID
	err := r.DB(ctx).Model(&models.OrderItem{}).
		Distinct("order_items.order_id").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("order_items.seller_id IS NOT NULL").
		Where("orders.created_at < ? AND orders.status <> ?", createdBefore, enums.OrderStatusCancelled).
		Where("NOT EXISTS (SELECT 1 FROM commission_transactions ct WHERE ct.order_id = order_items.order_id AND ct.seller_id = order_items.seller_id)").
		Limit(limit).
		Pluck("order_items.order_id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var out []models.Order
	if err := r.DB(ctx).Preload("Items").Where("id IN ?", ids).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) AddCommission(ctx context.Context, id uuid.UUID, commissionCents, sellerCents int64) error {
	res := r.DB(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"commission_cents":    gorm.Expr("commission_cents + ?", commissionCents),
			"seller_amount_cents": gorm.Expr("seller_amount_cents + ?", sellerCents),
			"updated_at":          time.Now().UTC(),
		})
	return repo.Touched(res, ErrNotFound)
}
