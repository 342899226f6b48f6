package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-settlement/internal/repo"
	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
)

// Repository manages persistence for ledger events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.LedgerEvent) error
	ListByCommission(ctx context.Context, commissionID uuid.UUID) ([]models.LedgerEvent, error)
	Exists(ctx context.Context, commissionID uuid.UUID, eventType enums.LedgerEventType) (bool, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, event *models.LedgerEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return r.DB(ctx).Create(event).Error
}

func (r *repository) ListByCommission(ctx context.Context, commissionID uuid.UUID) ([]models.LedgerEvent, error) {
	var events []models.LedgerEvent
	if err := r.DB(ctx).
		Where("commission_transaction_id = ?", commissionID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) Exists(ctx context.Context, commissionID uuid.UUID, eventType enums.LedgerEventType) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.LedgerEvent{}).
		Where("commission_transaction_id = ? AND type = ?", commissionID, eventType).
		Count(&count).Error
	return count > 0, err
}
