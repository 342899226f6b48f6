package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
)

// Service records append-only settlement audit rows. Writes join the
// caller's transaction so the audit commits or rolls back with the money
// movement it describes.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.LedgerEvent, error)
	HasEvent(ctx context.Context, commissionID uuid.UUID, eventType enums.LedgerEventType) (bool, error)
	History(ctx context.Context, commissionID uuid.UUID) ([]models.LedgerEvent, error)
}

type service struct {
	repo Repository
}

// RecordInput captures the immutable data a ledger row requires.
type RecordInput struct {
	OrderID      uuid.UUID
	CommissionID uuid.UUID
	SellerID     uuid.UUID
	ActorUserID  *uuid.UUID
	Type         enums.LedgerEventType
	AmountCents  int64
	Metadata     map[string]any
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.LedgerEvent, error) {
	if input.OrderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	if input.CommissionID == uuid.Nil {
		return nil, fmt.Errorf("commission transaction id is required")
	}
	if input.SellerID == uuid.Nil {
		return nil, fmt.Errorf("seller id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger event type %q", input.Type)
	}
	if input.AmountCents < 0 {
		return nil, fmt.Errorf("ledger amount must be non-negative")
	}

	var metadata json.RawMessage
	if len(input.Metadata) > 0 {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode ledger metadata: %w", err)
		}
		metadata = raw
	}

	event := &models.LedgerEvent{
		OrderID:                 input.OrderID,
		CommissionTransactionID: input.CommissionID,
		SellerID:                input.SellerID,
		ActorUserID:             input.ActorUserID,
		Type:                    input.Type,
		AmountCents:             input.AmountCents,
		Metadata:                metadata,
	}
	if err := s.repo.WithTx(tx).Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) HasEvent(ctx context.Context, commissionID uuid.UUID, eventType enums.LedgerEventType) (bool, error) {
	if commissionID == uuid.Nil {
		return false, fmt.Errorf("commission transaction id is required")
	}
	if !eventType.IsValid() {
		return false, fmt.Errorf("invalid ledger event type %q", eventType)
	}
	return s.repo.Exists(ctx, commissionID, eventType)
}

func (s *service) History(ctx context.Context, commissionID uuid.UUID) ([]models.LedgerEvent, error) {
	if commissionID == uuid.Nil {
		return nil, fmt.Errorf("commission transaction id is required")
	}
	return s.repo.ListByCommission(ctx, commissionID)
}
