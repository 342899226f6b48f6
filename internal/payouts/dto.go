package payouts

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
)

// ApproveInput settles a pending commission transaction.
type ApproveInput struct {
	CommissionID     uuid.UUID
	ActorUserID      uuid.UUID
	PaymentReference string
}

// RejectInput refuses a pending commission transaction.
type RejectInput struct {
	CommissionID uuid.UUID
	ActorUserID  uuid.UUID
	Reason       string
}

// Payout is the admin-facing view of a commission transaction.
type Payout struct {
	ID                uuid.UUID              `json:"id"`
	OrderID           uuid.UUID              `json:"order_id"`
	SellerID          uuid.UUID              `json:"seller_id"`
	Currency          string                 `json:"currency"`
	TotalCents        int64                  `json:"total_cents"`
	CommissionRate    string                 `json:"commission_rate"`
	CommissionCents   int64                  `json:"commission_cents"`
	SellerAmountCents int64                  `json:"seller_amount_cents"`
	Status            enums.CommissionStatus `json:"status"`
	PaymentReference  *string                `json:"payment_reference,omitempty"`
	RejectionReason   *string                `json:"rejection_reason,omitempty"`
	PaidAt            *time.Time             `json:"paid_at,omitempty"`
	RejectedAt        *time.Time             `json:"rejected_at,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
}

func newPayout(record *models.CommissionTransaction) Payout {
	return Payout{
		ID:                record.ID,
		OrderID:           record.OrderID,
		SellerID:          record.SellerID,
		Currency:          record.Currency,
		TotalCents:        record.TotalCents,
		CommissionRate:    record.CommissionRate.StringFixed(2),
		CommissionCents:   record.CommissionCents,
		SellerAmountCents: record.SellerAmountCents,
		Status:            record.Status,
		PaymentReference:  record.PaymentReference,
		RejectionReason:   record.RejectionReason,
		PaidAt:            record.PaidAt,
		RejectedAt:        record.RejectedAt,
		CreatedAt:         record.CreatedAt,
	}
}

// BankCheck is the advisory outcome of a bank-account lookup.
type BankCheck struct {
	SellerID      uuid.UUID  `json:"seller_id"`
	Verified      bool       `json:"verified"`
	AccountName   string     `json:"account_name,omitempty"`
	BankName      string     `json:"bank_name,omitempty"`
	AccountNumber string     `json:"account_number,omitempty"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
}
