package enums

import "fmt"

// LedgerEventType classifies settlement money movements.
type LedgerEventType string

const (
	LedgerEventTypeCommissionAccrued LedgerEventType = "commission_accrued"
	LedgerEventTypePayoutPaid        LedgerEventType = "payout_paid"
	LedgerEventTypePayoutRejected    LedgerEventType = "payout_rejected"
)

var validLedgerEventTypes = []LedgerEventType{
	LedgerEventTypeCommissionAccrued,
	LedgerEventTypePayoutPaid,
	LedgerEventTypePayoutRejected,
}

// IsValid reports whether the value matches the canonical ledger event enum.
func (t LedgerEventType) IsValid() bool {
	for _, candidate := range validLedgerEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEventType converts raw input into LedgerEventType.
func ParseLedgerEventType(value string) (LedgerEventType, error) {
	for _, candidate := range validLedgerEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger event type %q", value)
}
