package enums

import "fmt"

// CommissionStatus tracks the payout lifecycle of a commission transaction.
type CommissionStatus string

const (
	CommissionStatusPending  CommissionStatus = "pending"
	CommissionStatusApproved CommissionStatus = "approved"
	CommissionStatusPaid     CommissionStatus = "paid"
	CommissionStatusRejected CommissionStatus = "rejected"
)

var validCommissionStatuses = []CommissionStatus{
	CommissionStatusPending,
	CommissionStatusApproved,
	CommissionStatusPaid,
	CommissionStatusRejected,
}

// approved is accepted as a stored value and settles like pending.
var commissionStatusTransitions = map[CommissionStatus][]CommissionStatus{
	CommissionStatusPending:  {CommissionStatusPaid, CommissionStatusRejected},
	CommissionStatusApproved: {CommissionStatusPaid, CommissionStatusRejected},
}

// String implements fmt.Stringer.
func (s CommissionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CommissionStatus.
func (s CommissionStatus) IsValid() bool {
	for _, candidate := range validCommissionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the record has been settled one way or another.
func (s CommissionStatus) IsTerminal() bool {
	return s.IsValid() && len(commissionStatusTransitions[s]) == 0
}

// CanTransitionTo reports whether target is reachable from s.
func (s CommissionStatus) CanTransitionTo(target CommissionStatus) bool {
	for _, next := range commissionStatusTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// CommissionStatusSourcesFor returns every status that may move directly to target.
func CommissionStatusSourcesFor(target CommissionStatus) []CommissionStatus {
	var sources []CommissionStatus
	for _, from := range validCommissionStatuses {
		if from.CanTransitionTo(target) {
			sources = append(sources, from)
		}
	}
	return sources
}

// ParseCommissionStatus converts raw input into a CommissionStatus.
func ParseCommissionStatus(value string) (CommissionStatus, error) {
	for _, candidate := range validCommissionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission status %q", value)
}
