package gateway

import (
	"context"
	"strings"
)

// Status values normalized across providers.
const (
	StatusSuccess   = "success"
	StatusPending   = "pending"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
	StatusNotFound  = "not_found"
)

// Verification is the gateway's record of a charge.
type Verification struct {
	Reference     string
	Status        string
	AmountMinor   int64
	Currency      string
	GatewayStatus string
}

// Succeeded reports whether the gateway considers the charge complete.
func (v Verification) Succeeded() bool {
	return v.Status == StatusSuccess
}

// Verifier looks up a client-supplied payment reference at the gateway. It
// never charges or refunds, so repeated calls are safe.
type Verifier interface {
	Verify(ctx context.Context, reference string) (Verification, error)
}

func normalizeStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "successful", "completed", "approved":
		return StatusSuccess
	case "pending", "processing", "ongoing", "queued":
		return StatusPending
	case "abandoned", "canceled", "cancelled", "reversed":
		return StatusAbandoned
	case "":
		return StatusNotFound
	default:
		return StatusFailed
	}
}
