package errors

// Reason narrows a Code to the settlement failure that produced it.
type Reason string

const (
	ReasonPriceMismatch             Reason = "PRICE_MISMATCH"
	ReasonInsufficientStock         Reason = "INSUFFICIENT_STOCK"
	ReasonTotalMismatch             Reason = "TOTAL_MISMATCH"
	ReasonPaymentVerificationFailed Reason = "PAYMENT_VERIFICATION_FAILED"
	ReasonPaymentAmountMismatch     Reason = "PAYMENT_AMOUNT_MISMATCH"
	ReasonPaymentReplay             Reason = "PAYMENT_REPLAY"
	ReasonInvalidStateTransition    Reason = "INVALID_STATE_TRANSITION"
	ReasonProductUnavailable        Reason = "PRODUCT_UNAVAILABLE"
)

// ReasonDetails is the details payload attached to reason-bearing errors.
type ReasonDetails struct {
	Reason    Reason `json:"reason"`
	Field     string `json:"field,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Expected  any    `json:"expected,omitempty"`
	Actual    any    `json:"actual,omitempty"`
}

// NewWithReason builds an error whose details carry the given reason.
func NewWithReason(code Code, reason Reason, message string, details ReasonDetails) *Error {
	details.Reason = reason
	return New(code, message).WithDetails(details)
}

// ReasonOf extracts the reason from a typed error, if present.
func ReasonOf(err error) Reason {
	typed := As(err)
	if typed == nil {
		return ""
	}
	switch d := typed.Details().(type) {
	case ReasonDetails:
		return d.Reason
	case *ReasonDetails:
		if d != nil {
			return d.Reason
		}
	}
	return ""
}

// HasReason reports whether err carries the given reason.
func HasReason(err error, reason Reason) bool {
	return reason != "" && ReasonOf(err) == reason
}
