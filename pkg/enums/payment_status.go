package enums

import "fmt"

// PaymentStatus mirrors the gateway's transaction-status vocabulary as stored
// on the order.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusSettlement PaymentStatus = "settlement"
	PaymentStatusCapture    PaymentStatus = "capture"
	PaymentStatusDeny       PaymentStatus = "deny"
	PaymentStatusCancel     PaymentStatus = "cancel"
	PaymentStatusExpire     PaymentStatus = "expire"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusSettlement,
	PaymentStatusCapture,
	PaymentStatusDeny,
	PaymentStatusCancel,
	PaymentStatusExpire,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsSettled reports whether money has been received for the order.
func (p PaymentStatus) IsSettled() bool {
	return p == PaymentStatusSettlement
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
