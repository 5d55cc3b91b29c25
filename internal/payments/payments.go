package payments

import (
	"context"
	"errors"
)

// ErrGatewayUnavailable marks failures where the gateway could not be reached or
// answered with a server error. Callers may retry.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// OrderParams describes an order to register with the gateway before checkout.
type OrderParams struct {
	// AmountMinor is the amount in the currency's minor unit (paise for INR).
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// GatewayOrder is the gateway's view of a freshly created order.
type GatewayOrder struct {
	ID          string
	AmountMinor int64
	Currency    string
	Status      string
}

// Gateway creates orders on an external payment processor and checks the
// signatures it issues on payment confirmation.
type Gateway interface {
	CreateOrder(ctx context.Context, params OrderParams) (*GatewayOrder, error)
	VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	KeyID() string
}

// ToMinorUnits converts a major-unit amount to the gateway's minor unit.
func ToMinorUnits(amount int64) int64 {
	return amount * 100
}
