// Package intent resolves and validates the order intent carried on the
// checkout page-entry parameters. Resolution has no side effects; a failed
// resolution means the checkout session goes straight to its error state
// without ever touching the payment widget.
package intent

import (
	"fmt"
	"net/url"
	"strconv"
)

// OrderIntent is the validated, immutable order description for one checkout
// attempt. Amount is in the minor currency unit (e.g. KRW has no sub-unit,
// so 22000 is 22,000원).
type OrderIntent struct {
	OrderID       string
	OrderName     string
	Amount        int64
	CustomerEmail string // optional, not validated beyond presence
}

// ValidationError reports a missing or malformed page-entry parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("intent: invalid parameter %q: %s", e.Field, e.Reason)
}

// Resolve parses the page-entry query parameters into an OrderIntent.
// orderId, orderName and amount are required; amount must parse as a
// positive decimal integer. customerEmail is optional.
func Resolve(params url.Values) (OrderIntent, error) {
	orderID := params.Get("orderId")
	if orderID == "" {
		return OrderIntent{}, &ValidationError{Field: "orderId", Reason: "missing"}
	}

	orderName := params.Get("orderName")
	if orderName == "" {
		return OrderIntent{}, &ValidationError{Field: "orderName", Reason: "missing"}
	}

	rawAmount := params.Get("amount")
	if rawAmount == "" {
		return OrderIntent{}, &ValidationError{Field: "amount", Reason: "missing"}
	}
	amount, err := strconv.ParseInt(rawAmount, 10, 64)
	if err != nil {
		return OrderIntent{}, &ValidationError{Field: "amount", Reason: fmt.Sprintf("not a decimal integer: %q", rawAmount)}
	}
	if amount <= 0 {
		return OrderIntent{}, &ValidationError{Field: "amount", Reason: fmt.Sprintf("must be positive, got %d", amount)}
	}

	return OrderIntent{
		OrderID:       orderID,
		OrderName:     orderName,
		Amount:        amount,
		CustomerEmail: params.Get("customerEmail"),
	}, nil
}
