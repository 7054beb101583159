package business

import "errors"

var (
	// ErrOrphanCallback means a gateway confirmation arrived for a reference
	// no order was ever created with. It signals money received with nothing
	// to apply it to, so it is never swallowed.
	ErrOrphanCallback = errors.New("callback does not match any known order")

	ErrInvalidPaymentRequest = errors.New("invalid payment request")
)
