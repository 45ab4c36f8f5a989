package vnpay

import "errors"

var (
	// ErrMisconfigured is returned when the merchant code or hash secret is
	// missing. Such a client must never sign anything.
	ErrMisconfigured = errors.New("vnpay: merchant configuration is missing")

	// ErrInvalidOrderData is returned when the order reference, amount or
	// order info of an outbound request is absent or non-positive.
	ErrInvalidOrderData = errors.New("vnpay: invalid order data")

	// ErrInvalidSignature is returned when an inbound callback fails
	// signature verification. Verification failures always fail closed.
	ErrInvalidSignature = errors.New("vnpay: invalid signature")
)
