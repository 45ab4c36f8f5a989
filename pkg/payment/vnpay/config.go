package vnpay

// Config carries the merchant credentials and callback endpoints for the
// VNPay hosted-payment gateway. Everything is injected at construction so the
// signing logic never reads process state.
type Config struct {
	// TmnCode is the merchant terminal code issued by VNPay.
	TmnCode string

	// HashSecret is the shared HMAC-SHA512 secret for request signing and
	// callback verification.
	HashSecret string

	// BaseURL is the hosted payment page, e.g.
	// https://sandbox.vnpayment.vn/paymentv2/vpcpay.html
	BaseURL string

	// ReturnURL receives the user's browser after payment.
	ReturnURL string

	// IPNURL receives the server-to-server notification.
	IPNURL string
}

// Validate checks that the fields required for signing are present.
func (c *Config) Validate() error {
	if c.TmnCode == "" || c.HashSecret == "" {
		return ErrMisconfigured
	}
	if c.BaseURL == "" || c.ReturnURL == "" {
		return ErrMisconfigured
	}
	return nil
}
