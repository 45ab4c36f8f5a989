package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	apiVersion   = "2.1.0"
	commandPay   = "pay"
	currencyCode = "VND"
	orderType    = "other"

	// dateFormat is VNPay's yyyyMMddHHmmss timestamp layout.
	dateFormat = "20060102150405"

	// paymentWindow is how long a signed payment URL stays valid.
	paymentWindow = 15 * time.Minute
)

// Client builds signed payment URLs and verifies signed callbacks.
type Client struct {
	config Config
	now    func() time.Time
}

// NewClient creates a VNPay client with the given configuration.
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Client{config: config, now: time.Now}, nil
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.config
}

// PaymentRequest describes one outbound payment URL.
type PaymentRequest struct {
	OrderNumber string  // merchant order reference (vnp_TxnRef)
	Amount      float64 // amount in VND; sent to the gateway in minor units
	OrderInfo   string  // human-readable description
	BankCode    string  // optional preselected bank
	ClientIP    string  // IP of the paying customer
	Locale      string  // "vn" when empty
}

func (r *PaymentRequest) validate() error {
	if r.OrderNumber == "" {
		return fmt.Errorf("%w: order number is required", ErrInvalidOrderData)
	}
	if r.OrderInfo == "" {
		return fmt.Errorf("%w: order info is required", ErrInvalidOrderData)
	}
	if r.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidOrderData)
	}
	return nil
}

// BuildPaymentURL assembles the redirect URL for the hosted payment page:
// all parameters sorted by encoded key, serialized to a query string, and
// signed with HMAC-SHA512; the signature rides along as vnp_SecureHash.
func (c *Client) BuildPaymentURL(req PaymentRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	now := c.now()
	locale := req.Locale
	if locale == "" {
		locale = "vn"
	}
	clientIP := req.ClientIP
	if clientIP == "" {
		clientIP = "127.0.0.1"
	}

	params := url.Values{}
	params.Set("vnp_Version", apiVersion)
	params.Set("vnp_Command", commandPay)
	params.Set("vnp_TmnCode", c.config.TmnCode)
	params.Set("vnp_Locale", locale)
	params.Set("vnp_CurrCode", currencyCode)
	params.Set("vnp_TxnRef", req.OrderNumber)
	params.Set("vnp_OrderInfo", req.OrderInfo)
	params.Set("vnp_OrderType", orderType)
	params.Set("vnp_Amount", strconv.FormatInt(int64(math.Round(req.Amount*100)), 10))
	params.Set("vnp_ReturnUrl", c.config.ReturnURL)
	params.Set("vnp_CreateDate", now.Format(dateFormat))
	params.Set("vnp_ExpireDate", now.Add(paymentWindow).Format(dateFormat))
	params.Set("vnp_IpAddr", clientIP)
	if c.config.IPNURL != "" {
		params.Set("vnp_IpnUrl", c.config.IPNURL)
	}
	if req.BankCode != "" {
		params.Set("vnp_BankCode", req.BankCode)
	}

	query := canonicalQuery(params)
	signature := c.sign(query)
	return c.config.BaseURL + "?" + query + "&vnp_SecureHash=" + signature, nil
}

// Verification is the outcome of checking an inbound callback.
type Verification struct {
	ValidSignature bool
	Succeeded      bool
	ResponseCode   string
}

// Verify recomputes the signature over every parameter except the signature
// fields and compares it against vnp_SecureHash. Succeeded is only ever true
// for a valid signature carrying the success response code; a broken
// signature fails closed no matter what the response code claims.
func (c *Client) Verify(params url.Values) Verification {
	received := params.Get("vnp_SecureHash")

	filtered := url.Values{}
	for key, values := range params {
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		filtered[key] = values
	}

	expected := c.sign(canonicalQuery(filtered))
	valid := received != "" && hmac.Equal([]byte(received), []byte(expected))

	code := params.Get("vnp_ResponseCode")
	return Verification{
		ValidSignature: valid,
		Succeeded:      valid && code == ResponseCodeSuccess,
		ResponseCode:   code,
	}
}

// sign computes the hex HMAC-SHA512 of the canonical query string.
func (c *Client) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(c.config.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// canonicalQuery URL-encodes every key and value (space as '+') and joins
// the pairs sorted lexicographically by encoded key. Both the outbound URL
// and the signature input use exactly this serialization.
func canonicalQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, url.QueryEscape(key))
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		decoded, _ := url.QueryUnescape(key)
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params.Get(decoded)))
	}
	return b.String()
}

// CallbackData is the payment information extracted from callback params.
type CallbackData struct {
	OrderNumber   string
	Amount        float64 // converted back from minor units
	TransactionNo string
	BankCode      string
	CardType      string
	PayDate       *time.Time
	ResponseCode  string
	OrderInfo     string
}

// ExtractCallbackData pulls the payment fields out of a verified callback.
func ExtractCallbackData(params url.Values) CallbackData {
	data := CallbackData{
		OrderNumber:   params.Get("vnp_TxnRef"),
		TransactionNo: params.Get("vnp_TransactionNo"),
		BankCode:      params.Get("vnp_BankCode"),
		CardType:      params.Get("vnp_CardType"),
		ResponseCode:  params.Get("vnp_ResponseCode"),
		OrderInfo:     params.Get("vnp_OrderInfo"),
	}
	if raw := params.Get("vnp_Amount"); raw != "" {
		if minor, err := strconv.ParseInt(raw, 10, 64); err == nil {
			data.Amount = float64(minor) / 100
		}
	}
	if raw := params.Get("vnp_PayDate"); raw != "" {
		if t, err := time.ParseInLocation(dateFormat, raw, time.Local); err == nil {
			data.PayDate = &t
		}
	}
	return data
}
