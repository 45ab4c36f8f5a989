package vnpay

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *Client {
	client, err := NewClient(Config{
		TmnCode:    "TESTTMN1",
		HashSecret: "testsecret0123456789",
		BaseURL:    "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://shop.example.com/payment/vnpay-return",
		IPNURL:     "https://shop.example.com/api/v1/payments/vnpay/ipn",
	})
	require.NoError(t, err)
	client.now = func() time.Time {
		return time.Date(2025, 6, 1, 10, 30, 0, 0, time.Local)
	}
	return client
}

func TestNewClient_Misconfigured(t *testing.T) {
	_, err := NewClient(Config{TmnCode: "", HashSecret: "x", BaseURL: "y", ReturnURL: "z"})
	assert.ErrorIs(t, err, ErrMisconfigured)

	_, err = NewClient(Config{TmnCode: "x", HashSecret: "", BaseURL: "y", ReturnURL: "z"})
	assert.ErrorIs(t, err, ErrMisconfigured)

	_, err = NewClient(Config{TmnCode: "x", HashSecret: "y", BaseURL: "", ReturnURL: "z"})
	assert.ErrorIs(t, err, ErrMisconfigured)
}

func TestBuildPaymentURL_Success(t *testing.T) {
	client := testClient(t)

	rawURL, err := client.BuildPaymentURL(PaymentRequest{
		OrderNumber: "DH20250601001",
		Amount:      250000,
		OrderInfo:   "Thanh toan don hang DH20250601001",
		BankCode:    "NCB",
		ClientIP:    "203.0.113.7",
	})
	require.NoError(t, err)

	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	assert.Equal(t, "sandbox.vnpayment.vn", parsed.Host)

	query := parsed.Query()
	assert.Equal(t, "2.1.0", query.Get("vnp_Version"))
	assert.Equal(t, "pay", query.Get("vnp_Command"))
	assert.Equal(t, "TESTTMN1", query.Get("vnp_TmnCode"))
	assert.Equal(t, "DH20250601001", query.Get("vnp_TxnRef"))
	assert.Equal(t, "25000000", query.Get("vnp_Amount")) // minor units
	assert.Equal(t, "NCB", query.Get("vnp_BankCode"))
	assert.Equal(t, "203.0.113.7", query.Get("vnp_IpAddr"))
	assert.Equal(t, "20250601103000", query.Get("vnp_CreateDate"))
	assert.Equal(t, "20250601104500", query.Get("vnp_ExpireDate")) // +15 minutes
	assert.Equal(t, "https://shop.example.com/api/v1/payments/vnpay/ipn", query.Get("vnp_IpnUrl"))
	assert.NotEmpty(t, query.Get("vnp_SecureHash"))
}

func TestBuildPaymentURL_OmitsIPNURLWhenUnset(t *testing.T) {
	client, err := NewClient(Config{
		TmnCode:    "TESTTMN1",
		HashSecret: "testsecret0123456789",
		BaseURL:    "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://shop.example.com/payment/vnpay-return",
	})
	require.NoError(t, err)

	rawURL, err := client.BuildPaymentURL(PaymentRequest{
		OrderNumber: "DH20250601003",
		Amount:      100000,
		OrderInfo:   "Thanh toan don hang DH20250601003",
	})
	require.NoError(t, err)
	assert.NotContains(t, rawURL, "vnp_IpnUrl")
}

func TestBuildPaymentURL_OmitsBankCodeWhenEmpty(t *testing.T) {
	client := testClient(t)

	rawURL, err := client.BuildPaymentURL(PaymentRequest{
		OrderNumber: "DH20250601002",
		Amount:      100000,
		OrderInfo:   "Thanh toan don hang DH20250601002",
	})
	require.NoError(t, err)
	assert.NotContains(t, rawURL, "vnp_BankCode")
}

func TestBuildPaymentURL_InvalidOrderData(t *testing.T) {
	client := testClient(t)

	cases := []struct {
		name string
		req  PaymentRequest
	}{
		{"missing order number", PaymentRequest{Amount: 1000, OrderInfo: "x"}},
		{"missing order info", PaymentRequest{OrderNumber: "DH1", Amount: 1000}},
		{"zero amount", PaymentRequest{OrderNumber: "DH1", Amount: 0, OrderInfo: "x"}},
		{"negative amount", PaymentRequest{OrderNumber: "DH1", Amount: -5, OrderInfo: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.BuildPaymentURL(tc.req)
			assert.ErrorIs(t, err, ErrInvalidOrderData)
		})
	}
}

func TestVerify_RoundTrip(t *testing.T) {
	client := testClient(t)

	rawURL, err := client.BuildPaymentURL(PaymentRequest{
		OrderNumber: "DH20250601003",
		Amount:      99000,
		OrderInfo:   "Thanh toan don hang DH20250601003",
	})
	require.NoError(t, err)

	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)

	// A callback carries the same signed params back, plus the outcome.
	params := parsed.Query()
	result := client.Verify(params)
	assert.True(t, result.ValidSignature)
}

func signedCallback(t *testing.T, client *Client, overrides map[string]string) url.Values {
	t.Helper()
	params := url.Values{}
	params.Set("vnp_TmnCode", client.config.TmnCode)
	params.Set("vnp_TxnRef", "DH20250601004")
	params.Set("vnp_Amount", "25000000")
	params.Set("vnp_ResponseCode", ResponseCodeSuccess)
	params.Set("vnp_TransactionNo", "14422574")
	params.Set("vnp_BankCode", "NCB")
	params.Set("vnp_CardType", "ATM")
	params.Set("vnp_PayDate", "20250601104211")
	for key, value := range overrides {
		params.Set(key, value)
	}
	params.Set("vnp_SecureHash", client.sign(canonicalQuery(params)))
	return params
}

func TestVerify_ValidCallback(t *testing.T) {
	client := testClient(t)

	result := client.Verify(signedCallback(t, client, nil))
	assert.True(t, result.ValidSignature)
	assert.True(t, result.Succeeded)
	assert.Equal(t, ResponseCodeSuccess, result.ResponseCode)
}

func TestVerify_TamperedSignatureFailsClosed(t *testing.T) {
	client := testClient(t)

	params := signedCallback(t, client, nil)
	params.Set("vnp_Amount", "1") // tamper after signing

	result := client.Verify(params)
	assert.False(t, result.ValidSignature)
	// Fails closed even though the response code still says success.
	assert.False(t, result.Succeeded)
	assert.Equal(t, ResponseCodeSuccess, result.ResponseCode)
}

func TestVerify_MissingSignature(t *testing.T) {
	client := testClient(t)

	params := signedCallback(t, client, nil)
	params.Del("vnp_SecureHash")

	result := client.Verify(params)
	assert.False(t, result.ValidSignature)
	assert.False(t, result.Succeeded)
}

func TestVerify_UserCancelledIsNotSuccess(t *testing.T) {
	client := testClient(t)

	params := signedCallback(t, client, map[string]string{
		"vnp_ResponseCode": ResponseCodeUserCancelled,
	})

	result := client.Verify(params)
	assert.True(t, result.ValidSignature)
	assert.False(t, result.Succeeded)
	assert.Equal(t, ResponseCodeUserCancelled, result.ResponseCode)
}

func TestVerify_IgnoresSecureHashType(t *testing.T) {
	client := testClient(t)

	params := signedCallback(t, client, nil)
	params.Set("vnp_SecureHashType", "HmacSHA512") // never part of the signed data

	result := client.Verify(params)
	assert.True(t, result.ValidSignature)
}

func TestCanonicalQuery_SortedAndEncoded(t *testing.T) {
	params := url.Values{}
	params.Set("vnp_OrderInfo", "Thanh toan don hang")
	params.Set("vnp_Amount", "100")
	params.Set("vnp_TxnRef", "DH1")

	query := canonicalQuery(params)
	assert.Equal(t, "vnp_Amount=100&vnp_OrderInfo=Thanh+toan+don+hang&vnp_TxnRef=DH1", query)
	assert.True(t, strings.Index(query, "vnp_Amount") < strings.Index(query, "vnp_OrderInfo"))
}

func TestExtractCallbackData(t *testing.T) {
	params := url.Values{}
	params.Set("vnp_TxnRef", "DH20250601005")
	params.Set("vnp_Amount", "25000000")
	params.Set("vnp_TransactionNo", "14422574")
	params.Set("vnp_BankCode", "NCB")
	params.Set("vnp_CardType", "ATM")
	params.Set("vnp_PayDate", "20250601104211")
	params.Set("vnp_ResponseCode", "00")

	data := ExtractCallbackData(params)
	assert.Equal(t, "DH20250601005", data.OrderNumber)
	assert.Equal(t, float64(250000), data.Amount)
	assert.Equal(t, "14422574", data.TransactionNo)
	require.NotNil(t, data.PayDate)
	assert.Equal(t, 2025, data.PayDate.Year())
	assert.Equal(t, 10, data.PayDate.Hour())
}

func TestExtractCallbackData_MissingOptionalFields(t *testing.T) {
	params := url.Values{}
	params.Set("vnp_TxnRef", "DH20250601006")
	params.Set("vnp_ResponseCode", "24")

	data := ExtractCallbackData(params)
	assert.Equal(t, float64(0), data.Amount)
	assert.Nil(t, data.PayDate)
}

func TestResponseMessage(t *testing.T) {
	assert.Equal(t, "Giao dịch thành công", ResponseMessage("00"))
	assert.Equal(t, "Khách hàng hủy giao dịch", ResponseMessage("24"))
	assert.Equal(t, ResponseMessage("99"), ResponseMessage("not-a-code"))
}

func TestBanks_ReturnsCopy(t *testing.T) {
	banks := Banks()
	require.NotEmpty(t, banks)
	banks[0].BankCode = "MUTATED"
	assert.NotEqual(t, "MUTATED", Banks()[0].BankCode)
}
