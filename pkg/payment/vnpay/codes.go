package vnpay

// Gateway response codes (vnp_ResponseCode). "00" is the only success code;
// everything else describes why the transaction did not settle.
const (
	ResponseCodeSuccess       = "00"
	ResponseCodeSuspected     = "07"
	ResponseCodeNotRegistered = "09"
	ResponseCodeWrongAuth     = "10"
	ResponseCodeExpired       = "11"
	ResponseCodeCardLocked    = "12"
	ResponseCodeWrongOTP      = "13"
	ResponseCodeUserCancelled = "24"
	ResponseCodeInsufficient  = "51"
	ResponseCodeLimitExceeded = "65"
	ResponseCodeBankDown      = "75"
	ResponseCodeTooManyTries  = "79"
	ResponseCodeUnknown       = "99"
)

var responseMessages = map[string]string{
	ResponseCodeSuccess:       "Giao dịch thành công",
	ResponseCodeSuspected:     "Trừ tiền thành công, giao dịch bị nghi ngờ",
	ResponseCodeNotRegistered: "Thẻ/Tài khoản chưa đăng ký InternetBanking",
	ResponseCodeWrongAuth:     "Xác thực thông tin thẻ/tài khoản sai quá 3 lần",
	ResponseCodeExpired:       "Đã hết hạn chờ thanh toán",
	ResponseCodeCardLocked:    "Thẻ/Tài khoản bị khóa",
	ResponseCodeWrongOTP:      "Nhập sai mật khẩu xác thực giao dịch (OTP)",
	ResponseCodeUserCancelled: "Khách hàng hủy giao dịch",
	ResponseCodeInsufficient:  "Tài khoản không đủ số dư",
	ResponseCodeLimitExceeded: "Vượt quá hạn mức giao dịch trong ngày",
	ResponseCodeBankDown:      "Ngân hàng thanh toán đang bảo trì",
	ResponseCodeTooManyTries:  "Nhập sai mật khẩu thanh toán quá số lần quy định",
	ResponseCodeUnknown:       "Lỗi không xác định",
}

// ResponseMessage returns the customer-facing description of a gateway
// response code.
func ResponseMessage(code string) string {
	if msg, ok := responseMessages[code]; ok {
		return msg
	}
	return responseMessages[ResponseCodeUnknown]
}

// IPN acknowledgement codes. The gateway keys its retry behaviour off these,
// so the values and the response shape below are a fixed contract.
const (
	IPNCodeSuccess          = "00"
	IPNCodeOrderNotFound    = "01"
	IPNCodeInvalidSignature = "97"
	IPNCodeUnknownError     = "99"
)

// IPNResponse is the body returned to the gateway from the IPN endpoint.
type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// NewIPNResponse builds an acknowledgement for the IPN channel.
func NewIPNResponse(code, message string) IPNResponse {
	return IPNResponse{RspCode: code, Message: message}
}

// Bank is an entry of the gateway's supported-bank list.
type Bank struct {
	BankCode string `json:"bank_code"`
	BankName string `json:"bank_name"`
}

var bankList = []Bank{
	{BankCode: "VNPAYQR", BankName: "Cổng thanh toán VNPAYQR"},
	{BankCode: "VNBANK", BankName: "Thẻ ATM - Tài khoản ngân hàng nội địa"},
	{BankCode: "INTCARD", BankName: "Thẻ thanh toán quốc tế"},
	{BankCode: "VIETCOMBANK", BankName: "Ngân hàng Ngoại Thương Việt Nam"},
	{BankCode: "VIETINBANK", BankName: "Ngân hàng Công Thương Việt Nam"},
	{BankCode: "BIDV", BankName: "Ngân hàng Đầu tư và Phát triển Việt Nam"},
	{BankCode: "AGRIBANK", BankName: "Ngân hàng Nông nghiệp và Phát triển Nông thôn"},
	{BankCode: "TECHCOMBANK", BankName: "Ngân hàng Kỹ Thương Việt Nam"},
	{BankCode: "NCB", BankName: "Ngân hàng Quốc Dân"},
}

// Banks returns the supported-bank list for checkout UIs.
func Banks() []Bank {
	out := make([]Bank, len(bankList))
	copy(out, bankList)
	return out
}
