package errors

// Error code constants.
// Format: CATEGORY_SPECIFIC_DETAIL
// The frontend maps these codes to user-facing messages.

const (
	// ==================== Auth (AUTH_) ====================
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"        // login required
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS" // wrong email/password
	AuthTokenExpired       = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid       = "AUTH_TOKEN_INVALID"
	AuthEmailAlreadyExists = "AUTH_EMAIL_EXISTS"

	// ==================== Authorization (AUTHZ_) ====================
	AuthzForbidden    = "AUTHZ_FORBIDDEN"
	AuthzAccessDenied = "AUTHZ_ACCESS_DENIED"
	AuthzAdminOnly    = "AUTHZ_ADMIN_ONLY"
	AuthzOwnerOnly    = "AUTHZ_OWNER_ONLY"

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput  = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID     = "VALIDATION_INVALID_ID"
	ValidationInvalidFormat = "VALIDATION_INVALID_FORMAT"
	ValidationInvalidRange  = "VALIDATION_INVALID_RANGE"
	ValidationRequired      = "VALIDATION_REQUIRED"

	// ==================== Resource (RESOURCE_) ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ResourceConflict      = "RESOURCE_CONFLICT"

	// ==================== Cart (CART_) ====================
	CartEmpty           = "CART_EMPTY"
	CartItemNotFound    = "CART_ITEM_NOT_FOUND"
	CartInvalidQuantity = "CART_INVALID_QUANTITY"
	CartValidationFail  = "CART_VALIDATION_FAILED" // one or more items unsellable

	// ==================== Product (PRODUCT_) ====================
	ProductNotFound     = "PRODUCT_NOT_FOUND"
	ProductInactive     = "PRODUCT_INACTIVE"
	ProductOutOfStock   = "PRODUCT_OUT_OF_STOCK"
	ProductInsufficient = "PRODUCT_INSUFFICIENT_STOCK"

	// ==================== Order (ORDER_) ====================
	OrderNotFound          = "ORDER_NOT_FOUND"
	OrderInvalidTransition = "ORDER_INVALID_TRANSITION" // status change not allowed
	OrderCancelForbidden   = "ORDER_CANCEL_FORBIDDEN"   // customer may cancel pending/confirmed only
	OrderNumberExhausted   = "ORDER_NUMBER_EXHAUSTED"   // daily sequence ran out of retries
	OrderAlreadyPaid       = "ORDER_ALREADY_PAID"
	OrderCancelled         = "ORDER_CANCELLED" // order is cancelled, payment refused

	// ==================== Payment (PAYMENT_) ====================
	PaymentInvalidSignature = "PAYMENT_INVALID_SIGNATURE"
	PaymentFailed           = "PAYMENT_FAILED"
	PaymentGatewayError     = "PAYMENT_GATEWAY_ERROR"
	PaymentInvalidMethod    = "PAYMENT_INVALID_METHOD"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"
	InternalConfigError   = "INTERNAL_CONFIG_ERROR"
)
