package errors

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrorInfo carries a machine-readable code plus a user-facing message.
type ErrorInfo struct {
	Code    string // error code (see codes.go)
	Message string
}

// IsDuplicateKey reports whether err is a unique-constraint violation.
// Postgres says "duplicate key value violates unique constraint", sqlite
// says "UNIQUE constraint failed"; the order-number sequencer retries on
// both.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}

// ParseError converts a raw error into a code and a message safe to show
// to users. Sensitive driver details stay out of the message.
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Code:    InternalServerError,
			Message: "An unexpected server error occurred",
		}
	}

	errStr := err.Error()
	errStrLower := strings.ToLower(errStr)

	// 1. GORM base errors
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorInfo{
			Code:    ResourceNotFound,
			Message: getNotFoundMessage(context),
		}
	}

	// 2. Constraint violations

	// 2-1. Unique constraint (postgres 23505, sqlite UNIQUE)
	if IsDuplicateKey(err) {
		return parseDuplicateKeyError(errStr)
	}

	// 2-2. Foreign key constraint (23503)
	if strings.Contains(errStrLower, "foreign key constraint") {
		return parseForeignKeyError(errStrLower)
	}

	// 2-3. Not null constraint (23502)
	if strings.Contains(errStrLower, "null value") && strings.Contains(errStrLower, "violates not-null constraint") {
		return ErrorInfo{
			Code:    ValidationRequired,
			Message: "A required field is missing",
		}
	}

	// 2-4. Check constraint (23514)
	if strings.Contains(errStrLower, "check constraint") {
		return parseCheckConstraintError(errStrLower)
	}

	// 3. Network / connectivity
	if strings.Contains(errStrLower, "connection refused") ||
		strings.Contains(errStrLower, "no such host") ||
		strings.Contains(errStrLower, "timeout") {
		return ErrorInfo{
			Code:    InternalExternalAPI,
			Message: "Failed to reach an external service. Please try again shortly",
		}
	}

	// 4. Fallback
	return ErrorInfo{
		Code:    InternalServerError,
		Message: getDefaultErrorMessage(context),
	}
}

func parseDuplicateKeyError(errStr string) ErrorInfo {
	errLower := strings.ToLower(errStr)

	if strings.Contains(errLower, "email") || strings.Contains(errLower, "idx_users_email") {
		return ErrorInfo{
			Code:    AuthEmailAlreadyExists,
			Message: "This email address is already in use",
		}
	}

	if strings.Contains(errLower, "order_number") || strings.Contains(errLower, "idx_orders_order_number") {
		return ErrorInfo{
			Code:    ResourceConflict,
			Message: "The order number collided with another order. Please try again",
		}
	}

	if strings.Contains(errLower, "sku") || strings.Contains(errLower, "idx_products_sku") {
		return ErrorInfo{
			Code:    ResourceAlreadyExists,
			Message: "This product SKU is already registered",
		}
	}

	if strings.Contains(errLower, "idx_cart_user_product") {
		return ErrorInfo{
			Code:    ResourceAlreadyExists,
			Message: "This product is already in the cart",
		}
	}

	if strings.Contains(errLower, "pkey") || strings.Contains(errLower, "primary key") {
		return ErrorInfo{
			Code:    ResourceAlreadyExists,
			Message: "This record already exists. Please try again",
		}
	}

	return ErrorInfo{
		Code:    ResourceAlreadyExists,
		Message: "This record already exists",
	}
}

func parseForeignKeyError(errLower string) ErrorInfo {
	if strings.Contains(errLower, "still referenced") {
		return ErrorInfo{
			Code:    ResourceConflict,
			Message: "The record cannot be deleted while other data references it",
		}
	}

	if strings.Contains(errLower, "user_id") || strings.Contains(errLower, "fk_users") {
		return ErrorInfo{
			Code:    ResourceNotFound,
			Message: "The referenced user does not exist",
		}
	}
	if strings.Contains(errLower, "product_id") || strings.Contains(errLower, "fk_products") {
		return ErrorInfo{
			Code:    ProductNotFound,
			Message: "The referenced product does not exist",
		}
	}
	if strings.Contains(errLower, "order_id") || strings.Contains(errLower, "fk_orders") {
		return ErrorInfo{
			Code:    OrderNotFound,
			Message: "The referenced order does not exist",
		}
	}

	return ErrorInfo{
		Code:    ResourceNotFound,
		Message: "The referenced record could not be found",
	}
}

func parseCheckConstraintError(errLower string) ErrorInfo {
	if strings.Contains(errLower, "quantity") {
		return ErrorInfo{
			Code:    CartInvalidQuantity,
			Message: "The quantity must be a positive number",
		}
	}
	if strings.Contains(errLower, "stock") {
		return ErrorInfo{
			Code:    ProductInsufficient,
			Message: "The product stock cannot go below zero",
		}
	}

	return ErrorInfo{
		Code:    ValidationInvalidInput,
		Message: "The provided value is not valid",
	}
}

func getNotFoundMessage(context string) string {
	contextLower := strings.ToLower(context)

	if strings.Contains(contextLower, "order") {
		return "Order not found"
	}
	if strings.Contains(contextLower, "product") {
		return "Product not found"
	}
	if strings.Contains(contextLower, "cart") {
		return "Cart item not found"
	}
	if strings.Contains(contextLower, "user") {
		return "User not found"
	}
	if strings.Contains(contextLower, "payment") {
		return "Payment record not found"
	}

	return "The requested record could not be found"
}

func getDefaultErrorMessage(context string) string {
	contextLower := strings.ToLower(context)

	if strings.Contains(contextLower, "create") {
		return "An error occurred while creating the record. Please try again shortly"
	}
	if strings.Contains(contextLower, "update") {
		return "An error occurred while updating the record. Please try again shortly"
	}
	if strings.Contains(contextLower, "delete") {
		return "An error occurred while deleting the record. Please try again shortly"
	}
	if strings.Contains(contextLower, "payment") {
		return "An error occurred while processing the payment. Please try again shortly"
	}

	return "An unexpected server error occurred. Please try again shortly"
}
