package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	"bookstore/pkg/errors"
)

// Domain-specific errors
var (
	ErrStudentNameRequired = errors.NewValidation("studentName is required", nil)
	ErrEmptyCart           = errors.NewValidation("cart must contain at least one book", nil)
	ErrInvalidTotal        = errors.NewValidation("total must be greater than 0", nil)
	ErrInvalidBookID       = errors.NewValidation("every cart item needs a positive book id", nil)
	ErrInvalidPrice        = errors.NewValidation("cart item price cannot be negative", nil)
	ErrInvalidQuantity     = errors.NewValidation("cart item quantity must be 1", nil)
	ErrInvalidOrderID      = errors.NewValidation("invalid order id", nil)
	ErrInvalidStatus       = errors.NewValidation("status must be completed or failed", nil)
	ErrPaymentReference    = errors.NewValidation("payment reference must be at least 5 characters", nil)
)

// NewOrderNotFound creates a not found error with the order ID
func NewOrderNotFound(id string) error {
	return errors.NewNotFound("order", id)
}

// NewLineItemNotFound reports a book that is not in the order's cart.
func NewLineItemNotFound(orderID string, bookID int) error {
	return &errors.AppError{
		Code:    errors.CodeNotFound,
		Message: fmt.Sprintf("book %d not found in order '%s'", bookID, orderID),
	}
}

// NewTotalMismatchError reports a client total that disagrees with the cart.
func NewTotalMismatchError(given, computed decimal.Decimal) error {
	return errors.NewValidation("total does not match cart", map[string]string{
		"total":      given.String(),
		"cart_total": computed.String(),
	})
}

// NewDuplicateBookError reports the same book twice in one cart.
func NewDuplicateBookError(bookID int) error {
	return errors.NewValidation("book appears more than once in cart", map[string]int{
		"book_id": bookID,
	})
}

// NewGroupConflictError reports two editions of the same book in one cart.
func NewGroupConflictError(groupID string, first, second int) error {
	return errors.NewValidation("only one edition per group may be ordered", map[string]interface{}{
		"group_id": groupID,
		"book_ids": []int{first, second},
	})
}

// NewInvalidTransitionError reports an attempt to resolve a non-pending order.
func NewInvalidTransitionError(orderID string, from, to OrderStatus) error {
	return errors.NewConflict(fmt.Sprintf("order '%s' is %s and cannot become %s", orderID, from, to))
}
