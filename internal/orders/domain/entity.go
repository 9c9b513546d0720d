package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

// ParseOrderStatus accepts the three known statuses, case-insensitively.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(strings.ToLower(strings.TrimSpace(s))) {
	case OrderStatusPending:
		return OrderStatusPending, true
	case OrderStatusCompleted:
		return OrderStatusCompleted, true
	case OrderStatusFailed:
		return OrderStatusFailed, true
	}
	return "", false
}

// IsTerminal reports whether the payment path can no longer change the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

// CanTransitionTo reports whether the payment path may move s to next.
// Only pending orders move, and only to a terminal status.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return s == OrderStatusPending && next.IsTerminal()
}

// ValidateOrderID checks that id is an order identifier in the canonical
// form the store issues: 36 characters, lowercase, hyphenated.
func ValidateOrderID(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return ErrInvalidOrderID
	}
	return nil
}

// Payment providers recorded on the order.
const (
	ProviderNedarimPlus  = "NedarimPlus"
	ProviderBankTransfer = "BankTransfer"
)

// LineItem is one book in an order's cart. Quantity is always 1.
type LineItem struct {
	BookID   int             `json:"id"`
	Title    string          `json:"title"`
	Author   string          `json:"author"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	GroupID  string          `json:"groupId,omitempty"`
}

// Subtotal is price times quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Order represents the order domain entity
type Order struct {
	ID          string
	StudentName string
	Cart        []LineItem
	Total       decimal.Decimal
	Status      OrderStatus

	PaymentProvider          string
	ProviderTransactionID    string
	ProviderConfirmationCode string
	PaymentReference         string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Resolution is the terminal outcome applied to a pending order.
type Resolution struct {
	Status                   OrderStatus
	ProviderTransactionID    string
	ProviderConfirmationCode string
}

// CartTotal sums the subtotals of items.
func CartTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ValidateCart checks the line items of a new order.
func ValidateCart(items []LineItem) error {
	if len(items) == 0 {
		return ErrEmptyCart
	}

	seenBooks := make(map[int]struct{}, len(items))
	seenGroups := make(map[string]int, len(items))
	for _, item := range items {
		if item.BookID <= 0 {
			return ErrInvalidBookID
		}
		if item.Price.IsNegative() {
			return ErrInvalidPrice
		}
		if item.Quantity != 1 {
			return ErrInvalidQuantity
		}
		if _, dup := seenBooks[item.BookID]; dup {
			return NewDuplicateBookError(item.BookID)
		}
		seenBooks[item.BookID] = struct{}{}

		if item.GroupID != "" {
			if other, taken := seenGroups[item.GroupID]; taken {
				return NewGroupConflictError(item.GroupID, other, item.BookID)
			}
			seenGroups[item.GroupID] = item.BookID
		}
	}
	return nil
}

// NewOrder creates a pending order after checking every creation rule.
// total is what the client was shown and must match the cart.
func NewOrder(studentName string, cart []LineItem, total decimal.Decimal) (*Order, error) {
	name := strings.TrimSpace(studentName)
	if name == "" {
		return nil, ErrStudentNameRequired
	}
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}
	if !total.IsPositive() {
		return nil, ErrInvalidTotal
	}
	if err := ValidateCart(cart); err != nil {
		return nil, err
	}
	if sum := CartTotal(cart); !sum.Equal(total) {
		return nil, NewTotalMismatchError(total, sum)
	}

	now := time.Now().UTC()
	items := make([]LineItem, len(cart))
	copy(items, cart)

	return &Order{
		StudentName: name,
		Cart:        items,
		Total:       total,
		Status:      OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// FindLineItem returns the index of the item for bookID, or -1.
func (o *Order) FindLineItem(bookID int) int {
	for i, item := range o.Cart {
		if item.BookID == bookID {
			return i
		}
	}
	return -1
}

// RemoveLineItem drops the item for bookID and lowers the total by its
// subtotal, never below zero.
func (o *Order) RemoveLineItem(bookID int) (LineItem, error) {
	idx := o.FindLineItem(bookID)
	if idx < 0 {
		return LineItem{}, NewLineItemNotFound(o.ID, bookID)
	}

	removed := o.Cart[idx]
	cart := make([]LineItem, 0, len(o.Cart)-1)
	cart = append(cart, o.Cart[:idx]...)
	cart = append(cart, o.Cart[idx+1:]...)
	o.Cart = cart

	o.Total = decimal.Max(decimal.Zero, o.Total.Sub(removed.Subtotal()))
	o.UpdatedAt = time.Now().UTC()
	return removed, nil
}

// Resolve applies a terminal outcome to a pending order.
func (o *Order) Resolve(res Resolution) error {
	if !o.Status.CanTransitionTo(res.Status) {
		return NewInvalidTransitionError(o.ID, o.Status, res.Status)
	}
	o.Status = res.Status
	if res.ProviderTransactionID != "" {
		o.ProviderTransactionID = res.ProviderTransactionID
	}
	if res.ProviderConfirmationCode != "" {
		o.ProviderConfirmationCode = res.ProviderConfirmationCode
	}
	o.UpdatedAt = time.Now().UTC()
	return nil
}
