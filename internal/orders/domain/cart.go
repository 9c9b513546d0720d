package domain

import "github.com/shopspring/decimal"

// Cart is the client-side selection. Adding toggles membership and
// replaces any other edition from the same group.
type Cart struct {
	items []LineItem
}

// Toggle removes b if it is in the cart. Otherwise it drops any item
// sharing b's group and appends b.
func (c *Cart) Toggle(b Book) {
	for i, item := range c.items {
		if item.BookID == b.ID {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			return
		}
	}

	if b.GroupID != "" {
		kept := c.items[:0:0]
		for _, item := range c.items {
			if item.GroupID != b.GroupID {
				kept = append(kept, item)
			}
		}
		c.items = kept
	}
	c.items = append(c.items, b.LineItem())
}

// Contains reports whether the book is selected.
func (c *Cart) Contains(bookID int) bool {
	for _, item := range c.items {
		if item.BookID == bookID {
			return true
		}
	}
	return false
}

// Items returns a copy of the selected line items in selection order.
func (c *Cart) Items() []LineItem {
	items := make([]LineItem, len(c.items))
	copy(items, c.items)
	return items
}

// Total is the sum of the selected items.
func (c *Cart) Total() decimal.Decimal {
	return CartTotal(c.items)
}

// Len is the number of selected books.
func (c *Cart) Len() int {
	return len(c.items)
}
