package application

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"bookstore/internal/orders/domain"
	"bookstore/pkg/errors"
)

// BookSummary is one row of the per-book sales report.
type BookSummary struct {
	BookID       int
	Title        string
	Author       string
	Quantity     int
	TotalRevenue decimal.Decimal
}

// SummarizeBooks groups the line items of orders by book.
// Rows are sorted by title, then by book id.
func SummarizeBooks(orders []*domain.Order) []BookSummary {
	byBook := make(map[int]*BookSummary)
	for _, order := range orders {
		for _, item := range order.Cart {
			row, ok := byBook[item.BookID]
			if !ok {
				row = &BookSummary{
					BookID:       item.BookID,
					Title:        item.Title,
					Author:       item.Author,
					TotalRevenue: decimal.Zero,
				}
				byBook[item.BookID] = row
			}
			row.Quantity += item.Quantity
			row.TotalRevenue = row.TotalRevenue.Add(item.Subtotal())
		}
	}

	rows := make([]BookSummary, 0, len(byBook))
	for _, row := range byBook {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Title != rows[j].Title {
			return rows[i].Title < rows[j].Title
		}
		return rows[i].BookID < rows[j].BookID
	})
	return rows
}

// BookSummary reports sales per book over orders with the given status,
// completed orders by default. It is computed on every call.
func (uc *AdminUseCase) BookSummary(ctx context.Context, password string, status string) ([]BookSummary, error) {
	if err := uc.authorize(ctx, password); err != nil {
		return nil, err
	}

	filter, err := parseStatusFilter(status, domain.OrderStatusCompleted)
	if err != nil {
		return nil, err
	}

	orders, err := uc.repo.List(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list orders")
	}
	return SummarizeBooks(orders), nil
}
