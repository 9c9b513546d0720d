package domain

import "github.com/shopspring/decimal"

// Book is a catalog entry. Books sharing a GroupID are editions of one title.
type Book struct {
	ID      int             `json:"id"`
	Title   string          `json:"title"`
	Author  string          `json:"author"`
	Price   decimal.Decimal `json:"price"`
	GroupID string          `json:"groupId,omitempty"`
}

// LineItem returns the cart entry for one copy of b.
func (b Book) LineItem() LineItem {
	return LineItem{
		BookID:   b.ID,
		Title:    b.Title,
		Author:   b.Author,
		Price:    b.Price,
		Quantity: 1,
		GroupID:  b.GroupID,
	}
}

// GroupKozari holds the two Kuzari bindings.
const GroupKozari = "kozari"

var catalog = []Book{
	{ID: 1, Title: "גמ' בבא קמא", Author: "עוז והדר", Price: decimal.NewFromInt(130)},
	{ID: 2, Title: "כוזרי - כריכה קשה", Author: "רבי יהודה הלוי (הוצאת דביר)", Price: decimal.NewFromInt(92), GroupID: GroupKozari},
	{ID: 3, Title: "כוזרי - כריכה רכה", Author: "רבי יהודה הלוי (הוצאת דביר)", Price: decimal.NewFromInt(82), GroupID: GroupKozari},
	{ID: 4, Title: "מסילת ישרים", Author: "הרמח\"ל", Price: decimal.NewFromInt(28)},
	{ID: 5, Title: "חפץ חיים", Author: "רבי ישראל מאיר הכהן מראדין", Price: decimal.NewFromInt(50)},
	{ID: 6, Title: "ילקוט יוסף (לפוסקים כרב עובדיה)", Author: "הרב יצחק יוסף", Price: decimal.NewFromInt(125)},
}

// Catalog returns a copy of the static book list.
func Catalog() []Book {
	books := make([]Book, len(catalog))
	copy(books, catalog)
	return books
}

// FindBook looks a book up by id.
func FindBook(id int) (Book, bool) {
	for _, b := range catalog {
		if b.ID == id {
			return b, true
		}
	}
	return Book{}, false
}
