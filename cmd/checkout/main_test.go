package main

import (
	"testing"

	"bookstore/internal/orders/domain"
)

func TestBuildCart(t *testing.T) {
	catalog := domain.Catalog()

	tests := []struct {
		name    string
		ids     string
		want    []int
		wantErr bool
	}{
		{name: "single", ids: "5", want: []int{5}},
		{name: "spaces", ids: " 1 , 4 ", want: []int{1, 4}},
		{name: "group replaces", ids: "2,3", want: []int{3}},
		{name: "toggle off", ids: "1,4,1", want: []int{4}},
		{name: "empty", ids: "", wantErr: true},
		{name: "unknown", ids: "99", wantErr: true},
		{name: "not a number", ids: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart, err := buildCart(catalog, tt.ids)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.ids)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			items := cart.Items()
			if len(items) != len(tt.want) {
				t.Fatalf("got %d items, want %d", len(items), len(tt.want))
			}
			for i, id := range tt.want {
				if items[i].BookID != id {
					t.Errorf("item %d = book %d, want %d", i, items[i].BookID, id)
				}
			}
		})
	}
}
