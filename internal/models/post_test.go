package models

import (
	"testing"
)

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name          string
		page, limit   int
		total         int64
		expectedPages int
	}{
		{"empty", 1, 10, 0, 0},
		{"exact", 1, 10, 20, 2},
		{"partial last page", 2, 10, 21, 3},
		{"single", 1, 20, 5, 1},
		{"zero limit", 1, 0, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.page, tt.limit, tt.total)
			if p.TotalPages != tt.expectedPages {
				t.Errorf("TotalPages = %d, want %d", p.TotalPages, tt.expectedPages)
			}
			if p.CurrentPage != tt.page || p.Limit != tt.limit || p.TotalPosts != tt.total {
				t.Errorf("NewPagination(%d, %d, %d) = %+v", tt.page, tt.limit, tt.total, p)
			}
		})
	}
}
