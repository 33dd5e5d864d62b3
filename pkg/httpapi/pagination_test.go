package httpapi

import (
	"net/http/httptest"
	"testing"
)

func TestPagination(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "/orders", 20, 0},
		{"explicit", "/orders?limit=5&offset=15", 5, 15},
		{"clamped", "/orders?limit=500", 100, 0},
		{"garbage", "/orders?limit=abc&offset=-3", 20, 0},
		{"zero limit", "/orders?limit=0", 20, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := Pagination(httptest.NewRequest("GET", tt.url, nil))
			if limit != tt.wantLimit || offset != tt.wantOffset {
				t.Errorf("Pagination = %d/%d, want %d/%d", limit, offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}
