package handlers

import (
	"net/http/httptest"
	"testing"
)

func TestPageParams(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		page    int
		perPage int
		offset  int
	}{
		{"defaults", "/api/employees", 1, 20, 0},
		{"explicit", "/api/employees?page=3&per_page=10", 3, 10, 20},
		{"zero page falls back", "/api/employees?page=0", 1, 20, 0},
		{"negative page falls back", "/api/employees?page=-2", 1, 20, 0},
		{"per_page over cap falls back", "/api/employees?per_page=500", 1, 20, 0},
		{"garbage ignored", "/api/employees?page=abc&per_page=xyz", 1, 20, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			page, perPage, offset := pageParams(r)
			if page != tt.page || perPage != tt.perPage || offset != tt.offset {
				t.Errorf("pageParams = %d, %d, %d; want %d, %d, %d",
					page, perPage, offset, tt.page, tt.perPage, tt.offset)
			}
		})
	}
}
