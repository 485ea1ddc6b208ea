package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSourceHandlersRejectUnknownTable(t *testing.T) {
	tests := map[string]http.HandlerFunc{
		"list":   ListSourceRecords(nil, "payroll"),
		"create": CreateSourceRecord(nil, "payroll", nil),
		"status": SetSourceStatus(nil, "payroll", nil),
	}
	for name, handler := range tests {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/api/payroll", strings.NewReader(`{"title":"x","status":"open"}`))
			w := httptest.NewRecorder()
			handler(w, r)
			if w.Code != http.StatusNotFound {
				t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
			}
		})
	}
}
