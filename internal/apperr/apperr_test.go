package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"undefined table", &pq.Error{Code: "42P01"}, CodeUnavailable},
		{"undefined function", &pq.Error{Code: "42883"}, CodeUnavailable},
		{"unique violation", &pq.Error{Code: "23505"}, CodeConflict},
		{"other pq error", &pq.Error{Code: "22001"}, CodeInternal},
		{"plain error", errors.New("boom"), CodeInternal},
		{"already classified", Validation("bad input"), CodeValidation},
		{"wrapped pq error", fmt.Errorf("query failed: %w", &pq.Error{Code: "42P01"}), CodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err).Code; got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeForbidden, http.StatusForbidden},
		{CodeValidation, http.StatusBadRequest},
		{CodeConflict, http.StatusConflict},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := (&Error{Code: tt.code}).StatusCode(); got != tt.want {
			t.Errorf("StatusCode(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestIsUnavailable(t *testing.T) {
	if !IsUnavailable(&pq.Error{Code: "42P01"}) {
		t.Error("undefined table should be unavailable")
	}
	if IsUnavailable(errors.New("network down")) {
		t.Error("plain error should not be unavailable")
	}
}
