package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	for in, want := range map[string]string{
		"":           "DESC",
		"asc":        "ASC",
		"  ASC ":     "ASC",
		"desc":       "DESC",
		"ASC; DROP":  "DESC",
		"sideways":   "DESC",
		"ASC -- yes": "DESC",
	} {
		assert.Equal(t, want, ValidateSortOrder(in), "input %q", in)
	}
}

func TestValidateSortField(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "created_at"},
		{"code", "code"},
		{" priority ", "priority"},
		{"CODE", "created_at"},
		{"code desc", "created_at"},
		{"code; DROP TABLE locations", "created_at"},
		{"(SELECT 1)", "created_at"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidateSortField(tt.input, LocationSortFields, "created_at"), "input %q", tt.input)
	}
}

func TestSortFieldWhitelistsShareBaseColumns(t *testing.T) {
	for name, fields := range map[string]map[string]bool{
		"locations":       LocationSortFields,
		"reservations":    ReservationSortFields,
		"purchase_orders": PurchaseOrderSortFields,
	} {
		for _, col := range []string{"id", "created_at", "updated_at"} {
			assert.True(t, fields[col], "%s should allow sorting by %s", name, col)
		}
	}
}
