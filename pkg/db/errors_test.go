package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"postgres form", errors.New(`ERROR: duplicate key value violates unique constraint "idx_orders_order_number" (SQLSTATE 23505)`), true},
		{"sqlite form", errors.New("UNIQUE constraint failed: orders.order_number"), true},
		{"unrelated", errors.New("connection refused"), false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsUniqueViolation(tc.err))
		})
	}
}
