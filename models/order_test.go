package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusValid(t *testing.T) {
	assert.True(t, OrderUnpaid.Valid())
	assert.True(t, OrderPaid.Valid())
	assert.True(t, OrderDelivered.Valid())
	assert.True(t, OrderRefunded.Valid())
	assert.False(t, OrderStatus("Pending").Valid())
	assert.False(t, OrderStatus("").Valid())
}

func TestOrderStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"unpaid to paid", OrderUnpaid, OrderPaid, true},
		{"paid to delivered", OrderPaid, OrderDelivered, true},
		{"unpaid to refunded", OrderUnpaid, OrderRefunded, true},
		{"paid to refunded", OrderPaid, OrderRefunded, true},
		{"unpaid to delivered skips payment", OrderUnpaid, OrderDelivered, false},
		{"paid back to unpaid", OrderPaid, OrderUnpaid, false},
		{"delivered back to paid", OrderDelivered, OrderPaid, false},
		{"delivered to refunded", OrderDelivered, OrderRefunded, false},
		{"refunded to paid", OrderRefunded, OrderPaid, false},
		{"refunded to refunded", OrderRefunded, OrderRefunded, false},
		{"unpaid to unknown", OrderUnpaid, OrderStatus("Archived"), false},
		{"self transition", OrderPaid, OrderPaid, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.False(t, OrderUnpaid.Terminal())
	assert.False(t, OrderPaid.Terminal())
	assert.True(t, OrderDelivered.Terminal())
	assert.True(t, OrderRefunded.Terminal())
}
