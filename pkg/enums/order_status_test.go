package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTransitions(t *testing.T) {
	assert.True(t, OrderStatusPendingPayment.CanTransitionTo(OrderStatusPaid))
	assert.True(t, OrderStatusPendingPayment.CanTransitionTo(OrderStatusCancelled))
	assert.True(t, OrderStatusPaid.CanTransitionTo(OrderStatusShipped))
	assert.True(t, OrderStatusPaid.CanTransitionTo(OrderStatusRefunded))
	assert.True(t, OrderStatusShipped.CanTransitionTo(OrderStatusCompleted))

	assert.False(t, OrderStatusPendingPayment.CanTransitionTo(OrderStatusShipped))
	assert.False(t, OrderStatusPendingPayment.CanTransitionTo(OrderStatusRefunded))
	assert.False(t, OrderStatusPaid.CanTransitionTo(OrderStatusPendingPayment))
	assert.False(t, OrderStatusCancelled.CanTransitionTo(OrderStatusPaid))
	assert.False(t, OrderStatusRefunded.CanTransitionTo(OrderStatusPaid))
	assert.False(t, OrderStatusCompleted.CanTransitionTo(OrderStatusRefunded))
}

func TestOrderStatusIsTerminal(t *testing.T) {
	assert.True(t, OrderStatusCompleted.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.True(t, OrderStatusRefunded.IsTerminal())

	assert.False(t, OrderStatusPendingPayment.IsTerminal())
	assert.False(t, OrderStatusPaid.IsTerminal())
	assert.False(t, OrderStatusShipped.IsTerminal())
}

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("pending_payment")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPendingPayment, status)

	_, err = ParseOrderStatus("unknown")
	require.Error(t, err)

	_, err = ParseOrderStatus("")
	require.Error(t, err)
}

func TestOrderStatusIsValid(t *testing.T) {
	for _, status := range validOrderStatuses {
		assert.True(t, status.IsValid(), status)
	}
	assert.False(t, OrderStatus("shipped_back").IsValid())
}

func TestPaymentMethodIsValid(t *testing.T) {
	assert.True(t, PaymentMethodSquare.IsValid())
	assert.True(t, PaymentMethodBankTransfer.IsValid())
	assert.False(t, PaymentMethod("cash").IsValid())
}

func TestPaymentStatusIsValid(t *testing.T) {
	assert.True(t, PaymentStatusUnpaid.IsValid())
	assert.True(t, PaymentStatusPaid.IsValid())
	assert.True(t, PaymentStatusRefunded.IsValid())
	assert.False(t, PaymentStatus("partial").IsValid())
}
