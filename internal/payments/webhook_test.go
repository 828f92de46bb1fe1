package payments

import (
	"context"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/susplants/shop-backend/pkg/errors"
	"github.com/susplants/shop-backend/pkg/logger"
	"github.com/susplants/shop-backend/pkg/metrics"
)

type fakeCompletions struct {
	inputs []CompleteInput
	result *Result
	err    error
}

func (f *fakeCompletions) Complete(_ context.Context, input CompleteInput) (*Result, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &Result{UpdatedRows: 1}, nil
}

func newWebhookService(t *testing.T, completions *fakeCompletions) *WebhookService {
	t.Helper()

	svc, err := NewWebhookService(
		completions,
		metrics.NewReconciliationMetrics(prometheus.NewRegistry()),
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	)
	require.NoError(t, err)
	return svc
}

func completedPaymentEvent(eventType, note, orderID, paymentID, status string) *WebhookEvent {
	return &WebhookEvent{
		EventID: "evt-1",
		Type:    eventType,
		Data: WebhookData{
			Type: "payment",
			ID:   paymentID,
			Object: WebhookObject{
				Payment: &WebhookPayment{
					ID:      paymentID,
					Status:  status,
					OrderID: orderID,
					Note:    note,
				},
			},
		},
	}
}

func TestHandleEvent_routesByNote(t *testing.T) {
	completions := &fakeCompletions{}
	svc := newWebhookService(t, completions)

	event := completedPaymentEvent("payment.updated", "CART1765700000000ABC123", "sq-ord-1", "sq-pay-1", "COMPLETED")
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	require.Len(t, completions.inputs, 1)
	input := completions.inputs[0]
	assert.Equal(t, "CART1765700000000ABC123", input.Prefix)
	assert.Equal(t, "sq-ord-1", input.SquareOrderID)
	assert.Equal(t, "sq-pay-1", input.SquarePaymentID)
}

func TestHandleEvent_fallsBackToOrderIDWhenNoteEmpty(t *testing.T) {
	completions := &fakeCompletions{}
	svc := newWebhookService(t, completions)

	event := completedPaymentEvent("payment.created", "  ", "sq-ord-2", "sq-pay-2", "COMPLETED")
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	require.Len(t, completions.inputs, 1)
	assert.Empty(t, completions.inputs[0].Prefix)
	assert.Equal(t, "sq-ord-2", completions.inputs[0].SquareOrderID)
}

func TestHandleEvent_ignoresUnrelatedEventTypes(t *testing.T) {
	completions := &fakeCompletions{}
	svc := newWebhookService(t, completions)

	event := completedPaymentEvent("refund.updated", "CART1ABC", "sq-ord-1", "sq-pay-1", "COMPLETED")
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	assert.Empty(t, completions.inputs)
}

func TestHandleEvent_skipsNonFinalPayments(t *testing.T) {
	completions := &fakeCompletions{}
	svc := newWebhookService(t, completions)

	for _, status := range []string{"APPROVED", "PENDING", "FAILED", "CANCELED"} {
		event := completedPaymentEvent("payment.updated", "CART1ABC", "sq-ord-1", "sq-pay-1", status)
		require.NoError(t, svc.HandleEvent(context.Background(), event))
	}
	assert.Empty(t, completions.inputs)
}

func TestHandleEvent_missingPaymentPayload(t *testing.T) {
	svc := newWebhookService(t, &fakeCompletions{})

	err := svc.HandleEvent(context.Background(), &WebhookEvent{Type: "payment.updated"})
	requireCode(t, err, pkgerrors.CodeValidation)

	err = svc.HandleEvent(context.Background(), nil)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestHandleEvent_propagatesCompletionErrors(t *testing.T) {
	completions := &fakeCompletions{err: pkgerrors.New(pkgerrors.CodeInternal, "db down")}
	svc := newWebhookService(t, completions)

	event := completedPaymentEvent("payment.updated", "CART1ABC", "sq-ord-1", "sq-pay-1", "COMPLETED")
	err := svc.HandleEvent(context.Background(), event)
	requireCode(t, err, pkgerrors.CodeInternal)
}

func TestHandleEvent_duplicateCompletionIsSilent(t *testing.T) {
	completions := &fakeCompletions{result: &Result{AlreadyProcessed: true}}
	svc := newWebhookService(t, completions)

	event := completedPaymentEvent("payment.updated", "CART1ABC", "sq-ord-1", "sq-pay-1", "COMPLETED")
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	require.Len(t, completions.inputs, 1)
}
