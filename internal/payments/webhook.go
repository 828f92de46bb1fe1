package payments

import (
	"context"
	"strings"

	pkgerrors "github.com/susplants/shop-backend/pkg/errors"
	"github.com/susplants/shop-backend/pkg/logger"
	"github.com/susplants/shop-backend/pkg/metrics"
)

// WebhookEvent is the envelope Square posts for payment lifecycle events.
type WebhookEvent struct {
	EventID string      `json:"event_id"`
	Type    string      `json:"type"`
	Data    WebhookData `json:"data"`
}

type WebhookData struct {
	Type   string        `json:"type"`
	ID     string        `json:"id"`
	Object WebhookObject `json:"object"`
}

type WebhookObject struct {
	Payment *WebhookPayment `json:"payment"`
}

// WebhookPayment is the payment snapshot inside the event. The note carries
// the order prefix set when the payment link was created; order_id is the
// fallback route for payments created before the note convention.
type WebhookPayment struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	OrderID string `json:"order_id"`
	Note    string `json:"note"`
}

// WebhookService routes verified Square payment events into completion.
type WebhookService struct {
	completions Service
	metrics     *metrics.ReconciliationMetrics
	logg        *logger.Logger
}

// NewWebhookService builds the webhook event handler.
func NewWebhookService(completions Service, recMetrics *metrics.ReconciliationMetrics, logg *logger.Logger) (*WebhookService, error) {
	if completions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "completion service required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &WebhookService{completions: completions, metrics: recMetrics, logg: logg}, nil
}

// HandleEvent settles orders for completed payments. Unknown event types and
// non-final payment statuses are acknowledged without side effects.
func (s *WebhookService) HandleEvent(ctx context.Context, event *WebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}

	switch strings.ToLower(event.Type) {
	case "payment.created", "payment.updated":
	default:
		s.metrics.IncWebhookEvent("ignored")
		return nil
	}

	payment := event.Data.Object.Payment
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
	}
	if !strings.EqualFold(payment.Status, "COMPLETED") {
		s.logg.Info(s.logg.WithField(ctx, "payment_status", payment.Status), "payment not final, skipping")
		s.metrics.IncWebhookEvent("skipped")
		return nil
	}

	result, err := s.completions.Complete(ctx, CompleteInput{
		Prefix:          strings.TrimSpace(payment.Note),
		SquareOrderID:   payment.OrderID,
		SquarePaymentID: payment.ID,
	})
	if err != nil {
		s.metrics.IncWebhookEvent("error")
		return err
	}
	if result.AlreadyProcessed {
		s.metrics.IncWebhookEvent("duplicate")
		return nil
	}
	s.metrics.IncWebhookEvent("completed")
	return nil
}
