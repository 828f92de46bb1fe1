package controllers

import (
	"net/http"

	"github.com/susplants/shop-backend/api/responses"
	"github.com/susplants/shop-backend/api/validators"
	"github.com/susplants/shop-backend/internal/payments"
	pkgerrors "github.com/susplants/shop-backend/pkg/errors"
	"github.com/susplants/shop-backend/pkg/logger"
)

// CompletePayment is the redirect-callback completion endpoint hit when the
// customer lands back from the hosted checkout page.
func CompletePayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload completePaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Complete(r.Context(), payments.CompleteInput{
			Prefix:          payload.OrderNumber,
			SquareOrderID:   payload.SquareOrderID,
			SquarePaymentID: payload.SquarePaymentID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, completePaymentResponse{
			OrderNumber:      payload.OrderNumber,
			AlreadyProcessed: result.AlreadyProcessed,
			UpdatedRows:      result.UpdatedRows,
		})
	}
}

type completePaymentRequest struct {
	OrderNumber     string `json:"order_number" validate:"required"`
	SquareOrderID   string `json:"square_order_id" validate:"omitempty,max=64"`
	SquarePaymentID string `json:"square_payment_id" validate:"omitempty,max=64"`
}

type completePaymentResponse struct {
	OrderNumber      string `json:"order_number"`
	AlreadyProcessed bool   `json:"already_processed"`
	UpdatedRows      int64  `json:"updated_rows"`
}
