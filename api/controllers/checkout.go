package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/susplants/shop-backend/api/responses"
	"github.com/susplants/shop-backend/api/validators"
	checkoutsvc "github.com/susplants/shop-backend/internal/checkout"
	"github.com/susplants/shop-backend/internal/orders"
	"github.com/susplants/shop-backend/pkg/enums"
	pkgerrors "github.com/susplants/shop-backend/pkg/errors"
	"github.com/susplants/shop-backend/pkg/logger"
)

// Checkout handles submission of the storefront cart.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		items := make([]checkoutsvc.LineItem, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, checkoutsvc.LineItem{
				ProductID:        item.ProductID,
				Quantity:         item.Quantity,
				PriceSnapshotYen: item.PriceYen,
			})
		}

		result, err := svc.Checkout(r.Context(), checkoutsvc.Input{
			Items: items,
			Customer: orders.CustomerInfo{
				Name:       payload.Customer.Name,
				Email:      payload.Customer.Email,
				Phone:      payload.Customer.Phone,
				PostalCode: payload.Customer.PostalCode,
				Address:    payload.Customer.Address,
				Notes:      payload.Customer.Notes,
			},
			PaymentMethod: method,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

type checkoutRequest struct {
	Items         []checkoutItemRequest   `json:"items" validate:"required,min=1,dive"`
	Customer      checkoutCustomerRequest `json:"customer" validate:"required"`
	PaymentMethod string                  `json:"payment_method" validate:"required"`
}

type checkoutItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
	PriceYen  int       `json:"price_yen" validate:"omitempty,min=0"`
}

type checkoutCustomerRequest struct {
	Name       string  `json:"name" validate:"required,max=120"`
	Email      string  `json:"email" validate:"required,email"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	PostalCode string  `json:"postal_code" validate:"required,min=7,max=8"`
	Address    string  `json:"address" validate:"required,max=400"`
	Notes      *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type checkoutResponse struct {
	OrderNumber    string     `json:"order_number"`
	Orders         []string   `json:"orders"`
	TotalYen       int        `json:"total_yen"`
	ShippingFeeYen int        `json:"shipping_fee_yen"`
	ShippingRegion string     `json:"shipping_region"`
	PaymentDueDate *time.Time `json:"payment_due_date,omitempty"`
	PaymentLinkURL string     `json:"payment_link_url,omitempty"`
}

func newCheckoutResponse(result *checkoutsvc.Result) checkoutResponse {
	return checkoutResponse{
		OrderNumber:    result.OrderNumber,
		Orders:         result.Orders,
		TotalYen:       result.TotalYen,
		ShippingFeeYen: result.ShippingFeeYen,
		ShippingRegion: result.ShippingRegion,
		PaymentDueDate: result.PaymentDueDate,
		PaymentLinkURL: result.PaymentLinkURL,
	}
}
