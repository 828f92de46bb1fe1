package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/susplants/shop-backend/api/responses"
	"github.com/susplants/shop-backend/internal/orders"
	"github.com/susplants/shop-backend/pkg/db/models"
	pkgerrors "github.com/susplants/shop-backend/pkg/errors"
	"github.com/susplants/shop-backend/pkg/logger"
)

// GetOrder returns every row in a checkout, looked up by the shared number
// prefix shown to the customer.
func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
		if orderNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}

		rows, err := svc.GetByNumberPrefix(r.Context(), orderNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderGroupResponse(orderNumber, rows))
	}
}

type orderGroupResponse struct {
	OrderNumber    string          `json:"order_number"`
	Status         string          `json:"status"`
	TotalYen       int             `json:"total_yen"`
	PaymentMethod  string          `json:"payment_method"`
	PaymentDueDate *time.Time      `json:"payment_due_date,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	Items          []orderResponse `json:"items"`
}

type orderResponse struct {
	ID             uuid.UUID  `json:"id"`
	OrderNumber    string     `json:"order_number"`
	ProductID      uuid.UUID  `json:"product_id"`
	ProductName    string     `json:"product_name"`
	Quantity       int        `json:"quantity"`
	UnitPriceYen   int        `json:"unit_price_yen"`
	ShippingFeeYen int        `json:"shipping_fee_yen"`
	Status         string     `json:"status"`
	PaymentStatus  string     `json:"payment_status"`
	PaymentMethod  string     `json:"payment_method"`
	RefundID       *string    `json:"refund_id,omitempty"`
	RefundedAt     *time.Time `json:"refunded_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func newOrderGroupResponse(prefix string, rows []models.Order) orderGroupResponse {
	group := orderGroupResponse{OrderNumber: prefix}
	for i, row := range rows {
		if i == 0 {
			group.Status = row.Status.String()
			group.PaymentMethod = row.PaymentMethod.String()
			group.PaymentDueDate = row.PaymentDueDate
			group.PaidAt = row.PaidAt
		}
		group.TotalYen += row.TotalYen()
		group.Items = append(group.Items, newOrderResponse(row))
	}
	return group
}

func newOrderResponse(row models.Order) orderResponse {
	return orderResponse{
		ID:             row.ID,
		OrderNumber:    row.OrderNumber,
		ProductID:      row.ProductID,
		ProductName:    row.ProductName,
		Quantity:       row.Quantity,
		UnitPriceYen:   row.UnitPriceYen,
		ShippingFeeYen: row.ShippingFeeYen,
		Status:         row.Status.String(),
		PaymentStatus:  row.PaymentStatus.String(),
		PaymentMethod:  row.PaymentMethod.String(),
		RefundID:       row.RefundID,
		RefundedAt:     row.RefundedAt,
		CreatedAt:      row.CreatedAt,
	}
}
