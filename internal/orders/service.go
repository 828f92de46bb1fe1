package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/susplants/shop-backend/pkg/db/models"
	"github.com/susplants/shop-backend/pkg/enums"
	pkgerrors "github.com/susplants/shop-backend/pkg/errors"
	"github.com/susplants/shop-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Draft is one cart line item about to become an order row. Unit price and
// product name are trusted snapshots taken from the product table.
type Draft struct {
	ProductID      uuid.UUID
	ProductName    string
	Quantity       int
	UnitPriceYen   int
	ShippingFeeYen int
}

// CustomerInfo is the contact block shared by every row in a checkout.
type CustomerInfo struct {
	Name       string
	Email      string
	Phone      *string
	PostalCode string
	Address    string
	Notes      *string
}

// CreateInput groups everything needed to persist a checkout's order rows.
type CreateInput struct {
	Prefix         string
	Customer       CustomerInfo
	Drafts         []Draft
	PaymentMethod  enums.PaymentMethod
	PaymentDueDate *time.Time
}

// StatusUpdateInput carries a single-order transition request.
type StatusUpdateInput struct {
	OrderID  uuid.UUID
	Target   enums.OrderStatus
	RefundID *string
}

// Service defines order lifecycle operations beyond repository reads.
type Service interface {
	CreateOrders(ctx context.Context, input CreateInput) ([]models.Order, error)
	GetByNumberPrefix(ctx context.Context, prefix string) ([]models.Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, input StatusUpdateInput) (*models.Order, error)
	CancelPendingByPrefix(ctx context.Context, prefix string) (int64, error)
	SetPaymentLinkRefs(ctx context.Context, prefix, squareOrderID, paymentLinkID string) error
	List(ctx context.Context, params pagination.Params) ([]models.Order, string, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// CreateOrders persists one pending_payment row per draft under the shared
// prefix. Stock is not touched here; it only moves when payment completes.
func (s *service) CreateOrders(ctx context.Context, input CreateInput) ([]models.Order, error) {
	if input.Prefix == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order prefix is required")
	}
	if len(input.Drafts) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line item is required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}

	rows := make([]*models.Order, 0, len(input.Drafts))
	for i, draft := range input.Drafts {
		if draft.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line item quantity must be positive")
		}
		rows = append(rows, &models.Order{
			ID:             uuid.New(),
			OrderNumber:    OrderNumber(input.Prefix, i+1),
			OrderPrefix:    input.Prefix,
			CustomerName:   input.Customer.Name,
			CustomerEmail:  input.Customer.Email,
			CustomerPhone:  input.Customer.Phone,
			PostalCode:     input.Customer.PostalCode,
			Address:        input.Customer.Address,
			Notes:          input.Customer.Notes,
			ProductID:      draft.ProductID,
			ProductName:    draft.ProductName,
			Quantity:       draft.Quantity,
			UnitPriceYen:   draft.UnitPriceYen,
			ShippingFeeYen: draft.ShippingFeeYen,
			PaymentMethod:  input.PaymentMethod,
			Status:         enums.OrderStatusPendingPayment,
			PaymentStatus:  enums.PaymentStatusUnpaid,
			PaymentDueDate: input.PaymentDueDate,
		})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, rows)
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out, nil
}

func (s *service) GetByNumberPrefix(ctx context.Context, prefix string) ([]models.Order, error) {
	if prefix == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	}
	rows, err := s.repo.FindByNumberPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return rows, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateStatus applies a transition-guarded status change. Re-applying the
// current status is a no-op; any other disallowed jump is a state conflict.
func (s *service) UpdateStatus(ctx context.Context, input StatusUpdateInput) (*models.Order, error) {
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return err
		}

		if row.Status == input.Target {
			updated = row
			return nil
		}
		if !row.Status.CanTransitionTo(input.Target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move order from %s to %s", row.Status, input.Target)).
				WithDetails(map[string]any{
					"order_id": row.ID.String(),
					"current":  row.Status.String(),
					"target":   input.Target.String(),
				})
		}

		now := time.Now().UTC()
		row.Status = input.Target
		switch input.Target {
		case enums.OrderStatusPaid:
			row.PaymentStatus = enums.PaymentStatusPaid
			row.PaidAt = &now
		case enums.OrderStatusRefunded:
			row.PaymentStatus = enums.PaymentStatusRefunded
			row.RefundedAt = &now
			if input.RefundID != nil {
				row.RefundID = input.RefundID
			}
		}

		if err := repo.Save(ctx, row); err != nil {
			return err
		}
		updated = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CancelPendingByPrefix cancels every still-pending row in a checkout. Used as
// compensation when the payment gateway rejects the session after persist.
func (s *service) CancelPendingByPrefix(ctx context.Context, prefix string) (int64, error) {
	if prefix == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order prefix is required")
	}
	var affected int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.repo.WithTx(tx).UpdateStatusByPrefix(ctx, prefix, enums.OrderStatusCancelled)
		if err != nil {
			return err
		}
		affected = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// SetPaymentLinkRefs stores hosted checkout identifiers on the checkout's rows.
func (s *service) SetPaymentLinkRefs(ctx context.Context, prefix, squareOrderID, paymentLinkID string) error {
	if prefix == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order prefix is required")
	}
	return s.repo.SetPaymentLinkByPrefix(ctx, prefix, squareOrderID, paymentLinkID)
}

func (s *service) List(ctx context.Context, params pagination.Params) ([]models.Order, string, error) {
	params.Limit = pagination.NormalizeLimit(params.Limit)
	return s.repo.List(ctx, params)
}
