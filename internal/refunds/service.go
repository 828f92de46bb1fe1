package refunds

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/susplants/shop-backend/internal/notifications"
	"github.com/susplants/shop-backend/internal/orders"
	"github.com/susplants/shop-backend/internal/stock"
	"github.com/susplants/shop-backend/pkg/db/models"
	"github.com/susplants/shop-backend/pkg/enums"
	pkgerrors "github.com/susplants/shop-backend/pkg/errors"
	"github.com/susplants/shop-backend/pkg/logger"
	"github.com/susplants/shop-backend/pkg/metrics"
	"github.com/susplants/shop-backend/pkg/square"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Result carries the gateway reference recorded for a refund.
type Result struct {
	RefundID string
	Order    *models.Order
}

// Service reverses settled orders and cancels unpaid ones.
type Service interface {
	Refund(ctx context.Context, orderID uuid.UUID, reason string) (*Result, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type service struct {
	repo     orders.Repository
	stock    stock.Repository
	tx       txRunner
	gateway  square.Gateway
	notifier notifications.Notifier
	metrics  *metrics.ReconciliationMetrics
	logg     *logger.Logger
}

// NewService builds the refund service.
func NewService(
	repo orders.Repository,
	stockRepo stock.Repository,
	tx txRunner,
	gateway square.Gateway,
	notifier notifications.Notifier,
	recMetrics *metrics.ReconciliationMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if stockRepo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		stock:    stockRepo,
		tx:       tx,
		gateway:  gateway,
		notifier: notifier,
		metrics:  recMetrics,
		logg:     logg,
	}, nil
}

// Refund reverses one settled order row. The gateway call happens before any
// database mutation so a gateway failure leaves the row untouched and
// retryable.
func (s *service) Refund(ctx context.Context, orderID uuid.UUID, reason string) (*Result, error) {
	row, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		s.metrics.IncRefund("error")
		return nil, err
	}
	ctx = s.logg.WithOrderNumber(ctx, row.OrderNumber)

	if row.Status == enums.OrderStatusRefunded {
		s.metrics.IncRefund("already_refunded")
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order already refunded").
			WithDetails(map[string]any{"order_number": row.OrderNumber})
	}
	if row.SquarePaymentID == nil || *row.SquarePaymentID == "" {
		s.metrics.IncRefund("no_payment")
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no payment recorded for order").
			WithDetails(map[string]any{"order_number": row.OrderNumber})
	}
	if !row.Status.CanTransitionTo(enums.OrderStatusRefunded) {
		s.metrics.IncRefund("state_conflict")
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot refund order in status %s", row.Status)).
			WithDetails(map[string]any{"order_number": row.OrderNumber, "status": row.Status.String()})
	}
	if s.gateway == nil {
		s.metrics.IncRefund("error")
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "refunds are not configured")
	}

	refund, err := s.gateway.RefundPayment(ctx, square.RefundCreateParams{
		PaymentID: *row.SquarePaymentID,
		AmountYen: int64(row.TotalYen()),
		Currency:  "JPY",
		Reason:    reason,
	})
	if err != nil {
		s.metrics.IncRefund("gateway_error")
		return nil, err
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		fresh, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		fresh.Status = enums.OrderStatusRefunded
		fresh.PaymentStatus = enums.PaymentStatusRefunded
		fresh.RefundID = &refund.RefundID
		fresh.RefundedAt = &now
		if err := repo.Save(ctx, fresh); err != nil {
			return err
		}
		row = fresh
		return nil
	})
	if err != nil {
		// the gateway refund went through; the row update must be replayed by hand
		s.logg.Error(ctx, "refund recorded at gateway but order update failed", err)
		s.metrics.IncRefund("error")
		return nil, err
	}

	if _, err := s.stock.Increment(ctx, row.ProductID, row.Quantity); err != nil {
		restoreCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id": row.ProductID.String(),
			"quantity":   row.Quantity,
		})
		s.logg.Error(restoreCtx, "stock restore failed after refund", err)
		s.metrics.IncStockRestoreFailure()
	}

	if s.notifier != nil {
		s.notifier.OrderRefunded(ctx, row)
	}

	s.logg.Info(ctx, "order refunded")
	s.metrics.IncRefund("refunded")
	return &Result{RefundID: refund.RefundID, Order: row}, nil
}

// Cancel voids a pending order. No stock moves and no gateway call happens
// because nothing was decremented or charged yet.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if row.Status == enums.OrderStatusCancelled {
			cancelled = row
			return nil
		}
		if !row.Status.CanTransitionTo(enums.OrderStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot cancel order in status %s", row.Status)).
				WithDetails(map[string]any{"order_number": row.OrderNumber, "status": row.Status.String()})
		}
		row.Status = enums.OrderStatusCancelled
		if err := repo.Save(ctx, row); err != nil {
			return err
		}
		cancelled = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}
