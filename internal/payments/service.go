package payments

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/susplants/shop-backend/internal/notifications"
	"github.com/susplants/shop-backend/internal/orders"
	"github.com/susplants/shop-backend/internal/stock"
	"github.com/susplants/shop-backend/pkg/db/models"
	"github.com/susplants/shop-backend/pkg/enums"
	pkgerrors "github.com/susplants/shop-backend/pkg/errors"
	"github.com/susplants/shop-backend/pkg/logger"
	"github.com/susplants/shop-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CompleteInput identifies the checkout being settled and the gateway refs to
// record. Prefix wins; SquareOrderID is the webhook fallback route.
type CompleteInput struct {
	Prefix          string
	SquareOrderID   string
	SquarePaymentID string
}

// Result reports what the completion did.
type Result struct {
	AlreadyProcessed bool
	UpdatedRows      int64
	Orders           []models.Order
}

// Service settles pending orders after a confirmed payment. Safe to call more
// than once per checkout; duplicate deliveries are absorbed.
type Service interface {
	Complete(ctx context.Context, input CompleteInput) (*Result, error)
}

type service struct {
	repo     orders.Repository
	stock    stock.Repository
	tx       txRunner
	notifier notifications.Notifier
	metrics  *metrics.ReconciliationMetrics
	logg     *logger.Logger
}

// NewService builds the payment completion service.
func NewService(
	repo orders.Repository,
	stockRepo stock.Repository,
	tx txRunner,
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
		notifier: notifier,
		metrics:  recMetrics,
		logg:     logg,
	}, nil
}

func (s *service) Complete(ctx context.Context, input CompleteInput) (*Result, error) {
	rows, prefix, err := s.loadRows(ctx, input)
	if err != nil {
		s.metrics.IncCompletion("error")
		return nil, err
	}
	ctx = s.logg.WithOrderNumber(ctx, prefix)

	// any settled row means a previous delivery already did the work
	for _, row := range rows {
		if row.Status != enums.OrderStatusPendingPayment {
			s.logg.Info(ctx, "completion skipped, orders already processed")
			s.metrics.IncCompletion("already_processed")
			return &Result{AlreadyProcessed: true, Orders: rows}, nil
		}
	}

	paidAt := time.Now().UTC()
	refs := orders.PaymentRefs{
		SquareOrderID:   input.SquareOrderID,
		SquarePaymentID: input.SquarePaymentID,
	}

	var updated int64
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.repo.WithTx(tx).MarkPaidByPrefix(ctx, prefix, refs, paidAt)
		if err != nil {
			return err
		}
		updated = n
		return nil
	})
	if err != nil {
		s.metrics.IncCompletion("error")
		return nil, err
	}
	if updated == 0 {
		// a concurrent delivery won the race between our read and the update
		s.logg.Info(ctx, "completion skipped, concurrent delivery settled the orders")
		s.metrics.IncCompletion("already_processed")
		return &Result{AlreadyProcessed: true, Orders: rows}, nil
	}

	// Paid status is never rolled back: a failed decrement here means the
	// money moved but the shelf count is stale, which operators resolve by
	// hand off the stock_decrement_failures_total alert.
	for _, row := range rows {
		if _, err := s.stock.Decrement(ctx, row.ProductID, row.Quantity); err != nil {
			rowCtx := s.logg.WithFields(ctx, map[string]any{
				"order_number": row.OrderNumber,
				"product_id":   row.ProductID.String(),
				"quantity":     row.Quantity,
			})
			s.logg.Error(rowCtx, "stock decrement failed after payment", err)
			s.metrics.IncStockDecrementFailure()
		}
	}

	settled, err := s.repo.FindByNumberPrefix(ctx, prefix)
	if err != nil {
		settled = rows
	}
	if s.notifier != nil {
		s.notifier.PaymentCompleted(ctx, settled)
	}

	s.logg.Info(ctx, "payment completed")
	s.metrics.IncCompletion("completed")
	return &Result{UpdatedRows: updated, Orders: settled}, nil
}

func (s *service) loadRows(ctx context.Context, input CompleteInput) ([]models.Order, string, error) {
	if input.Prefix != "" {
		rows, err := s.repo.FindByNumberPrefix(ctx, input.Prefix)
		if err != nil {
			return nil, "", err
		}
		if len(rows) == 0 {
			return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "no orders for payment")
		}
		return rows, input.Prefix, nil
	}

	if input.SquareOrderID != "" {
		rows, err := s.repo.FindBySquareOrderID(ctx, input.SquareOrderID)
		if err != nil {
			return nil, "", err
		}
		if len(rows) == 0 {
			return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "no orders for payment")
		}
		return rows, rows[0].OrderPrefix, nil
	}

	return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "order reference is required")
}
