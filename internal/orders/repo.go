package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/susplants/shop-backend/pkg/db/models"
	"github.com/susplants/shop-backend/pkg/enums"
	pkgerrors "github.com/susplants/shop-backend/pkg/errors"
	"github.com/susplants/shop-backend/pkg/pagination"
)

// PaymentRefs carries the gateway identifiers written when orders settle.
type PaymentRefs struct {
	SquareOrderID   string
	SquarePaymentID string
}

// Repository persists order rows. One row per cart line item; rows created in
// the same checkout share an order prefix.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, rows []*models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumberPrefix(ctx context.Context, prefix string) ([]models.Order, error)
	FindBySquareOrderID(ctx context.Context, squareOrderID string) ([]models.Order, error)
	List(ctx context.Context, params pagination.Params) ([]models.Order, string, error)
	Save(ctx context.Context, row *models.Order) error
	MarkPaidByPrefix(ctx context.Context, prefix string, refs PaymentRefs, paidAt time.Time) (int64, error)
	SetPaymentLinkByPrefix(ctx context.Context, prefix, squareOrderID, paymentLinkID string) error
	UpdateStatusByPrefix(ctx context.Context, prefix string, target enums.OrderStatus) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an order repository backed by the provided DB handle.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, rows []*models.Order) error {
	if len(rows) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(rows).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order rows")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var row models.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return &row, nil
}

func (r *repository) FindByNumberPrefix(ctx context.Context, prefix string) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("order_prefix = ?", prefix).
		Order("order_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading orders by prefix")
	}
	return rows, nil
}

func (r *repository) FindBySquareOrderID(ctx context.Context, squareOrderID string) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("square_order_id = ?", squareOrderID).
		Order("order_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading orders by square order id")
	}
	return rows, nil
}

func (r *repository) List(ctx context.Context, params pagination.Params) ([]models.Order, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := query.Find(&rows).Error; err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}

	nextCursor := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, nextCursor, nil
}

func (r *repository) Save(ctx context.Context, row *models.Order) error {
	if row == nil {
		return nil
	}
	if err := r.db.WithContext(ctx).Save(row).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "saving order")
	}
	return nil
}

// MarkPaidByPrefix settles every still-pending row in the checkout at once.
func (r *repository) MarkPaidByPrefix(ctx context.Context, prefix string, refs PaymentRefs, paidAt time.Time) (int64, error) {
	updates := map[string]any{
		"status":         enums.OrderStatusPaid,
		"payment_status": enums.PaymentStatusPaid,
		"paid_at":        paidAt,
		"updated_at":     paidAt,
	}
	if refs.SquareOrderID != "" {
		updates["square_order_id"] = refs.SquareOrderID
	}
	if refs.SquarePaymentID != "" {
		updates["square_payment_id"] = refs.SquarePaymentID
	}

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_prefix = ? AND status = ?", prefix, enums.OrderStatusPendingPayment).
		Updates(updates)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "marking orders paid")
	}
	return res.RowsAffected, nil
}

// SetPaymentLinkByPrefix stores the hosted checkout references on every row in
// the checkout so the webhook can route the completion back.
func (r *repository) SetPaymentLinkByPrefix(ctx context.Context, prefix, squareOrderID, paymentLinkID string) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if squareOrderID != "" {
		updates["square_order_id"] = squareOrderID
	}
	if paymentLinkID != "" {
		updates["square_payment_link_id"] = paymentLinkID
	}

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_prefix = ?", prefix).
		Updates(updates)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "storing payment link references")
	}
	return nil
}

// UpdateStatusByPrefix moves every row in the checkout to the target status,
// touching only rows whose current status allows the transition.
func (r *repository) UpdateStatusByPrefix(ctx context.Context, prefix string, target enums.OrderStatus) (int64, error) {
	sources := transitionSources(target)
	if len(sources) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeStateConflict, "no transition reaches target status")
	}

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_prefix = ? AND status IN ?", prefix, sources).
		Updates(map[string]any{"status": target, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "updating order status")
	}
	return res.RowsAffected, nil
}

func transitionSources(target enums.OrderStatus) []enums.OrderStatus {
	var sources []enums.OrderStatus
	for _, candidate := range []enums.OrderStatus{
		enums.OrderStatusPendingPayment,
		enums.OrderStatusPaid,
		enums.OrderStatusShipped,
	} {
		if candidate.CanTransitionTo(target) {
			sources = append(sources, candidate)
		}
	}
	return sources
}
