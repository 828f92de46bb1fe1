package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/susplants/shop-backend/pkg/db/models"
	pkgerrors "github.com/susplants/shop-backend/pkg/errors"
)

// ProductAvailability is the advisory stock view checkout reads before
// persisting orders. It can be stale the moment it is returned.
type ProductAvailability struct {
	ProductID uuid.UUID
	Name      string
	PriceYen  int
	Quantity  int
	IsActive  bool
}

// Repository is the stock ledger. Decrement and Increment are atomic at the
// storage layer via single conditional UPDATE statements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Decrement(ctx context.Context, productID uuid.UUID, qty int) (int, error)
	Increment(ctx context.Context, productID uuid.UUID, qty int) (int, error)
	Available(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]ProductAvailability, error)
	ListActive(ctx context.Context) ([]models.Product, error)
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a stock repository backed by the provided DB handle.
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

// Decrement subtracts qty guarded by the current on-hand count. Zero affected
// rows means either the product is gone or the remaining stock is short.
func (r *repository) Decrement(ctx context.Context, productID uuid.UUID, qty int) (int, error) {
	if qty <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	res := r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET quantity = quantity - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND quantity >= ?
	`, qty, productID, qty)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "decrementing stock")
	}

	if res.RowsAffected == 0 {
		remaining, err := r.currentQuantity(ctx, productID)
		if err != nil {
			return 0, err
		}
		return 0, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{
				"product_id": productID.String(),
				"requested":  qty,
				"remaining":  remaining,
			})
	}

	return r.currentQuantity(ctx, productID)
}

// Increment restores qty unconditionally, typically after a refund.
func (r *repository) Increment(ctx context.Context, productID uuid.UUID, qty int) (int, error) {
	if qty <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	res := r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET quantity = quantity + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, productID)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "restoring stock")
	}
	if res.RowsAffected == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	return r.currentQuantity(ctx, productID)
}

func (r *repository) Available(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]ProductAvailability, error) {
	out := make(map[uuid.UUID]ProductAvailability, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	var rows []models.Product
	if err := r.db.WithContext(ctx).
		Where("id IN ?", productIDs).
		Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product availability")
	}

	for _, row := range rows {
		out[row.ID] = ProductAvailability{
			ProductID: row.ID,
			Name:      row.Name,
			PriceYen:  row.PriceYen,
			Quantity:  row.Quantity,
			IsActive:  row.IsActive,
		}
	}
	return out, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing products")
	}
	return rows, nil
}

func (r *repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var row models.Product
	err := r.db.WithContext(ctx).Where("id = ?", productID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}
	return &row, nil
}

func (r *repository) currentQuantity(ctx context.Context, productID uuid.UUID) (int, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Select("quantity").
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading stock quantity")
	}
	return product.Quantity, nil
}
