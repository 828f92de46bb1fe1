package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/susplants/shop-backend/api/responses"
	"github.com/susplants/shop-backend/internal/stock"
	"github.com/susplants/shop-backend/pkg/db/models"
	pkgerrors "github.com/susplants/shop-backend/pkg/errors"
	"github.com/susplants/shop-backend/pkg/logger"
)

// ListProducts returns the active storefront catalog with advisory quantities.
func ListProducts(repo stock.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock repository unavailable"))
			return
		}

		rows, err := repo.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]productResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, newProductResponse(row))
		}
		responses.WriteSuccess(w, map[string]any{"products": out})
	}
}

// GetProduct returns one catalog entry by id.
func GetProduct(repo stock.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock repository unavailable"))
			return
		}

		productID, err := uuid.Parse(chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id"))
			return
		}

		row, err := repo.FindProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductResponse(*row))
	}
}

type productResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	PriceYen    int       `json:"price_yen"`
	Quantity    int       `json:"quantity"`
	ImageURL    *string   `json:"image_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

func newProductResponse(row models.Product) productResponse {
	return productResponse{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		PriceYen:    row.PriceYen,
		Quantity:    row.Quantity,
		ImageURL:    row.ImageURL,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt,
	}
}
