package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkoutsvc "github.com/susplants/shop-backend/internal/checkout"
	pkgerrors "github.com/susplants/shop-backend/pkg/errors"
	"github.com/susplants/shop-backend/pkg/logger"
	"github.com/susplants/shop-backend/pkg/types"
)

type fakeCheckoutService struct {
	inputs []checkoutsvc.Input
	result *checkoutsvc.Result
	err    error
}

func (f *fakeCheckoutService) Checkout(_ context.Context, input checkoutsvc.Input) (*checkoutsvc.Result, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func validCheckoutBody(t *testing.T, productID uuid.UUID) []byte {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"items": []map[string]any{
			{"product_id": productID.String(), "quantity": 2, "price_yen": 4800},
		},
		"customer": map[string]any{
			"name":        "山田 花子",
			"email":       "hanako@example.com",
			"postal_code": "1500001",
			"address":     "東京都渋谷区神宮前1-1-1",
		},
		"payment_method": "square",
	})
	require.NoError(t, err)
	return body
}

func TestCheckoutController_created(t *testing.T) {
	due := time.Now().UTC().Add(48 * time.Hour)
	svc := &fakeCheckoutService{
		result: &checkoutsvc.Result{
			OrderNumber:    "CART1765700000000ABC123",
			Orders:         []string{"CART1765700000000ABC123-1"},
			TotalYen:       10600,
			ShippingFeeYen: 1000,
			ShippingRegion: "通常配送",
			PaymentDueDate: &due,
			PaymentLinkURL: "https://square.link/u/test",
		},
	}
	handler := Checkout(svc, testLogger())

	productID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(validCheckoutBody(t, productID)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, svc.inputs, 1)
	input := svc.inputs[0]
	require.Len(t, input.Items, 1)
	assert.Equal(t, productID, input.Items[0].ProductID)
	assert.Equal(t, 2, input.Items[0].Quantity)
	assert.Equal(t, "山田 花子", input.Customer.Name)

	var envelope types.SuccessEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "CART1765700000000ABC123", data["order_number"])
	assert.Equal(t, "https://square.link/u/test", data["payment_link_url"])
}

func TestCheckoutController_validation(t *testing.T) {
	svc := &fakeCheckoutService{}
	handler := Checkout(svc, testLogger())

	tests := []struct {
		name string
		body map[string]any
	}{
		{
			name: "empty items",
			body: map[string]any{
				"items":          []map[string]any{},
				"customer":       map[string]any{"name": "a", "email": "a@example.com", "postal_code": "1500001", "address": "x"},
				"payment_method": "square",
			},
		},
		{
			name: "zero quantity",
			body: map[string]any{
				"items":          []map[string]any{{"product_id": uuid.NewString(), "quantity": 0}},
				"customer":       map[string]any{"name": "a", "email": "a@example.com", "postal_code": "1500001", "address": "x"},
				"payment_method": "square",
			},
		},
		{
			name: "bad email",
			body: map[string]any{
				"items":          []map[string]any{{"product_id": uuid.NewString(), "quantity": 1}},
				"customer":       map[string]any{"name": "a", "email": "nope", "postal_code": "1500001", "address": "x"},
				"payment_method": "square",
			},
		},
		{
			name: "short postal code",
			body: map[string]any{
				"items":          []map[string]any{{"product_id": uuid.NewString(), "quantity": 1}},
				"customer":       map[string]any{"name": "a", "email": "a@example.com", "postal_code": "150", "address": "x"},
				"payment_method": "square",
			},
		},
		{
			name: "unknown payment method",
			body: map[string]any{
				"items":          []map[string]any{{"product_id": uuid.NewString(), "quantity": 1}},
				"customer":       map[string]any{"name": "a", "email": "a@example.com", "postal_code": "1500001", "address": "x"},
				"payment_method": "cash",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body, err := json.Marshal(tc.body)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, svc.inputs)
}

func TestCheckoutController_insufficientStock(t *testing.T) {
	svc := &fakeCheckoutService{
		err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{"product_id": uuid.NewString(), "requested": 3, "remaining": 1}),
	}
	handler := Checkout(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(validCheckoutBody(t, uuid.New())))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)

	var envelope types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, string(pkgerrors.CodeInsufficientStock), envelope.Error.Code)
	assert.NotNil(t, envelope.Error.Details)
}

func TestCheckoutController_nilService(t *testing.T) {
	handler := Checkout(nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(validCheckoutBody(t, uuid.New())))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
