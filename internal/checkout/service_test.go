package checkout

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/susplants/shop-backend/internal/orders"
	"github.com/susplants/shop-backend/internal/shipping"
	"github.com/susplants/shop-backend/internal/stock"
	"github.com/susplants/shop-backend/pkg/config"
	"github.com/susplants/shop-backend/pkg/db"
	"github.com/susplants/shop-backend/pkg/db/models"
	"github.com/susplants/shop-backend/pkg/enums"
	pkgerrors "github.com/susplants/shop-backend/pkg/errors"
	"github.com/susplants/shop-backend/pkg/logger"
	"github.com/susplants/shop-backend/pkg/square"
)

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  price_yen INTEGER NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 0,
  image_url TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	ordersTable := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  order_prefix TEXT NOT NULL,
  customer_name TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  customer_phone TEXT,
  postal_code TEXT NOT NULL,
  address TEXT NOT NULL,
  notes TEXT,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_yen INTEGER NOT NULL,
  shipping_fee_yen INTEGER NOT NULL DEFAULT 0,
  payment_method TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending_payment',
  payment_status TEXT NOT NULL DEFAULT 'unpaid',
  square_order_id TEXT,
  square_payment_id TEXT,
  square_payment_link_id TEXT,
  refund_id TEXT,
  payment_due_date DATETIME,
  paid_at DATETIME,
  refunded_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, conn.Exec(products).Error)
	require.NoError(t, conn.Exec(ordersTable).Error)
	return conn
}

type fakeGateway struct {
	linkParams   []square.PaymentLinkCreateParams
	linkResult   *square.PaymentLinkResult
	linkErr      error
	refundParams []square.RefundCreateParams
	refundResult *square.RefundResult
	refundErr    error
}

func (f *fakeGateway) CreatePaymentLink(_ context.Context, params square.PaymentLinkCreateParams) (*square.PaymentLinkResult, error) {
	f.linkParams = append(f.linkParams, params)
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	if f.linkResult != nil {
		return f.linkResult, nil
	}
	return &square.PaymentLinkResult{
		PaymentLinkID: "link-1",
		OrderID:       "sq-ord-1",
		URL:           "https://square.link/u/test",
	}, nil
}

func (f *fakeGateway) RefundPayment(_ context.Context, params square.RefundCreateParams) (*square.RefundResult, error) {
	f.refundParams = append(f.refundParams, params)
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	if f.refundResult != nil {
		return f.refundResult, nil
	}
	return &square.RefundResult{RefundID: "refund-1", Status: "COMPLETED"}, nil
}

type checkoutFixture struct {
	conn    *gorm.DB
	svc     Service
	gateway *fakeGateway
	orders  orders.Repository
}

func newCheckoutFixture(t *testing.T, gateway *fakeGateway) *checkoutFixture {
	t.Helper()

	conn := setupCheckoutTestDB(t)
	client := db.FromGorm(conn)
	ordersRepo := orders.NewRepository(conn)
	ordersSvc, err := orders.NewService(ordersRepo, client)
	require.NoError(t, err)

	cfg := config.CheckoutConfig{
		PaymentDueHours:      48,
		BaseShippingFeeYen:   1000,
		RemoteShippingFeeYen: 1800,
	}

	var gw square.Gateway
	if gateway != nil {
		gw = gateway
	}
	svc, err := NewService(
		stock.NewRepository(conn),
		ordersSvc,
		shipping.NewCalculator(cfg),
		gw,
		nil,
		cfg,
		"https://shop.example.com",
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	)
	require.NoError(t, err)

	return &checkoutFixture{conn: conn, svc: svc, gateway: gateway, orders: ordersRepo}
}

func seedCheckoutProduct(t *testing.T, conn *gorm.DB, name string, priceYen, qty int) *models.Product {
	t.Helper()

	product := &models.Product{
		ID:       uuid.New(),
		Name:     name,
		PriceYen: priceYen,
		Quantity: qty,
		IsActive: true,
	}
	require.NoError(t, conn.Create(product).Error)
	return product
}

func checkoutCustomer() orders.CustomerInfo {
	return orders.CustomerInfo{
		Name:       "山田 花子",
		Email:      "hanako@example.com",
		PostalCode: "1500001",
		Address:    "東京都渋谷区神宮前1-1-1",
	}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, code, typed.Code())
}

func TestCheckout_bankTransfer(t *testing.T) {
	fx := newCheckoutFixture(t, nil)
	monstera := seedCheckoutProduct(t, fx.conn, "Monstera", 4800, 5)
	pothos := seedCheckoutProduct(t, fx.conn, "Pothos", 1800, 3)

	before := time.Now().UTC()
	result, err := fx.svc.Checkout(context.Background(), Input{
		Items: []LineItem{
			{ProductID: monstera.ID, Quantity: 2},
			{ProductID: pothos.ID, Quantity: 1},
		},
		Customer:      checkoutCustomer(),
		PaymentMethod: enums.PaymentMethodBankTransfer,
	})
	require.NoError(t, err)

	assert.Equal(t, 2*4800+1800+1000, result.TotalYen)
	assert.Equal(t, 1000, result.ShippingFeeYen)
	assert.Equal(t, "通常配送", result.ShippingRegion)
	assert.Empty(t, result.PaymentLinkURL)
	require.Len(t, result.Orders, 2)

	require.NotNil(t, result.PaymentDueDate)
	due := result.PaymentDueDate.Sub(before)
	assert.InDelta(t, (48 * time.Hour).Seconds(), due.Seconds(), 5)

	rows, err := fx.orders.FindByNumberPrefix(context.Background(), result.OrderNumber)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1000, rows[0].ShippingFeeYen)
	assert.Equal(t, 0, rows[1].ShippingFeeYen)
	for _, row := range rows {
		assert.Equal(t, enums.OrderStatusPendingPayment, row.Status)
	}

	// checkout never moves stock; that happens at payment completion
	var reloaded models.Product
	require.NoError(t, fx.conn.Where("id = ?", monstera.ID).First(&reloaded).Error)
	assert.Equal(t, 5, reloaded.Quantity)
}

func TestCheckout_squarePaymentLink(t *testing.T) {
	gateway := &fakeGateway{}
	fx := newCheckoutFixture(t, gateway)
	monstera := seedCheckoutProduct(t, fx.conn, "Monstera", 4800, 5)

	result, err := fx.svc.Checkout(context.Background(), Input{
		Items:         []LineItem{{ProductID: monstera.ID, Quantity: 1}},
		Customer:      checkoutCustomer(),
		PaymentMethod: enums.PaymentMethodSquare,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://square.link/u/test", result.PaymentLinkURL)

	require.Len(t, gateway.linkParams, 1)
	params := gateway.linkParams[0]
	assert.Equal(t, result.OrderNumber, params.OrderPrefix)
	assert.Equal(t, "JPY", params.Currency)
	assert.Contains(t, params.RedirectURL, "order="+result.OrderNumber)

	// product line plus the shipping fee line
	require.Len(t, params.LineItems, 2)
	assert.Equal(t, "Monstera", params.LineItems[0].Name)
	assert.Equal(t, int64(4800), params.LineItems[0].AmountYen)
	assert.True(t, strings.HasPrefix(params.LineItems[1].Name, "送料"))
	assert.Equal(t, int64(1000), params.LineItems[1].AmountYen)

	rows, err := fx.orders.FindByNumberPrefix(context.Background(), result.OrderNumber)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].SquareOrderID)
	assert.Equal(t, "sq-ord-1", *rows[0].SquareOrderID)
	require.NotNil(t, rows[0].SquarePaymentLinkID)
	assert.Equal(t, "link-1", *rows[0].SquarePaymentLinkID)
}

func TestCheckout_gatewayFailureCancelsOrders(t *testing.T) {
	gateway := &fakeGateway{
		linkErr: pkgerrors.New(pkgerrors.CodeDependency, "square unavailable"),
	}
	fx := newCheckoutFixture(t, gateway)
	monstera := seedCheckoutProduct(t, fx.conn, "Monstera", 4800, 5)

	_, err := fx.svc.Checkout(context.Background(), Input{
		Items:         []LineItem{{ProductID: monstera.ID, Quantity: 1}},
		Customer:      checkoutCustomer(),
		PaymentMethod: enums.PaymentMethodSquare,
	})
	requireCode(t, err, pkgerrors.CodeDependency)

	// persisted rows are compensated, not left pending
	var rows []models.Order
	require.NoError(t, fx.conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.OrderStatusCancelled, rows[0].Status)
}

func TestCheckout_insufficientStock(t *testing.T) {
	fx := newCheckoutFixture(t, nil)
	monstera := seedCheckoutProduct(t, fx.conn, "Monstera", 4800, 1)

	_, err := fx.svc.Checkout(context.Background(), Input{
		Items:         []LineItem{{ProductID: monstera.ID, Quantity: 3}},
		Customer:      checkoutCustomer(),
		PaymentMethod: enums.PaymentMethodBankTransfer,
	})
	requireCode(t, err, pkgerrors.CodeInsufficientStock)

	var count int64
	require.NoError(t, fx.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCheckout_duplicateLinesAggregateAgainstStock(t *testing.T) {
	fx := newCheckoutFixture(t, nil)
	monstera := seedCheckoutProduct(t, fx.conn, "Monstera", 4800, 3)

	_, err := fx.svc.Checkout(context.Background(), Input{
		Items: []LineItem{
			{ProductID: monstera.ID, Quantity: 2},
			{ProductID: monstera.ID, Quantity: 2},
		},
		Customer:      checkoutCustomer(),
		PaymentMethod: enums.PaymentMethodBankTransfer,
	})
	requireCode(t, err, pkgerrors.CodeInsufficientStock)
}

func TestCheckout_unknownOrInactiveProduct(t *testing.T) {
	fx := newCheckoutFixture(t, nil)

	_, err := fx.svc.Checkout(context.Background(), Input{
		Items:         []LineItem{{ProductID: uuid.New(), Quantity: 1}},
		Customer:      checkoutCustomer(),
		PaymentMethod: enums.PaymentMethodBankTransfer,
	})
	requireCode(t, err, pkgerrors.CodeNotFound)

	inactive := seedCheckoutProduct(t, fx.conn, "Retired", 900, 5)
	require.NoError(t, fx.conn.Model(&models.Product{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)

	_, err = fx.svc.Checkout(context.Background(), Input{
		Items:         []LineItem{{ProductID: inactive.ID, Quantity: 1}},
		Customer:      checkoutCustomer(),
		PaymentMethod: enums.PaymentMethodBankTransfer,
	})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestCheckout_ignoresClientPriceSnapshot(t *testing.T) {
	fx := newCheckoutFixture(t, nil)
	monstera := seedCheckoutProduct(t, fx.conn, "Monstera", 4800, 5)

	result, err := fx.svc.Checkout(context.Background(), Input{
		Items:         []LineItem{{ProductID: monstera.ID, Quantity: 1, PriceSnapshotYen: 1}},
		Customer:      checkoutCustomer(),
		PaymentMethod: enums.PaymentMethodBankTransfer,
	})
	require.NoError(t, err)
	assert.Equal(t, 4800+1000, result.TotalYen)

	rows, err := fx.orders.FindByNumberPrefix(context.Background(), result.OrderNumber)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 4800, rows[0].UnitPriceYen)
}

func TestCheckout_remoteShippingFee(t *testing.T) {
	fx := newCheckoutFixture(t, nil)
	monstera := seedCheckoutProduct(t, fx.conn, "Monstera", 4800, 5)

	customer := checkoutCustomer()
	customer.PostalCode = "0600000"

	result, err := fx.svc.Checkout(context.Background(), Input{
		Items:         []LineItem{{ProductID: monstera.ID, Quantity: 1}},
		Customer:      customer,
		PaymentMethod: enums.PaymentMethodBankTransfer,
	})
	require.NoError(t, err)
	assert.Equal(t, 1800, result.ShippingFeeYen)
	assert.Equal(t, "北海道", result.ShippingRegion)
	assert.Equal(t, 4800+1800, result.TotalYen)
}

func TestCheckout_validation(t *testing.T) {
	fx := newCheckoutFixture(t, nil)

	_, err := fx.svc.Checkout(context.Background(), Input{
		Customer:      checkoutCustomer(),
		PaymentMethod: enums.PaymentMethodBankTransfer,
	})
	requireCode(t, err, pkgerrors.CodeValidation)

	monstera := seedCheckoutProduct(t, fx.conn, "Monstera", 4800, 5)
	_, err = fx.svc.Checkout(context.Background(), Input{
		Items:         []LineItem{{ProductID: monstera.ID, Quantity: 1}},
		Customer:      checkoutCustomer(),
		PaymentMethod: enums.PaymentMethod("cash"),
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestCheckout_squareWithoutGateway(t *testing.T) {
	fx := newCheckoutFixture(t, nil)
	monstera := seedCheckoutProduct(t, fx.conn, "Monstera", 4800, 5)

	_, err := fx.svc.Checkout(context.Background(), Input{
		Items:         []LineItem{{ProductID: monstera.ID, Quantity: 1}},
		Customer:      checkoutCustomer(),
		PaymentMethod: enums.PaymentMethodSquare,
	})
	requireCode(t, err, pkgerrors.CodeDependency)
}
