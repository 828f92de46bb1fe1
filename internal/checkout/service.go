package checkout

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/susplants/shop-backend/internal/notifications"
	"github.com/susplants/shop-backend/internal/orders"
	"github.com/susplants/shop-backend/internal/shipping"
	"github.com/susplants/shop-backend/internal/stock"
	"github.com/susplants/shop-backend/pkg/config"
	"github.com/susplants/shop-backend/pkg/enums"
	pkgerrors "github.com/susplants/shop-backend/pkg/errors"
	"github.com/susplants/shop-backend/pkg/logger"
	"github.com/susplants/shop-backend/pkg/square"
)

// LineItem is one untrusted cart line from the client. The price snapshot is
// ignored; unit prices come from the product rows.
type LineItem struct {
	ProductID        uuid.UUID
	Quantity         int
	PriceSnapshotYen int
}

// Input is the full checkout request.
type Input struct {
	Items         []LineItem
	Customer      orders.CustomerInfo
	PaymentMethod enums.PaymentMethod
}

// Result is what the storefront renders after checkout.
type Result struct {
	OrderNumber    string
	Orders         []string
	TotalYen       int
	ShippingFeeYen int
	ShippingRegion string
	PaymentDueDate *time.Time
	PaymentLinkURL string
}

// Service orchestrates a checkout: advisory stock check, order persistence,
// and (for card payments) the hosted gateway session.
type Service interface {
	Checkout(ctx context.Context, input Input) (*Result, error)
}

type service struct {
	stock       stock.Repository
	orders      orders.Service
	shipping    *shipping.Calculator
	gateway     square.Gateway
	notifier    notifications.Notifier
	cfg         config.CheckoutConfig
	redirectURL string
	logg        *logger.Logger
}

// NewService builds the checkout orchestrator with the required dependencies.
func NewService(
	stockRepo stock.Repository,
	ordersSvc orders.Service,
	shippingCalc *shipping.Calculator,
	gateway square.Gateway,
	notifier notifications.Notifier,
	cfg config.CheckoutConfig,
	redirectBaseURL string,
	logg *logger.Logger,
) (Service, error) {
	if stockRepo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if ordersSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if shippingCalc == nil {
		return nil, fmt.Errorf("shipping calculator required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		stock:       stockRepo,
		orders:      ordersSvc,
		shipping:    shippingCalc,
		gateway:     gateway,
		notifier:    notifier,
		cfg:         cfg,
		redirectURL: redirectBaseURL,
		logg:        logg,
	}, nil
}

func (s *service) Checkout(ctx context.Context, input Input) (*Result, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if input.PaymentMethod == enums.PaymentMethodSquare && s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "card payments are not configured")
	}

	available, err := s.checkAvailability(ctx, input.Items)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	prefix := orders.NewOrderPrefix(now)
	ctx = s.logg.WithOrderNumber(ctx, prefix)

	quote := s.shipping.Quote(input.Customer.PostalCode)

	drafts := make([]orders.Draft, 0, len(input.Items))
	total := 0
	for i, item := range input.Items {
		product := available[item.ProductID]
		draft := orders.Draft{
			ProductID:    item.ProductID,
			ProductName:  product.Name,
			Quantity:     item.Quantity,
			UnitPriceYen: product.PriceYen,
		}
		// the shipping fee is charged once per checkout and rides on the first row
		if i == 0 {
			draft.ShippingFeeYen = quote.FeeYen
		}
		total += draft.Quantity*draft.UnitPriceYen + draft.ShippingFeeYen
		drafts = append(drafts, draft)
	}

	dueDate := now.Add(s.cfg.PaymentDue())
	created, err := s.orders.CreateOrders(ctx, orders.CreateInput{
		Prefix:         prefix,
		Customer:       input.Customer,
		Drafts:         drafts,
		PaymentMethod:  input.PaymentMethod,
		PaymentDueDate: &dueDate,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		OrderNumber:    prefix,
		TotalYen:       total,
		ShippingFeeYen: quote.FeeYen,
		ShippingRegion: quote.Region,
		PaymentDueDate: &dueDate,
	}
	for _, row := range created {
		result.Orders = append(result.Orders, row.OrderNumber)
	}

	if input.PaymentMethod == enums.PaymentMethodSquare {
		link, err := s.openPaymentLink(ctx, prefix, drafts, quote)
		if err != nil {
			s.compensate(ctx, prefix)
			return nil, err
		}
		result.PaymentLinkURL = link
	}

	if s.notifier != nil {
		s.notifier.OrderCreated(ctx, created)
	}

	s.logg.Info(ctx, "checkout persisted")
	return result, nil
}

// checkAvailability is an advisory read: it rejects obviously doomed checkouts
// but the authoritative guard is the conditional decrement at completion.
func (s *service) checkAvailability(ctx context.Context, items []LineItem) (map[uuid.UUID]stock.ProductAvailability, error) {
	wanted := map[uuid.UUID]int{}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line item quantity must be positive")
		}
		if _, seen := wanted[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		wanted[item.ProductID] += item.Quantity
	}

	available, err := s.stock.Available(ctx, ids)
	if err != nil {
		return nil, err
	}

	for id, qty := range wanted {
		product, ok := available[id]
		if !ok || !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not available").
				WithDetails(map[string]any{"product_id": id.String()})
		}
		if product.Quantity < qty {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
				WithDetails(map[string]any{
					"product_id": id.String(),
					"product":    product.Name,
					"requested":  qty,
					"remaining":  product.Quantity,
				})
		}
	}
	return available, nil
}

func (s *service) openPaymentLink(ctx context.Context, prefix string, drafts []orders.Draft, quote shipping.Quote) (string, error) {
	lineItems := make([]square.PaymentLinkLineItem, 0, len(drafts)+1)
	for _, draft := range drafts {
		lineItems = append(lineItems, square.PaymentLinkLineItem{
			Name:      draft.ProductName,
			Quantity:  draft.Quantity,
			AmountYen: int64(draft.UnitPriceYen),
		})
	}
	if quote.FeeYen > 0 {
		lineItems = append(lineItems, square.PaymentLinkLineItem{
			Name:      fmt.Sprintf("送料 (%s)", quote.Region),
			Quantity:  1,
			AmountYen: int64(quote.FeeYen),
		})
	}

	link, err := s.gateway.CreatePaymentLink(ctx, square.PaymentLinkCreateParams{
		OrderPrefix: prefix,
		LineItems:   lineItems,
		Currency:    "JPY",
		RedirectURL: s.buildRedirectURL(prefix),
	})
	if err != nil {
		return "", err
	}

	// store the gateway references so webhook deliveries can route back
	if err := s.orders.SetPaymentLinkRefs(ctx, prefix, link.OrderID, link.PaymentLinkID); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("storing payment link refs failed: %v", err))
	}
	return link.URL, nil
}

func (s *service) compensate(ctx context.Context, prefix string) {
	cancelled, err := s.orders.CancelPendingByPrefix(ctx, prefix)
	if err != nil {
		s.logg.Error(ctx, "compensating cancel failed", err)
		return
	}
	s.logg.Info(s.logg.WithField(ctx, "cancelled_rows", cancelled), "checkout compensated after gateway failure")
}

func (s *service) buildRedirectURL(prefix string) string {
	base := s.redirectURL
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	u.Path = "/payment/complete"
	q := u.Query()
	q.Set("order", prefix)
	u.RawQuery = q.Encode()
	return u.String()
}
