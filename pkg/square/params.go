package square

import (
	"strconv"
	"strings"

	sq "github.com/square/square-go-sdk"
	"github.com/square/square-go-sdk/checkout"
)

// PaymentLinkLineItem is a single purchasable line on the hosted checkout page.
type PaymentLinkLineItem struct {
	Name      string
	Quantity  int
	AmountYen int64
}

// PaymentLinkCreateParams contains the fields required to open a hosted checkout.
type PaymentLinkCreateParams struct {
	OrderPrefix    string
	LineItems      []PaymentLinkLineItem
	Currency       string
	RedirectURL    string
	IdempotencyKey string
}

func (p PaymentLinkCreateParams) toSquareRequest(idempotencyKey, locationID string) *checkout.CreatePaymentLinkRequest {
	req := &checkout.CreatePaymentLinkRequest{
		IdempotencyKey: ptrString(idempotencyKey),
	}

	lineItems := make([]*sq.OrderLineItem, 0, len(p.LineItems))
	for _, item := range p.LineItems {
		lineItems = append(lineItems, &sq.OrderLineItem{
			Name:           ptrString(item.Name),
			Quantity:       strconv.Itoa(item.Quantity),
			BasePriceMoney: moneyPtr(item.AmountYen, p.Currency),
		})
	}
	req.Order = &sq.Order{
		LocationID: locationID,
		LineItems:  lineItems,
	}

	if trimmed := strings.TrimSpace(p.RedirectURL); trimmed != "" {
		req.CheckoutOptions = &sq.CheckoutOptions{
			RedirectURL: ptrString(trimmed),
		}
	}
	// The prefix travels on the payment note so the webhook can route the
	// completion back to the order rows.
	if trimmed := strings.TrimSpace(p.OrderPrefix); trimmed != "" {
		req.PaymentNote = ptrString(trimmed)
	}
	return req
}

// RefundCreateParams encapsulates the inputs for a Square payment refund.
type RefundCreateParams struct {
	PaymentID      string
	AmountYen      int64
	Currency       string
	Reason         string
	IdempotencyKey string
}

func (p RefundCreateParams) toSquareRequest(idempotencyKey string) *sq.RefundPaymentRequest {
	req := &sq.RefundPaymentRequest{
		IdempotencyKey: idempotencyKey,
		AmountMoney:    moneyPtr(p.AmountYen, p.Currency),
	}
	if trimmed := strings.TrimSpace(p.PaymentID); trimmed != "" {
		req.PaymentID = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.Reason); trimmed != "" {
		req.Reason = ptrString(trimmed)
	}
	return req
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "JPY"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
