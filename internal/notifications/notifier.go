package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/susplants/shop-backend/pkg/db/models"
	"github.com/susplants/shop-backend/pkg/logger"
	"github.com/susplants/shop-backend/pkg/mailer"
)

// Notifier sends order lifecycle emails. Every call is best effort; failures
// are logged and never bubble into the order flow.
type Notifier interface {
	OrderCreated(ctx context.Context, rows []models.Order)
	PaymentCompleted(ctx context.Context, rows []models.Order)
	OrderRefunded(ctx context.Context, row *models.Order)
}

type notifier struct {
	sender     mailer.Sender
	adminEmail string
	logg       *logger.Logger
}

// NewNotifier builds the email notifier. A nil sender disables delivery
// without touching the callers.
func NewNotifier(sender mailer.Sender, adminEmail string, logg *logger.Logger) Notifier {
	return &notifier{
		sender:     sender,
		adminEmail: strings.TrimSpace(adminEmail),
		logg:       logg,
	}
}

func (n *notifier) OrderCreated(ctx context.Context, rows []models.Order) {
	if len(rows) == 0 {
		return
	}
	head := rows[0]

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s 様\n\nご注文ありがとうございます。\n\n", head.CustomerName)
	fmt.Fprintf(&sb, "注文番号: %s\n\n", head.OrderPrefix)
	writeLineItems(&sb, rows)
	if head.PaymentDueDate != nil {
		fmt.Fprintf(&sb, "\nお支払い期限: %s\n", head.PaymentDueDate.Format("2006-01-02 15:04"))
	}

	n.deliver(ctx, head.CustomerEmail, fmt.Sprintf("ご注文の確認 (%s)", head.OrderPrefix), sb.String())
	n.deliverAdmin(ctx, fmt.Sprintf("新規注文 %s", head.OrderPrefix), sb.String())
}

func (n *notifier) PaymentCompleted(ctx context.Context, rows []models.Order) {
	if len(rows) == 0 {
		return
	}
	head := rows[0]

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s 様\n\nお支払いを確認いたしました。\n\n", head.CustomerName)
	fmt.Fprintf(&sb, "注文番号: %s\n", head.OrderPrefix)
	if head.PaidAt != nil {
		fmt.Fprintf(&sb, "入金日時: %s\n", head.PaidAt.Format(time.RFC3339))
	}
	sb.WriteString("\n")
	writeLineItems(&sb, rows)

	n.deliver(ctx, head.CustomerEmail, fmt.Sprintf("お支払い確認 (%s)", head.OrderPrefix), sb.String())
	n.deliverAdmin(ctx, fmt.Sprintf("入金確認 %s", head.OrderPrefix), sb.String())
}

func (n *notifier) OrderRefunded(ctx context.Context, row *models.Order) {
	if row == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s 様\n\nご注文の返金を承りました。\n\n", row.CustomerName)
	fmt.Fprintf(&sb, "注文番号: %s\n", row.OrderNumber)
	fmt.Fprintf(&sb, "返金額: ¥%d\n", row.TotalYen())

	n.deliver(ctx, row.CustomerEmail, fmt.Sprintf("返金のお知らせ (%s)", row.OrderNumber), sb.String())
	n.deliverAdmin(ctx, fmt.Sprintf("返金処理 %s", row.OrderNumber), sb.String())
}

func writeLineItems(sb *strings.Builder, rows []models.Order) {
	total := 0
	for _, row := range rows {
		fmt.Fprintf(sb, "%s × %d  ¥%d\n", row.ProductName, row.Quantity, row.Quantity*row.UnitPriceYen)
		if row.ShippingFeeYen > 0 {
			fmt.Fprintf(sb, "送料  ¥%d\n", row.ShippingFeeYen)
		}
		total += row.TotalYen()
	}
	fmt.Fprintf(sb, "\n合計: ¥%d\n", total)
}

func (n *notifier) deliver(ctx context.Context, to, subject, body string) {
	if n.sender == nil || strings.TrimSpace(to) == "" {
		return
	}
	if err := n.sender.Send(ctx, mailer.Message{To: to, Subject: subject, Body: body}); err != nil && n.logg != nil {
		n.logg.Warn(n.logg.WithField(ctx, "recipient", "customer"), fmt.Sprintf("notification delivery failed: %v", err))
	}
}

func (n *notifier) deliverAdmin(ctx context.Context, subject, body string) {
	if n.sender == nil || n.adminEmail == "" {
		return
	}
	if err := n.sender.Send(ctx, mailer.Message{To: n.adminEmail, Subject: subject, Body: body}); err != nil && n.logg != nil {
		n.logg.Warn(n.logg.WithField(ctx, "recipient", "admin"), fmt.Sprintf("notification delivery failed: %v", err))
	}
}
