package billing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dmitrymomot/billingkit/pkg/email"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

// ErrNoRecipient is returned when an owner has no billing contact.
var ErrNoRecipient = errors.New("owner has no billing contact")

// RecipientResolver finds the billing contact of an owner.
type RecipientResolver interface {
	BillingEmail(ctx context.Context, ownerID uuid.UUID) (string, error)
}

// RecipientResolverFunc adapts a function to RecipientResolver.
type RecipientResolverFunc func(ctx context.Context, ownerID uuid.UUID) (string, error)

func (f RecipientResolverFunc) BillingEmail(ctx context.Context, ownerID uuid.UUID) (string, error) {
	return f(ctx, ownerID)
}

var resumedTemplate = template.Must(template.New("resumed").Parse(`<!doctype html>
<html>
<body>
<p>Your subscription is active again.</p>
{{if .Amount}}<p>Your next invoice of <strong>{{.Amount}}</strong> is due on {{.DueDate}}.</p>{{end}}
<p>Questions? Contact us at <a href="mailto:{{.Support}}">{{.Support}}</a>.</p>
</body>
</html>`))

type resumedData struct {
	Amount  string
	DueDate string
	Support string
}

// EmailNotifier tells owners that collection resumed after a pause.
type EmailNotifier struct {
	sender     email.EmailSender
	recipients RecipientResolver
	support    string
	lang       language.Tag
	logger     *slog.Logger
}

var _ subscription.Notifier = (*EmailNotifier)(nil)

// NewEmailNotifier panics if sender or recipients is nil.
func NewEmailNotifier(sender email.EmailSender, recipients RecipientResolver, supportEmail string, log *slog.Logger) *EmailNotifier {
	if sender == nil {
		panic("billing: email.EmailSender is required")
	}
	if recipients == nil {
		panic("billing: RecipientResolver is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &EmailNotifier{
		sender:     sender,
		recipients: recipients,
		support:    supportEmail,
		lang:       language.English,
		logger:     log.With(logger.Component("billing_notifier")),
	}
}

func (n *EmailNotifier) SubscriptionResumed(ctx context.Context, sub *subscription.Subscription, invoice *subscription.UpcomingInvoice) error {
	to, err := n.recipients.BillingEmail(ctx, sub.OwnerID)
	if err != nil {
		if errors.Is(err, ErrNoRecipient) {
			n.logger.WarnContext(ctx, "skipping resume notification", logger.OwnerID(sub.OwnerID), logger.Error(err))
			return nil
		}
		return fmt.Errorf("resolve billing contact: %w", err)
	}

	data := resumedData{Support: n.support}
	if invoice != nil {
		data.Amount = FormatMoney(n.lang, invoice.AmountDue)
		data.DueDate = invoice.PeriodEnd.Format("January 2, 2006")
	}

	var body bytes.Buffer
	if err := resumedTemplate.Execute(&body, data); err != nil {
		return fmt.Errorf("render resume notification: %w", err)
	}

	return n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   to,
		Subject:  "Your subscription has resumed",
		BodyHTML: body.String(),
		Tag:      "subscription-resumed",
	})
}

// FormatMoney renders an amount in minor units for display, e.g. "$ 12.34".
// Unknown currency codes fall back to "12.34 XYZ".
func FormatMoney(lang language.Tag, m subscription.Money) string {
	p := message.NewPrinter(lang)

	unit, err := currency.ParseISO(m.Currency)
	if err != nil {
		return p.Sprintf("%.2f %s", float64(m.Amount)/100, m.Currency)
	}

	scale, _ := currency.Standard.Rounding(unit)
	major := float64(m.Amount) / math.Pow10(scale)
	return p.Sprint(currency.Symbol(unit.Amount(major)))
}
