package reminder

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/postbox/pkg/delivery"
	"github.com/dmitrymomot/postbox/pkg/mailer"
)

// Reminder data keys accepted by Schedule.
const (
	keyInvoiceFolio = "invoiceFolio"
	keyDueDate      = "dueDate"
	keyAmount       = "amount"
	keyCurrency     = "currency"
	keyDaysOverdue  = "daysOverdue"
	keyClientName   = "clientName"
	keyPaymentURL   = "paymentUrl"
)

// deliveryRequest builds the delivery request for a due reminder. Missing or
// malformed structured fields fall back to defaults so a partial payload
// still produces a reminder.
func deliveryRequest(r Reminder, now time.Time, defaultCurrency string) delivery.Request {
	src := r.TemplateData
	data := make(map[string]any, len(src)+6)
	for k, v := range src {
		data[k] = v
	}

	folio := stringValue(src[keyInvoiceFolio])
	if folio == "" {
		folio = "N/A"
	}

	date := stringValue(src[keyDueDate])
	if date == "" {
		date = now.Format(time.DateOnly)
	}

	amount, err := mailer.ParseAmount(src[keyAmount])
	if err != nil {
		amount = decimal.Zero
	}

	currency := strings.ToUpper(stringValue(src[keyCurrency]))
	if currency == "" {
		currency = defaultCurrency
	}

	days := 0
	if n, err := mailer.ParseAmount(src[keyDaysOverdue]); err == nil {
		days = int(n.IntPart())
	}

	clientName := stringValue(src[keyClientName])

	data["folio"] = folio
	data["date"] = date
	data["dueDate"] = date
	data["total"] = amount.StringFixed(2)
	data["currency"] = currency
	data["daysOverdue"] = days
	data["clientName"] = clientName
	data["paymentUrl"] = paymentURL(src[keyPaymentURL])

	return delivery.Request{
		Recipient:     r.Recipient,
		RecipientName: clientName,
		DocumentType:  r.documentType(),
		DocumentID:    r.DocumentID,
		DocumentData:  data,
		Metadata: map[string]any{
			"reminderId": r.ID,
		},
	}
}

func (r Reminder) documentType() delivery.DocumentType {
	if r.DocumentType == "" {
		return delivery.DocumentPaymentReminder
	}
	return r.DocumentType
}

// paymentURL returns v as an absolute http(s) URL safe to embed in button
// markup, or "" when it is not one.
func paymentURL(v any) string {
	u, err := url.Parse(stringValue(v))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return strings.NewReplacer("(", "%28", ")", "%29").Replace(u.String())
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
