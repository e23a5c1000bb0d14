package mailer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ParseAmount converts a loosely typed amount (JSON number, string, numeric
// Go value or decimal) into a decimal. nil and "" are zero.
func ParseAmount(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return val, nil
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(val, ",", ""))
		if s == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, val)
		}
		return d, nil
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, val)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(val), nil
	case float32:
		return decimal.NewFromFloat32(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int32:
		return decimal.NewFromInt32(val), nil
	case int64:
		return decimal.NewFromInt(val), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported type %T", ErrInvalidAmount, v)
	}
}

// MoneyFormatter renders amounts with locale-aware grouping and the
// currency's standard number of decimals.
type MoneyFormatter struct {
	printer  *message.Printer
	fallback currency.Unit
}

// NewMoneyFormatter creates a formatter for the BCP 47 locale. Invalid locales
// fall back to es-MX, invalid default currencies to MXN.
func NewMoneyFormatter(locale, defaultCurrency string) *MoneyFormatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.MustParse("es-MX")
	}
	unit, err := currency.ParseISO(defaultCurrency)
	if err != nil {
		unit = currency.MustParseISO("MXN")
	}
	return &MoneyFormatter{
		printer:  message.NewPrinter(tag),
		fallback: unit,
	}
}

// DefaultCurrency returns the ISO code used when none is given.
func (f *MoneyFormatter) DefaultCurrency() string {
	return f.fallback.String()
}

// Format renders amount as "<symbol><grouped number> <ISO code>",
// e.g. "$1,500.00 MXN". Unknown currency codes are printed verbatim.
func (f *MoneyFormatter) Format(amount any, code string) (string, error) {
	d, err := ParseAmount(amount)
	if err != nil {
		return "", err
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	unit := f.fallback
	if code != "" {
		parsed, err := currency.ParseISO(code)
		if err != nil {
			return fmt.Sprintf("%s %s", d.StringFixed(2), code), nil
		}
		unit = parsed
	}

	scale, _ := currency.Standard.Rounding(unit)
	value := f.printer.Sprint(number.Decimal(d.Round(int32(scale)).InexactFloat64(), number.Scale(scale)))
	symbol := f.printer.Sprint(currency.NarrowSymbol(unit))
	return fmt.Sprintf("%s%s %s", symbol, value, unit.String()), nil
}
