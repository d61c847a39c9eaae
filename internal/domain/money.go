package domain

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Money represents a monetary value in minor units of an ISO currency.
type Money struct {
	Amount   int64
	Currency string
}

// ParseMoney converts a stored decimal string (e.g. "1.50") into minor units.
// A comma decimal separator is tolerated. Negative or non-numeric input is an error.
func ParseMoney(raw string, currencyCode string) (Money, error) {
	code := strings.ToUpper(strings.TrimSpace(currencyCode))
	if code == "" {
		code = DefaultCurrency
	}

	trimmed := strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if trimmed == "" {
		return Money{}, fmt.Errorf("money: empty amount")
	}

	whole := trimmed
	frac := ""
	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		whole, frac = trimmed[:idx], trimmed[idx+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("money: invalid amount %q", raw)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("money: invalid amount %q", raw)
	}
	if units < 0 || strings.HasPrefix(strings.TrimSpace(raw), "-") {
		return Money{}, fmt.Errorf("money: amount must be non-negative")
	}

	return Money{Amount: units*100 + cents, Currency: code}, nil
}

// Decimal renders the amount as a plain two-decimal string, e.g. "1.50".
func (m Money) Decimal() string {
	return fmt.Sprintf("%d.%02d", m.Amount/100, m.Amount%100)
}

// Display renders the amount with its currency symbol for the given locale.
func (m Money) Display(tag language.Tag) string {
	unit, err := currency.ParseISO(m.Currency)
	if err != nil {
		unit = currency.EUR
	}
	value := float64(m.Amount) / 100

	printer := message.NewPrinter(tag)
	return printer.Sprintf("%v", currency.Symbol(unit.Amount(value)))
}

// IsZero reports whether no amount is set.
func (m Money) IsZero() bool {
	return m.Amount == 0
}
