package nfe

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidNumber is wrapped by ParseDecimal for unparsable numeric text.
var ErrInvalidNumber = errors.New("invalid number")

// ParseDecimal converts free-text fiscal values into a decimal. Both dot and
// comma decimal separators are accepted; when a comma is present the dots are
// treated as thousands separators ("1.234,56" == "1234.56"). Empty or
// whitespace-only input yields zero, since absent optional fields commonly
// serialize as empty text.
func ParseDecimal(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return decimal.Zero, nil
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidNumber, text)
	}
	return d, nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// NormalizeDate coerces the usual NFe date spellings (timestamp with offset,
// timestamp, date-only, DD/MM/YYYY) into ISO-8601. When no layout matches the
// raw text is returned unchanged with ok=false so callers can raise a finding
// without losing provenance.
func NormalizeDate(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", false
	}
	for i, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if i == 0 {
			return t.Format(time.RFC3339), true
		}
		return t.Format("2006-01-02T15:04:05"), true
	}
	return s, false
}

// digitsOnly strips every non-digit rune, e.g. punctuation in formatted
// CNPJ/CPF values.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
