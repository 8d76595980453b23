package nfe

import (
	"fmt"
	"strings"
)

// Access key layout: state(2) + yearmonth(4) + issuer tax ID(14) + model(2) +
// series(3) + number(9) + emission type(1) + control code(8) + check digit(1).
const (
	accessKeyBodyLength = 43
	AccessKeyLength     = 44
)

var checkDigitWeights = [...]int{2, 3, 4, 5, 6, 7, 8, 9}

// CheckDigit computes the modulo-11 verifier for a 43-digit access key body:
// digits are taken right-to-left, multiplied by the repeating weight cycle
// [2..9] and summed; the digit is 11 - (sum mod 11), forced to 0 when that
// raw value is 10 or 11.
func CheckDigit(body string) (byte, error) {
	if len(body) != accessKeyBodyLength {
		return 0, fmt.Errorf("access key body must have %d digits, got %d", accessKeyBodyLength, len(body))
	}
	sum := 0
	for i := 0; i < accessKeyBodyLength; i++ {
		c := body[accessKeyBodyLength-1-i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("access key body contains non-digit %q", c)
		}
		sum += int(c-'0') * checkDigitWeights[i%len(checkDigitWeights)]
	}
	dv := 11 - sum%11
	if dv >= 10 {
		dv = 0
	}
	return byte('0' + dv), nil
}

// DeriveAccessKey assembles the 44-digit access key from the document
// identification and the issuer tax ID.
func DeriveAccessKey(ide Identification, issuerTaxID string) (string, error) {
	yearMonth, err := emissionYearMonth(ide.EmissionDate)
	if err != nil {
		return "", err
	}

	body := padDigits(ide.StateCode, 2) +
		yearMonth +
		padDigits(issuerTaxID, 14) +
		padDigits(ide.Model, 2) +
		padDigits(ide.Series, 3) +
		padDigits(ide.Number, 9) +
		padDigits(ide.EmissionType, 1) +
		padDigits(ide.ControlCode, 8)

	dv, err := CheckDigit(body)
	if err != nil {
		return "", fmt.Errorf("derive access key: %w", err)
	}
	return body + string(dv), nil
}

// VerifyAccessKey recomputes the check digit from the first 43 digits and
// compares it against the 44th.
func VerifyAccessKey(key string) bool {
	if len(key) != AccessKeyLength {
		return false
	}
	dv, err := CheckDigit(key[:accessKeyBodyLength])
	if err != nil {
		return false
	}
	return dv == key[accessKeyBodyLength]
}

// emissionYearMonth extracts the YYMM slice from a normalized emission date.
// Unnormalized dates fall back to their digit sequence (YYYYMM...).
func emissionYearMonth(date string) (string, error) {
	s := digitsOnly(date)
	if len(s) < 6 {
		return "", fmt.Errorf("emission date %q does not carry a year-month", date)
	}
	// YYYYMMDD... -> YY + MM
	return s[2:4] + s[4:6], nil
}

// padDigits keeps only digits and left-pads with zeros to the target width.
// Overlong values are kept as-is so the body length check can report them.
func padDigits(s string, width int) string {
	d := digitsOnly(s)
	if len(d) >= width {
		return d
	}
	return strings.Repeat("0", width-len(d)) + d
}
