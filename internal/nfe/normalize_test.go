package nfe

import (
	"errors"
	"testing"
)

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1234.56", "1234.56"},
		{"1234,56", "1234.56"},
		{"1.234,56", "1234.56"},
		{"1.234.567,89", "1234567.89"},
		{"  10.00 ", "10"},
		{"", "0"},
		{"   ", "0"},
		{"-5,5", "-5.5"},
		{"0", "0"},
	}
	for _, tc := range cases {
		got, err := ParseDecimal(tc.in)
		if err != nil {
			t.Fatalf("ParseDecimal(%q): unexpected error: %v", tc.in, err)
		}
		if got.String() != tc.want {
			t.Errorf("ParseDecimal(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParseDecimalEquivalentSpellings(t *testing.T) {
	a, err := ParseDecimal("1.234,56")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := ParseDecimal("1234.56")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Equal(b) {
		t.Errorf("%s != %s", a, b)
	}
}

func TestParseDecimalInvalid(t *testing.T) {
	for _, in := range []string{"abc", "12,34,56", "1.2.3"} {
		_, err := ParseDecimal(in)
		if err == nil {
			t.Errorf("ParseDecimal(%q): expected error", in)
			continue
		}
		if !errors.Is(err, ErrInvalidNumber) {
			t.Errorf("ParseDecimal(%q): error %v does not wrap ErrInvalidNumber", in, err)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"2025-04-10T09:30:00-03:00", "2025-04-10T09:30:00-03:00", true},
		{"2025-04-10T09:30:00", "2025-04-10T09:30:00", true},
		{"2025-04-10", "2025-04-10T00:00:00", true},
		{"10/04/2025", "2025-04-10T00:00:00", true},
		{"next tuesday", "next tuesday", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeDate(tc.in)
		if ok != tc.wantOK {
			t.Errorf("NormalizeDate(%q) ok = %v, want %v", tc.in, ok, tc.wantOK)
		}
		if got != tc.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
