package nfe

import "testing"

func TestCheckDigit(t *testing.T) {
	cases := []struct {
		body string
		want byte
	}{
		{"3525041234567800014955001000000123100000012", '6'},
		{"3525041234567800014955001000000124100000012", '3'},
		// sum%11 lands on a raw value >= 10, which is forced to zero
		{"5221100766111900013655002000012345177006534", '0'},
		{"0000000000000000000000000000000000000000000", '0'},
		{"1111111111111111111111111111111111111111111", '2'},
	}
	for _, tc := range cases {
		got, err := CheckDigit(tc.body)
		if err != nil {
			t.Fatalf("CheckDigit(%q): unexpected error: %v", tc.body, err)
		}
		if got != tc.want {
			t.Errorf("CheckDigit(%q) = %c, want %c", tc.body, got, tc.want)
		}
	}
}

func TestCheckDigitRejectsBadInput(t *testing.T) {
	if _, err := CheckDigit("123"); err == nil {
		t.Error("expected error for short body")
	}
	if _, err := CheckDigit("352504123456780001495500100000012310000001X"); err == nil {
		t.Error("expected error for non-digit body")
	}
}

func TestDeriveAccessKey(t *testing.T) {
	ide := Identification{
		StateCode:    "35",
		ControlCode:  "00000012",
		Model:        "55",
		Series:       "1",
		Number:       "123",
		EmissionDate: "2025-04-10T09:30:00",
		EmissionType: "1",
	}

	key, err := DeriveAccessKey(ide, "12345678000149")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "35250412345678000149550010000001231000000126"
	if key != want {
		t.Errorf("DeriveAccessKey = %q, want %q", key, want)
	}
	if !VerifyAccessKey(key) {
		t.Errorf("derived key %q fails verification", key)
	}
}

func TestDeriveAccessKeyPadsFields(t *testing.T) {
	ide := Identification{
		StateCode:    "35",
		ControlCode:  "12",
		Model:        "55",
		Series:       "2",
		Number:       "45",
		EmissionDate: "2025-11-30",
		EmissionType: "1",
	}
	key, err := DeriveAccessKey(ide, "766111900013")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(key) != AccessKeyLength {
		t.Fatalf("key length = %d, want %d", len(key), AccessKeyLength)
	}
	// tax ID left-padded to 14, series to 3, number to 9, control to 8
	if key[2:6] != "2511" {
		t.Errorf("year-month = %q, want 2511", key[2:6])
	}
	if key[6:20] != "00766111900013" {
		t.Errorf("tax id segment = %q", key[6:20])
	}
	if !VerifyAccessKey(key) {
		t.Errorf("derived key %q fails verification", key)
	}
}

func TestDeriveAccessKeyRequiresYearMonth(t *testing.T) {
	ide := Identification{StateCode: "35", EmissionDate: ""}
	if _, err := DeriveAccessKey(ide, "12345678000149"); err == nil {
		t.Error("expected error for missing emission date")
	}
}

func TestVerifyAccessKey(t *testing.T) {
	valid := "35250412345678000149550010000001231000000126"
	if !VerifyAccessKey(valid) {
		t.Errorf("VerifyAccessKey(%q) = false, want true", valid)
	}

	// flip the check digit
	tampered := valid[:43] + "7"
	if VerifyAccessKey(tampered) {
		t.Errorf("VerifyAccessKey(%q) = true, want false", tampered)
	}

	if VerifyAccessKey("123") {
		t.Error("short key must not verify")
	}
	if VerifyAccessKey(valid[:43] + "X") {
		t.Error("non-digit check digit must not verify")
	}
}
