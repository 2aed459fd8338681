package utils

import (
	"testing"
	"time"
)

func TestNormalizeStockCode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"005930", "005930"},
		{" 005930 ", "005930"},
		{"A005930", "005930"},
		{"a005930", "005930"},
		{"5930", "005930"},
		{"0088m0", "0088M0"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeStockCode(tt.in); got != tt.want {
			t.Errorf("NormalizeStockCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateStockCode(t *testing.T) {
	for _, ok := range []string{"005930", "A005930", "0088M0", "35720"} {
		if err := ValidateStockCode(ok); err != nil {
			t.Errorf("ValidateStockCode(%q) unexpected error: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "ABCDEF", "1234567", "00-930"} {
		if err := ValidateStockCode(bad); err == nil {
			t.Errorf("ValidateStockCode(%q) expected error", bad)
		}
	}
}

func TestIsCorpCode(t *testing.T) {
	if !IsCorpCode("00126380") {
		t.Error("expected 00126380 to be a corp code")
	}
	if IsCorpCode("005930") || IsCorpCode("0012638X") {
		t.Error("unexpected corp code match")
	}
}

func TestDateRoundTrip(t *testing.T) {
	d, err := ParseDate("20240131")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Year() != 2024 || d.Month() != time.January || d.Day() != 31 {
		t.Errorf("ParseDate = %v", d)
	}
	if got := FormatDate(d); got != "20240131" {
		t.Errorf("FormatDate = %q, want 20240131", got)
	}
	if _, err := ParseDate("2024-01-31"); err == nil {
		t.Error("expected error for dashed date")
	}
}

func TestFormatDateUsesKST(t *testing.T) {
	// 2024-01-31 20:00 UTC is already Feb 1 in Seoul.
	utc := time.Date(2024, 1, 31, 20, 0, 0, 0, time.UTC)
	if got := FormatDate(utc); got != "20240201" {
		t.Errorf("FormatDate = %q, want 20240201", got)
	}
}

func TestYearRange(t *testing.T) {
	got := YearRange(2020, 2022)
	if len(got) != 3 || got[0] != 2020 || got[2] != 2022 {
		t.Errorf("YearRange = %v", got)
	}
	if YearRange(2023, 2022) != nil {
		t.Error("expected empty range when start > end")
	}
}
