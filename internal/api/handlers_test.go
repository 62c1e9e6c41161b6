package api

import "testing"

func TestParseDay(t *testing.T) {
	d, err := parseDay("2026-06-15")
	if err != nil {
		t.Fatalf("parse day: %v", err)
	}
	if d == nil || d.Year() != 2026 || d.Month() != 6 || d.Day() != 15 {
		t.Fatalf("day = %v", d)
	}
}

func TestParseDayEmpty(t *testing.T) {
	d, err := parseDay("")
	if err != nil || d != nil {
		t.Fatalf("expected nil, nil for empty input, got %v, %v", d, err)
	}
}

func TestParseDayInvalid(t *testing.T) {
	if _, err := parseDay("not-a-date"); err == nil {
		t.Fatal("expected an error for an invalid day")
	}
}

func TestParsePeriod(t *testing.T) {
	pc, err := parsePeriod("2026-06-15")
	if err != nil {
		t.Fatalf("parse period: %v", err)
	}
	if pc == nil || pc.Year() != 2026 || pc.Month() != 6 || pc.Day() != 15 {
		t.Fatalf("period = %v", pc)
	}
}

func TestParsePeriodEmpty(t *testing.T) {
	pc, err := parsePeriod("")
	if err != nil || pc != nil {
		t.Fatalf("expected nil, nil for empty input, got %v, %v", pc, err)
	}
}

func TestParseLimitDefaultsToZeroOnBlankOrInvalid(t *testing.T) {
	if got := parseLimit(""); got != 0 {
		t.Errorf("parseLimit(\"\") = %d, want 0", got)
	}
	if got := parseLimit("not-a-number"); got != 0 {
		t.Errorf("parseLimit(invalid) = %d, want 0", got)
	}
	if got := parseLimit("-5"); got != 0 {
		t.Errorf("parseLimit(-5) = %d, want 0", got)
	}
	if got := parseLimit("25"); got != 25 {
		t.Errorf("parseLimit(25) = %d, want 25", got)
	}
}

func TestParseInt16(t *testing.T) {
	v, err := parseInt16("7")
	if err != nil {
		t.Fatalf("parse int16: %v", err)
	}
	if v == nil || *v != 7 {
		t.Fatalf("v = %v, want 7", v)
	}

	v, err = parseInt16("")
	if err != nil || v != nil {
		t.Fatalf("expected nil, nil for empty input, got %v, %v", v, err)
	}

	if _, err := parseInt16("not-a-number"); err == nil {
		t.Fatal("expected an error for a non-numeric reason/classification")
	}
}
