//go:build !integration

package payment

import "testing"

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		minor int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{100, "1.00"},
		{123456, "1234.56"},
		{-250, "-2.50"},
	}
	for _, c := range cases {
		if got := formatAmount(c.minor); got != c.want {
			t.Errorf("formatAmount(%d) = %q, want %q", c.minor, got, c.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"12", 1200, false},
		{"12.3", 1230, false},
		{"12.34", 1234, false},
		{"12.345", 1234, false},
		{" 12.34 ", 1234, false},
		{"0.05", 5, false},
		{"-2.50", -250, false},
		{"", 0, true},
		{"abc", 0, true},
		{"12.xy", 0, true},
	}
	for _, c := range cases {
		got, err := parseAmount(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("parseAmount(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseAmount(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseAmount(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, minor := range []int64{0, 1, 99, 100, 101, 123456789} {
		got, err := parseAmount(formatAmount(minor))
		if err != nil {
			t.Fatalf("round trip %d: %v", minor, err)
		}
		if got != minor {
			t.Errorf("round trip %d -> %d", minor, got)
		}
	}
}
