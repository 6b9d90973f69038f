package payment

import (
	"fmt"
	"strconv"
	"strings"

	"telegram-vpn-billing/internal/domain"
)

// formatAmount renders minor units as the "12.34" decimal string provider
// APIs expect.
func formatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// parseAmount reads a provider decimal string back into minor units.
// Accepts "12", "12.3" and "12.34".
func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	whole, frac, _ := strings.Cut(s, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, domain.ErrValidation
	}
	if frac == "" {
		return units * 100, nil
	}
	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, domain.ErrValidation
	}
	if units < 0 {
		return units*100 - cents, nil
	}
	return units*100 + cents, nil
}
