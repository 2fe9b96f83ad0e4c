package domain

import "strconv"

// FormatAmount renders an in-game currency amount with the shop's suffix
// shorthand: millions as "m", thousands as "k", smaller values as plain
// decimals. Division results print as-is, so 1_500_000 formats as "1.5m".
func FormatAmount(amount int64) string {
	switch {
	case amount >= 1_000_000:
		return strconv.FormatFloat(float64(amount)/1_000_000, 'f', -1, 64) + "m"
	case amount >= 1_000:
		return strconv.FormatFloat(float64(amount)/1_000, 'f', -1, 64) + "k"
	default:
		return strconv.FormatInt(amount, 10)
	}
}
