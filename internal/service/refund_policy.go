package service

import "time"

// RefundPercent maps the hours left before a session to the refunded share of its price.
// Boundaries are inclusive: exactly 24 hours refunds fully and exactly 2 hours refunds half.
func RefundPercent(hoursUntil float64) int {
	switch {
	case hoursUntil >= 24:
		return 100
	case hoursUntil >= 2:
		return 50
	default:
		return 0
	}
}

// HoursUntil returns the fractional hours between now and start.
func HoursUntil(start, now time.Time) float64 {
	return start.Sub(now).Hours()
}

// RefundAmount computes the refund for a price in minor units, rounding down.
func RefundAmount(priceCents int64, scheduledAt, now time.Time) (int64, int) {
	if priceCents <= 0 {
		return 0, RefundPercent(HoursUntil(scheduledAt, now))
	}
	pct := RefundPercent(HoursUntil(scheduledAt, now))
	return priceCents * int64(pct) / 100, pct
}
