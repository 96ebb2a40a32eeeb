package docs

import "time"

const dayMillis = 24 * 60 * 60 * 1000

// ExpiryStatus classifies a resource deadline relative to "now".
type ExpiryStatus struct {
	Valid           bool `json:"valid"`
	Expired         bool `json:"expired"`
	ExpiringSoon    bool `json:"expiringSoon"`
	DaysUntilExpiry int  `json:"daysUntilExpiry"`
}

// CheckExpiry compares a deadline to now. Day counts use calendar-day ceiling
// division of the millisecond difference, not elapsed 24h periods: a deadline
// 1ms in the future still counts as 1 day. A zero deadline never expires.
// "Expiring soon" means between 1 and 7 days remain.
func CheckExpiry(expiresAt, now time.Time) ExpiryStatus {
	if expiresAt.IsZero() {
		return ExpiryStatus{Valid: true}
	}
	diffMillis := expiresAt.UnixMilli() - now.UnixMilli()
	if diffMillis <= 0 {
		return ExpiryStatus{Expired: true}
	}
	days := int((diffMillis + dayMillis - 1) / dayMillis)
	return ExpiryStatus{
		Valid:           true,
		ExpiringSoon:    days <= 7,
		DaysUntilExpiry: days,
	}
}
