package instrument

import (
	"strings"
	"time"
)

// NextWeeklyExpiry returns the venue expiry tag (DDMMMYY, upper-case) for the
// coming Thursday relative to now. When now is already a Thursday the
// following week's expiry is returned, matching the venue's roll behaviour.
func NextWeeklyExpiry(now time.Time) string {
	daysAhead := (int(time.Thursday) - int(now.Weekday()) + 7) % 7
	if daysAhead == 0 {
		daysAhead = 7
	}
	expiry := now.AddDate(0, 0, daysAhead)
	return strings.ToUpper(expiry.Format("02Jan06"))
}
