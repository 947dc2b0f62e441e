package notifications

import (
	"time"

	"github.com/albapepper/matchday/internal/domain"
)

// ScheduleDelivery returns when a notification should go out. High priority
// goes out immediately; normal priority waits out quiet hours (10 PM to 9 AM)
// in the club's timezone.
func ScheduleDelivery(now time.Time, priority domain.Priority, loc *time.Location) time.Time {
	if priority == domain.PriorityHigh {
		return now
	}
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	if isWakingHour(local.Hour()) {
		return now
	}
	day := local
	if local.Hour() >= quietStartHour {
		day = local.AddDate(0, 0, 1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), quietEndHour, 0, 0, 0, loc).UTC()
}

func isWakingHour(hour int) bool {
	return hour >= quietEndHour && hour < quietStartHour
}
