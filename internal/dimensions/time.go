package dimensions

import (
	"time"

	"github.com/wliao/retaildw/internal/contracts"
)

// DeriveTimeAttributes computes the dim_time calendar attributes for a
// date. Day-of-week follows the warehouse convention 1=Monday .. 7=Sunday;
// Saturday and Sunday are weekend days.
func DeriveTimeAttributes(ts time.Time) contracts.TimeAttributes {
	ts = ts.UTC()
	year, month, day := ts.Date()

	weekday := int(ts.Weekday()) // 0=Sunday .. 6=Saturday
	dayOfWeek := weekday
	if dayOfWeek == 0 {
		dayOfWeek = 7
	}

	return contracts.TimeAttributes{
		Date:       time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
		Year:       year,
		Month:      int(month),
		MonthName:  month.String(),
		Quarter:    (int(month)-1)/3 + 1,
		DayOfMonth: day,
		DayOfWeek:  dayOfWeek,
		DayName:    ts.Weekday().String(),
		IsWeekend:  dayOfWeek == 6 || dayOfWeek == 7,
	}
}
