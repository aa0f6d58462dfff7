package stats

import (
	"fmt"
	"strings"
	"time"

	"finanzas/internal/core"
)

// Period is the bucket granularity of a trend series.
type Period string

const (
	Day   Period = "day"
	Week  Period = "week"
	Month Period = "month"
	Year  Period = "year"
)

// ParsePeriod falls back to Month for anything unrecognised.
func ParsePeriod(s string) Period {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case Day, Week, Month, Year:
		return p
	default:
		return Month
	}
}

// Key truncates d to the period. Weeks are numbered like strftime %W:
// Monday starts the week and days before the first Monday are week 00.
func (p Period) Key(d core.ISODate) (string, error) {
	t, err := d.Time()
	if err != nil {
		return "", err
	}
	switch p {
	case Day:
		return t.Format("2006-01-02"), nil
	case Week:
		return fmt.Sprintf("%04d-%02d", t.Year(), mondayWeek(t)), nil
	case Year:
		return t.Format("2006"), nil
	default:
		return t.Format("2006-01"), nil
	}
}

func mondayWeek(t time.Time) int {
	yday := t.YearDay() - 1
	wday := (int(t.Weekday()) + 6) % 7
	return (yday + 7 - wday) / 7
}
