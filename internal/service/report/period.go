package report

import (
	"fmt"
	"time"

	"github.com/nkiryanov/vendorpos/internal/apperrors"
)

const DateLayout = "2006-01-02"

// Inclusive range of calendar days. Empty bound means unbounded
type Period struct {
	Start string
	End   string
}

func ParsePeriod(start string, end string) (Period, error) {
	fields := apperrors.FieldErrors{}
	var s, e time.Time
	var err error

	if start != "" {
		if s, err = time.Parse(DateLayout, start); err != nil {
			fields["startDate"] = "date must be in YYYY-MM-DD format"
		}
	}
	if end != "" {
		if e, err = time.Parse(DateLayout, end); err != nil {
			fields["endDate"] = "date must be in YYYY-MM-DD format"
		}
	}
	if len(fields) > 0 {
		return Period{}, fields
	}

	if start != "" && end != "" && e.Before(s) {
		return Period{}, apperrors.FieldErrors{"endDate": fmt.Sprintf("end date %s is before start date %s", end, start)}
	}

	return Period{Start: start, End: end}, nil
}

// Resolve to instants: [Start 00:00:00.000, End 23:59:59.999] in loc
func (p Period) Bounds(loc *time.Location) (from *time.Time, to *time.Time) {
	if p.Start != "" {
		if day, err := time.ParseInLocation(DateLayout, p.Start, loc); err == nil {
			from = &day
		}
	}
	if p.End != "" {
		if day, err := time.ParseInLocation(DateLayout, p.End, loc); err == nil {
			last := day.AddDate(0, 0, 1).Add(-time.Millisecond)
			to = &last
		}
	}
	return from, to
}

// Single day period containing t
func Day(t time.Time) Period {
	d := t.Format(DateLayout)
	return Period{Start: d, End: d}
}
