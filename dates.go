package dependr

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/pkg/errors"
)

// DateLayout is the date format the PCE traffic query expects.
const DateLayout = "2006-01-02"

var relativeDate = regexp.MustCompile(`^(\d+)\s+(day|days|week|weeks)\s+ago$`)

// ParseDate understands "today", "yesterday", "<N> days ago",
// "<N> weeks ago" and any absolute date dateparse recognizes (YYYY-MM-DD
// being the documented form). Relative dates are computed from now.
func ParseDate(s string, now time.Time) (time.Time, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "":
		return time.Time{}, errors.New("empty date")
	case "today", "now":
		return now, nil
	case "yesterday":
		return now.AddDate(0, 0, -1), nil
	}
	if m := relativeDate.FindStringSubmatch(v); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, errors.Wrapf(err, "parsing %q", s)
		}
		if strings.HasPrefix(m[2], "week") {
			n *= 7
		}
		return now.AddDate(0, 0, -n), nil
	}
	if t, err := time.ParseInLocation(DateLayout, v, now.Location()); err == nil {
		return t, nil
	}
	t, err := dateparse.ParseIn(s, now.Location())
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "unrecognized date %q (use YYYY-MM-DD or \"N days ago\")", s)
	}
	return t, nil
}

// DateRange is an inclusive query window.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses both ends with ParseDate and checks their order.
func ParseDateRange(start, end string, now time.Time) (DateRange, error) {
	s, err := ParseDate(start, now)
	if err != nil {
		return DateRange{}, errors.Wrap(err, "start date")
	}
	e, err := ParseDate(end, now)
	if err != nil {
		return DateRange{}, errors.Wrap(err, "end date")
	}
	if s.Format(DateLayout) > e.Format(DateLayout) {
		return DateRange{}, errors.Errorf("start date %s is after end date %s",
			s.Format(DateLayout), e.Format(DateLayout))
	}
	return DateRange{Start: s, End: e}, nil
}

// StartDate formats the start of the range for the PCE.
func (d DateRange) StartDate() string {
	return d.Start.Format(DateLayout)
}

// EndDate formats the end of the range for the PCE.
func (d DateRange) EndDate() string {
	return d.End.Format(DateLayout)
}
