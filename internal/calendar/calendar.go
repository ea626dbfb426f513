package calendar

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrMalformedPeriodID is returned for identifiers that fail pattern or
// range validation. Bad ids are rejected, never clamped to a nearby period.
var ErrMalformedPeriodID = errors.New("malformed period id")

// WeekID is an ISO-8601 week identifier, e.g. "2024-W07".
type WeekID string

// MonthID is a calendar month identifier, e.g. "2024-02".
type MonthID string

var (
	weekIDRe  = regexp.MustCompile(`^([0-9]{4})-W([0-9]{2})$`)
	monthIDRe = regexp.MustCompile(`^([0-9]{4})-([0-9]{2})$`)
)

func ParseWeekID(s string) (WeekID, error) {
	m := weekIDRe.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrMalformedPeriodID, s)
	}
	week, _ := strconv.Atoi(m[2])
	if week < 1 || week > 53 {
		return "", fmt.Errorf("%w: week %d out of range", ErrMalformedPeriodID, week)
	}
	return WeekID(s), nil
}

func ParseMonthID(s string) (MonthID, error) {
	m := monthIDRe.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrMalformedPeriodID, s)
	}
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return "", fmt.Errorf("%w: month %d out of range", ErrMalformedPeriodID, month)
	}
	return MonthID(s), nil
}

// Localize projects a UTC instant into the wall clock of the given zone.
func Localize(t time.Time, loc *time.Location) time.Time {
	return t.In(loc)
}

// StartOfWeek returns local Monday 00:00 of the week containing t.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	y, m, d := lt.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// WeekIDOf computes the ISO-8601 week id of t in the given zone.
// ISO weeks start Monday; a week belongs to the year containing its Thursday.
func WeekIDOf(t time.Time, loc *time.Location) WeekID {
	year, week := t.In(loc).ISOWeek()
	return WeekID(fmt.Sprintf("%04d-W%02d", year, week))
}

// MonthIDOf computes the month id of t in the given zone.
func MonthIDOf(t time.Time, loc *time.Location) MonthID {
	lt := t.In(loc)
	return MonthID(fmt.Sprintf("%04d-%02d", lt.Year(), int(lt.Month())))
}

// WeekRange is the instant span of one ISO week in a given zone.
type WeekRange struct {
	Start        time.Time // Monday 00:00:00.000 local
	EndExclusive time.Time // next Monday 00:00:00.000 local
	InclusiveEnd time.Time // Sunday 23:59:59.999 local
}

// MonthRange is the instant span of one calendar month in a given zone.
type MonthRange struct {
	Start        time.Time // first of month 00:00 local
	EndExclusive time.Time // first of next month 00:00 local
}

// RangeOfWeekID is the inverse of WeekIDOf. The Monday of week N is derived
// from January 4th, which by definition always falls in week 1.
// A week number that does not exist in its year (W53 of a 52-week year)
// fails with ErrMalformedPeriodID rather than spilling into the next year.
func RangeOfWeekID(id WeekID, loc *time.Location) (WeekRange, error) {
	m := weekIDRe.FindStringSubmatch(string(id))
	if m == nil {
		return WeekRange{}, fmt.Errorf("%w: %q", ErrMalformedPeriodID, id)
	}
	year, _ := strconv.Atoi(m[1])
	week, _ := strconv.Atoi(m[2])
	if week < 1 || week > 53 {
		return WeekRange{}, fmt.Errorf("%w: week %d out of range", ErrMalformedPeriodID, week)
	}

	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	firstMonday := jan4.AddDate(0, 0, -((int(jan4.Weekday()) + 6) % 7))

	start := firstMonday.AddDate(0, 0, (week-1)*7)
	if WeekIDOf(start, loc) != id {
		return WeekRange{}, fmt.Errorf("%w: %s does not exist", ErrMalformedPeriodID, id)
	}

	endExclusive := start.AddDate(0, 0, 7)
	return WeekRange{
		Start:        start,
		EndExclusive: endExclusive,
		InclusiveEnd: endExclusive.Add(-time.Millisecond),
	}, nil
}

// RangeOfMonthID returns local first-of-month 00:00 to first-of-next-month 00:00.
func RangeOfMonthID(id MonthID, loc *time.Location) (MonthRange, error) {
	m := monthIDRe.FindStringSubmatch(string(id))
	if m == nil {
		return MonthRange{}, fmt.Errorf("%w: %q", ErrMalformedPeriodID, id)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return MonthRange{}, fmt.Errorf("%w: month %d out of range", ErrMalformedPeriodID, month)
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	return MonthRange{
		Start:        start,
		EndExclusive: start.AddDate(0, 1, 0),
	}, nil
}

// IsComplete reports whether a period whose exclusive end is endExclusive has
// fully elapsed at now. True at exactly the boundary, false one instant before.
// Summaries are frozen once written, so a period must never be considered
// complete while it can still receive reflections.
func IsComplete(endExclusive, now time.Time) bool {
	return !now.Before(endExclusive)
}
