package core

import "time"

// Weeks run Sunday through Saturday.

// WeekStart returns the Sunday on or before the given date.
func WeekStart(d Date) Date {
	return d.AddDays(-int(d.Weekday()))
}

// WeekRange returns the Sunday-to-Saturday week containing the given date.
func WeekRange(d Date) (Date, Date) {
	start := WeekStart(d)
	return start, start.AddDays(6)
}

// MonthRange returns the first and last day of the given month.
func MonthRange(year, month int) (Date, Date) {
	first := NewDate(year, month, 1)
	// Day zero of the next month is the last day of this one.
	last := Date{Time: time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)}
	return first, last
}

// YearRange returns January 1 and December 31 of the given year.
func YearRange(year int) (Date, Date) {
	return NewDate(year, 1, 1), NewDate(year, 12, 31)
}

// WeekSpan is a week (or partial week) inside a larger reporting range.
type WeekSpan struct {
	From Date
	To   Date
}

// WeeksInMonth splits a month into week spans clipped to the month
// boundaries. The first and last spans may be shorter than seven days;
// together the spans partition the month's days exactly.
func WeeksInMonth(year, month int) []WeekSpan {
	first, last := MonthRange(year, month)
	var spans []WeekSpan
	from := first
	for !from.After(last.Time) {
		to := WeekStart(from).AddDays(6)
		if to.After(last.Time) {
			to = last
		}
		spans = append(spans, WeekSpan{From: from, To: to})
		from = to.AddDays(1)
	}
	return spans
}
