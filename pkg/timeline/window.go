// Package timeline lays date-ranged items out on a horizontal month axis.
//
// All positions are percentages of the visible window. Nothing here holds state: the
// same window, items and clock always produce the same layout.
package timeline

import "time"

// Window lengths used by the views.
const (
	DefaultMonths = 6
	PreviewMonths = 3
)

// Window is the visible span: Months whole calendar months from Start.
type Window struct {
	Start  time.Time
	Months int
}

// NewWindow returns the window of the given length that starts on the first day of
// now's month. Lengths below one month are raised to one.
func NewWindow(now time.Time, months int) Window {
	if months < 1 {
		months = 1
	}

	y, m, _ := now.Date()

	return Window{
		Start:  time.Date(y, m, 1, 0, 0, 0, 0, now.Location()),
		Months: months,
	}
}

// End is the first instant after the window.
func (w Window) End() time.Time {
	return w.Start.AddDate(0, w.Months, 0)
}

// Duration is the length of the window.
func (w Window) Duration() time.Duration {
	return w.End().Sub(w.Start)
}

// Next moves the window one month later.
func (w Window) Next() Window {
	return w.Shift(1)
}

// Prev moves the window one month earlier.
func (w Window) Prev() Window {
	return w.Shift(-1)
}

// Shift moves the window by n months. There is no bound in either direction.
func (w Window) Shift(n int) Window {
	return Window{Start: w.Start.AddDate(0, n, 0), Months: w.Months}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End())
}

// MonthStarts returns the first day of each month in the window.
func (w Window) MonthStarts() []time.Time {
	starts := make([]time.Time, w.Months)
	for i := range starts {
		starts[i] = w.Start.AddDate(0, i, 0)
	}

	return starts
}

// MonthLabels returns header labels such as "January 2024", one per month.
func (w Window) MonthLabels() []string {
	starts := w.MonthStarts()

	labels := make([]string, len(starts))
	for i, start := range starts {
		labels[i] = start.Format("January 2006")
	}

	return labels
}

// RangeLabel formats a date range for a bar tooltip: "Feb 15, 2024 - Mar 10, 2024".
func RangeLabel(start, end time.Time) string {
	const layout = "Jan 2, 2006"

	return start.Format(layout) + " - " + end.Format(layout)
}
