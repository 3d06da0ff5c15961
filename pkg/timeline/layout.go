package timeline

import (
	"math"
	"time"
)

// Layout constants, in percent of the window and in canvas pixels.
const (
	MinWidth        = 2.0
	RowHeight       = 40
	MinCanvasHeight = 200
	canvasPadding   = 20
)

// Item is anything with an id and a date range.
type Item interface {
	Identity() string
	Span() (time.Time, time.Time)
}

// Bar is the position of one item.
type Bar struct {
	ID string
	// Row is the item's index in the input; Top is Row * RowHeight.
	Row int
	Top int
	// Left and Width are percentages of the window: 0 <= Left, Left+Width <= 100,
	// Width >= MinWidth.
	Left  float64
	Width float64
	// ClippedStart and ClippedEnd are set when the item runs past that window edge.
	ClippedStart bool
	ClippedEnd   bool
	// Degenerate is set when nothing of the item lies inside the window, or it has no
	// duration; the bar is then only the minimum width at the nearest edge.
	Degenerate bool
}

// Layout is the full timeline for one window.
type Layout struct {
	Window Window
	Bars   []Bar
	// Today is the position of now, which may fall outside [0, 100].
	Today        float64
	TodayVisible bool
	// Height is the canvas height in pixels.
	Height int
}

// Arrange places items on the window in input order, one row each. Overlapping ranges
// are never packed into a shared row. A window shorter than a month is widened to one.
func Arrange[T Item](w Window, items []T, now time.Time) Layout {
	if w.Months < 1 {
		w.Months = 1
	}

	bars := make([]Bar, len(items))
	for i, item := range items {
		bars[i] = place(w, item, i)
	}

	today := position(w, now)

	return Layout{
		Window:       w,
		Bars:         bars,
		Today:        today,
		TodayVisible: today >= 0 && today < 100,
		Height:       CanvasHeight(len(items)),
	}
}

// CanvasHeight is the pixel height needed for n rows.
func CanvasHeight(n int) int {
	if h := n*RowHeight + canvasPadding; h > MinCanvasHeight {
		return h
	}

	return MinCanvasHeight
}

func place(w Window, item Item, row int) Bar {
	start, end := item.Span()
	windowStart, windowEnd := w.Start, w.End()

	bar := Bar{
		ID:           item.Identity(),
		Row:          row,
		Top:          row * RowHeight,
		ClippedStart: start.Before(windowStart),
		ClippedEnd:   end.After(windowEnd),
	}

	clippedStart := clamp(start, windowStart, windowEnd)
	clippedEnd := clamp(end, windowStart, windowEnd)

	if clippedEnd.Before(clippedStart) {
		clippedEnd = clippedStart
	}

	bar.Degenerate = !clippedEnd.After(clippedStart)
	bar.Left = position(w, clippedStart)
	bar.Width = math.Max(percent(w, clippedEnd.Sub(clippedStart)), MinWidth)

	// keep floored bars at the right edge inside the window
	if bar.Left+bar.Width > 100 {
		bar.Left = 100 - bar.Width
	}

	return bar
}

func clamp(t, lo, hi time.Time) time.Time {
	if t.Before(lo) {
		return lo
	}

	if t.After(hi) {
		return hi
	}

	return t
}

func position(w Window, t time.Time) float64 {
	return percent(w, t.Sub(w.Start))
}

// percent works in whole milliseconds, so results match across platforms.
func percent(w Window, d time.Duration) float64 {
	total := w.Duration().Milliseconds()
	if total <= 0 {
		return 0
	}

	return float64(d.Milliseconds()) / float64(total) * 100
}

// Columns converts the bar to a start column and a length on a track of the given
// width. The length is at least one column and never runs past the track.
func (b Bar) Columns(width int) (int, int) {
	if width <= 0 {
		return 0, 0
	}

	start := int(math.Floor(b.Left / 100 * float64(width)))
	if start >= width {
		start = width - 1
	}

	length := int(math.Round(b.Width / 100 * float64(width)))
	if length < 1 {
		length = 1
	}

	if start+length > width {
		length = width - start
	}

	return start, length
}

// TodayColumn is the column of the today marker on a track of the given width, and
// whether it is on the track at all.
func (l Layout) TodayColumn(width int) (int, bool) {
	if !l.TodayVisible || width <= 0 {
		return 0, false
	}

	col := int(math.Floor(l.Today / 100 * float64(width)))
	if col >= width {
		col = width - 1
	}

	return col, true
}
