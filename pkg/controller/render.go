package controller

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/timeline-tracker/pkg/apperr"
	"github.com/matt-steen/timeline-tracker/pkg/model"
	"github.com/matt-steen/timeline-tracker/pkg/notify"
	"github.com/matt-steen/timeline-tracker/pkg/timeline"
	"github.com/rivo/tview"
)

const (
	trackBlank     = "·"
	trackFill      = "█"
	trackThin      = "░"
	trackToday     = "|"
	trackClipStart = "◀"
	trackClipEnd   = "▶"
)

// keyName names a key the way the header shows it: the rune itself, or tcell's name for
// special keys.
func keyName(evt *tcell.EventKey) string {
	if evt.Key() != tcell.KeyRune {
		return tcell.KeyNames[evt.Key()]
	}

	if evt.Rune() == ' ' {
		return "Space"
	}

	return string(evt.Rune())
}

func statusLine(online bool, n notify.Notification) string {
	var b strings.Builder

	if online {
		b.WriteString("[green]● online[-]")
	} else {
		b.WriteString("[red]● offline[-]")
	}

	if n.Message == "" {
		return b.String()
	}

	color := "green"
	if n.Level == notify.Error {
		color = "red"
	}

	fmt.Fprintf(&b, "  [%s]%s[-]", color, tview.Escape(n.Message))

	return b.String()
}

// userMessage is the text shown for an error returned by a form or key action.
func userMessage(err error) string {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}

	switch apperr.KindOf(err) {
	case apperr.Offline:
		return "You are offline. Some features may be limited."
	case apperr.Unauthenticated:
		return "Please log in first"
	}

	return err.Error()
}

// track draws one bar on a row of width columns, with the today marker on top.
func track(bar timeline.Bar, layout timeline.Layout, width int, color string) string {
	if width <= 0 {
		return ""
	}

	cells := make([]string, width)
	for i := range cells {
		cells[i] = "[gray]" + trackBlank + "[-]"
	}

	fill := trackFill
	if bar.Degenerate {
		fill = trackThin
	}

	start, length := bar.Columns(width)
	for i := start; i < start+length; i++ {
		cells[i] = fmt.Sprintf("[%s]%s[-]", color, fill)
	}

	if bar.ClippedStart {
		cells[start] = fmt.Sprintf("[%s]%s[-]", color, trackClipStart)
	}

	if bar.ClippedEnd {
		cells[start+length-1] = fmt.Sprintf("[%s]%s[-]", color, trackClipEnd)
	}

	if col, ok := layout.TodayColumn(width); ok {
		cells[col] = "[red]" + trackToday + "[-]"
	}

	return strings.Join(cells, "")
}

// ruler labels each month of w at its column on a track of the given width. A label that
// would run into the next one is cut short.
func ruler(w timeline.Window, width int) string {
	if width <= 0 {
		return ""
	}

	line := []rune(strings.Repeat(" ", width))
	total := w.Duration().Milliseconds()

	for _, start := range w.MonthStarts() {
		col := int(start.Sub(w.Start).Milliseconds() * int64(width) / total)
		label := []rune(start.Format("Jan 06"))

		for i, r := range label {
			if col+i >= width {
				break
			}

			line[col+i] = r
		}
	}

	return string(line)
}
