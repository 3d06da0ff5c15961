package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/matt-steen/timeline-tracker/pkg/board"
	"github.com/matt-steen/timeline-tracker/pkg/controller"
	"github.com/matt-steen/timeline-tracker/pkg/model"
	"github.com/matt-steen/timeline-tracker/pkg/notify"
	"github.com/matt-steen/timeline-tracker/pkg/timeline"
	"github.com/spf13/cobra"
)

const (
	dateLayout   = "2006-01-02"
	monthLayout  = "2006-01"
	monthColumns = 8
)

var (
	tuiBoard string

	timelineMonths  int
	timelinePreview bool
	timelineFrom    string

	projectName        string
	projectDescription string
	projectStart       string
	projectEnd         string
	projectColor       string
	projectPriority    string

	taskTitle       string
	taskDescription string
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the terminal UI",
	RunE:  runTUI,
}

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Print the project timeline",
	RunE:  runTimeline,
}

var boardCmd = &cobra.Command{
	Use:   "board <project-id>",
	Short: "Print a project's task board",
	Args:  cobra.ExactArgs(1),
	RunE:  runBoard,
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a project",
	RunE:  runProjectAdd,
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <project-id>",
	Short: "Create a task on a project's board",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskAdd,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "timeline-tracker", version)
	},
}

func init() {
	tuiCmd.Flags().StringVar(&tuiBoard, "board", "", "open the board of this project id first")

	timelineCmd.Flags().IntVarP(&timelineMonths, "months", "m", 0, "months to show (default from config)")
	timelineCmd.Flags().BoolVarP(&timelinePreview, "preview", "p", false, "show the shorter preview window")
	timelineCmd.Flags().StringVar(&timelineFrom, "from", "", "first month to show, as YYYY-MM (default this month)")

	projectAddCmd.Flags().StringVar(&projectName, "name", "", "project name")
	projectAddCmd.Flags().StringVar(&projectDescription, "description", "", "project description")
	projectAddCmd.Flags().StringVar(&projectStart, "start", "", "start date, YYYY-MM-DD (default today)")
	projectAddCmd.Flags().StringVar(&projectEnd, "end", "", "end date, YYYY-MM-DD (default tomorrow)")
	projectAddCmd.Flags().StringVar(&projectColor, "color", "", "hex color (default first legend color)")
	projectAddCmd.Flags().StringVar(&projectPriority, "priority", string(model.PriorityMedium), "low, medium or high")
	projectCmd.AddCommand(projectAddCmd)

	taskAddCmd.Flags().StringVar(&taskTitle, "title", "", "task title")
	taskAddCmd.Flags().StringVar(&taskDescription, "description", "", "task description")
	taskCmd.AddCommand(taskAddCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	opts := controller.Options{Months: a.cfg.Timeline.Months, Start: controller.StartTimeline}
	if tuiBoard != "" {
		if err := waitLoaded(cmd.Context(), a.tracker.Projects); err != nil {
			return err
		}

		opts.Start = controller.StartBoard
		opts.ProjectID = tuiBoard
	}

	c, err := controller.NewController(cmd.Context(), a.tracker, a.monitor, a.toasts, opts)
	if err != nil {
		return err
	}

	return c.Go()
}

// timelineWindow picks the window the timeline command prints: preview replaces months
// with previewMonths, and from moves the start away from the current month.
func timelineWindow(months, previewMonths int, preview bool, from string, now time.Time) (timeline.Window, error) {
	if preview {
		months = previewMonths
	}

	if from == "" {
		return timeline.NewWindow(now, months), nil
	}

	start, err := time.ParseInLocation(monthLayout, from, time.Local)
	if err != nil {
		return timeline.Window{}, fmt.Errorf("error parsing --from %q: want YYYY-MM", from)
	}

	return timeline.NewWindow(start, months), nil
}

func runTimeline(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := waitLoaded(cmd.Context(), a.tracker.Projects); err != nil {
		return err
	}

	months := timelineMonths
	if months < 1 {
		months = a.cfg.Timeline.Months
	}

	now := time.Now()

	w, err := timelineWindow(months, a.cfg.Timeline.PreviewMonths, timelinePreview, timelineFrom, now)
	if err != nil {
		return err
	}

	printTimeline(cmd.OutOrStdout(), w, a.tracker.Projects.Snapshot(), a.tracker.ProjectsByStatus(), now)

	return nil
}

func printTimeline(out io.Writer, w timeline.Window, projects []model.Project, counts map[model.ProjectStatus]int, now time.Time) {
	layout := timeline.Arrange(w, projects, now)
	width := w.Months * monthColumns

	fmt.Fprintf(out, "%s  (%s)\n", timeline.RangeLabel(w.Start, w.End().AddDate(0, 0, -1)), strings.Join(w.MonthLabels(), ", "))
	fmt.Fprintf(out, "planned %d, in progress %d, completed %d\n\n",
		counts[model.ProjectPlanned], counts[model.ProjectInProgress], counts[model.ProjectCompleted])

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tNAME\tSTATUS\t%s\n", monthRuler(w, width))

	for i, p := range projects {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Status, plainTrack(layout.Bars[i], layout, width))
	}

	tw.Flush()
}

func monthRuler(w timeline.Window, width int) string {
	line := []rune(strings.Repeat(" ", width))
	per := width / w.Months

	for i, start := range w.MonthStarts() {
		for j, r := range start.Format("Jan") {
			if i*per+j < width {
				line[i*per+j] = r
			}
		}
	}

	return string(line)
}

func plainTrack(bar timeline.Bar, layout timeline.Layout, width int) string {
	cells := []rune(strings.Repeat(".", width))

	start, length := bar.Columns(width)
	for i := start; i < start+length; i++ {
		cells[i] = '#'
	}

	if bar.ClippedStart {
		cells[start] = '<'
	}

	if bar.ClippedEnd {
		cells[start+length-1] = '>'
	}

	if col, ok := layout.TodayColumn(width); ok {
		cells[col] = '|'
	}

	return string(cells)
}

func runBoard(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := waitLoaded(cmd.Context(), a.tracker.Projects); err != nil {
		return err
	}

	p, tasks, err := a.tracker.OpenProject(args[0])
	if err != nil {
		return err
	}

	if err := waitLoaded(cmd.Context(), tasks); err != nil {
		return err
	}

	printBoard(cmd.OutOrStdout(), p, board.Lanes(tasks.Snapshot()))

	return nil
}

func printBoard(out io.Writer, p model.Project, lanes []board.Lane) {
	fmt.Fprintf(out, "%s  %s  [%s]\n", p.Name, timeline.RangeLabel(p.StartDate, p.EndDate), p.Status)

	for _, lane := range lanes {
		fmt.Fprintf(out, "\n%s (%d)\n", lane.Title, len(lane.Tasks))

		for _, task := range lane.Tasks {
			fmt.Fprintf(out, "  %s  %s\n", task.ID, task.Title)
		}
	}
}

func printToasts(out io.Writer, toasts []notify.Notification) {
	for _, n := range toasts {
		fmt.Fprintf(out, "%s: %s\n", n.Level, n.Message)
	}
}

func parseDay(name, value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}

	day, err := time.ParseInLocation(dateLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing --%s %q: want YYYY-MM-DD", name, value)
	}

	return day, nil
}

func runProjectAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := waitLoaded(cmd.Context(), a.tracker.Legend); err != nil {
		return err
	}

	p := model.NewProjectDraft(model.Day(time.Now()))
	p.Name = projectName
	p.Description = projectDescription
	p.Priority = model.Priority(projectPriority)
	p.Color = projectColor

	if p.Color == "" {
		p.Color = a.tracker.ColorChoices()[0]
	}

	if p.StartDate, err = parseDay("start", projectStart, p.StartDate); err != nil {
		return err
	}

	if p.EndDate, err = parseDay("end", projectEnd, p.EndDate); err != nil {
		return err
	}

	id, err := a.tracker.AddProject(cmd.Context(), p)
	printToasts(cmd.ErrOrStderr(), a.drainToasts())

	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), id)

	return nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := waitLoaded(cmd.Context(), a.tracker.Projects); err != nil {
		return err
	}

	task := model.NewTaskDraft(args[0])
	task.Title = taskTitle
	task.Description = taskDescription

	id, err := a.tracker.AddTask(cmd.Context(), args[0], task)
	printToasts(cmd.ErrOrStderr(), a.drainToasts())

	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), id)

	return nil
}
