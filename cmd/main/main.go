package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	cfgFile     string
	backendName string
	verbose     bool
	rootCmd     *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "timeline-tracker",
		Short: "Timeline Tracker - projects on a timeline, tasks on a board",
		Long: `Timeline Tracker keeps date-ranged projects on a month timeline and each
project's tasks on a To Do / In Progress / Done board.

With no subcommand it opens the terminal UI.`,
		RunE:          runTUI,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ~/.timeline-tracker/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&backendName, "backend", "b", "", "storage backend: memory, sqlite, mongo or redis")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		return err
	}

	return nil
}

func main() {
	if err := Execute(version); err != nil {
		os.Exit(1)
	}
}
