package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"uploadflow/internal/artifacts"
)

type statusReport struct {
	Dir   string                  `json:"dir" yaml:"dir"`
	Steps []artifacts.StatusEntry `json:"steps" yaml:"steps"`
	Next  string                  `json:"next,omitempty" yaml:"next,omitempty"`
	Done  bool                    `json:"done" yaml:"done"`
}

func newStatusCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:         "status [DIR]",
		Short:       "Show pipeline progress for a working directory",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := validateOutput(output)
			if err != nil {
				return err
			}
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if dir, err = filepath.Abs(dir); err != nil {
				return fmt.Errorf("resolve directory: %w", err)
			}
			state, err := artifacts.Scan(dir)
			if err != nil {
				return err
			}

			report := statusReport{Dir: dir, Steps: state.Status()}
			if next, ok := state.Next(); ok {
				report.Next = next.String()
			} else {
				report.Done = true
			}

			switch format {
			case outputJSON:
				return writeJSON(cmd, report)
			case outputYAML:
				return writeYAML(cmd, report)
			}
			return renderStatus(cmd, report, state)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json, or yaml")
	return cmd
}

func renderStatus(cmd *cobra.Command, report statusReport, state artifacts.State) error {
	colorize := !color.NoColor && cmd.OutOrStdout() == os.Stdout
	rows := make([][]string, 0, len(report.Steps))
	for _, step := range report.Steps {
		rows = append(rows, []string{step.Label, presence(step.Present, colorize)})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Working directory: %s\n", report.Dir)
	fmt.Fprintln(out, renderTable([]string{"Step", "State"}, rows, nil))
	if state.ColorEditSkipped() {
		fmt.Fprintln(out, "Color edit skipped; the input video is used directly.")
	}
	if report.Done {
		fmt.Fprintln(out, "All automated stages are complete.")
		return nil
	}
	next, _ := state.Next()
	fmt.Fprintf(out, "Next stage: %d. %s\n", next.Number(), next.Label())
	return nil
}
