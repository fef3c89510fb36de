package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"uploadflow/internal/deps"
	"uploadflow/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify external tools and directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			statuses := preflight.CheckSystemDeps(cfg, true)
			failed := len(deps.Missing(statuses))

			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				state := "ok"
				if !status.Available {
					state = "missing"
					if status.Optional {
						state = "missing (optional)"
					}
				}
				rows = append(rows, []string{status.Name, status.Command, state, status.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Dependency", "Command", "State", "Detail"}, rows, nil))

			results := preflight.RunAll(cfg)
			rows = rows[:0]
			for _, result := range results {
				if !result.Passed {
					failed++
				}
				rows = append(rows, []string{result.Name, yesNo(result.Passed), result.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Passed", "Detail"}, rows, nil))

			if failed > 0 {
				return errors.New("prerequisite checks failed")
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
