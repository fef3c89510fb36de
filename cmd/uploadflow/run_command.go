package main

import (
	"github.com/spf13/cobra"

	"uploadflow/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts workflow.Options

	cmd := &cobra.Command{
		Use:   "run <video>",
		Short: "Run the full pipeline for a video in the working directory",
		Long: `Run color editing, transcription, chaptering, title selection,
description editing, and upload for one video. Stages whose output already
exists in the working directory are skipped, so an interrupted run resumes
where it stopped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.log()

			opts.Video = args[0]
			opts.In = cmd.InOrStdin()
			opts.Out = cmd.OutOrStdout()

			driver := workflow.NewDriver(cfg, newToolRunner(cfg, logger), logger)
			_, err = driver.Run(cmd.Context(), opts)
			return err
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Upload without asking for confirmation")
	cmd.Flags().BoolVar(&opts.SkipColorEdit, "skip-color-edit", false, "Use the input video as-is instead of color editing it")
	cmd.Flags().StringVar(&opts.VolumeThreshold, "volume-threshold", "", "Override the color edit volume threshold")
	cmd.Flags().StringVarP(&opts.WorkDir, "workdir", "w", "", "Directory for pipeline artifacts (default: current directory)")
	return cmd
}
