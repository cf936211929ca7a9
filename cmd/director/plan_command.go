package main

import (
	"fmt"

	"github.com/bobarin/director/internal/director"
	"github.com/bobarin/director/internal/models"
	"github.com/spf13/cobra"
)

func newPlanCommand() *cobra.Command {
	var scenes int

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the batch plan for a script length",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			total := models.ClampTotalScenes(scenes)
			if total != scenes {
				fmt.Fprintf(cmd.ErrOrStderr(), "Scene count clamped to %d\n", total)
			}

			out := cmd.OutOrStdout()
			batches := models.BatchCount(total)
			fmt.Fprintf(out, "%d scenes, %d batches\n", total, batches)
			for batch := 1; batch <= batches; batch++ {
				start, end := director.BatchRange(total, batch)
				fmt.Fprintf(out, "Batch %d: scenes %d-%d\n", batch, start, end)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&scenes, "scenes", "n", models.DefaultTotalScenes, "Total number of scenes")
	return cmd
}
