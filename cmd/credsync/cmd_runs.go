package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent import runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := apiClient.Imports.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}

			headers := append([]string{"WHEN"}, runHeaders...)
			rows := make([][]string, 0, len(runs))
			ids := make([]string, 0, len(runs))
			for _, r := range runs {
				ids = append(ids, r.ID)
				rows = append(rows, []string{
					r.CreatedAt.Local().Format(time.DateTime), r.ID,
					strconv.Itoa(r.Inserted), strconv.Itoa(r.Updated), strconv.Itoa(r.Deleted),
					strconv.Itoa(r.Unchanged), strconv.Itoa(r.Conflicts), strconv.FormatBool(r.DryRun),
				})
			}

			return output(runs, headers, rows, ids...)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}
