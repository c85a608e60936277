package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/persistorai/credsync/client"
	"github.com/persistorai/credsync/internal/csvimport"
)

func readExport(path string) ([]client.IncomingRecord, error) {
	return csvimport.ParseFile(path)
}

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <export.csv>",
		Short: "Show what importing an export would change",
		Long: `Parse a password-manager CSV export and reconcile it against the saved
credentials. Nothing is written. Passwords never appear in the output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readExport(args[0])
			if err != nil {
				return err
			}

			report, err := apiClient.Imports.Plan(cmd.Context(), records)
			if err != nil {
				return err
			}

			headers, rows := planRows(report)
			if err := output(report, headers, rows, report.RunID); err != nil {
				return err
			}

			if flagFmt == "table" {
				s := report.Stats
				fmt.Fprintf(os.Stderr, "%d incoming, %d saved: %d add, %d update, %d unchanged, %d delete, %d conflicts, %d ignored\n",
					s.Incoming, s.Saved, s.ToAdd, s.ToUpdate, s.Unchanged, s.ToDelete, s.Conflicts, s.Suppressed)
			}
			return nil
		},
	}
}

func planRows(r *client.PlanReport) ([]string, [][]string) {
	headers := []string{"ACTION", "ID", "NAME", "URL", "USERNAME", "DETAIL"}
	var rows [][]string

	for _, a := range r.ToAdd {
		rows = append(rows, []string{"add", "", truncate(a.Name, 30), truncate(a.URL, 40), a.Username, ""})
	}
	for _, u := range r.ToUpdate {
		detail := strings.Join(u.ChangedFields, ",")
		if u.PasswordChanged {
			detail = strings.TrimPrefix(detail+",password", ",")
		}
		rows = append(rows, []string{
			"update", strconv.FormatInt(u.Target.ID, 10),
			truncate(u.Incoming.Name, 30), truncate(u.Incoming.URL, 40), u.Incoming.Username, detail,
		})
	}
	for _, d := range r.ToDelete {
		rows = append(rows, []string{"delete", strconv.FormatInt(d.ID, 10), truncate(d.Name, 30), truncate(d.URL, 40), d.Username, ""})
	}
	for _, c := range r.Conflicts {
		ids := make([]string, 0, len(c.Candidates))
		for _, cand := range c.Candidates {
			ids = append(ids, strconv.FormatInt(cand.Target.ID, 10))
		}
		rows = append(rows, []string{
			"conflict", "", truncate(c.Incoming.Name, 30), truncate(c.Incoming.URL, 40), c.Incoming.Username,
			"candidates " + strings.Join(ids, ","),
		})
	}
	return headers, rows
}

func newApplyCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "apply <export.csv>",
		Short: "Import an export, writing every non-conflicting change",
		Long: `Reconcile a password-manager CSV export and apply deletions, updates and
insertions in one transaction. Conflicting matches are reported and left
untouched; resolve them and re-run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readExport(args[0])
			if err != nil {
				return err
			}

			res, err := apiClient.Imports.Apply(cmd.Context(), records, dryRun)
			if err != nil {
				return err
			}

			if err := output(res, runHeaders, [][]string{resultRow(res)}, res.RunID); err != nil {
				return err
			}

			if res.Conflicts > 0 {
				fmt.Fprintf(os.Stderr, "%d conflicting records were not imported; run 'credsync plan' to review them\n", res.Conflicts)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be written without writing")
	return cmd
}

var runHeaders = []string{"RUN", "INSERTED", "UPDATED", "DELETED", "UNCHANGED", "CONFLICTS", "DRY_RUN"}

func resultRow(r *client.ApplyResult) []string {
	return []string{
		r.RunID,
		strconv.Itoa(r.Inserted), strconv.Itoa(r.Updated), strconv.Itoa(r.Deleted),
		strconv.Itoa(r.Unchanged), strconv.Itoa(r.Conflicts), strconv.FormatBool(r.DryRun),
	}
}
