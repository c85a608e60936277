package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newSavedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Inspect saved credentials",
	}
	cmd.AddCommand(savedListCmd())
	cmd.AddCommand(savedIgnoreCmd())
	return cmd
}

func savedListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved credentials (passwords are never shown)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := apiClient.Credentials.List(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(creds))
			ids := make([]string, 0, len(creds))
			for _, c := range creds {
				id := strconv.FormatInt(c.ID, 10)
				ids = append(ids, id)
				rows = append(rows, []string{id, truncate(c.Name, 30), truncate(c.URL, 40), c.Username, strconv.FormatBool(c.Ignored)})
			}

			return output(creds, []string{"ID", "NAME", "URL", "USERNAME", "IGNORED"}, rows, ids...)
		},
	}
}

func savedIgnoreCmd() *cobra.Command {
	var undo bool
	cmd := &cobra.Command{
		Use:   "ignore <id>",
		Short: "Exclude a saved credential from reconciliation",
		Long: `Ignored credentials are never matched, updated or deleted by an import.
Use --undo to include the credential again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid credential id %q", args[0])
			}

			if err := apiClient.Credentials.SetIgnored(cmd.Context(), id, !undo); err != nil {
				return err
			}

			state := map[string]any{"id": id, "ignored": !undo}
			return output(state, []string{"ID", "IGNORED"}, [][]string{{args[0], strconv.FormatBool(!undo)}}, args[0])
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "Clear the ignored flag")
	return cmd
}
