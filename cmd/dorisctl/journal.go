package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newJournalCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the stream load journal",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list TABLE",
		Short: "Print recorded load outcomes for TABLE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := root.open()
			if err != nil {
				return err
			}
			defer client.Close()
			if client.Journal() == nil {
				return fmt.Errorf("journal is disabled; set spill.enabled or DORIS_SPILL_ENABLED")
			}
			entries, err := client.Journal().Entries(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\trows=%d attempts=%d %s\n",
					e.Timestamp.Format(time.RFC3339), e.Label, e.Status, e.Rows, e.Attempts, e.Error)
			}
			return nil
		},
	})

	var retention int
	prune := &cobra.Command{
		Use:   "prune TABLE",
		Short: "Delete journal objects older than --days",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := root.open()
			if err != nil {
				return err
			}
			defer client.Close()
			if client.Journal() == nil {
				return fmt.Errorf("journal is disabled")
			}
			n, err := client.Journal().Prune(cmd.Context(), args[0], retention)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d objects\n", n)
			return nil
		},
	}
	prune.Flags().IntVar(&retention, "days", 30, "retention in days")
	cmd.AddCommand(prune)
	return cmd
}
