package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nucleus/doris-core/pkg/doris"
)

func newMetaCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Harvest table, partition and tablet metadata into meta tables",
	}

	run := func(name string, fn func(*doris.MetaHarvester, context.Context) (int, error)) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: "Collect " + name + " metadata",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				client, _, err := root.open()
				if err != nil {
					return err
				}
				defer client.Close()
				n, err := fn(client.Meta(), cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows\n", name, n)
				return nil
			},
		}
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the meta tables when missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := root.open()
			if err != nil {
				return err
			}
			defer client.Close()
			return client.Meta().CreateTables(cmd.Context())
		},
	}

	cmd.AddCommand(
		initCmd,
		run("tables", (*doris.MetaHarvester).CollectTables),
		run("partitions", (*doris.MetaHarvester).CollectPartitions),
		run("tablets", (*doris.MetaHarvester).CollectTablets),
	)
	return cmd
}
