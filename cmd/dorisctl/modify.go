package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nucleus/doris-core/pkg/doris"
)

func newModifyCmd(root *rootFlags) *cobra.Command {
	var req doris.ModifyRequest
	cmd := &cobra.Command{
		Use:   "modify TABLE",
		Short: "Change the distribution key or bucket count of a table or partition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := root.open()
			if err != nil {
				return err
			}
			defer client.Close()

			req.Table = args[0]
			req.Database = cfg.Cluster.Database
			out, err := client.Modify(cmd.Context(), req)
			if out != nil {
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "status: %s\n", out.Status)
				if out.Plan != nil {
					fmt.Fprintf(w, "scope: %s\nfrom:  %s\nto:    %s\n", out.Plan.Scope, out.Plan.Source, out.Plan.Target)
				}
				for _, warning := range out.Warnings {
					fmt.Fprintf(w, "warning: %s\n", warning)
				}
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&req.Partition, "partition", "p", "", "partition to change instead of the whole table")
	cmd.Flags().StringVarP(&req.DistributionKey, "key", "k", "", "new distribution key, comma separated or RANDOM")
	cmd.Flags().IntVarP(&req.Buckets, "buckets", "b", 0, "new bucket count, 0 to size from data volume")
	return cmd
}
