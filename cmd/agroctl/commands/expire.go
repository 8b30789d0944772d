package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func expireDemandsCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "expire-demands",
		Short: "Move demand requests past their required-by date to expired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--now: %w", err)
				}
				now = t.UTC()
			}
			svcs, closeFn, err := services(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			svcs.Demands.Now = func() time.Time { return now }
			ids, err := svcs.Demands.ExpireOverdue(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d demand(s) expired\n", len(ids))
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "now", "", "reference time in RFC3339 (default: current time)")
	return cmd
}
