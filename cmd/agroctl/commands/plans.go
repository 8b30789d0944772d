package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ariefcatur/go-agro-market/internal/subscriptions"
)

func plansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List subscription plans and their features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PLAN\tNAME\tPRICE\tLISTINGS\tANALYTICS\tPRIORITY\tFEATURED\tCOMMISSION")
			for _, p := range subscriptions.AllPlans {
				info := p.Info()
				listings := "unlimited"
				if info.MaxListings != nil {
					listings = fmt.Sprint(*info.MaxListings)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%t\t%d\t%s%%\n",
					info.Plan, info.DisplayName, info.Price.StringFixed(2), listings,
					info.Features.AnalyticsAccess, info.Features.PrioritySupport,
					info.Features.FeaturedListings, info.Features.CommissionRate)
			}
			return tw.Flush()
		},
	}
}
