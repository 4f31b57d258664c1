package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *cli) statsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := c.api().Stats(ctxOf(cmd))
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, stats)
			}
			w := tabwriter.NewWriter(out(cmd), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Total customers\t%d\n", stats.TotalCustomers)
			fmt.Fprintf(w, "Churn rate\t%.1f%%\n", stats.ChurnRate)
			fmt.Fprintf(w, "Revenue at risk\t$%.2f/mo\n", stats.MonthlyRevenueAtRisk)
			fmt.Fprintf(w, "Active interventions\t%d\n", stats.ActiveInterventions)
			for _, b := range stats.RiskDistribution {
				fmt.Fprintf(w, "%s\t%.1f%%\n", b.Label, b.Value)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func (c *cli) logsCmd() *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent predictions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logs, err := c.api().Logs(ctxOf(cmd), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, logs)
			}
			if len(logs) == 0 {
				fmt.Fprintln(out(cmd), "No predictions logged yet")
				return nil
			}
			w := tabwriter.NewWriter(out(cmd), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCUSTOMER\tPROBABILITY\tRISK\tDATE")
			for _, l := range logs {
				fmt.Fprintf(w, "%d\t%s\t%.1f%%\t%s\t%s\n", l.ID, l.CustomerID, l.PredictionProb*100, l.RiskLevel,
					l.PredictionDate.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries (max 100)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func (c *cli) featuresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "List the model's input features",
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := c.api().Features(ctxOf(cmd))
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(out(cmd), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FEATURE\tTYPE\tIMPORTANCE\tDESCRIPTION")
			for _, f := range catalog.Categorical {
				fmt.Fprintf(w, "%s\tcategorical\t%s\t%s\n", f.Name, f.Importance, f.Desc)
			}
			for _, f := range catalog.Numerical {
				fmt.Fprintf(w, "%s\tnumerical\t%s\t%s\n", f.Name, f.Importance, f.Desc)
			}
			return w.Flush()
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(out(cmd))
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
