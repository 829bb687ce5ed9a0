package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/voi/core/runlog"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs, most recent first",
	RunE:  listHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func listHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := runlog.Open(cfg.History)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("run history is disabled")
	}
	defer func() { _ = store.Close() }()

	recs, err := store.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tFINISHED\tBUILDINGS\tEVALUATOR\tPRIOR COST\tVOI DIRECT\tVOI REGRET\tSTD ERR\tWARNINGS")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%d\n",
			r.RunID, r.FinishedAt.Format(time.RFC3339), r.Buildings, r.Evaluator,
			r.PriorCost, r.VoIDirect, r.VoIRegret, r.StdError, r.Warnings)
	}
	return tw.Flush()
}
