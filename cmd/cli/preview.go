package main

import (
	"fmt"
	"text/tabwriter"

	"coin-tracker/internal/data"
	"coin-tracker/internal/ledger"
	"coin-tracker/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	previewRig  rigFlags
	previewFile string
	previewOut  string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Compute the row an update would append, without writing it",
	Example: `  coin-tracker preview --hashrate 100
  coin-tracker preview --from-file sample_metrics.json --out results/row.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		params, err := previewRig.params()
		if err != nil {
			return err
		}

		var row ledger.OutputRow
		if previewFile != "" {
			metrics, err := data.LoadMetricsJSON(previewFile)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			row, err = ledger.Transform(metrics, params, loc)
			if err != nil {
				return err
			}
		} else {
			p, err := pipeline.FromConfig(cfg, logger)
			if err != nil {
				return err
			}
			row, err = p.Preview(cmd.Context(), params, logger)
			if err != nil {
				return err
			}
		}

		if previewOut != "" {
			if err := ledger.WriteRowsCSV(previewOut, []ledger.OutputRow{row}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", previewOut)
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		values := row.Values()
		for i, col := range ledger.Header() {
			fmt.Fprintf(tw, "%s\t%v\n", col, values[i])
		}
		return tw.Flush()
	},
}

func init() {
	previewRig.register(previewCmd)
	previewCmd.Flags().StringVar(&previewFile, "from-file", "", "Read metrics from a saved API response instead of the network")
	previewCmd.Flags().StringVar(&previewOut, "out", "", "Write the row as CSV to this path")
}
