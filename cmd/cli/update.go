package main

import (
	"errors"
	"fmt"
	"math"

	"coin-tracker/internal/model"
	"coin-tracker/internal/pipeline"

	"github.com/spf13/cobra"
)

// rigFlags are the rig parameters shared by update and preview.
type rigFlags struct {
	hashrateMH float64
	wattage    float64
	powerRate  float64
}

func (r *rigFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&r.hashrateMH, "hashrate", float64(model.DefaultHashrate)/1e6, "Hashrate in MH/s")
	cmd.Flags().Float64Var(&r.wattage, "wattage", model.DefaultPowerWatts, "Power draw in watts")
	cmd.Flags().Float64Var(&r.powerRate, "power-rate", model.DefaultPowerCostPerKwh, "Electricity cost in $/kWh")
}

// params converts the MH/s flag into whole hashes per second.
func (r *rigFlags) params() (model.RunParameters, error) {
	if math.IsNaN(r.hashrateMH) || math.IsInf(r.hashrateMH, 0) {
		return model.RunParameters{}, fmt.Errorf("--hashrate must be finite, got %v", r.hashrateMH)
	}
	p := model.RunParameters{
		Hashrate:        int64(math.Round(r.hashrateMH * 1e6)),
		PowerWatts:      r.wattage,
		PowerCostPerKwh: r.powerRate,
	}
	return p, p.Validate()
}

var (
	updateSheetID string
	updateRig     rigFlags
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch metrics and append one row to the sheet",
	Example: `  coin-tracker update --sheet-id 1AbC... --hashrate 62 --wattage 130 --power-rate 0.122
  COIN_SHEET_ID=1AbC... coin-tracker update`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		sheetID := updateSheetID
		if sheetID == "" {
			sheetID = cfg.Sheet.ID
		}
		if sheetID == "" {
			return errors.New("--sheet-id is required")
		}

		p, err := pipeline.FromConfig(cfg, logger)
		if err != nil {
			return err
		}
		params, err := updateRig.params()
		if err != nil {
			return err
		}
		status, err := p.Run(cmd.Context(), sheetID, params)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), status)
		return nil
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateSheetID, "sheet-id", "", "Target spreadsheet ID")
	updateRig.register(updateCmd)
}
