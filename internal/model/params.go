package model

import (
	"errors"
	"math"
)

// RunParameters describes the rig being evaluated for one run.
// Units:
// - Hashrate: H/s (the CLI accepts MH/s and converts)
// - PowerWatts: W drawn by the rig
// - PowerCostPerKwh: $/kWh
type RunParameters struct {
	Hashrate        int64
	PowerWatts      float64
	PowerCostPerKwh float64
}

// Default rig: one 62 MH/s card drawing 130 W at $0.122/kWh.
const (
	DefaultHashrate        int64   = 62_000_000
	DefaultPowerWatts      float64 = 130.0
	DefaultPowerCostPerKwh float64 = 0.122
)

func DefaultRunParameters() RunParameters {
	return RunParameters{
		Hashrate:        DefaultHashrate,
		PowerWatts:      DefaultPowerWatts,
		PowerCostPerKwh: DefaultPowerCostPerKwh,
	}
}

func (p RunParameters) Validate() error {
	if p.Hashrate <= 0 {
		return errors.New("Hashrate must be > 0")
	}
	if !finite(p.PowerWatts) || p.PowerWatts < 0 {
		return errors.New("PowerWatts must be a finite value >= 0")
	}
	if !finite(p.PowerCostPerKwh) || p.PowerCostPerKwh < 0 {
		return errors.New("PowerCostPerKwh must be a finite value >= 0")
	}
	return nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
