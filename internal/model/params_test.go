package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunParametersValidate(t *testing.T) {
	assert.NoError(t, DefaultRunParameters().Validate())
	assert.NoError(t, RunParameters{Hashrate: 1}.Validate(), "free power is valid")

	cases := map[string]RunParameters{
		"zero hashrate": {Hashrate: 0, PowerWatts: 1, PowerCostPerKwh: 1},
		"neg power":     {Hashrate: 1, PowerWatts: -1},
		"neg cost":      {Hashrate: 1, PowerCostPerKwh: -0.1},
		"nan power":     {Hashrate: 1, PowerWatts: math.NaN()},
		"inf power":     {Hashrate: 1, PowerWatts: math.Inf(1)},
		"nan cost":      {Hashrate: 1, PowerCostPerKwh: math.NaN()},
		"neg inf cost":  {Hashrate: 1, PowerCostPerKwh: math.Inf(-1)},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, p.Validate())
		})
	}
}
