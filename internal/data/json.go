package data

import (
	"os"

	"coin-tracker/internal/model"
)

// LoadMetricsJSON parses a saved profitability API response.
func LoadMetricsJSON(path string) (*model.CoinMetrics, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseMetrics(raw)
}
