package model

import "fmt"

// CoinMetrics holds the fields read from a profitability API response.
// A nil field means the key was absent from the response.
type CoinMetrics struct {
	LastUpdateEpochMs *int64
	RewardsInDay      *float64
	RevenueInDayUSD   *float64
	ProfitInDayUSD    *float64
}

// DataError reports a malformed or incomplete metrics payload.
type DataError struct {
	Field   string
	Message string
}

func (e *DataError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
