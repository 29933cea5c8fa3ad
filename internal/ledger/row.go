package ledger

import (
	"time"

	"coin-tracker/internal/model"
)

// TimestampLayout is how the API's lastUpdate is rendered in the sheet.
const TimestampLayout = "2006-01-02 15:04:05"

// OutputRow is one appended sheet row. Field order is the column order.
type OutputRow struct {
	Timestamp       string
	RewardsInDay    float64
	RevenueInDayUSD float64
	ProfitInDayUSD  float64
	Hashrate        int64
	PowerWatts      float64
	PowerCostPerKwh float64

	// ProfitInRewards is the daily profit expressed in reward units:
	// ProfitInDayUSD / RevenueInDayUSD * RewardsInDay.
	ProfitInRewards float64
}

// Header returns the column names matching Values.
func Header() []string {
	return []string{
		"last_update",
		"rewards_in_day",
		"revenue_in_day_usd",
		"profit_in_day_usd",
		"hashrate",
		"power_watts",
		"power_cost_per_kwh",
		"profit_in_rewards",
	}
}

// Values returns the row as sheet cell values.
func (r OutputRow) Values() []interface{} {
	return []interface{}{
		r.Timestamp,
		r.RewardsInDay,
		r.RevenueInDayUSD,
		r.ProfitInDayUSD,
		r.Hashrate,
		r.PowerWatts,
		r.PowerCostPerKwh,
		r.ProfitInRewards,
	}
}

// Transform builds the output row for one run. loc selects the zone the
// timestamp is rendered in; nil means time.Local.
func Transform(m *model.CoinMetrics, p model.RunParameters, loc *time.Location) (OutputRow, error) {
	if m == nil {
		return OutputRow{}, &model.DataError{Message: "no metrics"}
	}
	if loc == nil {
		loc = time.Local
	}
	if m.LastUpdateEpochMs == nil {
		return OutputRow{}, &model.DataError{Field: "lastUpdate", Message: "missing from response"}
	}
	rewards, err := required("rewardsInDay", m.RewardsInDay)
	if err != nil {
		return OutputRow{}, err
	}
	revenue, err := required("revenueInDayUSD", m.RevenueInDayUSD)
	if err != nil {
		return OutputRow{}, err
	}
	profit, err := required("profitInDayUSD", m.ProfitInDayUSD)
	if err != nil {
		return OutputRow{}, err
	}
	if revenue == 0 {
		return OutputRow{}, &model.DataError{Field: "revenueInDayUSD", Message: "is zero, cannot derive profit in rewards"}
	}

	return OutputRow{
		Timestamp:       time.UnixMilli(*m.LastUpdateEpochMs).In(loc).Format(TimestampLayout),
		RewardsInDay:    rewards,
		RevenueInDayUSD: revenue,
		ProfitInDayUSD:  profit,
		Hashrate:        p.Hashrate,
		PowerWatts:      p.PowerWatts,
		PowerCostPerKwh: p.PowerCostPerKwh,
		ProfitInRewards: profit / revenue * rewards,
	}, nil
}

func required(field string, v *float64) (float64, error) {
	if v == nil {
		return 0, &model.DataError{Field: field, Message: "missing from response"}
	}
	return *v, nil
}
