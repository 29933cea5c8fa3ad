package ledger

import (
	"encoding/csv"
	"os"
	"strconv"
)

// WriteRowsCSV writes rows with a header line to path.
func WriteRowsCSV(path string, rows []OutputRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(Header()); err != nil {
		return err
	}

	for _, r := range rows {
		row := []string{
			r.Timestamp,
			fmtFloat(r.RewardsInDay),
			fmtFloat(r.RevenueInDayUSD),
			fmtFloat(r.ProfitInDayUSD),
			strconv.FormatInt(r.Hashrate, 10),
			fmtFloat(r.PowerWatts),
			fmtFloat(r.PowerCostPerKwh),
			fmtFloat(r.ProfitInRewards),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
