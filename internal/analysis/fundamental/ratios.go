// Package fundamental computes the fixed indicator set (growth rates,
// profitability and liquidity ratios) from resolved account values.
package fundamental

import (
	"math"
	"strconv"

	"github.com/seenimoa/dartfin/internal/account"
	"github.com/seenimoa/dartfin/pkg/models"
)

// ComputeIndicators calculates the six indicators for a period. prior is
// the same quarter of the previous fiscal year and may be nil. Every ratio
// is guarded independently: a zero divisor or missing prior data leaves the
// indicator at "0".
func ComputeIndicators(current account.Accounts, prior *account.Accounts) models.Indicators {
	ind := models.NewIndicators()

	// ROE and debt ratio share the equity divisor.
	if current.TotalEquity != 0 {
		setPct(ind, models.IndicatorROE, ratio(current.NetIncome, current.TotalEquity))
		setPct(ind, models.IndicatorDebtRatio, ratio(current.TotalLiabilities, current.TotalEquity))
	}
	if current.CurrentLiabilities != 0 {
		setPct(ind, models.IndicatorCurrentRatio, ratio(current.CurrentAssets, current.CurrentLiabilities))
	}
	if current.Revenue != 0 {
		setPct(ind, models.IndicatorOperatingMargin, ratio(current.OperatingProfit, current.Revenue))
	}

	// YoY growth against the same quarter of the prior year.
	if prior != nil {
		if prior.Revenue != 0 {
			setPct(ind, models.IndicatorRevenueGrowth, pctChange(prior.Revenue, current.Revenue))
		}
		if prior.OperatingProfit != 0 {
			setPct(ind, models.IndicatorOperatingProfitGrowth, pctChange(prior.OperatingProfit, current.OperatingProfit))
		}
	}

	return ind
}

// --- helpers ---

func ratio(num, den float64) float64 {
	return num / den * 100
}

func pctChange(old, new_ float64) float64 {
	return (new_ - old) / math.Abs(old) * 100
}

// setPct stores v with two fraction digits, leaving the default in place
// when v is not finite (overflow on extreme inputs).
func setPct(ind models.Indicators, name string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	ind[name] = FormatPct(v)
}

// FormatPct renders a percentage with exactly two fraction digits.
func FormatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
