package account

import "github.com/seenimoa/dartfin/pkg/models"

// Accounts holds the resolved value of every concept for one period.
type Accounts struct {
	Revenue              float64
	CostOfSales          float64
	GrossProfit          float64
	SellingAdminExpenses float64
	OperatingProfit      float64
	NetIncome            float64

	TotalAssets           float64
	CurrentAssets         float64
	NonCurrentAssets      float64
	TotalLiabilities      float64
	CurrentLiabilities    float64
	NonCurrentLiabilities float64
	TotalEquity           float64

	OperatingCashFlow float64
	InvestingCashFlow float64
	FinancingCashFlow float64
}

func accountsFrom(v map[Concept]float64) Accounts {
	return Accounts{
		Revenue:               v[Revenue],
		CostOfSales:           v[CostOfSales],
		GrossProfit:           v[GrossProfit],
		SellingAdminExpenses:  v[SellingAdminExpenses],
		OperatingProfit:       v[OperatingProfit],
		NetIncome:             v[NetIncome],
		TotalAssets:           v[TotalAssets],
		CurrentAssets:         v[CurrentAssets],
		NonCurrentAssets:      v[NonCurrentAssets],
		TotalLiabilities:      v[TotalLiabilities],
		CurrentLiabilities:    v[CurrentLiabilities],
		NonCurrentLiabilities: v[NonCurrentLiabilities],
		TotalEquity:           v[TotalEquity],
		OperatingCashFlow:     v[OperatingCashFlow],
		InvestingCashFlow:     v[InvestingCashFlow],
		FinancingCashFlow:     v[FinancingCashFlow],
	}
}

// IncomeStatement returns the income-statement breakdown.
func (a Accounts) IncomeStatement() models.IncomeStatement {
	return models.IncomeStatement{
		Revenue:              a.Revenue,
		CostOfSales:          a.CostOfSales,
		GrossProfit:          a.GrossProfit,
		SellingAdminExpenses: a.SellingAdminExpenses,
		OperatingProfit:      a.OperatingProfit,
		NetIncome:            a.NetIncome,
	}
}

// BalanceSheet returns the balance-sheet breakdown.
func (a Accounts) BalanceSheet() models.BalanceSheet {
	return models.BalanceSheet{
		TotalAssets:           a.TotalAssets,
		CurrentAssets:         a.CurrentAssets,
		NonCurrentAssets:      a.NonCurrentAssets,
		TotalLiabilities:      a.TotalLiabilities,
		CurrentLiabilities:    a.CurrentLiabilities,
		NonCurrentLiabilities: a.NonCurrentLiabilities,
		TotalEquity:           a.TotalEquity,
	}
}

// CashFlow returns the cash-flow breakdown.
func (a Accounts) CashFlow() models.CashFlow {
	return models.CashFlow{
		Operating: a.OperatingCashFlow,
		Investing: a.InvestingCashFlow,
		Financing: a.FinancingCashFlow,
	}
}
