package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ReportingMode selects the accounting scope of a statement request.
type ReportingMode string

const (
	Consolidated ReportingMode = "CFS" // 연결재무제표
	Standalone   ReportingMode = "OFS" // 개별재무제표
)

// Quarter is the label of a report period within a fiscal year.
type Quarter string

const (
	Q1 Quarter = "1Q"
	Q2 Quarter = "2Q" // half-year report
	Q3 Quarter = "3Q"
	Q4 Quarter = "4Q" // annual business report
)

// Quarters lists the four report periods in fiscal order.
var Quarters = []Quarter{Q1, Q2, Q3, Q4}

// ReportCode is the DART reprt_code of a periodic filing.
type ReportCode string

const (
	ReportQ1     ReportCode = "11013" // 1분기보고서
	ReportHalf   ReportCode = "11012" // 반기보고서
	ReportQ3     ReportCode = "11014" // 3분기보고서
	ReportAnnual ReportCode = "11011" // 사업보고서
)

// ReportCode returns the fixed report code for the quarter, or "" if the
// label is unknown.
func (q Quarter) ReportCode() ReportCode {
	switch q {
	case Q1:
		return ReportQ1
	case Q2:
		return ReportHalf
	case Q3:
		return ReportQ3
	case Q4:
		return ReportAnnual
	}
	return ""
}

// ParseQuarter accepts "1Q".."4Q", "Q1".."Q4", bare digits or a report code.
func ParseQuarter(s string) (Quarter, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "1Q", "Q1", "1", string(ReportQ1):
		return Q1, nil
	case "2Q", "Q2", "2", "H1", string(ReportHalf):
		return Q2, nil
	case "3Q", "Q3", "3", string(ReportQ3):
		return Q3, nil
	case "4Q", "Q4", "4", "FY", string(ReportAnnual):
		return Q4, nil
	}
	return "", fmt.Errorf("unknown quarter %q", s)
}

// PeriodKey identifies one fiscal year/quarter cell of the dataset.
type PeriodKey struct {
	Year    int
	Quarter Quarter
}

// String renders the key as "<year>-<quarter>", e.g. "2023-1Q".
func (k PeriodKey) String() string {
	return strconv.Itoa(k.Year) + "-" + string(k.Quarter)
}

// PriorYear returns the same quarter one fiscal year earlier.
func (k PeriodKey) PriorYear() PeriodKey {
	return PeriodKey{Year: k.Year - 1, Quarter: k.Quarter}
}

// Less orders keys by year, then quarter.
func (k PeriodKey) Less(o PeriodKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Quarter < o.Quarter
}

// LineItem is one row of a fnlttSinglAcntAll.json response.
type LineItem struct {
	RceptNo         string `json:"rcept_no,omitempty"`
	ReprtCode       string `json:"reprt_code,omitempty"`
	BsnsYear        string `json:"bsns_year,omitempty"`
	CorpCode        string `json:"corp_code,omitempty"`
	SjDiv           string `json:"sj_div,omitempty"` // BS, IS, CIS, CF, SCE
	SjNm            string `json:"sj_nm,omitempty"`
	AccountID       string `json:"account_id,omitempty"`
	AccountNm       string `json:"account_nm"`
	AccountDetail   string `json:"account_detail,omitempty"`
	ThstrmNm        string `json:"thstrm_nm,omitempty"`
	ThstrmAmount    string `json:"thstrm_amount,omitempty"`
	FrmtrmNm        string `json:"frmtrm_nm,omitempty"`
	FrmtrmAmount    string `json:"frmtrm_amount,omitempty"`
	BfefrmtrmNm     string `json:"bfefrmtrm_nm,omitempty"`
	BfefrmtrmAmount string `json:"bfefrmtrm_amount,omitempty"`
	Ord             string `json:"ord,omitempty"`
	Currency        string `json:"currency,omitempty"`
}

// StatementResponse is the envelope returned by the statement endpoint.
type StatementResponse struct {
	Status  string     `json:"status"`
	Message string     `json:"message"`
	List    []LineItem `json:"list,omitempty"`

	// Mode is the scope that produced this response. Not part of the wire format.
	Mode ReportingMode `json:"-"`
}

// OK reports whether the API signalled success ("000").
func (r *StatementResponse) OK() bool { return r != nil && r.Status == StatusOK }

// DART status codes.
const (
	StatusOK        = "000"
	StatusNoData    = "013"
	StatusBadKey    = "010"
	StatusRateLimit = "020"
)

// Indicator names, as published by the indicator endpoint.
const (
	IndicatorRevenueGrowth         = "매출액증가율"
	IndicatorOperatingProfitGrowth = "영업이익증가율"
	IndicatorROE                   = "자기자본이익률(ROE)"
	IndicatorDebtRatio             = "부채비율"
	IndicatorCurrentRatio          = "유동비율"
	IndicatorOperatingMargin       = "매출액영업이익률"
)

// IndicatorNames lists the six indicators in presentation order.
var IndicatorNames = []string{
	IndicatorRevenueGrowth,
	IndicatorOperatingProfitGrowth,
	IndicatorROE,
	IndicatorDebtRatio,
	IndicatorCurrentRatio,
	IndicatorOperatingMargin,
}

// Indicators maps indicator name to a two-decimal percentage string, or "0".
type Indicators map[string]string

// NewIndicators returns the full indicator set at its default "0".
func NewIndicators() Indicators {
	ind := make(Indicators, len(IndicatorNames))
	for _, name := range IndicatorNames {
		ind[name] = "0"
	}
	return ind
}

// IncomeStatement holds the resolved income-statement values of a period.
type IncomeStatement struct {
	Revenue              float64 `json:"revenue"`
	CostOfSales          float64 `json:"cost_of_sales"`
	GrossProfit          float64 `json:"gross_profit"`
	SellingAdminExpenses float64 `json:"selling_admin_expenses"`
	OperatingProfit      float64 `json:"operating_profit"`
	NetIncome            float64 `json:"net_income"`
}

// BalanceSheet holds the resolved balance-sheet values of a period.
type BalanceSheet struct {
	TotalAssets           float64 `json:"total_assets"`
	CurrentAssets         float64 `json:"current_assets"`
	NonCurrentAssets      float64 `json:"non_current_assets"`
	TotalLiabilities      float64 `json:"total_liabilities"`
	CurrentLiabilities    float64 `json:"current_liabilities"`
	NonCurrentLiabilities float64 `json:"non_current_liabilities"`
	TotalEquity           float64 `json:"total_equity"`
}

// CashFlow holds the resolved cash-flow values of a period.
type CashFlow struct {
	Operating float64 `json:"operating"`
	Investing float64 `json:"investing"`
	Financing float64 `json:"financing"`
}

// PeriodResult is the computed output for one period.
type PeriodResult struct {
	Indicators      Indicators      `json:"indicators"`
	IncomeStatement IncomeStatement `json:"income_statement"`
	BalanceSheet    BalanceSheet    `json:"balance_sheet"`
	CashFlow        CashFlow        `json:"cash_flow"`
}
