package account

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"github.com/seenimoa/dartfin/pkg/models"
)

func item(name, amount string) models.LineItem {
	return models.LineItem{AccountNm: name, ThstrmAmount: amount}
}

// sampleStatement mimics the ordering of a real fnlttSinglAcntAll response:
// balance sheet, income statement, then cash flow.
func sampleStatement() []models.LineItem {
	return []models.LineItem{
		item("유동자산", "120,000"),
		item("비유동자산", "380,000"),
		item("자산총계", "500,000"),
		item("유동부채", "70,000"),
		item("비유동부채", "230,000"),
		item("부채총계", "300,000"),
		item("자본총계", "200,000"),
		item("매출액", "1,200,000"),
		item("매출원가", "900,000"),
		item("매출총이익", "300,000"),
		item("판매비와 관리비", "150,000"),
		item("영업이익", "150,000"),
		item("당기순이익(손실)", "100,000"),
		item("영업활동으로 인한 현금흐름", "180,000"),
		item("투자활동현금흐름", "-90,000"),
		item("재무활동현금흐름", "-40,000"),
	}
}

// ── Resolve ──

func TestResolveCommaGrouped(t *testing.T) {
	items := []models.LineItem{item("매출액", "1,234,500")}
	assert.Equal(t, 1234500.0, Resolve(items, []string{"매출액"}))
}

func TestResolveNoMatchIsZero(t *testing.T) {
	items := []models.LineItem{item("매출원가", "10"), item("영업이익", "5")}
	assert.Equal(t, 0.0, Resolve(items, []string{"자본총계"}))
	assert.Equal(t, 0.0, Resolve(nil, []string{"매출액"}))
	assert.Equal(t, 0.0, Resolve(items, nil))
}

func TestResolveFirstMatchWins(t *testing.T) {
	items := []models.LineItem{
		item("기타수익", "1"),
		item("매출액(연결)", "2"),
		item("매출액", "3"),
	}
	assert.Equal(t, 2.0, Resolve(items, []string{"매출액"}))
}

func TestResolveItemOrderBeatsAliasOrder(t *testing.T) {
	// The outer loop runs over items, so an earlier item matching the second
	// alias wins over a later item matching the first alias.
	items := []models.LineItem{
		item("수익(매출액)", "7"),
		item("매출액", "9"),
	}
	assert.Equal(t, 7.0, Resolve(items, []string{"매출액", "수익(매출액)"}))
}

func TestResolveStripsWhitespace(t *testing.T) {
	items := []models.LineItem{item(" 판매비와\t관리비 ", "42")}
	assert.Equal(t, 42.0, Resolve(items, []string{"판매비와관리비"}))
}

func TestResolveNormalizesDecomposedHangul(t *testing.T) {
	decomposed := norm.NFD.String("매출액")
	require.NotEqual(t, "매출액", decomposed)
	items := []models.LineItem{item(decomposed, "5")}
	assert.Equal(t, 5.0, Resolve(items, []string{"매출액"}))
}

func TestResolveMalformedAmountIsZero(t *testing.T) {
	tests := []string{"", "-", "N/A", "  ", "원1,000", "e5"}
	for _, amount := range tests {
		items := []models.LineItem{item("매출액", amount), item("매출액", "99")}
		assert.Equal(t, 0.0, Resolve(items, []string{"매출액"}), "amount %q", amount)
	}
}

func TestResolveReadsLeadingNumber(t *testing.T) {
	items := []models.LineItem{item("매출액", "1,2a"), item("매출액", "99")}
	assert.Equal(t, 12.0, Resolve(items, []string{"매출액"}))
}

func TestResolveStripsByteOrderMark(t *testing.T) {
	items := []models.LineItem{item("매출\ufeff액", "8")}
	assert.Equal(t, 8.0, Resolve(items, []string{"매출액"}))
	items = []models.LineItem{item("\ufeff자본총계", "3")}
	assert.Equal(t, 3.0, Resolve(items, []string{"자본총계"}))
}

func TestResolveNegativeAndDecimal(t *testing.T) {
	assert.Equal(t, -90000.0, Resolve([]models.LineItem{item("투자활동현금흐름", "-90,000")}, []string{"투자활동현금흐름"}))
	assert.Equal(t, 12.5, Resolve([]models.LineItem{item("영업이익", "12.5")}, []string{"영업이익"}))
}

func TestResolveCurrentAssetsIsSubstringOfNonCurrent(t *testing.T) {
	// "유동자산" is contained in "비유동자산"; filing order decides.
	items := []models.LineItem{item("비유동자산", "1"), item("유동자산", "2")}
	assert.Equal(t, 1.0, Resolve(items, []string{"유동자산"}))
}

// ── ParseAmount ──

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		parsed bool
	}{
		{"1,234,500", 1234500, true},
		{" 42 ", 42, true},
		{"-1,000", -1000, true},
		{"0", 0, true},
		{"", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"abc", 0, false},
		{"1,234원", 1234, true},
		{"1.2.3", 1.2, true},
		{"1_000", 1, true},
		{"+.5", 0.5, true},
		{"2.5e3억", 2500, true},
		{"1e", 1, true},
		{"1e999", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseAmount(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.parsed, ok, tt.in)
	}
}

// ── Resolver ──

func TestResolverResolveAll(t *testing.T) {
	r := NewResolver(nil, zerolog.Nop())
	acc, matches := r.ResolveAll(sampleStatement())

	assert.Equal(t, 1200000.0, acc.Revenue)
	assert.Equal(t, 900000.0, acc.CostOfSales)
	assert.Equal(t, 300000.0, acc.GrossProfit)
	assert.Equal(t, 150000.0, acc.SellingAdminExpenses)
	assert.Equal(t, 150000.0, acc.OperatingProfit)
	assert.Equal(t, 100000.0, acc.NetIncome)
	assert.Equal(t, 500000.0, acc.TotalAssets)
	assert.Equal(t, 120000.0, acc.CurrentAssets)
	assert.Equal(t, 380000.0, acc.NonCurrentAssets)
	assert.Equal(t, 300000.0, acc.TotalLiabilities)
	assert.Equal(t, 70000.0, acc.CurrentLiabilities)
	assert.Equal(t, 230000.0, acc.NonCurrentLiabilities)
	assert.Equal(t, 200000.0, acc.TotalEquity)
	assert.Equal(t, 180000.0, acc.OperatingCashFlow)
	assert.Equal(t, -90000.0, acc.InvestingCashFlow)
	assert.Equal(t, -40000.0, acc.FinancingCashFlow)

	require.Len(t, matches, len(Concepts))
	for i, m := range matches {
		assert.Equal(t, Concepts[i], m.Concept)
		assert.True(t, m.Found, m.Concept)
	}
}

func TestResolverMatchIsAuditable(t *testing.T) {
	r := NewResolver(nil, zerolog.Nop())

	m := r.Match(sampleStatement(), OperatingCashFlow)
	assert.True(t, m.Found)
	assert.True(t, m.Parsed)
	assert.Equal(t, "영업활동으로인한현금흐름", m.Alias)
	assert.Equal(t, "영업활동으로 인한 현금흐름", m.AccountName)
	assert.Equal(t, 13, m.Index)

	m = r.Match([]models.LineItem{item("자본총계", "")}, TotalEquity)
	assert.True(t, m.Found)
	assert.False(t, m.Parsed, "empty amount is found but unparsed")
	assert.Equal(t, 0.0, m.Value)

	m = r.Match(nil, TotalEquity)
	assert.False(t, m.Found)
	assert.Equal(t, -1, m.Index)
}

func TestResolverLogsMatchesAtDebug(t *testing.T) {
	var buf bytes.Buffer
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer zerolog.SetGlobalLevel(prev)

	r := NewResolver(nil, zerolog.New(&buf).Level(zerolog.DebugLevel))
	r.ResolveAll([]models.LineItem{item("매출액", "1")})

	out := buf.String()
	assert.Equal(t, len(Concepts), strings.Count(out, "resolved account"))
	assert.Contains(t, out, `"alias":"매출액"`)
	assert.Contains(t, out, `"table_version":"2024.1"`)
}

func TestAccountsBreakdowns(t *testing.T) {
	acc := Accounts{Revenue: 1, NetIncome: 2, TotalEquity: 3, NonCurrentAssets: 4, FinancingCashFlow: 5}
	assert.Equal(t, 1.0, acc.IncomeStatement().Revenue)
	assert.Equal(t, 2.0, acc.IncomeStatement().NetIncome)
	assert.Equal(t, 3.0, acc.BalanceSheet().TotalEquity)
	assert.Equal(t, 4.0, acc.BalanceSheet().NonCurrentAssets)
	assert.Equal(t, 5.0, acc.CashFlow().Financing)
}
