package provider

// ModelType names a kind of data a provider can serve. Each ModelType maps
// to a specific data structure in pkg/models.
type ModelType string

// --- Filings ---
const (
	ModelFinancialStatement ModelType = "FinancialStatement"
	ModelReportList         ModelType = "ReportList"
	ModelDisclosureFeed     ModelType = "DisclosureFeed"
)

// --- Reference ---
const (
	ModelCorpCode ModelType = "CorpCode"
)

// --- Derived ---
const (
	ModelFinancialIndicators ModelType = "FinancialIndicators"
)

// AllModels lists every model type in display order.
var AllModels = []ModelType{
	ModelFinancialStatement,
	ModelReportList,
	ModelDisclosureFeed,
	ModelCorpCode,
	ModelFinancialIndicators,
}
