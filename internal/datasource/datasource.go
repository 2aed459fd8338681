// Package datasource assembles per-period financial indicator series from
// DART statements. It fans out one statement fetch per fiscal year and
// quarter, then resolves accounts and computes indicators once every fetch
// has settled.
package datasource

import (
	"context"
	"fmt"

	"github.com/seenimoa/dartfin/pkg/models"
)

// StatementFetcher retrieves one filing's line items, preferring consolidated
// figures. A non-"000" status is reported in the response, not as an error.
type StatementFetcher interface {
	FinancialStatements(ctx context.Context, corpCode string, year int, code models.ReportCode) (*models.StatementResponse, error)
}

// CorpCodeLookup maps a stock code to a DART corp code. The bool is false
// when the company is not listed.
type CorpCodeLookup interface {
	CorpCode(ctx context.Context, stockCode string) (string, bool, error)
}

// ErrCompanyNotFound is returned when a stock code has no corp code. It is
// the only condition that aborts an aggregation without a result.
type ErrCompanyNotFound struct {
	StockCode string
}

func (e *ErrCompanyNotFound) Error() string {
	return fmt.Sprintf("company with stock code %s not found", e.StockCode)
}

// DiagnosticReason classifies why a period is missing from a Series.
type DiagnosticReason string

const (
	ReasonFetchFailed DiagnosticReason = "fetch_failed" // transport or decode failure
	ReasonNoData      DiagnosticReason = "no_data"      // status 013 in both modes
	ReasonAPIStatus   DiagnosticReason = "api_status"   // any other non-success status
	ReasonCancelled   DiagnosticReason = "cancelled"
)

// PeriodDiagnostic records a period that produced no result.
type PeriodDiagnostic struct {
	Key     string           `json:"period"`
	Reason  DiagnosticReason `json:"reason"`
	Status  string           `json:"status,omitempty"`
	Message string           `json:"message,omitempty"`
	Err     error            `json:"-"`
}
